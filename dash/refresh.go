package dash

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/xeptore/mpdq/dash/mpd"
)

// Refresh builds a client from an updated manifest. The selected period and
// every stream are looked up again by id, and each new cursor is placed at the
// fragment the old one was about to deliver. The receiver is left untouched.
func (c *Client) Refresh(data []byte) (*Client, error) {
	next, err := New(c.logger, data, c.location)
	if nil != err {
		return nil, err
	}

	if id := c.PeriodID(); id != "" {
		if err := next.SetPeriodID(id); nil != err {
			return nil, fmt.Errorf("reselect period: %w", err)
		}
	} else if c.periodIdx < len(next.periods) {
		next.periodIdx = c.periodIdx
	}

	for _, old := range c.streams {
		asIdx, err := next.matchAdaptationSet(old)
		if nil != err {
			return nil, err
		}

		s, err := next.SetupStream(asIdx, old.Representation.ID)
		if nil != err {
			return nil, fmt.Errorf("reselect stream: %w", err)
		}
		if old.baseURLIndex != 0 {
			if err := s.SetBaseURLIndex(old.baseURLIndex); nil != err {
				return nil, err
			}
		}

		if ts, ok := old.NextFragmentTimestamp(); ok {
			if !s.Seek(ts) {
				next.logger.
					Debug().
					Str("representation", s.Representation.ID).
					Dur("timestamp", ts).
					Msg("Refreshed stream has no fragment at previous position")
			}
		}
	}

	return next, nil
}

func (c *Client) matchAdaptationSet(old *Stream) (int, error) {
	sets := c.AdaptationSets()
	if id := old.AdaptationSet.ID; id != 0 {
		_, idx, ok := lo.FindIndexOf(sets, func(as mpd.AdaptationSet) bool { return as.ID == id })
		if !ok {
			return 0, fmt.Errorf("%w: id %d", ErrAdaptationSetNotFound, id)
		}
		return idx, nil
	}
	if old.asIdx >= len(sets) {
		return 0, fmt.Errorf("%w: index %d of %d", ErrAdaptationSetNotFound, old.asIdx, len(sets))
	}

	return old.asIdx, nil
}
