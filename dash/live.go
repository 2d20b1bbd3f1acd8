package dash

import (
	"errors"
	"time"

	"github.com/xeptore/mpdq/dash/mpd"
)

var ErrNoAvailabilityStartTime = errors.New("presentation has no availability start time")

// Availability classifies a fragment against the live availability window.
type Availability int

const (
	Available Availability = iota
	NotYetAvailable
	Expired
)

func (a Availability) String() string {
	switch a {
	case NotYetAvailable:
		return "not yet available"
	case Expired:
		return "expired"
	default:
		return "available"
	}
}

func (c *Client) liveStart() (time.Time, error) {
	if !c.IsLive() {
		return time.Time{}, ErrNotLive
	}
	if nil == c.presentation.AvailabilityStartTime {
		return time.Time{}, ErrNoAvailabilityStartTime
	}

	return *c.presentation.AvailabilityStartTime, nil
}

// CheckTimePosition classifies the fragment starting at ts, with the stream's
// segment duration, against the window available at now. A fragment is
// published once it ends and stays available for the time shift buffer depth
// plus one segment duration after that. The returned distance is how far
// the fragment end lies past now for future fragments, how long ago its
// availability ended for expired ones, and 0 when available.
func (c *Client) CheckTimePosition(s *Stream, ts time.Duration, now time.Time) (Availability, time.Duration, error) {
	ast, err := c.liveStart()
	if nil != err {
		return Available, 0, err
	}

	var (
		streamNow = now.Sub(ast)
		dur       = s.SegmentDuration()
		end       = ts + dur
	)
	if end > streamNow {
		return NotYetAvailable, end - streamNow, nil
	}
	if depth := c.presentation.TimeShiftBufferDepth; depth != mpd.Unset {
		if until := end + dur + time.Duration(depth)*time.Millisecond; until < streamNow {
			return Expired, until - streamNow, nil
		}
	}

	return Available, 0, nil
}

// SeekToTime moves every stream to the fragment available at the wall clock
// time t. It is false when any stream has no fragment there.
func (c *Client) SeekToTime(t time.Time) (bool, error) {
	ast, err := c.liveStart()
	if nil != err {
		return false, err
	}

	ts := max(t.Sub(ast), 0)
	ok := true
	for _, s := range c.streams {
		if !s.Seek(ts) {
			ok = false
		}
	}

	return ok, nil
}

// SeekToFirst moves every stream to its first fragment.
func (c *Client) SeekToFirst() {
	for _, s := range c.streams {
		s.SeekStart()
	}
}

// PeriodIndexAtTime returns the period live at wall clock time t. Times
// before the availability start resolve to the first period.
func (c *Client) PeriodIndexAtTime(t time.Time) (int, bool) {
	ast := c.presentation.AvailabilityStartTime
	if nil == ast {
		return 0, true
	}

	offset := t.Sub(*ast)
	if offset < 0 {
		return 0, true
	}

	return c.PeriodIndexAt(offset)
}

// NextSegmentAvailabilityEnd is the wall clock time at which the fragment
// under the stream's cursor has been fully published.
func (c *Client) NextSegmentAvailabilityEnd(s *Stream) (time.Time, bool) {
	ast := c.presentation.AvailabilityStartTime
	if nil == ast {
		return time.Time{}, false
	}

	f, ok := s.cursor.Current()
	if !ok || f.Duration == 0 {
		return time.Time{}, false
	}

	return ast.Add(f.End()), true
}
