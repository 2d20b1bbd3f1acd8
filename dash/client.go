// Package dash ties a parsed manifest, its period timeline and the active
// streams of one presentation together.
package dash

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/xeptore/mpdq/dash/mpd"
)

var (
	ErrNoPeriods                = errors.New("manifest has no usable periods")
	ErrPeriodNotFound           = errors.New("period not found")
	ErrAdaptationSetNotFound    = errors.New("adaptation set not found")
	ErrNoRepresentations        = errors.New("adaptation set has no representations")
	ErrRepresentationNotFound   = errors.New("representation not found")
	ErrNoSuitableRepresentation = errors.New("no representation fits the bandwidth limit")
	ErrNotLive                  = errors.New("presentation is not live")
)

// Client owns one parsed manifest: the presentation, its resolved periods,
// the selected period and the streams set up in it. A Client is not safe for
// concurrent use.
type Client struct {
	logger       zerolog.Logger
	presentation *mpd.Presentation
	location     string
	periods      []mpd.StreamPeriod
	periodIdx    int
	streams      []*Stream
}

// New parses data fetched from location. A period timeline that fails part
// way is kept up to the failing period; only a manifest without any usable
// period is rejected.
func New(logger zerolog.Logger, data []byte, location string) (*Client, error) {
	p, err := mpd.Parse(data)
	if nil != err {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	periods, err := mpd.BuildTimeline(p)
	if nil != err {
		if len(periods) == 0 {
			return nil, fmt.Errorf("build period timeline: %w", err)
		}
		logger.
			Warn().
			Err(err).
			Int("usable_periods", len(periods)).
			Int("declared_periods", len(p.Periods)).
			Msg("Using partial period timeline")
	}
	if len(periods) == 0 {
		return nil, ErrNoPeriods
	}

	logger.
		Debug().
		Str("type", p.Type.String()).
		Int("periods", len(periods)).
		Msg("Manifest loaded")

	return &Client{
		logger:       logger,
		presentation: p,
		location:     location,
		periods:      periods,
		periodIdx:    0,
		streams:      nil,
	}, nil
}

func (c *Client) Presentation() *mpd.Presentation {
	return c.presentation
}

func (c *Client) Location() string {
	return c.location
}

func (c *Client) IsLive() bool {
	return c.presentation.Type == mpd.Dynamic
}

func (c *Client) Periods() []mpd.StreamPeriod {
	return c.periods
}

func (c *Client) Period() mpd.StreamPeriod {
	return c.periods[c.periodIdx]
}

func (c *Client) PeriodIndex() int {
	return c.periodIdx
}

func (c *Client) PeriodID() string {
	return c.Period().Period.ID
}

// SetPeriodIndex selects the period at idx. Streams set up in the previous
// period are dropped.
func (c *Client) SetPeriodIndex(idx int) error {
	if idx < 0 || idx >= len(c.periods) {
		return fmt.Errorf("%w: index %d of %d", ErrPeriodNotFound, idx, len(c.periods))
	}
	if idx != c.periodIdx {
		c.streams = nil
	}
	c.periodIdx = idx

	return nil
}

func (c *Client) SetPeriodID(id string) error {
	_, idx, ok := lo.FindIndexOf(c.periods, func(sp mpd.StreamPeriod) bool { return sp.Period.ID == id })
	if !ok {
		return fmt.Errorf("%w: id %q", ErrPeriodNotFound, id)
	}

	return c.SetPeriodIndex(idx)
}

func (c *Client) HasNextPeriod() bool {
	return c.periodIdx+1 < len(c.periods)
}

func (c *Client) HasPreviousPeriod() bool {
	return c.periodIdx > 0
}

// PeriodIndexAt returns the period containing the presentation time ts.
func (c *Client) PeriodIndexAt(ts time.Duration) (int, bool) {
	_, idx, ok := lo.FindIndexOf(c.periods, func(sp mpd.StreamPeriod) bool {
		end := sp.End()
		return sp.Start <= ts && (end == mpd.UnknownDuration || ts < end)
	})

	return idx, ok
}

// MediaPresentationDuration is mpd.UnknownDuration when the manifest does not declare one.
func (c *Client) MediaPresentationDuration() time.Duration {
	if c.presentation.MediaPresentationDuration == mpd.Unset {
		return mpd.UnknownDuration
	}

	return time.Duration(c.presentation.MediaPresentationDuration) * time.Millisecond
}

// AdaptationSets lists the adaptation sets of the selected period.
func (c *Client) AdaptationSets() []mpd.AdaptationSet {
	return c.Period().Period.AdaptationSets
}

// AudioLanguages lists the distinct languages of the audio adaptation sets in
// the selected period, in document order.
func (c *Client) AudioLanguages() []string {
	langs := lo.FilterMap(c.AdaptationSets(), func(as mpd.AdaptationSet, _ int) (string, bool) {
		return as.Lang, as.Lang != "" && adaptationSetKind(&as) == mpd.MimeAudio
	})

	return lo.Uniq(langs)
}

func adaptationSetKind(as *mpd.AdaptationSet) mpd.MimeKind {
	if kind := mpd.ClassifyMimeType(as.MimeType); kind != mpd.MimeUnknown {
		return kind
	}
	if len(as.Representations) > 0 {
		return mpd.ClassifyMimeType(as.Representations[0].MimeType)
	}

	return mpd.MimeUnknown
}

func (c *Client) adaptationSet(asIdx int) (*mpd.AdaptationSet, error) {
	sets := c.AdaptationSets()
	if asIdx < 0 || asIdx >= len(sets) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrAdaptationSetNotFound, asIdx, len(sets))
	}

	return &sets[asIdx], nil
}

// SetupStream activates representation repID of the adaptation set at asIdx
// in the selected period. An empty repID picks the lowest bandwidth one.
func (c *Client) SetupStream(asIdx int, repID string) (*Stream, error) {
	as, err := c.adaptationSet(asIdx)
	if nil != err {
		return nil, err
	}
	if len(as.Representations) == 0 {
		return nil, ErrNoRepresentations
	}

	rep := lo.Ternary(repID == "", as.LowestRepresentation(), as.RepresentationByID(repID))
	if nil == rep {
		return nil, fmt.Errorf("%w: id %q", ErrRepresentationNotFound, repID)
	}

	return c.setupStream(asIdx, as, rep)
}

// SetupStreamWithMaxBandwidth activates the highest bandwidth representation
// of the adaptation set at asIdx that does not exceed maxBandwidth.
func (c *Client) SetupStreamWithMaxBandwidth(asIdx int, maxBandwidth int64) (*Stream, error) {
	as, err := c.adaptationSet(asIdx)
	if nil != err {
		return nil, err
	}
	if len(as.Representations) == 0 {
		return nil, ErrNoRepresentations
	}

	rep := as.RepresentationWithMaxBandwidth(maxBandwidth)
	if nil == rep {
		return nil, fmt.Errorf("%w: %d", ErrNoSuitableRepresentation, maxBandwidth)
	}

	return c.setupStream(asIdx, as, rep)
}

func (c *Client) setupStream(asIdx int, as *mpd.AdaptationSet, rep *mpd.Representation) (*Stream, error) {
	s, err := newStream(c.presentation, c.location, c.Period(), asIdx, as, rep, 0)
	if nil != err {
		return nil, fmt.Errorf("setup stream for representation %q: %w", rep.ID, err)
	}
	c.streams = append(c.streams, s)

	c.logger.
		Debug().
		Int("adaptation_set", asIdx).
		Str("representation", rep.ID).
		Str("source", s.index.Source.String()).
		Str("base_url", s.base.String()).
		Msg("Stream set up")

	return s, nil
}

func (c *Client) Streams() []*Stream {
	return c.streams
}
