package mpd

import (
	"errors"
	"fmt"
	"time"
)

// UnknownDuration marks an open-ended period of a dynamic presentation.
const UnknownDuration time.Duration = -1

var (
	// ErrEarlyAvailablePeriod reports a period whose start cannot be inferred yet.
	// The periods before it are still returned and usable.
	ErrEarlyAvailablePeriod = errors.New("early available period")
	ErrInvalidPeriodTimeline = errors.New("invalid period timeline")
)

// StreamPeriod is a period with its absolute start and duration resolved.
type StreamPeriod struct {
	Period   *Period
	Number   int
	Start    time.Duration
	Duration time.Duration
}

// End returns the absolute end of the period, or UnknownDuration.
func (sp StreamPeriod) End() time.Duration {
	if sp.Duration == UnknownDuration {
		return UnknownDuration
	}

	return sp.Start + sp.Duration
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// BuildTimeline resolves every period's start and duration in document order.
// On error it returns the periods resolved before the failing one.
func BuildTimeline(p *Presentation) ([]StreamPeriod, error) {
	var (
		out      = make([]StreamPeriod, 0, len(p.Periods))
		start    int64
		duration = Unset
	)

	for i := range p.Periods {
		period := &p.Periods[i]

		switch {
		case period.Start != Unset:
			if i > 0 && period.Start <= start {
				return out, fmt.Errorf("%w: period %d starts at %dms, not after %dms", ErrInvalidPeriodTimeline, i, period.Start, start)
			}
			start = period.Start
		case duration != Unset:
			start += duration
		case i == 0 && p.Type == Static:
			start = 0
		case p.Type == Dynamic:
			// Live: the running start carries over.
		default:
			return out, fmt.Errorf("%w: period %d", ErrEarlyAvailablePeriod, i)
		}

		last := i == len(p.Periods)-1
		switch {
		case !last && p.Periods[i+1].Start != Unset:
			duration = p.Periods[i+1].Start - start
			if duration <= 0 {
				return out, fmt.Errorf("%w: period %d has non-positive duration %dms", ErrInvalidPeriodTimeline, i, duration)
			}
		case period.Duration != Unset:
			duration = period.Duration
		case last && p.MediaPresentationDuration != Unset:
			duration = p.MediaPresentationDuration - start
			if duration <= 0 {
				return out, fmt.Errorf("%w: period %d starts after the presentation ends", ErrInvalidPeriodTimeline, i)
			}
		case p.Type == Dynamic:
			duration = Unset
		default:
			return out, fmt.Errorf("%w: period %d has no resolvable duration", ErrInvalidPeriodTimeline, i)
		}

		sp := StreamPeriod{
			Period:   period,
			Number:   i,
			Start:    millis(start),
			Duration: UnknownDuration,
		}
		if duration != Unset {
			sp.Duration = millis(duration)
		}
		out = append(out, sp)
	}

	return out, nil
}
