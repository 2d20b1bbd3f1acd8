// Package segment builds the media segment index of a representation and
// answers lookups and cursor navigation over it.
package segment

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xeptore/mpdq/dash/mpd"
	"github.com/xeptore/mpdq/mathutil"
)

var (
	ErrNoSegmentURLs          = errors.New("segment list has no segment urls")
	ErrUnknownSegmentDuration = errors.New("segment duration cannot be determined")
)

// Source names how a representation addresses its segments.
type Source int

const (
	SourceSingle Source = iota
	SourceList
	SourceTemplate
)

func (s Source) String() string {
	switch s {
	case SourceList:
		return "SegmentList"
	case SourceTemplate:
		return "SegmentTemplate"
	default:
		return "single"
	}
}

// MediaSegment is a run of Repeat+1 equally long fragments starting at Number.
// Scale fields are in the representation's timescale; Start and Duration are
// absolute presentation times.
type MediaSegment struct {
	Number        uint32
	Repeat        uint64
	ScaleStart    uint64
	ScaleDuration uint64
	Start         time.Duration
	Duration      time.Duration
	URL           *mpd.SegmentURL
}

// End is the end of the last fragment in the run.
func (s MediaSegment) End() time.Duration {
	return s.Start + time.Duration(s.Repeat+1)*s.Duration
}

// Index is the segment index of one representation in one period. Segments
// are materialized for lists and timelines; plain templates compute them on demand.
type Index struct {
	Period         mpd.StreamPeriod
	AdaptationSet  *mpd.AdaptationSet
	Representation *mpd.Representation
	Source         Source
	SegmentBase    *mpd.SegmentBase
	SegmentList    *mpd.SegmentList
	Template       *mpd.SegmentTemplate

	// PresentationTimeOffset is the offset of the media timeline, normalized.
	PresentationTimeOffset time.Duration

	segments []MediaSegment

	// On-demand template parameters.
	timescale     uint64
	scaleDuration uint64
	duration      time.Duration
	startNumber   uint32
	pto           uint64
}

// Build selects the addressing source of rep and builds its index. The first
// match wins: a SegmentBase with an Initialization, then a SegmentList, then a
// SegmentTemplate, each searched at representation, adaptation set and period
// level. Without any of them the whole period is a single segment.
func Build(sp mpd.StreamPeriod, as *mpd.AdaptationSet, rep *mpd.Representation) (*Index, error) {
	ix := &Index{
		Period:         sp,
		AdaptationSet:  as,
		Representation: rep,
		Source:         SourceSingle,
		SegmentBase:    nil,
		SegmentList:    nil,
		Template:       nil,
	}

	var (
		period = sp.Period
		base   = firstSegmentBase(rep.SegmentBase, as.SegmentBase, period.SegmentBase)
		list   = first(rep.SegmentList, as.SegmentList, period.SegmentList)
		tmpl   = first(rep.SegmentTemplate, as.SegmentTemplate, period.SegmentTemplate)
	)
	ix.SegmentBase = base

	switch {
	case nil != base && nil != base.Initialization:
		ix.PresentationTimeOffset = scaleToTime(base.PresentationTimeOffset, timescaleOf(*base))
		ix.buildSingle()
	case nil != list:
		ix.Source = SourceList
		ix.SegmentList = list
		if err := ix.buildList(list); nil != err {
			return nil, err
		}
	case nil != tmpl:
		ix.Source = SourceTemplate
		ix.Template = tmpl
		if err := ix.buildTemplate(tmpl); nil != err {
			return nil, err
		}
	default:
		ix.buildSingle()
	}

	ix.clampLast()

	return ix, nil
}

func first[T any](vals ...*T) *T {
	for _, v := range vals {
		if nil != v {
			return v
		}
	}

	return nil
}

func firstSegmentBase(vals ...*mpd.SegmentBase) *mpd.SegmentBase {
	for _, v := range vals {
		if nil != v && nil != v.Initialization {
			return v
		}
	}

	return first(vals...)
}

func timescaleOf(b mpd.SegmentBase) uint64 {
	if b.Timescale == 0 {
		return 1
	}

	return uint64(b.Timescale)
}

// scaleToTime converts v timescale units to a duration, saturating at the
// largest representable duration.
func scaleToTime(v, timescale uint64) time.Duration {
	ns := mathutil.Scale(v, uint64(time.Second), timescale)
	if ns > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(ns)
}

// buildSingle covers the period with one segment. Its scale fields are in nanoseconds.
func (ix *Index) buildSingle() {
	d := ix.Period.Duration
	if d == mpd.UnknownDuration {
		d = 0
	}
	ix.timescale = uint64(time.Second)
	ix.segments = []MediaSegment{{
		Number:        1,
		Repeat:        0,
		ScaleStart:    0,
		ScaleDuration: uint64(d),
		Start:         ix.Period.Start,
		Duration:      d,
		URL:           nil,
	}}
}

func (ix *Index) buildList(list *mpd.SegmentList) error {
	if len(list.URLs) == 0 {
		return ErrNoSegmentURLs
	}

	timescale := timescaleOf(list.SegmentBase)
	ix.timescale = timescale
	ix.PresentationTimeOffset = scaleToTime(list.PresentationTimeOffset, timescale)

	if nil != list.Timeline {
		// Each list entry has its own URL, so repeats are expanded.
		number := list.StartNumber
		i := 0
		ix.segments = make([]MediaSegment, 0, len(list.URLs))
		ix.walkRuns(list.Timeline, timescale, list.PresentationTimeOffset, func(run MediaSegment) bool {
			for r := uint64(0); r <= run.Repeat; r++ {
				if i >= len(list.URLs) {
					return false
				}
				scaleStart := run.ScaleStart + r*run.ScaleDuration
				ix.segments = append(ix.segments, MediaSegment{
					Number:        number,
					Repeat:        0,
					ScaleStart:    scaleStart,
					ScaleDuration: run.ScaleDuration,
					Start:         ix.mediaTime(scaleStart, timescale, list.PresentationTimeOffset),
					Duration:      run.Duration,
					URL:           &list.URLs[i],
				})
				number++
				i++
			}

			return true
		})

		return nil
	}

	var (
		scaleDuration = uint64(list.Duration)
		duration      = scaleToTime(scaleDuration, timescale)
	)
	if scaleDuration == 0 {
		if ix.Period.Duration == mpd.UnknownDuration {
			return ErrUnknownSegmentDuration
		}
		duration = ix.Period.Duration
		scaleDuration = mathutil.ScaleCeil(uint64(duration), timescale, uint64(time.Second))
	}

	ix.segments = make([]MediaSegment, len(list.URLs))
	for i := range list.URLs {
		ix.segments[i] = MediaSegment{
			Number:        list.StartNumber + uint32(i),
			Repeat:        0,
			ScaleStart:    list.PresentationTimeOffset + uint64(i)*scaleDuration,
			ScaleDuration: scaleDuration,
			Start:         ix.Period.Start + time.Duration(i)*duration,
			Duration:      duration,
			URL:           &list.URLs[i],
		}
	}

	return nil
}

func (ix *Index) buildTemplate(tmpl *mpd.SegmentTemplate) error {
	timescale := timescaleOf(tmpl.SegmentBase)
	ix.timescale = timescale
	ix.pto = tmpl.PresentationTimeOffset
	ix.startNumber = tmpl.StartNumber
	ix.PresentationTimeOffset = scaleToTime(tmpl.PresentationTimeOffset, timescale)

	if nil != tmpl.Timeline {
		number := tmpl.StartNumber
		ix.segments = make([]MediaSegment, 0, len(tmpl.Timeline.S))
		ix.walkRuns(tmpl.Timeline, timescale, tmpl.PresentationTimeOffset, func(seg MediaSegment) bool {
			seg.Number = number
			number += uint32(seg.Repeat + 1)
			ix.segments = append(ix.segments, seg)

			return true
		})

		return nil
	}

	if tmpl.Duration == 0 {
		if ix.Period.Duration == mpd.UnknownDuration {
			return ErrUnknownSegmentDuration
		}
		ix.duration = ix.Period.Duration
		ix.scaleDuration = mathutil.ScaleCeil(uint64(ix.duration), timescale, uint64(time.Second))
	} else {
		ix.scaleDuration = uint64(tmpl.Duration)
		ix.duration = scaleToTime(ix.scaleDuration, timescale)
	}
	if ix.duration <= 0 {
		return fmt.Errorf("%w: template duration %d at timescale %d", ErrUnknownSegmentDuration, tmpl.Duration, timescale)
	}

	return nil
}

// walkRuns emits one MediaSegment per S entry until fn returns false. An
// explicit t restarts the running time; otherwise it continues from the end
// of the previous entry.
func (ix *Index) walkRuns(tl *mpd.SegmentTimeline, timescale, pto uint64, fn func(MediaSegment) bool) {
	var scaleStart uint64
	for _, s := range tl.S {
		if nil != s.T {
			scaleStart = *s.T
		}
		repeat := s.Repeat()
		seg := MediaSegment{
			Number:        0,
			Repeat:        repeat,
			ScaleStart:    scaleStart,
			ScaleDuration: s.D,
			Start:         ix.mediaTime(scaleStart, timescale, pto),
			Duration:      scaleToTime(s.D, timescale),
			URL:           nil,
		}
		if !fn(seg) {
			return
		}
		scaleStart += s.D * (repeat + 1)
	}
}

// mediaTime converts a media timeline position to an absolute presentation time.
func (ix *Index) mediaTime(scaleStart, timescale, pto uint64) time.Duration {
	if scaleStart < pto {
		return ix.Period.Start
	}

	return ix.Period.Start + scaleToTime(scaleStart-pto, timescale)
}

// clampLast drops fragments starting at or after the period boundary and
// truncates the final one so it ends there.
func (ix *Index) clampLast() {
	end := ix.Period.End()
	if end == mpd.UnknownDuration || len(ix.segments) == 0 {
		return
	}

	for len(ix.segments) > 1 && ix.segments[len(ix.segments)-1].Start >= end {
		ix.segments = ix.segments[:len(ix.segments)-1]
	}

	last := ix.segments[len(ix.segments)-1]
	if last.End() <= end || last.Start >= end || last.Duration <= 0 {
		return
	}

	if fits := uint64(mathutil.DivCeil(end-last.Start, last.Duration)); fits <= last.Repeat {
		last.Repeat = fits - 1
	}
	if last.End() <= end {
		ix.segments[len(ix.segments)-1] = last
		return
	}

	final := last
	if last.Repeat > 0 {
		final.Repeat = 0
		final.Number = last.Number + uint32(last.Repeat)
		final.ScaleStart = last.ScaleStart + last.Repeat*last.ScaleDuration
		final.Start = last.Start + time.Duration(last.Repeat)*last.Duration
		last.Repeat--
		ix.segments[len(ix.segments)-1] = last
		ix.segments = append(ix.segments, final)
	} else {
		ix.segments[len(ix.segments)-1] = last
	}
	if final.End() > end {
		ix.segments[len(ix.segments)-1].Duration = end - final.Start
	}
}
