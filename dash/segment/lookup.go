package segment

import (
	"iter"
	"time"

	"github.com/xeptore/mpdq/dash/mpd"
	"github.com/xeptore/mpdq/mathutil"
)

// Position addresses a fragment by segment entry and repeat within it. For
// on-demand templates Index is the fragment ordinal and Repeat is always 0.
type Position struct {
	Index  int
	Repeat uint64
}

// Fragment is one addressable media fragment.
type Fragment struct {
	Position

	Number        uint32
	ScaleStart    uint64
	ScaleDuration uint64
	Start         time.Duration
	Duration      time.Duration
	URL           *mpd.SegmentURL
}

func (f Fragment) End() time.Duration {
	return f.Start + f.Duration
}

// Materialized reports whether the segments are held as a list.
func (ix *Index) Materialized() bool {
	return nil != ix.segments
}

// Segments returns the materialized run-length entries, nil for on-demand templates.
func (ix *Index) Segments() []MediaSegment {
	return ix.segments
}

// Count is the number of segment entries. On-demand templates in a period of
// unknown duration report 0.
func (ix *Index) Count() int {
	if ix.Materialized() {
		return len(ix.segments)
	}
	if ix.Period.Duration == mpd.UnknownDuration {
		return 0
	}

	return int(mathutil.DivCeil(ix.Period.Duration, ix.duration))
}

// FragmentCount is the number of individual fragments. It is false when the
// index is unbounded.
func (ix *Index) FragmentCount() (uint64, bool) {
	if !ix.Materialized() {
		n := ix.Count()
		return uint64(n), n > 0
	}

	var n uint64
	for _, s := range ix.segments {
		n += s.Repeat + 1
	}

	return n, true
}

// SegmentDuration is the nominal fragment duration of on-demand templates,
// or of the first entry otherwise.
func (ix *Index) SegmentDuration() time.Duration {
	if !ix.Materialized() {
		return ix.duration
	}
	if len(ix.segments) == 0 {
		return 0
	}

	return ix.segments[0].Duration
}

// At returns the fragment at pos.
func (ix *Index) At(pos Position) (Fragment, bool) {
	if pos.Index < 0 {
		return Fragment{}, false
	}

	if ix.Materialized() {
		if pos.Index >= len(ix.segments) {
			return Fragment{}, false
		}
		s := ix.segments[pos.Index]
		if pos.Repeat > s.Repeat {
			return Fragment{}, false
		}

		return Fragment{
			Position:      pos,
			Number:        s.Number + uint32(pos.Repeat),
			ScaleStart:    s.ScaleStart + pos.Repeat*s.ScaleDuration,
			ScaleDuration: s.ScaleDuration,
			Start:         s.Start + time.Duration(pos.Repeat)*s.Duration,
			Duration:      s.Duration,
			URL:           s.URL,
		}, true
	}

	if count := ix.Count(); count > 0 && pos.Index >= count {
		return Fragment{}, false
	}
	if pos.Repeat != 0 {
		return Fragment{}, false
	}

	k := uint64(pos.Index)
	f := Fragment{
		Position:      pos,
		Number:        ix.startNumber + uint32(k),
		ScaleStart:    ix.pto + k*ix.scaleDuration,
		ScaleDuration: ix.scaleDuration,
		Start:         ix.Period.Start + time.Duration(k)*ix.duration,
		Duration:      ix.duration,
		URL:           nil,
	}
	if end := ix.Period.End(); end != mpd.UnknownDuration && f.End() > end {
		f.Duration = end - f.Start
	}

	return f, true
}

// ByIndex returns the k-th fragment, counting from 0 across repeats.
func (ix *Index) ByIndex(k uint64) (Fragment, bool) {
	if !ix.Materialized() {
		return ix.At(Position{Index: int(k), Repeat: 0})
	}

	for i, s := range ix.segments {
		if k <= s.Repeat {
			return ix.At(Position{Index: i, Repeat: k})
		}
		k -= s.Repeat + 1
	}

	return Fragment{}, false
}

// ByNumber returns the fragment carrying segment number n.
func (ix *Index) ByNumber(n uint32) (Fragment, bool) {
	if !ix.Materialized() {
		if n < ix.startNumber {
			return Fragment{}, false
		}
		return ix.At(Position{Index: int(n - ix.startNumber), Repeat: 0})
	}

	for i, s := range ix.segments {
		if n >= s.Number && uint64(n-s.Number) <= s.Repeat {
			return ix.At(Position{Index: i, Repeat: uint64(n - s.Number)})
		}
	}

	return Fragment{}, false
}

// Locate finds the fragment containing the presentation time ts. When none
// does, the returned position is just past the last entry.
func (ix *Index) Locate(ts time.Duration) (Position, bool) {
	if ix.Materialized() {
		for i, s := range ix.segments {
			if s.Start <= ts && ts < s.End() {
				var repeat uint64
				if s.Duration > 0 {
					repeat = uint64((ts - s.Start) / s.Duration)
				}
				return Position{Index: i, Repeat: repeat}, true
			}
		}

		return Position{Index: len(ix.segments), Repeat: 0}, false
	}

	if end := ix.Period.End(); end != mpd.UnknownDuration && ts >= end {
		return Position{Index: ix.Count(), Repeat: 0}, false
	}

	rel := max(ts-ix.Period.Start, 0)
	idx := int(rel / ix.duration)
	if count := ix.Count(); count > 0 && idx >= count {
		return Position{Index: count, Repeat: 0}, false
	}

	return Position{Index: idx, Repeat: 0}, true
}

// Fragments yields every fragment in order. Unbounded on-demand indexes
// never stop on their own.
func (ix *Index) Fragments() iter.Seq[Fragment] {
	return func(yield func(Fragment) bool) {
		if ix.Materialized() {
			for i, s := range ix.segments {
				for r := uint64(0); r <= s.Repeat; r++ {
					f, _ := ix.At(Position{Index: i, Repeat: r})
					if !yield(f) {
						return
					}
				}
			}
			return
		}

		for k := 0; ; k++ {
			f, ok := ix.At(Position{Index: k, Repeat: 0})
			if !ok || !yield(f) {
				return
			}
		}
	}
}

// LastEnd returns the end of the last fragment, false when unbounded.
func (ix *Index) LastEnd() (time.Duration, bool) {
	if ix.Materialized() {
		if len(ix.segments) == 0 {
			return 0, false
		}
		last := ix.segments[len(ix.segments)-1]
		return last.End(), true
	}

	count := ix.Count()
	if count == 0 {
		return 0, false
	}
	f, ok := ix.At(Position{Index: count - 1, Repeat: 0})
	if !ok {
		return 0, false
	}

	return f.End(), true
}
