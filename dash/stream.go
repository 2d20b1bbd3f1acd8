package dash

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/xeptore/mpdq/dash/mpd"
	"github.com/xeptore/mpdq/dash/segment"
	"github.com/xeptore/mpdq/dash/urlutil"
	"github.com/xeptore/mpdq/dash/value"
)

// Fragment describes one media fragment ready to be fetched.
type Fragment struct {
	URI   string
	Range *value.Range
	// IndexURI is empty when the fragment has no separate index.
	IndexURI   string
	IndexRange *value.Range
	Number     uint32
	Timestamp  time.Duration
	Duration   time.Duration
	// Discontinuity is never set; it is kept for consumers that expect it.
	Discontinuity bool
}

// Resource is a resolved initialization or index segment.
type Resource struct {
	URI   string
	Range *value.Range
}

// Stream is one active representation with its own fragment cursor.
type Stream struct {
	Period         mpd.StreamPeriod
	AdaptationSet  *mpd.AdaptationSet
	Representation *mpd.Representation

	presentation *mpd.Presentation
	location     string
	asIdx        int
	baseURLIndex int
	base         urlutil.Base
	index        *segment.Index
	cursor       *segment.Cursor
}

func newStream(
	p *mpd.Presentation,
	location string,
	sp mpd.StreamPeriod,
	asIdx int,
	as *mpd.AdaptationSet,
	rep *mpd.Representation,
	baseURLIndex int,
) (*Stream, error) {
	ix, err := segment.Build(sp, as, rep)
	if nil != err {
		return nil, fmt.Errorf("build segment index: %w", err)
	}

	base, err := resolveBase(location, baseURLIndex, p.BaseURLs, sp.Period.BaseURLs, as.BaseURLs, rep.BaseURLs)
	if nil != err {
		return nil, fmt.Errorf("resolve base url: %w", err)
	}

	return &Stream{
		Period:         sp,
		AdaptationSet:  as,
		Representation: rep,
		presentation:   p,
		location:       location,
		asIdx:          asIdx,
		baseURLIndex:   baseURLIndex,
		base:           base,
		index:          ix,
		cursor:         segment.NewCursor(ix),
	}, nil
}

// resolveBase joins one BaseURL of every level onto the manifest location,
// from the manifest down to the representation. Each level contributes its
// entry at idx, or its first entry when it has fewer.
func resolveBase(location string, idx int, levels ...[]mpd.BaseURL) (urlutil.Base, error) {
	base, err := urlutil.NewBase(location)
	if nil != err {
		return urlutil.Base{}, err
	}

	for _, urls := range levels {
		if len(urls) == 0 {
			continue
		}
		u := urls[0]
		if idx < len(urls) {
			u = urls[idx]
		}
		if base, err = base.Join(u.URL); nil != err {
			return urlutil.Base{}, err
		}
	}

	return base, nil
}

// SetBaseURLIndex selects the idx-th BaseURL at every level that declares
// more than one, for switching to an alternative service location.
func (s *Stream) SetBaseURLIndex(idx int) error {
	base, err := resolveBase(
		s.location,
		idx,
		s.presentation.BaseURLs,
		s.Period.Period.BaseURLs,
		s.AdaptationSet.BaseURLs,
		s.Representation.BaseURLs,
	)
	if nil != err {
		return fmt.Errorf("resolve base url: %w", err)
	}
	s.base = base
	s.baseURLIndex = idx

	return nil
}

func (s *Stream) BaseURLIndex() int {
	return s.baseURLIndex
}

func (s *Stream) Index() *segment.Index {
	return s.index
}

// BaseURL is the resolved base of the stream's fragment references.
func (s *Stream) BaseURL() string {
	return s.base.String()
}

func (s *Stream) MimeType() string {
	return mpd.MimeType(s.AdaptationSet, s.Representation)
}

func (s *Stream) Kind() mpd.MimeKind {
	return mpd.ClassifyMimeType(s.MimeType())
}

func (s *Stream) Width() uint32 {
	if s.Representation.Width != 0 {
		return s.Representation.Width
	}

	return s.AdaptationSet.Width
}

func (s *Stream) Height() uint32 {
	if s.Representation.Height != 0 {
		return s.Representation.Height
	}

	return s.AdaptationSet.Height
}

// AudioSampleRate is the first declared sampling rate, 0 when none is declared.
func (s *Stream) AudioSampleRate() uint32 {
	for _, rate := range []string{s.Representation.AudioSamplingRate, s.AdaptationSet.AudioSamplingRate} {
		fields := strings.Fields(rate)
		if len(fields) == 0 {
			continue
		}
		if v, ok := value.Uint(fields[0]); ok {
			return v
		}
	}

	return 0
}

// AudioChannels is the channel count of the first numeric
// AudioChannelConfiguration, 0 when none is declared.
func (s *Stream) AudioChannels() uint32 {
	for _, conf := range [][]mpd.Descriptor{
		s.Representation.AudioChannelConfiguration,
		s.AdaptationSet.AudioChannelConfiguration,
	} {
		for _, d := range conf {
			if v, ok := value.Uint(d.Value); ok {
				return v
			}
		}
	}

	return 0
}

// BitstreamSwitching reports whether the period or the adaptation set allows
// bitstream switching.
func (s *Stream) BitstreamSwitching() bool {
	return s.Period.Period.BitstreamSwitching || s.AdaptationSet.BitstreamSwitching
}

// PresentationTimeOffset is the media timeline offset of the stream.
func (s *Stream) PresentationTimeOffset() time.Duration {
	return s.index.PresentationTimeOffset
}

// SegmentCount is the number of fragments, false when the stream is unbounded.
func (s *Stream) SegmentCount() (uint64, bool) {
	return s.index.FragmentCount()
}

func (s *Stream) SegmentDuration() time.Duration {
	return s.index.SegmentDuration()
}

// LastFragmentEnd is the end of the last known fragment.
func (s *Stream) LastFragmentEnd() (time.Duration, bool) {
	return s.index.LastEnd()
}

func (s *Stream) Position() segment.Position {
	return s.cursor.Position()
}

// NextFragment resolves the fragment under the cursor without moving it.
func (s *Stream) NextFragment() (Fragment, error) {
	f, ok := s.cursor.Current()
	if !ok {
		return Fragment{}, segment.ErrEndOfStream
	}

	return s.resolve(f)
}

// NextFragments resolves up to n fragments from the cursor on and advances
// past them. Fewer are returned at the end of the stream.
func (s *Stream) NextFragments(n int) ([]Fragment, error) {
	out := make([]Fragment, 0, max(n, 0))
	for len(out) < n {
		f, err := s.NextFragment()
		if errors.Is(err, segment.ErrEndOfStream) {
			break
		} else if nil != err {
			return out, err
		}
		out = append(out, f)

		if err := s.Advance(true); nil != err {
			if errors.Is(err, segment.ErrEndOfStream) {
				break
			}
			return out, err
		}
	}

	return out, nil
}

// NextFragmentTimestamp is the start of the fragment under the cursor.
func (s *Stream) NextFragmentTimestamp() (time.Duration, bool) {
	f, ok := s.cursor.Current()
	return f.Start, ok
}

func (s *Stream) NextFragmentDuration() (time.Duration, bool) {
	f, ok := s.cursor.Current()
	return f.Duration, ok
}

// Advance moves the cursor one fragment. It returns segment.ErrEndOfStream
// when it crosses either end.
func (s *Stream) Advance(forward bool) error {
	return s.cursor.Advance(forward)
}

func (s *Stream) HasNextFragment() bool {
	return s.cursor.HasNext(true)
}

func (s *Stream) HasPreviousFragment() bool {
	return s.cursor.HasNext(false)
}

// Seek moves the cursor to the fragment containing ts.
func (s *Stream) Seek(ts time.Duration) bool {
	return s.cursor.Seek(ts)
}

func (s *Stream) SeekStart() {
	s.cursor.SeekStart()
}

// Fragments resolves every fragment of the stream in order, independently of
// the cursor. Iteration stops after the first error.
func (s *Stream) Fragments() iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		for f := range s.index.Fragments() {
			resolved, err := s.resolve(f)
			if !yield(resolved, err) || nil != err {
				return
			}
		}
	}
}

// Initialization resolves the initialization segment, false when the
// representation has none.
func (s *Stream) Initialization() (Resource, bool, error) {
	loc, ok, err := s.index.Initialization()
	if nil != err || !ok {
		return Resource{}, ok, err
	}

	return s.resource(loc)
}

// HeaderIndex resolves the representation index segment, false when the
// representation has none.
func (s *Stream) HeaderIndex() (Resource, bool, error) {
	loc, ok, err := s.index.HeaderIndex()
	if nil != err || !ok {
		return Resource{}, ok, err
	}

	return s.resource(loc)
}

func (s *Stream) resource(loc segment.Location) (Resource, bool, error) {
	uri, err := s.base.Resolve(loc.Ref)
	if nil != err {
		return Resource{}, false, err
	}

	return Resource{URI: uri, Range: loc.Range}, true, nil
}

func (s *Stream) resolve(f segment.Fragment) (Fragment, error) {
	req, err := s.index.Request(f)
	if nil != err {
		return Fragment{}, err
	}

	uri, err := s.base.Resolve(req.Media.Ref)
	if nil != err {
		return Fragment{}, fmt.Errorf("resolve media url: %v", err)
	}

	out := Fragment{
		URI:           uri,
		Range:         req.Media.Range,
		IndexURI:      "",
		IndexRange:    nil,
		Number:        f.Number,
		Timestamp:     f.Start,
		Duration:      f.Duration,
		Discontinuity: false,
	}

	if nil != req.Index {
		// An index without its own reference lives in the media resource.
		out.IndexURI = uri
		if req.Index.Ref != "" {
			if out.IndexURI, err = s.base.Resolve(req.Index.Ref); nil != err {
				return Fragment{}, fmt.Errorf("resolve index url: %v", err)
			}
		}
		out.IndexRange = req.Index.Range
	}

	return out, nil
}
