package segment

import (
	"fmt"

	"github.com/xeptore/mpdq/dash/urlutil"
	"github.com/xeptore/mpdq/dash/value"
)

// Location is a reference relative to the stream base URL. An empty Ref
// addresses the base URL itself. A nil Range means the whole resource.
type Location struct {
	Ref   string
	Range *value.Range
}

// Request locates a fragment's media and, when present, its index.
type Request struct {
	Media Location
	// Index is nil when the fragment carries no separate index. An empty
	// Index.Ref means the index lives in the media resource.
	Index *Location
}

func (ix *Index) templateValues(number uint32, time uint64) urlutil.TemplateValues {
	return urlutil.TemplateValues{
		RepresentationID: ix.Representation.ID,
		Number:           number,
		Bandwidth:        ix.Representation.Bandwidth,
		Time:             time,
	}
}

// Request builds the media and index locations of f.
func (ix *Index) Request(f Fragment) (Request, error) {
	var req Request

	switch {
	case nil != f.URL:
		req.Media = Location{Ref: f.URL.Media, Range: f.URL.MediaRange}
		if f.URL.Index != "" || nil != f.URL.IndexRange {
			req.Index = &Location{Ref: f.URL.Index, Range: f.URL.IndexRange}
		}
	case nil != ix.Template:
		values := ix.templateValues(f.Number, f.ScaleStart)
		media, err := urlutil.BuildTemplate(ix.Template.Media, values)
		if nil != err {
			return Request{}, fmt.Errorf("build media url: %w", err)
		}
		req.Media = Location{Ref: media, Range: nil}

		if ix.Template.Index != "" {
			index, err := urlutil.BuildTemplate(ix.Template.Index, values)
			if nil != err {
				return Request{}, fmt.Errorf("build index url: %w", err)
			}
			req.Index = &Location{Ref: index, Range: nil}
		}
	}

	// An index range inside an unranged media resource would fetch the same
	// bytes twice.
	if nil != req.Index && req.Index.Ref == "" && nil == req.Media.Range {
		req.Index = nil
	}

	return req, nil
}

// Initialization locates the initialization segment. It is false when the
// representation declares none.
func (ix *Index) Initialization() (Location, bool, error) {
	if b := ix.SegmentBase; nil != b && nil != b.Initialization {
		return Location{Ref: b.Initialization.SourceURL, Range: b.Initialization.Range}, true, nil
	}
	if l := ix.SegmentList; nil != l && nil != l.Initialization {
		return Location{Ref: l.Initialization.SourceURL, Range: l.Initialization.Range}, true, nil
	}
	if t := ix.Template; nil != t {
		if t.InitializationTemplate != "" {
			ref, err := urlutil.BuildTemplate(t.InitializationTemplate, ix.templateValues(0, 0))
			if nil != err {
				return Location{}, false, fmt.Errorf("build initialization url: %w", err)
			}
			return Location{Ref: ref, Range: nil}, true, nil
		}
		if nil != t.Initialization {
			return Location{Ref: t.Initialization.SourceURL, Range: t.Initialization.Range}, true, nil
		}
	}

	return Location{}, false, nil
}

// HeaderIndex locates the segment index of the representation. It is false
// when the representation declares none.
func (ix *Index) HeaderIndex() (Location, bool, error) {
	if b := ix.SegmentBase; nil != b {
		if nil != b.RepresentationIndex {
			return Location{Ref: b.RepresentationIndex.SourceURL, Range: b.RepresentationIndex.Range}, true, nil
		}
		if nil != b.IndexRange {
			return Location{Ref: "", Range: b.IndexRange}, true, nil
		}
	}
	if t := ix.Template; nil != t && t.Index != "" {
		ref, err := urlutil.BuildTemplate(t.Index, ix.templateValues(0, 0))
		if nil != err {
			return Location{}, false, fmt.Errorf("build index url: %w", err)
		}
		return Location{Ref: ref, Range: nil}, true, nil
	}

	return Location{}, false, nil
}
