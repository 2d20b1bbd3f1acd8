package mpd

import (
	"github.com/xeptore/mpdq/dash/value"
	"github.com/xeptore/mpdq/dash/xmlnode"
)

// Each resolver starts from a deep copy of the nearest ancestor's resolved
// node (or the family defaults) and then applies whatever the element itself
// declares. The result is fully populated and never consults the parent again.

func defaultSegmentBase() SegmentBase {
	return SegmentBase{
		Timescale:              1,
		PresentationTimeOffset: 0,
		IndexRange:             nil,
		IndexRangeExact:        false,
		Initialization:         nil,
		RepresentationIndex:    nil,
	}
}

func defaultMultSegmentBase() MultSegmentBase {
	return MultSegmentBase{
		SegmentBase:        defaultSegmentBase(),
		Duration:           0,
		StartNumber:        1,
		Timeline:           nil,
		BitstreamSwitching: nil,
	}
}

func resolveSegmentBase(n xmlnode.Node, parent *SegmentBase) *SegmentBase {
	var out SegmentBase
	if nil != parent {
		out = *parent.Clone()
	} else {
		out = defaultSegmentBase()
	}
	applySegmentBase(n, &out)

	return &out
}

func applySegmentBase(n xmlnode.Node, b *SegmentBase) {
	readUint(n, "timescale", &b.Timescale)
	readUint64(n, "presentationTimeOffset", &b.PresentationTimeOffset)
	readRange(n, "indexRange", &b.IndexRange)
	readBool(n, "indexRangeExact", &b.IndexRangeExact)

	for _, c := range n.Children() {
		switch c.Name() {
		case "Initialization", "Initialisation":
			b.Initialization = buildURL(c)
		case "RepresentationIndex":
			b.RepresentationIndex = buildURL(c)
		}
	}
}

func resolveMultSegmentBase(n xmlnode.Node, parent *MultSegmentBase) MultSegmentBase {
	var out MultSegmentBase
	if nil != parent {
		out = parent.clone()
	} else {
		out = defaultMultSegmentBase()
	}
	applySegmentBase(n, &out.SegmentBase)

	readUint(n, "duration", &out.Duration)
	readUint(n, "startNumber", &out.StartNumber)

	for _, c := range n.Children() {
		switch c.Name() {
		case "SegmentTimeline":
			out.Timeline = buildTimeline(c)
		case "BitstreamSwitching":
			out.BitstreamSwitching = buildURL(c)
		}
	}

	return out
}

func resolveSegmentList(n xmlnode.Node, parent *SegmentList) *SegmentList {
	var (
		parentBase *MultSegmentBase
		urls       []SegmentURL
	)
	if nil != parent {
		parentBase = &parent.MultSegmentBase
		urls = make([]SegmentURL, len(parent.URLs))
		for i, u := range parent.URLs {
			urls[i] = u.Clone()
		}
	}

	pos := 0
	for _, c := range n.Children() {
		if c.Name() != "SegmentURL" {
			continue
		}
		u := buildSegmentURL(c)
		if pos < len(urls) {
			urls[pos] = u
		} else {
			urls = append(urls, u)
		}
		pos++
	}

	return &SegmentList{
		MultSegmentBase: resolveMultSegmentBase(n, parentBase),
		URLs:            urls,
	}
}

func resolveSegmentTemplate(n xmlnode.Node, parent *SegmentTemplate) *SegmentTemplate {
	var (
		parentBase *MultSegmentBase
		out        SegmentTemplate
	)
	if nil != parent {
		parentBase = &parent.MultSegmentBase
		out.Media = parent.Media
		out.Index = parent.Index
		out.InitializationTemplate = parent.InitializationTemplate
		out.BitstreamSwitchingTemplate = parent.BitstreamSwitchingTemplate
	}
	out.MultSegmentBase = resolveMultSegmentBase(n, parentBase)

	readString(n, "media", &out.Media)
	readString(n, "index", &out.Index)
	readString(n, "initialization", &out.InitializationTemplate)
	readString(n, "bitstreamSwitching", &out.BitstreamSwitchingTemplate)

	return &out
}

func buildURL(n xmlnode.Node) *URL {
	var u URL
	readString(n, "sourceURL", &u.SourceURL)
	readRange(n, "range", &u.Range)

	return &u
}

func buildSegmentURL(n xmlnode.Node) SegmentURL {
	var u SegmentURL
	readString(n, "media", &u.Media)
	readRange(n, "mediaRange", &u.MediaRange)
	readString(n, "index", &u.Index)
	readRange(n, "indexRange", &u.IndexRange)

	return u
}

func buildTimeline(n xmlnode.Node) *SegmentTimeline {
	t := &SegmentTimeline{S: nil}
	for _, c := range n.Children() {
		if c.Name() != "S" {
			continue
		}

		var s S
		if v, ok := c.Attr("t"); ok {
			if start, ok := value.Uint64(v); ok {
				s.T = &start
			}
		}
		readUint64(c, "d", &s.D)
		readInt(c, "r", &s.R)
		t.S = append(t.S, s)
	}

	return t
}
