package mpd

import (
	"strings"

	"github.com/samber/lo"
)

// LowestRepresentation returns the representation with the smallest bandwidth.
// The first one wins a tie.
func (as *AdaptationSet) LowestRepresentation() *Representation {
	if len(as.Representations) == 0 {
		return nil
	}

	idx := 0
	for i, r := range as.Representations {
		if r.Bandwidth < as.Representations[idx].Bandwidth {
			idx = i
		}
	}

	return &as.Representations[idx]
}

// RepresentationWithMaxBandwidth returns the highest bandwidth representation
// not above maxBandwidth. A non-positive cap selects the lowest one.
func (as *AdaptationSet) RepresentationWithMaxBandwidth(maxBandwidth int64) *Representation {
	if maxBandwidth <= 0 {
		return as.LowestRepresentation()
	}

	var best *Representation
	for i := range as.Representations {
		r := &as.Representations[i]
		if int64(r.Bandwidth) > maxBandwidth {
			continue
		}
		if nil == best || r.Bandwidth > best.Bandwidth {
			best = r
		}
	}

	return best
}

func (as *AdaptationSet) RepresentationByID(id string) *Representation {
	_, idx, ok := lo.FindIndexOf(as.Representations, func(r Representation) bool { return r.ID == id })
	if !ok {
		return nil
	}

	return &as.Representations[idx]
}

type MimeKind int

const (
	MimeUnknown MimeKind = iota
	MimeAudio
	MimeVideo
	MimeApplication
)

func (k MimeKind) String() string {
	switch k {
	case MimeAudio:
		return "audio"
	case MimeVideo:
		return "video"
	case MimeApplication:
		return "application"
	default:
		return "unknown"
	}
}

func ClassifyMimeType(mime string) MimeKind {
	switch {
	case strings.HasPrefix(mime, "audio"):
		return MimeAudio
	case strings.HasPrefix(mime, "video"):
		return MimeVideo
	case strings.HasPrefix(mime, "application"):
		return MimeApplication
	default:
		return MimeUnknown
	}
}

// MimeType is the representation's declared mime type, falling back to the
// adaptation set's.
func MimeType(as *AdaptationSet, r *Representation) string {
	if nil != r && r.MimeType != "" {
		return r.MimeType
	}
	if nil != as {
		return as.MimeType
	}

	return ""
}
