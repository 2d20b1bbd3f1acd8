package mpd

import (
	"strings"
	"time"

	"github.com/xeptore/mpdq/dash/value"
)

// Unset marks an optional millisecond duration that the manifest did not declare.
const Unset int64 = -1

const OnDemandProfile = "urn:mpeg:dash:profile:isoff-on-demand:2011"

type Type int

const (
	Static Type = iota
	Dynamic
)

func (t Type) String() string {
	if t == Dynamic {
		return "dynamic"
	}

	return "static"
}

func parseType(s string) (Type, bool) {
	switch s {
	case "static", "OnDemand":
		return Static, true
	case "dynamic", "Live":
		return Dynamic, true
	default:
		return Static, false
	}
}

// Presentation is the MPD root.
type Presentation struct {
	DefaultNamespace string
	XSINamespace     string
	ExtNamespace     string
	SchemaLocation   string
	ID               string
	Profiles         string
	Type             Type

	AvailabilityStartTime *time.Time
	AvailabilityEndTime   *time.Time

	// Durations in milliseconds, Unset when absent.
	MediaPresentationDuration  int64
	MinimumUpdatePeriod        int64
	MinBufferTime              int64
	TimeShiftBufferDepth       int64
	SuggestedPresentationDelay int64
	MaxSegmentDuration         int64
	MaxSubsegmentDuration      int64

	BaseURLs           []BaseURL
	Locations          []string
	ProgramInformation []ProgramInformation
	Metrics            []Metrics
	Periods            []Period
}

func (p *Presentation) HasOnDemandProfile() bool {
	return strings.Contains(p.Profiles, OnDemandProfile)
}

type ProgramInformation struct {
	Lang               string
	MoreInformationURL string
	Title              string
	Source             string
	Copyright          string
}

type Metrics struct {
	Metrics string
	Ranges  []MetricsRange
}

type MetricsRange struct {
	StartTime int64
	Duration  int64
}

type BaseURL struct {
	URL             string
	ServiceLocation string
	ByteRange       string
}

type Descriptor struct {
	SchemeIDURI string
	Value       string
}

type Period struct {
	ID                 string
	Start              int64
	Duration           int64
	BitstreamSwitching bool

	SegmentBase     *SegmentBase
	SegmentList     *SegmentList
	SegmentTemplate *SegmentTemplate

	AdaptationSets []AdaptationSet
	Subsets        []Subset
	BaseURLs       []BaseURL
}

type Subset struct {
	Contains []uint32
}

// RepresentationBase is the attribute bag shared by AdaptationSet,
// Representation and SubRepresentation.
type RepresentationBase struct {
	Profiles          string
	Width             uint32
	Height            uint32
	SAR               *value.Ratio
	FrameRate         *value.FrameRate
	AudioSamplingRate string
	MimeType          string
	SegmentProfiles   string
	Codecs            string
	MaximumSAPPeriod  float64
	StartWithSAP      value.SAPType
	MaxPlayoutRate    float64
	CodingDependency  bool
	ScanType          string

	FramePacking              []Descriptor
	AudioChannelConfiguration []Descriptor
	ContentProtection         []Descriptor
}

type AdaptationSet struct {
	RepresentationBase

	ID                      uint32
	Group                   uint32
	Lang                    string
	ContentType             string
	PAR                     *value.Ratio
	MinBandwidth            uint32
	MaxBandwidth            uint32
	MinWidth                uint32
	MaxWidth                uint32
	MinHeight               uint32
	MaxHeight               uint32
	MinFrameRate            *value.FrameRate
	MaxFrameRate            *value.FrameRate
	SegmentAlignment        *value.CondUint
	SubsegmentAlignment     *value.CondUint
	SubsegmentStartsWithSAP value.SAPType
	BitstreamSwitching      bool

	Accessibility []Descriptor
	Role          []Descriptor
	Rating        []Descriptor
	Viewpoint     []Descriptor

	BaseURLs          []BaseURL
	SegmentBase       *SegmentBase
	SegmentList       *SegmentList
	SegmentTemplate   *SegmentTemplate
	ContentComponents []ContentComponent
	Representations   []Representation
}

type ContentComponent struct {
	ID          uint32
	Lang        string
	ContentType string
	PAR         *value.Ratio

	Accessibility []Descriptor
	Role          []Descriptor
	Rating        []Descriptor
	Viewpoint     []Descriptor
}

type Representation struct {
	RepresentationBase

	ID                     string
	Bandwidth              uint32
	QualityRanking         uint32
	DependencyID           []string
	MediaStreamStructureID []string

	BaseURLs           []BaseURL
	SubRepresentations []SubRepresentation
	SegmentBase        *SegmentBase
	SegmentList        *SegmentList
	SegmentTemplate    *SegmentTemplate
}

type SubRepresentation struct {
	RepresentationBase

	Level            uint32
	DependencyLevel  []uint32
	Bandwidth        uint32
	ContentComponent []string
}

// URL is an Initialization, RepresentationIndex or BitstreamSwitching reference.
type URL struct {
	SourceURL string
	Range     *value.Range
}

func (u *URL) Clone() *URL {
	if nil == u {
		return nil
	}

	return &URL{
		SourceURL: u.SourceURL,
		Range:     cloneRange(u.Range),
	}
}

type SegmentBase struct {
	Timescale              uint32
	PresentationTimeOffset uint64
	IndexRange             *value.Range
	IndexRangeExact        bool
	Initialization         *URL
	RepresentationIndex    *URL
}

func (b *SegmentBase) Clone() *SegmentBase {
	if nil == b {
		return nil
	}

	return &SegmentBase{
		Timescale:              b.Timescale,
		PresentationTimeOffset: b.PresentationTimeOffset,
		IndexRange:             cloneRange(b.IndexRange),
		IndexRangeExact:        b.IndexRangeExact,
		Initialization:         b.Initialization.Clone(),
		RepresentationIndex:    b.RepresentationIndex.Clone(),
	}
}

// MultSegmentBase is shared by SegmentList and SegmentTemplate.
type MultSegmentBase struct {
	SegmentBase

	Duration           uint32
	StartNumber        uint32
	Timeline           *SegmentTimeline
	BitstreamSwitching *URL
}

func (m *MultSegmentBase) clone() MultSegmentBase {
	return MultSegmentBase{
		SegmentBase:        *m.SegmentBase.Clone(),
		Duration:           m.Duration,
		StartNumber:        m.StartNumber,
		Timeline:           m.Timeline.Clone(),
		BitstreamSwitching: m.BitstreamSwitching.Clone(),
	}
}

type SegmentTimeline struct {
	S []S
}

func (t *SegmentTimeline) Clone() *SegmentTimeline {
	if nil == t {
		return nil
	}

	out := &SegmentTimeline{S: make([]S, len(t.S))}
	for i, s := range t.S {
		out.S[i] = s
		if nil != s.T {
			v := *s.T
			out.S[i].T = &v
		}
	}

	return out
}

// S is one run-length entry of a SegmentTimeline, in timescale units.
type S struct {
	T *uint64
	D uint64
	// R is the number of extra repetitions. Negative values count as zero.
	R int64
}

func (s S) Repeat() uint64 {
	if s.R < 0 {
		return 0
	}

	return uint64(s.R)
}

type SegmentURL struct {
	Media      string
	MediaRange *value.Range
	Index      string
	IndexRange *value.Range
}

func (u SegmentURL) Clone() SegmentURL {
	return SegmentURL{
		Media:      u.Media,
		MediaRange: cloneRange(u.MediaRange),
		Index:      u.Index,
		IndexRange: cloneRange(u.IndexRange),
	}
}

type SegmentList struct {
	MultSegmentBase

	URLs []SegmentURL
}

type SegmentTemplate struct {
	MultSegmentBase

	Media                      string
	Index                      string
	InitializationTemplate     string
	BitstreamSwitchingTemplate string
}

func cloneRange(r *value.Range) *value.Range {
	if nil == r {
		return nil
	}
	c := *r

	return &c
}
