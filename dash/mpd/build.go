package mpd

import (
	"errors"
	"fmt"

	"github.com/xeptore/mpdq/dash/xmlnode"
)

var ErrNotMPD = errors.New("root element is not MPD")

// Parse decodes a manifest and builds its document model.
func Parse(data []byte) (*Presentation, error) {
	root, err := xmlnode.Parse(data)
	if nil != err {
		return nil, fmt.Errorf("parse manifest xml: %w", err)
	}

	return Build(root)
}

// Build constructs the document model from an already parsed XML tree.
// Malformed attributes are skipped; only a non-MPD root fails.
func Build(root xmlnode.Node) (*Presentation, error) {
	if root.Name() != "MPD" {
		return nil, fmt.Errorf("%w: got %s", ErrNotMPD, root.Name())
	}

	p := &Presentation{
		MediaPresentationDuration:  Unset,
		MinimumUpdatePeriod:        Unset,
		MinBufferTime:              Unset,
		TimeShiftBufferDepth:       Unset,
		SuggestedPresentationDelay: Unset,
		MaxSegmentDuration:         Unset,
		MaxSubsegmentDuration:      Unset,
	}

	p.DefaultNamespace, _ = root.Namespace("")
	p.XSINamespace, _ = root.Namespace("xsi")
	p.ExtNamespace, _ = root.Namespace("ext")
	readString(root, "schemaLocation", &p.SchemaLocation)
	readString(root, "id", &p.ID)
	readString(root, "profiles", &p.Profiles)
	if v, ok := root.Attr("type"); ok {
		if t, ok := parseType(v); ok {
			p.Type = t
		}
	}
	readDateTime(root, "availabilityStartTime", &p.AvailabilityStartTime)
	readDateTime(root, "availabilityEndTime", &p.AvailabilityEndTime)
	readDuration(root, "mediaPresentationDuration", &p.MediaPresentationDuration)
	readDuration(root, "minimumUpdatePeriod", &p.MinimumUpdatePeriod)
	readDuration(root, "minBufferTime", &p.MinBufferTime)
	readDuration(root, "timeShiftBufferDepth", &p.TimeShiftBufferDepth)
	readDuration(root, "suggestedPresentationDelay", &p.SuggestedPresentationDelay)
	readDuration(root, "maxSegmentDuration", &p.MaxSegmentDuration)
	readDuration(root, "maxSubsegmentDuration", &p.MaxSubsegmentDuration)

	for _, c := range root.Children() {
		switch c.Name() {
		case "BaseURL":
			p.BaseURLs = append(p.BaseURLs, buildBaseURL(c))
		case "Location":
			p.Locations = append(p.Locations, text(c))
		case "ProgramInformation":
			p.ProgramInformation = append(p.ProgramInformation, buildProgramInformation(c))
		case "Metrics":
			p.Metrics = append(p.Metrics, buildMetrics(c))
		case "Period":
			p.Periods = append(p.Periods, buildPeriod(c))
		}
	}

	return p, nil
}

func buildBaseURL(n xmlnode.Node) BaseURL {
	u := BaseURL{URL: text(n), ServiceLocation: "", ByteRange: ""}
	readString(n, "serviceLocation", &u.ServiceLocation)
	readString(n, "byteRange", &u.ByteRange)

	return u
}

func buildDescriptor(n xmlnode.Node) Descriptor {
	var d Descriptor
	readString(n, "schemeIdUri", &d.SchemeIDURI)
	readString(n, "value", &d.Value)

	return d
}

func buildProgramInformation(n xmlnode.Node) ProgramInformation {
	var info ProgramInformation
	readString(n, "lang", &info.Lang)
	readString(n, "moreInformationURL", &info.MoreInformationURL)
	for _, c := range n.Children() {
		switch c.Name() {
		case "Title":
			info.Title = text(c)
		case "Source":
			info.Source = text(c)
		case "Copyright":
			info.Copyright = text(c)
		}
	}

	return info
}

func buildMetrics(n xmlnode.Node) Metrics {
	var m Metrics
	readString(n, "metrics", &m.Metrics)
	for _, c := range n.Children() {
		if c.Name() != "Range" {
			continue
		}
		r := MetricsRange{StartTime: Unset, Duration: Unset}
		readDuration(c, "starttime", &r.StartTime)
		readDuration(c, "duration", &r.Duration)
		m.Ranges = append(m.Ranges, r)
	}

	return m
}

func buildPeriod(n xmlnode.Node) Period {
	p := Period{Start: Unset, Duration: Unset}
	readString(n, "id", &p.ID)
	readDuration(n, "start", &p.Start)
	readDuration(n, "duration", &p.Duration)
	readBool(n, "bitstreamSwitching", &p.BitstreamSwitching)

	// Inheritable fields first, so every AdaptationSet sees the finished Period.
	children := n.Children()
	for _, c := range children {
		switch c.Name() {
		case "SegmentBase":
			p.SegmentBase = resolveSegmentBase(c, nil)
		case "SegmentList":
			p.SegmentList = resolveSegmentList(c, nil)
		case "SegmentTemplate":
			p.SegmentTemplate = resolveSegmentTemplate(c, nil)
		case "BaseURL":
			p.BaseURLs = append(p.BaseURLs, buildBaseURL(c))
		case "Subset":
			var s Subset
			readUints(c, "contains", &s.Contains)
			p.Subsets = append(p.Subsets, s)
		}
	}

	for _, c := range children {
		if c.Name() == "AdaptationSet" {
			p.AdaptationSets = append(p.AdaptationSets, buildAdaptationSet(c, &p))
		}
	}

	return p
}

func buildAdaptationSet(n xmlnode.Node, period *Period) AdaptationSet {
	var as AdaptationSet
	applyRepresentationBase(n, &as.RepresentationBase)
	readUint(n, "id", &as.ID)
	readUint(n, "group", &as.Group)
	readString(n, "lang", &as.Lang)
	readString(n, "contentType", &as.ContentType)
	readRatio(n, "par", &as.PAR)
	readUint(n, "minBandwidth", &as.MinBandwidth)
	readUint(n, "maxBandwidth", &as.MaxBandwidth)
	readUint(n, "minWidth", &as.MinWidth)
	readUint(n, "maxWidth", &as.MaxWidth)
	readUint(n, "minHeight", &as.MinHeight)
	readUint(n, "maxHeight", &as.MaxHeight)
	readFrameRate(n, "minFrameRate", &as.MinFrameRate)
	readFrameRate(n, "maxFrameRate", &as.MaxFrameRate)
	readCondUint(n, "segmentAlignment", &as.SegmentAlignment)
	readCondUint(n, "subsegmentAlignment", &as.SubsegmentAlignment)
	readSAP(n, "subsegmentStartsWithSAP", &as.SubsegmentStartsWithSAP)
	readBool(n, "bitstreamSwitching", &as.BitstreamSwitching)

	children := n.Children()
	for _, c := range children {
		switch c.Name() {
		case "Accessibility":
			as.Accessibility = append(as.Accessibility, buildDescriptor(c))
		case "Role":
			as.Role = append(as.Role, buildDescriptor(c))
		case "Rating":
			as.Rating = append(as.Rating, buildDescriptor(c))
		case "Viewpoint":
			as.Viewpoint = append(as.Viewpoint, buildDescriptor(c))
		case "BaseURL":
			as.BaseURLs = append(as.BaseURLs, buildBaseURL(c))
		case "SegmentBase":
			as.SegmentBase = resolveSegmentBase(c, period.SegmentBase)
		case "SegmentList":
			as.SegmentList = resolveSegmentList(c, period.SegmentList)
		case "SegmentTemplate":
			as.SegmentTemplate = resolveSegmentTemplate(c, period.SegmentTemplate)
		case "ContentComponent":
			as.ContentComponents = append(as.ContentComponents, buildContentComponent(c))
		default:
			applyRepresentationBaseChild(c, &as.RepresentationBase)
		}
	}

	parents := inheritance{
		segmentBase:     firstNonNil(as.SegmentBase, period.SegmentBase),
		segmentList:     firstNonNil(as.SegmentList, period.SegmentList),
		segmentTemplate: firstNonNil(as.SegmentTemplate, period.SegmentTemplate),
	}
	for _, c := range children {
		if c.Name() == "Representation" {
			as.Representations = append(as.Representations, buildRepresentation(c, parents))
		}
	}

	return as
}

// inheritance holds the nearest declared ancestor of each segment family.
type inheritance struct {
	segmentBase     *SegmentBase
	segmentList     *SegmentList
	segmentTemplate *SegmentTemplate
}

func firstNonNil[T any](vals ...*T) *T {
	for _, v := range vals {
		if nil != v {
			return v
		}
	}

	return nil
}

func buildContentComponent(n xmlnode.Node) ContentComponent {
	var cc ContentComponent
	readUint(n, "id", &cc.ID)
	readString(n, "lang", &cc.Lang)
	readString(n, "contentType", &cc.ContentType)
	readRatio(n, "par", &cc.PAR)
	for _, c := range n.Children() {
		switch c.Name() {
		case "Accessibility":
			cc.Accessibility = append(cc.Accessibility, buildDescriptor(c))
		case "Role":
			cc.Role = append(cc.Role, buildDescriptor(c))
		case "Rating":
			cc.Rating = append(cc.Rating, buildDescriptor(c))
		case "Viewpoint":
			cc.Viewpoint = append(cc.Viewpoint, buildDescriptor(c))
		}
	}

	return cc
}

func buildRepresentation(n xmlnode.Node, parents inheritance) Representation {
	var r Representation
	applyRepresentationBase(n, &r.RepresentationBase)
	readString(n, "id", &r.ID)
	readUint(n, "bandwidth", &r.Bandwidth)
	readUint(n, "qualityRanking", &r.QualityRanking)
	readStrings(n, "dependencyId", &r.DependencyID)
	readStrings(n, "mediaStreamStructureId", &r.MediaStreamStructureID)

	for _, c := range n.Children() {
		switch c.Name() {
		case "BaseURL":
			r.BaseURLs = append(r.BaseURLs, buildBaseURL(c))
		case "SubRepresentation":
			r.SubRepresentations = append(r.SubRepresentations, buildSubRepresentation(c))
		case "SegmentBase":
			r.SegmentBase = resolveSegmentBase(c, parents.segmentBase)
		case "SegmentList":
			r.SegmentList = resolveSegmentList(c, parents.segmentList)
		case "SegmentTemplate":
			r.SegmentTemplate = resolveSegmentTemplate(c, parents.segmentTemplate)
		default:
			applyRepresentationBaseChild(c, &r.RepresentationBase)
		}
	}

	return r
}

func buildSubRepresentation(n xmlnode.Node) SubRepresentation {
	var s SubRepresentation
	applyRepresentationBase(n, &s.RepresentationBase)
	readUint(n, "level", &s.Level)
	readUints(n, "dependencyLevel", &s.DependencyLevel)
	readUint(n, "bandwidth", &s.Bandwidth)
	readStrings(n, "contentComponent", &s.ContentComponent)
	for _, c := range n.Children() {
		applyRepresentationBaseChild(c, &s.RepresentationBase)
	}

	return s
}

func applyRepresentationBase(n xmlnode.Node, rb *RepresentationBase) {
	readString(n, "profiles", &rb.Profiles)
	readUint(n, "width", &rb.Width)
	readUint(n, "height", &rb.Height)
	readRatio(n, "sar", &rb.SAR)
	readFrameRate(n, "frameRate", &rb.FrameRate)
	readString(n, "audioSamplingRate", &rb.AudioSamplingRate)
	readString(n, "mimeType", &rb.MimeType)
	readString(n, "segmentProfiles", &rb.SegmentProfiles)
	readString(n, "codecs", &rb.Codecs)
	readDouble(n, "maximumSAPPeriod", &rb.MaximumSAPPeriod)
	readSAP(n, "startWithSAP", &rb.StartWithSAP)
	readDouble(n, "maxPlayoutRate", &rb.MaxPlayoutRate)
	readBool(n, "codingDependency", &rb.CodingDependency)
	readString(n, "scanType", &rb.ScanType)
}

func applyRepresentationBaseChild(c xmlnode.Node, rb *RepresentationBase) {
	switch c.Name() {
	case "FramePacking":
		rb.FramePacking = append(rb.FramePacking, buildDescriptor(c))
	case "AudioChannelConfiguration":
		rb.AudioChannelConfiguration = append(rb.AudioChannelConfiguration, buildDescriptor(c))
	case "ContentProtection":
		rb.ContentProtection = append(rb.ContentProtection, buildDescriptor(c))
	}
}
