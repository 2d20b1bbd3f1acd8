package mpd_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/mpdq/dash/mpd"
	"github.com/xeptore/mpdq/dash/value"
)

const fullManifest = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
     xsi:schemaLocation="urn:mpeg:dash:schema:mpd:2011 DASH-MPD.xsd" id="m1"
     profiles="urn:mpeg:dash:profile:isoff-on-demand:2011" type="OnDemand"
     availabilityStartTime="2015-03-24T01:10:00Z" mediaPresentationDuration="PT1M"
     minBufferTime="PT1.5S" timeShiftBufferDepth="bogus">
  <ProgramInformation lang="en" moreInformationURL="http://example.com/info">
    <Title>Example</Title>
    <Source>Studio</Source>
    <Copyright>None</Copyright>
  </ProgramInformation>
  <BaseURL serviceLocation="cdn1">http://cdn1.example.com/</BaseURL>
  <Location>http://example.com/manifest.mpd</Location>
  <Metrics metrics="BufferLevel"><Range starttime="PT0S" duration="PT10S"/></Metrics>
  <Period id="p0" bitstreamSwitching="true">
    <AdaptationSet id="1" lang="en" mimeType="audio/mp4" segmentAlignment="true" subsegmentAlignment="2"
                   subsegmentStartsWithSAP="1" par="16:9" width="oops">
      <Role schemeIdUri="urn:mpeg:dash:role:2011" value="main"/>
      <AudioChannelConfiguration schemeIdUri="urn:mpeg:dash:23003:3:audio_channel_configuration:2011" value="2"/>
      <ContentComponent id="3" contentType="audio" lang="en"/>
      <Representation id="a1" bandwidth="128000" codecs="mp4a.40.2" audioSamplingRate="48000"
                      dependencyId="v1 v2" startWithSAP="9">
        <SubRepresentation level="1" dependencyLevel="0 1" bandwidth="64000" contentComponent="a b"/>
      </Representation>
    </AdaptationSet>
    <Subset contains="1 2"/>
  </Period>
</MPD>`

func TestBuildFullManifest(t *testing.T) {
	t.Parallel()

	p, err := mpd.Parse([]byte(fullManifest))
	require.NoError(t, err)

	assert.Equal(t, "urn:mpeg:dash:schema:mpd:2011", p.DefaultNamespace)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema-instance", p.XSINamespace)
	assert.Equal(t, "urn:mpeg:dash:schema:mpd:2011 DASH-MPD.xsd", p.SchemaLocation)
	assert.Equal(t, "m1", p.ID)
	assert.Equal(t, mpd.Static, p.Type)
	assert.True(t, p.HasOnDemandProfile())
	require.NotNil(t, p.AvailabilityStartTime)
	assert.Equal(t, time.Date(2015, time.March, 24, 1, 10, 0, 0, time.UTC), *p.AvailabilityStartTime)
	assert.Nil(t, p.AvailabilityEndTime)
	assert.Equal(t, int64(60_000), p.MediaPresentationDuration)
	assert.Equal(t, int64(1_500), p.MinBufferTime)
	assert.Equal(t, mpd.Unset, p.TimeShiftBufferDepth, "malformed attribute keeps the default")
	assert.Equal(t, mpd.Unset, p.MinimumUpdatePeriod)

	require.Len(t, p.ProgramInformation, 1)
	assert.Equal(t, mpd.ProgramInformation{
		Lang:               "en",
		MoreInformationURL: "http://example.com/info",
		Title:              "Example",
		Source:             "Studio",
		Copyright:          "None",
	}, p.ProgramInformation[0])

	require.Len(t, p.BaseURLs, 1)
	assert.Equal(t, "http://cdn1.example.com/", p.BaseURLs[0].URL)
	assert.Equal(t, "cdn1", p.BaseURLs[0].ServiceLocation)
	assert.Equal(t, []string{"http://example.com/manifest.mpd"}, p.Locations)

	require.Len(t, p.Metrics, 1)
	assert.Equal(t, "BufferLevel", p.Metrics[0].Metrics)
	assert.Equal(t, []mpd.MetricsRange{{StartTime: 0, Duration: 10_000}}, p.Metrics[0].Ranges)

	require.Len(t, p.Periods, 1)
	period := p.Periods[0]
	assert.Equal(t, "p0", period.ID)
	assert.Equal(t, mpd.Unset, period.Start)
	assert.Equal(t, mpd.Unset, period.Duration)
	assert.True(t, period.BitstreamSwitching)
	require.Len(t, period.Subsets, 1)
	assert.Equal(t, []uint32{1, 2}, period.Subsets[0].Contains)

	require.Len(t, period.AdaptationSets, 1)
	as := period.AdaptationSets[0]
	assert.Equal(t, uint32(1), as.ID)
	assert.Equal(t, "en", as.Lang)
	assert.Equal(t, "audio/mp4", as.MimeType)
	assert.Equal(t, uint32(0), as.Width)
	assert.Equal(t, &value.Ratio{Num: 16, Den: 9}, as.PAR)
	assert.Equal(t, &value.CondUint{Flag: true, Value: 0}, as.SegmentAlignment)
	assert.Equal(t, &value.CondUint{Flag: true, Value: 2}, as.SubsegmentAlignment)
	assert.Equal(t, value.SAPType(1), as.SubsegmentStartsWithSAP)
	assert.Equal(t, []mpd.Descriptor{{SchemeIDURI: "urn:mpeg:dash:role:2011", Value: "main"}}, as.Role)
	require.Len(t, as.AudioChannelConfiguration, 1)
	assert.Equal(t, "2", as.AudioChannelConfiguration[0].Value)
	require.Len(t, as.ContentComponents, 1)
	assert.Equal(t, uint32(3), as.ContentComponents[0].ID)

	require.Len(t, as.Representations, 1)
	r := as.Representations[0]
	assert.Equal(t, "a1", r.ID)
	assert.Equal(t, uint32(128_000), r.Bandwidth)
	assert.Equal(t, "mp4a.40.2", r.Codecs)
	assert.Equal(t, "48000", r.AudioSamplingRate)
	assert.Equal(t, []string{"v1", "v2"}, r.DependencyID)
	assert.Equal(t, value.SAPType(0), r.StartWithSAP, "out of range SAP type is ignored")

	require.Len(t, r.SubRepresentations, 1)
	sub := r.SubRepresentations[0]
	assert.Equal(t, uint32(1), sub.Level)
	assert.Equal(t, []uint32{0, 1}, sub.DependencyLevel)
	assert.Equal(t, uint32(64_000), sub.Bandwidth)
	assert.Equal(t, []string{"a", "b"}, sub.ContentComponent)
}

func TestParseRejectsNonMPD(t *testing.T) {
	t.Parallel()

	_, err := mpd.Parse([]byte(`<Playlist/>`))
	require.ErrorIs(t, err, mpd.ErrNotMPD)

	_, err = mpd.Parse([]byte(`not xml at all <`))
	require.Error(t, err)
}

func TestTypeAliases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		attr     string
		expected mpd.Type
	}{
		{name: "static", attr: "static", expected: mpd.Static},
		{name: "dynamic", attr: "dynamic", expected: mpd.Dynamic},
		{name: "on demand alias", attr: "OnDemand", expected: mpd.Static},
		{name: "live alias", attr: "Live", expected: mpd.Dynamic},
		{name: "unknown keeps default", attr: "weird", expected: mpd.Static},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			p, err := mpd.Parse([]byte(`<MPD type="` + test.attr + `"/>`))
			require.NoError(t, err)
			assert.Equal(t, test.expected, p.Type)
		})
	}
}

func templateManifest(asTemplate string) string {
	return `<MPD type="static" mediaPresentationDuration="PT10S">
  <Period>
    <SegmentTemplate timescale="1000" startNumber="5" media="p-$Number$.m4s" initialization="p-init.mp4"/>
    <AdaptationSet mimeType="video/mp4">
      ` + asTemplate + `
      <Representation id="v1" bandwidth="1000">
        <SegmentTemplate duration="2000"/>
      </Representation>
      <Representation id="v2" bandwidth="2000"/>
    </AdaptationSet>
  </Period>
</MPD>`
}

func TestSegmentTemplateInheritance(t *testing.T) {
	t.Parallel()

	t.Run("inherits start number through an undeclaring level", func(t *testing.T) {
		t.Parallel()

		p, err := mpd.Parse([]byte(templateManifest(`<SegmentTemplate media="as-$Number$.m4s"/>`)))
		require.NoError(t, err)

		as := p.Periods[0].AdaptationSets[0]
		require.NotNil(t, as.SegmentTemplate)
		assert.Equal(t, uint32(5), as.SegmentTemplate.StartNumber)
		assert.Equal(t, "as-$Number$.m4s", as.SegmentTemplate.Media)
		assert.Equal(t, "p-init.mp4", as.SegmentTemplate.InitializationTemplate)

		rep := as.Representations[0].SegmentTemplate
		require.NotNil(t, rep)
		assert.Equal(t, uint32(5), rep.StartNumber)
		assert.Equal(t, uint32(1000), rep.Timescale)
		assert.Equal(t, uint32(2000), rep.Duration)
		assert.Equal(t, "as-$Number$.m4s", rep.Media)

		assert.Nil(t, as.Representations[1].SegmentTemplate)
	})

	t.Run("closer level overrides", func(t *testing.T) {
		t.Parallel()

		p, err := mpd.Parse([]byte(templateManifest(`<SegmentTemplate startNumber="10"/>`)))
		require.NoError(t, err)

		period := p.Periods[0]
		assert.Equal(t, uint32(5), period.SegmentTemplate.StartNumber)

		as := period.AdaptationSets[0]
		assert.Equal(t, uint32(10), as.SegmentTemplate.StartNumber)
		assert.Equal(t, uint32(10), as.Representations[0].SegmentTemplate.StartNumber)
		assert.Equal(t, "p-$Number$.m4s", as.Representations[0].SegmentTemplate.Media)
	})

	t.Run("representation skips an adaptation set without template", func(t *testing.T) {
		t.Parallel()

		p, err := mpd.Parse([]byte(templateManifest(``)))
		require.NoError(t, err)

		as := p.Periods[0].AdaptationSets[0]
		assert.Nil(t, as.SegmentTemplate)
		rep := as.Representations[0].SegmentTemplate
		require.NotNil(t, rep)
		assert.Equal(t, uint32(5), rep.StartNumber)
		assert.Equal(t, "p-$Number$.m4s", rep.Media)
	})
}

func TestSegmentTemplateDefaults(t *testing.T) {
	t.Parallel()

	p, err := mpd.Parse([]byte(`<MPD><Period><SegmentTemplate media="x"/></Period></MPD>`))
	require.NoError(t, err)

	st := p.Periods[0].SegmentTemplate
	require.NotNil(t, st)
	assert.Equal(t, uint32(1), st.Timescale)
	assert.Equal(t, uint32(1), st.StartNumber)
	assert.Equal(t, uint32(0), st.Duration)
	assert.False(t, st.IndexRangeExact)
	assert.Nil(t, st.Timeline)
}

func TestSegmentListInheritance(t *testing.T) {
	t.Parallel()

	doc := `<MPD>
  <Period>
    <SegmentList timescale="90000" duration="180000">
      <Initialization sourceURL="init.mp4" range="0-99"/>
      <SegmentURL media="p1.m4s"/>
      <SegmentURL media="p2.m4s"/>
    </SegmentList>
    <AdaptationSet>
      <SegmentList>
        <SegmentURL media="a1.m4s" mediaRange="0-499"/>
      </SegmentList>
      <Representation id="r">
        <SegmentList duration="90000">
          <SegmentURL media="r1.m4s"/>
          <SegmentURL media="r2.m4s"/>
          <SegmentURL media="r3.m4s"/>
        </SegmentList>
      </Representation>
      <Representation id="plain"/>
    </AdaptationSet>
  </Period>
</MPD>`

	p, err := mpd.Parse([]byte(doc))
	require.NoError(t, err)

	period := p.Periods[0]
	as := period.AdaptationSets[0]
	require.NotNil(t, as.SegmentList)
	assert.Equal(t, uint32(90000), as.SegmentList.Timescale)
	assert.Equal(t, uint32(180000), as.SegmentList.Duration)
	require.NotNil(t, as.SegmentList.Initialization)
	assert.Equal(t, "init.mp4", as.SegmentList.Initialization.SourceURL)
	assert.Equal(t, &value.Range{First: 0, Last: 99}, as.SegmentList.Initialization.Range)
	require.Len(t, as.SegmentList.URLs, 2)
	assert.Equal(t, "a1.m4s", as.SegmentList.URLs[0].Media)
	assert.Equal(t, &value.Range{First: 0, Last: 499}, as.SegmentList.URLs[0].MediaRange)
	assert.Equal(t, "p2.m4s", as.SegmentList.URLs[1].Media)

	rep := as.Representations[0].SegmentList
	require.NotNil(t, rep)
	assert.Equal(t, uint32(90000), rep.Duration)
	require.Len(t, rep.URLs, 3)
	assert.Equal(t, []string{"r1.m4s", "r2.m4s", "r3.m4s"}, []string{rep.URLs[0].Media, rep.URLs[1].Media, rep.URLs[2].Media})
	assert.Nil(t, rep.URLs[0].MediaRange)

	// Inherited values are deep copies.
	as.SegmentList.Initialization.SourceURL = "changed"
	assert.Equal(t, "init.mp4", period.SegmentList.Initialization.SourceURL)
	assert.Equal(t, "init.mp4", rep.Initialization.SourceURL)
}

func TestSegmentTimeline(t *testing.T) {
	t.Parallel()

	doc := `<MPD><Period><SegmentTemplate timescale="1000">
  <SegmentTimeline>
    <S t="0" d="1000" r="2"/>
    <S d="500"/>
    <S t="bad" d="250" r="-1"/>
  </SegmentTimeline>
</SegmentTemplate></Period></MPD>`

	p, err := mpd.Parse([]byte(doc))
	require.NoError(t, err)

	tl := p.Periods[0].SegmentTemplate.Timeline
	require.NotNil(t, tl)
	require.Len(t, tl.S, 3)

	require.NotNil(t, tl.S[0].T)
	assert.Equal(t, uint64(0), *tl.S[0].T)
	assert.Equal(t, uint64(1000), tl.S[0].D)
	assert.Equal(t, uint64(2), tl.S[0].Repeat())

	assert.Nil(t, tl.S[1].T)
	assert.Equal(t, uint64(500), tl.S[1].D)
	assert.Equal(t, uint64(0), tl.S[1].Repeat())

	assert.Nil(t, tl.S[2].T)
	assert.Equal(t, int64(-1), tl.S[2].R)
	assert.Equal(t, uint64(0), tl.S[2].Repeat())
}

func TestRepresentationSelection(t *testing.T) {
	t.Parallel()

	as := mpd.AdaptationSet{
		Representations: []mpd.Representation{
			{ID: "mid", Bandwidth: 2000},
			{ID: "low", Bandwidth: 1000},
			{ID: "high", Bandwidth: 4000},
		},
	}

	assert.Equal(t, "low", as.LowestRepresentation().ID)
	assert.Equal(t, "low", as.RepresentationWithMaxBandwidth(0).ID)
	assert.Equal(t, "mid", as.RepresentationWithMaxBandwidth(3000).ID)
	assert.Equal(t, "high", as.RepresentationWithMaxBandwidth(4000).ID)
	assert.Nil(t, as.RepresentationWithMaxBandwidth(500))
	assert.Equal(t, "high", as.RepresentationByID("high").ID)
	assert.Nil(t, as.RepresentationByID("missing"))

	var empty mpd.AdaptationSet
	assert.Nil(t, empty.LowestRepresentation())
}

func TestClassifyMimeType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, mpd.MimeAudio, mpd.ClassifyMimeType("audio/mp4"))
	assert.Equal(t, mpd.MimeVideo, mpd.ClassifyMimeType("video/webm"))
	assert.Equal(t, mpd.MimeApplication, mpd.ClassifyMimeType("application/ttml+xml"))
	assert.Equal(t, mpd.MimeUnknown, mpd.ClassifyMimeType("text/vtt"))

	as := &mpd.AdaptationSet{RepresentationBase: mpd.RepresentationBase{MimeType: "video/mp4"}}
	assert.Equal(t, "video/mp4", mpd.MimeType(as, &mpd.Representation{}))
	assert.Equal(t, "audio/mp4", mpd.MimeType(as, &mpd.Representation{RepresentationBase: mpd.RepresentationBase{MimeType: "audio/mp4"}}))
}
