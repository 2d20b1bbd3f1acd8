package segment_test

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/mpdq/dash/mpd"
	"github.com/xeptore/mpdq/dash/segment"
	"github.com/xeptore/mpdq/dash/value"
)

func buildIndex(t *testing.T, doc string) *segment.Index {
	t.Helper()

	p, err := mpd.Parse([]byte(doc))
	require.NoError(t, err)

	periods, err := mpd.BuildTimeline(p)
	require.NoError(t, err)
	require.NotEmpty(t, periods)

	sp := periods[0]
	as := &sp.Period.AdaptationSets[0]
	ix, err := segment.Build(sp, as, &as.Representations[0])
	require.NoError(t, err)

	return ix
}

type span struct {
	number   uint32
	start    time.Duration
	duration time.Duration
}

func spans(ix *segment.Index) []span {
	var out []span
	for f := range ix.Fragments() {
		out = append(out, span{number: f.Number, start: f.Start, duration: f.Duration})
	}

	return out
}

func TestTimelineExpansion(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT3S"><Period><AdaptationSet>
  <SegmentTemplate timescale="1000" startNumber="3" media="$Number$.m4s">
    <SegmentTimeline><S t="0" d="1000" r="2"/></SegmentTimeline>
  </SegmentTemplate>
  <Representation id="v" bandwidth="1"/>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	assert.Equal(t, segment.SourceTemplate, ix.Source)
	assert.True(t, ix.Materialized())
	require.Len(t, ix.Segments(), 1)
	assert.Equal(t, uint64(2), ix.Segments()[0].Repeat)

	assert.Equal(t, []span{
		{number: 3, start: 0, duration: time.Second},
		{number: 4, start: time.Second, duration: time.Second},
		{number: 5, start: 2 * time.Second, duration: time.Second},
	}, spans(ix))

	n, bounded := ix.FragmentCount()
	assert.True(t, bounded)
	assert.Equal(t, uint64(3), n)

	f, ok := ix.ByIndex(1)
	require.True(t, ok)
	assert.Equal(t, uint32(4), f.Number)
	assert.Equal(t, uint64(1000), f.ScaleStart)

	f, ok = ix.ByNumber(5)
	require.True(t, ok)
	assert.Equal(t, segment.Position{Index: 0, Repeat: 2}, f.Position)

	_, ok = ix.ByNumber(6)
	assert.False(t, ok)
	_, ok = ix.ByIndex(3)
	assert.False(t, ok)
}

func TestBuildIsIdempotent(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT10S"><Period><AdaptationSet>
  <SegmentTemplate timescale="90000" media="$Time$.m4s">
    <SegmentTimeline><S t="900" d="180000" r="3"/><S d="90000"/></SegmentTimeline>
  </SegmentTemplate>
  <Representation id="v" bandwidth="1"/>
</AdaptationSet></Period></MPD>`

	p, err := mpd.Parse([]byte(doc))
	require.NoError(t, err)
	periods, err := mpd.BuildTimeline(p)
	require.NoError(t, err)

	as := &periods[0].Period.AdaptationSets[0]
	a, err := segment.Build(periods[0], as, &as.Representations[0])
	require.NoError(t, err)
	b, err := segment.Build(periods[0], as, &as.Representations[0])
	require.NoError(t, err)

	assert.Equal(t, a.Segments(), b.Segments())
	assert.Equal(t, spans(a), spans(b))
}

func TestTimelineGapsAndOffset(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT30S"><Period><AdaptationSet>
  <SegmentTemplate timescale="10" presentationTimeOffset="100" media="$Time$.m4s">
    <SegmentTimeline><S t="100" d="20"/><S d="20"/><S t="200" d="20" r="-1"/></SegmentTimeline>
  </SegmentTemplate>
  <Representation id="v" bandwidth="1"/>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	assert.Equal(t, 10*time.Second, ix.PresentationTimeOffset)

	assert.Equal(t, []span{
		{number: 1, start: 0, duration: 2 * time.Second},
		{number: 2, start: 2 * time.Second, duration: 2 * time.Second},
		{number: 3, start: 10 * time.Second, duration: 2 * time.Second},
	}, spans(ix))

	f, ok := ix.ByIndex(2)
	require.True(t, ok)
	assert.Equal(t, uint64(200), f.ScaleStart)

	req, err := ix.Request(f)
	require.NoError(t, err)
	assert.Equal(t, "200.m4s", req.Media.Ref)

	_, ok = ix.Locate(5 * time.Second)
	assert.False(t, ok, "timestamps inside a gap are not found")
}

func TestLastSegmentClamp(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT10S"><Period><AdaptationSet>
  <SegmentTemplate timescale="1" media="$Number$.m4s">
    <SegmentTimeline><S t="0" d="4" r="2"/></SegmentTimeline>
  </SegmentTemplate>
  <Representation id="v" bandwidth="1"/>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	require.Len(t, ix.Segments(), 2)
	assert.Equal(t, uint64(1), ix.Segments()[0].Repeat)

	assert.Equal(t, []span{
		{number: 1, start: 0, duration: 4 * time.Second},
		{number: 2, start: 4 * time.Second, duration: 4 * time.Second},
		{number: 3, start: 8 * time.Second, duration: 2 * time.Second},
	}, spans(ix))

	end, ok := ix.LastEnd()
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, end)
}

func TestLastSegmentClampDropsRepeatsPastPeriodEnd(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT12S"><Period><AdaptationSet>
  <SegmentTemplate timescale="1" media="$Number$.m4s">
    <SegmentTimeline><S t="0" d="5" r="4"/><S d="5"/></SegmentTimeline>
  </SegmentTemplate>
  <Representation id="v" bandwidth="1"/>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	require.Len(t, ix.Segments(), 2)

	assert.Equal(t, []span{
		{number: 1, start: 0, duration: 5 * time.Second},
		{number: 2, start: 5 * time.Second, duration: 5 * time.Second},
		{number: 3, start: 10 * time.Second, duration: 2 * time.Second},
	}, spans(ix))

	end, ok := ix.LastEnd()
	require.True(t, ok)
	assert.Equal(t, 12*time.Second, end)

	n, ok := ix.FragmentCount()
	require.True(t, ok)
	assert.Equal(t, uint64(3), n)
}

func TestOnDemandTemplate(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT9S"><Period><AdaptationSet>
  <SegmentTemplate timescale="1000" duration="2000" startNumber="10"
                   media="$RepresentationID$/seg-$Number%05d$-$Time$.m4s" initialization="$RepresentationID$/init.mp4"/>
  <Representation id="v1" bandwidth="500000"/>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	assert.False(t, ix.Materialized())
	assert.Nil(t, ix.Segments())
	assert.Equal(t, 5, ix.Count())
	assert.Equal(t, 2*time.Second, ix.SegmentDuration())

	assert.Equal(t, []span{
		{number: 10, start: 0, duration: 2 * time.Second},
		{number: 11, start: 2 * time.Second, duration: 2 * time.Second},
		{number: 12, start: 4 * time.Second, duration: 2 * time.Second},
		{number: 13, start: 6 * time.Second, duration: 2 * time.Second},
		{number: 14, start: 8 * time.Second, duration: time.Second},
	}, spans(ix))

	pos, ok := ix.Locate(5 * time.Second)
	require.True(t, ok)
	assert.Equal(t, segment.Position{Index: 2, Repeat: 0}, pos)

	pos, ok = ix.Locate(9 * time.Second)
	assert.False(t, ok)
	assert.Equal(t, segment.Position{Index: 5, Repeat: 0}, pos)

	f, ok := ix.ByNumber(12)
	require.True(t, ok)
	req, err := ix.Request(f)
	require.NoError(t, err)
	assert.Equal(t, "v1/seg-00012-4000.m4s", req.Media.Ref)
	assert.Nil(t, req.Media.Range)
	assert.Nil(t, req.Index)

	_, ok = ix.ByNumber(9)
	assert.False(t, ok)

	initLoc, ok, err := ix.Initialization()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1/init.mp4", initLoc.Ref)
}

func TestOnDemandTemplateLive(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="dynamic" availabilityStartTime="2024-01-01T00:00:00Z"><Period start="PT0S"><AdaptationSet>
  <SegmentTemplate timescale="1" duration="4" media="$Number$.m4s"/>
  <Representation id="v1" bandwidth="1"/>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	assert.Equal(t, 0, ix.Count())

	_, bounded := ix.FragmentCount()
	assert.False(t, bounded)

	_, ok := ix.LastEnd()
	assert.False(t, ok)

	first := slices.Collect(func(yield func(segment.Fragment) bool) {
		for f := range ix.Fragments() {
			if f.Number > 3 || !yield(f) {
				return
			}
		}
	})
	require.Len(t, first, 3)

	pos, ok := ix.Locate(time.Hour)
	require.True(t, ok)
	assert.Equal(t, 900, pos.Index)
}

func TestSegmentList(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT10S"><Period><AdaptationSet>
  <Representation id="v" bandwidth="1">
    <SegmentList timescale="1" duration="4" startNumber="0">
      <Initialization sourceURL="init.mp4"/>
      <SegmentURL media="a.m4s" mediaRange="0-999" indexRange="0-99"/>
      <SegmentURL media="b.m4s" indexRange="0-99"/>
      <SegmentURL media="c.m4s" index="c.sidx"/>
    </SegmentList>
  </Representation>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	assert.Equal(t, segment.SourceList, ix.Source)
	assert.Equal(t, []span{
		{number: 0, start: 0, duration: 4 * time.Second},
		{number: 1, start: 4 * time.Second, duration: 4 * time.Second},
		{number: 2, start: 8 * time.Second, duration: 2 * time.Second},
	}, spans(ix))

	requests := make([]segment.Request, 0, 3)
	for f := range ix.Fragments() {
		req, err := ix.Request(f)
		require.NoError(t, err)
		requests = append(requests, req)
	}

	assert.Equal(t, segment.Request{
		Media: segment.Location{Ref: "a.m4s", Range: &value.Range{First: 0, Last: 999}},
		Index: &segment.Location{Ref: "", Range: &value.Range{First: 0, Last: 99}},
	}, requests[0])
	assert.Equal(t, segment.Request{
		Media: segment.Location{Ref: "b.m4s", Range: nil},
		Index: nil,
	}, requests[1], "index range without media range is dropped")
	assert.Equal(t, segment.Request{
		Media: segment.Location{Ref: "c.m4s", Range: nil},
		Index: &segment.Location{Ref: "c.sidx", Range: nil},
	}, requests[2])

	initLoc, ok, err := ix.Initialization()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "init.mp4", initLoc.Ref)
}

func TestSegmentListWithTimeline(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT10S"><Period><AdaptationSet>
  <Representation id="v" bandwidth="1">
    <SegmentList timescale="1">
      <SegmentTimeline><S t="0" d="3" r="1"/><S d="4"/></SegmentTimeline>
      <SegmentURL media="a.m4s"/>
      <SegmentURL media="b.m4s"/>
      <SegmentURL media="c.m4s"/>
    </SegmentList>
  </Representation>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	refs := make([]string, 0, 3)
	for f := range ix.Fragments() {
		req, err := ix.Request(f)
		require.NoError(t, err)
		refs = append(refs, req.Media.Ref)
	}
	assert.Equal(t, []string{"a.m4s", "b.m4s", "c.m4s"}, refs)
	assert.Equal(t, []span{
		{number: 1, start: 0, duration: 3 * time.Second},
		{number: 2, start: 3 * time.Second, duration: 3 * time.Second},
		{number: 3, start: 6 * time.Second, duration: 4 * time.Second},
	}, spans(ix))
}

func TestSegmentListWithoutURLs(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT10S"><Period><AdaptationSet>
  <Representation id="v" bandwidth="1"><SegmentList duration="2"/></Representation>
</AdaptationSet></Period></MPD>`

	p, err := mpd.Parse([]byte(doc))
	require.NoError(t, err)
	periods, err := mpd.BuildTimeline(p)
	require.NoError(t, err)

	as := &periods[0].Period.AdaptationSets[0]
	_, err = segment.Build(periods[0], as, &as.Representations[0])
	require.ErrorIs(t, err, segment.ErrNoSegmentURLs)
}

func TestSingleSegment(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT1M"><Period><AdaptationSet>
  <Representation id="a" bandwidth="1">
    <BaseURL>audio.mp4</BaseURL>
    <SegmentBase indexRange="800-1999">
      <Initialization range="0-799"/>
    </SegmentBase>
  </Representation>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	assert.Equal(t, segment.SourceSingle, ix.Source)
	assert.Equal(t, []span{{number: 1, start: 0, duration: time.Minute}}, spans(ix))

	f, ok := ix.ByIndex(0)
	require.True(t, ok)
	req, err := ix.Request(f)
	require.NoError(t, err)
	assert.Equal(t, segment.Location{Ref: "", Range: nil}, req.Media)

	initLoc, ok, err := ix.Initialization()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, segment.Location{Ref: "", Range: &value.Range{First: 0, Last: 799}}, initLoc)

	idx, ok, err := ix.HeaderIndex()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, &value.Range{First: 800, Last: 1999}, idx.Range)
}

func TestInvalidTemplateFormat(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT4S"><Period><AdaptationSet>
  <SegmentTemplate duration="2" media="$Number%5s$.m4s"/>
  <Representation id="v" bandwidth="1"/>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	f, ok := ix.ByIndex(0)
	require.True(t, ok)
	_, err := ix.Request(f)
	require.Error(t, err)
}

func TestSegmentListWithoutDurationCoversPeriod(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="static" mediaPresentationDuration="PT1.5S"><Period><AdaptationSet>
  <SegmentList timescale="1">
    <SegmentURL media="whole.mp4"/>
  </SegmentList>
  <Representation id="v" bandwidth="1"/>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	f, ok := ix.At(segment.Position{Index: 0, Repeat: 0})
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, f.Duration)
	assert.Equal(t, uint64(2), f.ScaleDuration)
}

func TestTimelineStartSaturates(t *testing.T) {
	t.Parallel()

	doc := `<MPD type="dynamic" availabilityStartTime="2024-01-01T00:00:00Z"><Period start="PT0S"><AdaptationSet>
  <SegmentTemplate timescale="1" media="$Time$.m4s">
    <SegmentTimeline><S t="18446744073709551615" d="1"/></SegmentTimeline>
  </SegmentTemplate>
  <Representation id="v" bandwidth="1"/>
</AdaptationSet></Period></MPD>`

	ix := buildIndex(t, doc)
	f, ok := ix.At(segment.Position{Index: 0, Repeat: 0})
	require.True(t, ok)
	assert.Equal(t, time.Duration(math.MaxInt64), f.Start)
	assert.NotEqual(t, mpd.UnknownDuration, f.Start)
	assert.Equal(t, time.Second, f.Duration)
}
