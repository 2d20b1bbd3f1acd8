package live_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/mpdq/config"
	"github.com/xeptore/mpdq/dash"
	"github.com/xeptore/mpdq/fetch"
	"github.com/xeptore/mpdq/live"
	"github.com/xeptore/mpdq/result"
	"github.com/xeptore/mpdq/store"
)

const (
	manifestURL = "https://origin.example.com/live/main.mpd"

	dynamicManifest = `<MPD type="dynamic" availabilityStartTime="2024-01-01T00:00:00Z" minimumUpdatePeriod="PT0.001S">
  <Period id="p" start="PT0S">
    <AdaptationSet id="1" mimeType="video/mp4">
      <SegmentTemplate timescale="1" duration="2" media="$Number$.m4s"/>
      <Representation id="v" bandwidth="1"/>
    </AdaptationSet>
  </Period>
</MPD>`

	staticManifest = `<MPD type="static" mediaPresentationDuration="PT10S">
  <Period id="p">
    <AdaptationSet id="1" mimeType="video/mp4">
      <SegmentTemplate timescale="1" duration="2" media="$Number$.m4s"/>
      <Representation id="v" bandwidth="1"/>
    </AdaptationSet>
  </Period>
</MPD>`
)

var errUnavailable = errors.New("origin unavailable")

type fakeFetcher struct {
	mu        sync.Mutex
	responses []result.Of[fetch.Manifest]
	calls     int
}

func (f *fakeFetcher) Manifest(context.Context, zerolog.Logger, string) (*fetch.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := f.responses[min(f.calls, len(f.responses)-1)]
	f.calls++

	return res.Get()
}

func manifest(body string) result.Of[fetch.Manifest] {
	return result.Ok(&fetch.Manifest{
		Body:      []byte(body),
		URL:       manifestURL,
		FetchedAt: time.Now().UTC(),
		MimeType:  "text/xml; charset=utf-8",
	})
}

type memoryStore struct {
	mu        sync.Mutex
	snapshots []store.Snapshot
}

func (s *memoryStore) Put(snap store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append(s.snapshots, snap)

	return nil
}

func refreshConfig() config.Refresh {
	return config.Refresh{
		MinInterval: config.Duration{Duration: time.Millisecond},
		MaxInterval: config.Duration{Duration: 5 * time.Millisecond},
		Rate:        1000,
		Burst:       10,
		MaxFailures: 2,
	}
}

func collect(t *testing.T, r *live.Refresher) ([]result.Of[dash.Client], error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates := make(chan result.Of[dash.Client])
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, updates)
		close(updates)
	}()

	var out []result.Of[dash.Client]
	for res := range updates {
		out = append(out, res)
	}

	return out, <-done
}

func TestRunStopsWhenPresentationTurnsStatic(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		responses: []result.Of[fetch.Manifest]{
			manifest(dynamicManifest),
			result.Err[fetch.Manifest](errUnavailable),
			manifest(dynamicManifest),
			manifest(staticManifest),
		},
	}
	snapshots := &memoryStore{}

	updates, err := collect(t, live.New(zerolog.Nop(), fetcher, snapshots, refreshConfig(), manifestURL))
	require.NoError(t, err)
	require.Len(t, updates, 3)

	for _, u := range updates[:2] {
		c, err := u.Get()
		require.NoError(t, err)
		assert.True(t, c.IsLive())
	}
	last, err := updates[2].Get()
	require.NoError(t, err)
	assert.False(t, last.IsLive())

	assert.Equal(t, 4, fetcher.calls)
	require.Len(t, snapshots.snapshots, 3)
	assert.Equal(t, manifestURL, snapshots.snapshots[0].URL)
	assert.Equal(t, "dynamic", snapshots.snapshots[0].Type)
	assert.Equal(t, 1, snapshots.snapshots[0].Periods)
	assert.Equal(t, "static", snapshots.snapshots[2].Type)
}

func TestRunKeepsSelectedStreams(t *testing.T) {
	t.Parallel()

	c, err := dash.New(zerolog.Nop(), []byte(dynamicManifest), manifestURL)
	require.NoError(t, err)
	_, err = c.SetupStream(0, "v")
	require.NoError(t, err)

	fetcher := &fakeFetcher{
		responses: []result.Of[fetch.Manifest]{manifest(staticManifest)},
	}

	updates, err := collect(t, live.New(zerolog.Nop(), fetcher, nil, refreshConfig(), manifestURL).WithClient(c))
	require.NoError(t, err)
	require.Len(t, updates, 1)

	refreshed := updates[0].Unwrap()
	require.Len(t, refreshed.Streams(), 1)
	assert.Equal(t, "v", refreshed.Streams()[0].Representation.ID)
}

func TestRunGivesUpAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		responses: []result.Of[fetch.Manifest]{result.Err[fetch.Manifest](errUnavailable)},
	}

	updates, err := collect(t, live.New(zerolog.Nop(), fetcher, nil, refreshConfig(), manifestURL))
	require.ErrorIs(t, err, errUnavailable)
	require.Len(t, updates, 1)
	require.ErrorIs(t, updates[0].Err(), errUnavailable)
	assert.Equal(t, 3, fetcher.calls)
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		responses: []result.Of[fetch.Manifest]{manifest(dynamicManifest)},
	}
	conf := refreshConfig()
	conf.MinInterval.Duration = time.Hour
	conf.MaxInterval.Duration = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan result.Of[dash.Client], 1)

	done := make(chan error, 1)
	go func() {
		done <- live.New(zerolog.Nop(), fetcher, nil, conf, manifestURL).Run(ctx, updates)
	}()

	first := <-updates
	require.NoError(t, first.Err())
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("refresher did not stop after cancellation")
	}
}
