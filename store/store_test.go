package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/mpdq/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "mpdq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	return s
}

func TestHistory(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 3 {
		require.NoError(t, s.Put(store.Snapshot{
			URL:       "https://a/live.mpd",
			FetchedAt: base.Add(time.Duration(i) * time.Second),
			Type:      "dynamic",
			Periods:   i + 1,
			Body:      []byte("<MPD/>"),
		}))
	}
	require.NoError(t, s.Put(store.Snapshot{
		URL:       "https://b/vod.mpd",
		FetchedAt: base,
		Type:      "static",
		Periods:   1,
		Body:      []byte("<MPD type=\"static\"/>"),
	}))

	latest, err := s.Latest("https://a/live.mpd")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Periods)
	assert.True(t, base.Add(2*time.Second).Equal(latest.FetchedAt))
	assert.Equal(t, "<MPD/>", string(latest.Body))

	snaps, err := s.History("https://a/live.mpd", 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 3, snaps[0].Periods)
	assert.Equal(t, 2, snaps[1].Periods)

	snaps, err = s.History("https://a/live.mpd", 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 3)

	urls, err := s.URLs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://a/live.mpd", "https://b/vod.mpd"}, urls)
}

func TestLatestMissing(t *testing.T) {
	t.Parallel()

	s := openStore(t)

	_, err := s.Latest("https://a/unknown.mpd")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestReopenKeepsSnapshots(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mpdq.db")

	s, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(store.Snapshot{URL: "u", FetchedAt: time.Now(), Type: "static", Periods: 1, Body: nil}))
	require.NoError(t, s.Close())

	s, err = store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	_, err = s.Latest("u")
	require.NoError(t, err)
}
