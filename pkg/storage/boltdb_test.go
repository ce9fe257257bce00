package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestMarkerRoundTrip tests put, get, and delete for one marker
func TestMarkerRoundTrip(t *testing.T) {
	store := openStore(t)

	marker := &Marker{
		ContentType: "movies",
		Ref:         "movies/heat.mkv",
		SizeBytes:   2 << 30,
		Checksum:    "abc123",
		CompletedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.PutMarker(marker))

	got, err := store.GetMarker("movies", "movies/heat.mkv")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, marker.SizeBytes, got.SizeBytes)
	assert.Equal(t, marker.Checksum, got.Checksum)
	assert.True(t, marker.CompletedAt.Equal(got.CompletedAt))

	require.NoError(t, store.DeleteMarker("movies", "movies/heat.mkv"))
	got, err = store.GetMarker("movies", "movies/heat.mkv")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestGetMarkerAbsent tests that a missing marker is nil, not an error
func TestGetMarkerAbsent(t *testing.T) {
	store := openStore(t)

	got, err := store.GetMarker("movies", "never/recorded.mkv")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent marker is also fine
	require.NoError(t, store.DeleteMarker("movies", "never/recorded.mkv"))
}

// TestPutMarkerValidation tests that incomplete markers are rejected
func TestPutMarkerValidation(t *testing.T) {
	store := openStore(t)

	assert.Error(t, store.PutMarker(&Marker{Ref: "a"}))
	assert.Error(t, store.PutMarker(&Marker{ContentType: "movies"}))
}

// TestPutMarkerUpsert tests that a second put replaces the first
func TestPutMarkerUpsert(t *testing.T) {
	store := openStore(t)

	require.NoError(t, store.PutMarker(&Marker{ContentType: "tv", Ref: "a", SizeBytes: 1}))
	require.NoError(t, store.PutMarker(&Marker{ContentType: "tv", Ref: "a", SizeBytes: 2}))

	got, err := store.GetMarker("tv", "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.SizeBytes)
}

// TestListMarkersSortedAndScoped tests prefix isolation between
// content types and sorted output
func TestListMarkersSortedAndScoped(t *testing.T) {
	store := openStore(t)

	for _, ref := range []string{"b/two.mkv", "a/one.mkv", "c/three.mkv"} {
		require.NoError(t, store.PutMarker(&Marker{ContentType: "movies", Ref: ref, SizeBytes: 1}))
	}
	require.NoError(t, store.PutMarker(&Marker{ContentType: "tv", Ref: "a/pilot.mkv", SizeBytes: 1}))

	movies, err := store.ListMarkers("movies")
	require.NoError(t, err)
	require.Len(t, movies, 3)
	assert.Equal(t, "a/one.mkv", movies[0].Ref)
	assert.Equal(t, "b/two.mkv", movies[1].Ref)
	assert.Equal(t, "c/three.mkv", movies[2].Ref)

	tv, err := store.ListMarkers("tv")
	require.NoError(t, err)
	require.Len(t, tv, 1)

	empty, err := store.ListMarkers("music")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestPruneContentType tests bulk removal for one content type
func TestPruneContentType(t *testing.T) {
	store := openStore(t)

	for _, ref := range []string{"a", "b", "c"} {
		require.NoError(t, store.PutMarker(&Marker{ContentType: "movies", Ref: ref, SizeBytes: 1}))
	}
	require.NoError(t, store.PutMarker(&Marker{ContentType: "tv", Ref: "a", SizeBytes: 1}))

	removed, err := store.PruneContentType("movies")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	movies, err := store.ListMarkers("movies")
	require.NoError(t, err)
	assert.Empty(t, movies)

	// Other content types untouched
	tv, err := store.ListMarkers("tv")
	require.NoError(t, err)
	assert.Len(t, tv, 1)
}

// TestReopenPersists tests that markers survive close and reopen
func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.PutMarker(&Marker{ContentType: "movies", Ref: "a", SizeBytes: 42}))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetMarker("movies", "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.SizeBytes)
}
