/*
Package storage provides BoltDB-backed persistence for transfer
completion markers.

The runtime itself persists nothing across restarts; markers are
agent-side state. A transferor records a marker after each successful
transfer and consults it on the next pass to skip items whose size and
checksum are unchanged.

# Layout

One database file, <dataDir>/syncd.db, opened 0600 with a 5 second
lock timeout so two instances pointed at the same directory fail fast
instead of hanging.

	markers   one JSON-encoded Marker per (content type, ref)
	meta      reserved for schema versioning

Keys are "<content type>\x00<ref>": refs contain slashes, so the
separator is a byte neither part can carry. Prefix scans over the
ordered B+tree give ListMarkers its sorted output for free.

# Usage

	store, err := storage.NewBoltStore("/var/lib/syncd")
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.PutMarker(&storage.Marker{
		ContentType: "movies",
		Ref:         "movies/heat.mkv",
		SizeBytes:   2 << 30,
		Checksum:    sum,
		CompletedAt: time.Now(),
	})

	marker, err := store.GetMarker("movies", "movies/heat.mkv")
	if marker != nil && marker.SizeBytes == item.SizeBytes {
		// unchanged, skip
	}

# Integration Points

This package integrates with:

  - pkg/transfer: the file transferor records and consults markers
  - cmd/syncd: opens the store once per process under storage.data_dir
*/
package storage
