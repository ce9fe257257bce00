package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketMarkers = []byte("markers")
	bucketMeta    = []byte("meta")
)

// keySeparator joins content type and ref into one bucket key. Refs
// may contain slashes, so the separator is a byte that never appears
// in either part.
const keySeparator = "\x00"

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the marker database under dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}
	dbPath := filepath.Join(dataDir, "syncd.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketMarkers, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func markerKey(contentType, ref string) []byte {
	return []byte(contentType + keySeparator + ref)
}

// PutMarker records or replaces a completion marker
func (s *BoltStore) PutMarker(marker *Marker) error {
	if marker.ContentType == "" || marker.Ref == "" {
		return fmt.Errorf("marker needs content type and ref")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMarkers)
		data, err := json.Marshal(marker)
		if err != nil {
			return err
		}
		return b.Put(markerKey(marker.ContentType, marker.Ref), data)
	})
}

// GetMarker returns the marker for one item, or nil when absent
func (s *BoltStore) GetMarker(contentType, ref string) (*Marker, error) {
	var marker *Marker
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMarkers)
		data := b.Get(markerKey(contentType, ref))
		if data == nil {
			return nil
		}
		marker = &Marker{}
		return json.Unmarshal(data, marker)
	})
	if err != nil {
		return nil, err
	}
	return marker, nil
}

// ListMarkers returns every marker for a content type, sorted by ref.
// Bucket iteration is already key-ordered, so the prefix scan comes
// back sorted.
func (s *BoltStore) ListMarkers(contentType string) ([]*Marker, error) {
	var markers []*Marker
	prefix := []byte(contentType + keySeparator)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketMarkers).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var marker Marker
			if err := json.Unmarshal(v, &marker); err != nil {
				return err
			}
			markers = append(markers, &marker)
		}
		return nil
	})
	return markers, err
}

// DeleteMarker removes one marker
func (s *BoltStore) DeleteMarker(contentType, ref string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMarkers).Delete(markerKey(contentType, ref))
	})
}

// PruneContentType removes every marker for a content type
func (s *BoltStore) PruneContentType(contentType string) (int, error) {
	removed := 0
	prefix := []byte(contentType + keySeparator)
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketMarkers).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
