package storage

import (
	"time"
)

// Marker records one completed transfer so unchanged items can be
// skipped on later passes
type Marker struct {
	ContentType string    `json:"content_type"`
	Ref         string    `json:"ref"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store persists transfer completion markers. The runtime core never
// touches it; only agent transferors do.
type Store interface {
	// PutMarker records or replaces a completion marker
	PutMarker(marker *Marker) error

	// GetMarker returns the marker for one item, or nil when absent
	GetMarker(contentType, ref string) (*Marker, error)

	// ListMarkers returns every marker recorded for a content type,
	// sorted by ref
	ListMarkers(contentType string) ([]*Marker, error)

	// DeleteMarker removes one marker. Deleting an absent marker is
	// not an error.
	DeleteMarker(contentType, ref string) error

	// PruneContentType removes every marker for a content type and
	// returns the number removed
	PruneContentType(contentType string) (int, error)

	// Close releases the underlying database
	Close() error
}
