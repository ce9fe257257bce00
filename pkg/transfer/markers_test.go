package transfer

import (
	"sort"
	"sync"

	"github.com/vladzaharia/dangerprep-sub010/pkg/storage"
)

// memMarkers is an in-memory storage.Store for transferor tests
type memMarkers struct {
	mu      sync.Mutex
	markers map[string]*storage.Marker
}

func newMemMarkers() *memMarkers {
	return &memMarkers{markers: make(map[string]*storage.Marker)}
}

func (m *memMarkers) key(contentType, ref string) string {
	return contentType + "\x00" + ref
}

func (m *memMarkers) PutMarker(marker *storage.Marker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *marker
	m.markers[m.key(marker.ContentType, marker.Ref)] = &copied
	return nil
}

func (m *memMarkers) GetMarker(contentType, ref string) (*storage.Marker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	marker, ok := m.markers[m.key(contentType, ref)]
	if !ok {
		return nil, nil
	}
	copied := *marker
	return &copied, nil
}

func (m *memMarkers) ListMarkers(contentType string) ([]*storage.Marker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.Marker
	for _, marker := range m.markers {
		if marker.ContentType == contentType {
			copied := *marker
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

func (m *memMarkers) DeleteMarker(contentType, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, m.key(contentType, ref))
	return nil
}

func (m *memMarkers) PruneContentType(contentType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, marker := range m.markers {
		if marker.ContentType == contentType {
			delete(m.markers, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memMarkers) Close() error { return nil }
