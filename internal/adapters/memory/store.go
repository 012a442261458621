// Package memory implements ports.Persistence in process memory. Nothing
// survives the process; it backs one-shot runs and tests.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/corey/doclink/internal/ports"
)

// Store implements ports.Persistence with maps.
type Store struct {
	mu      sync.RWMutex
	samples map[string]map[string]any
	groups  map[string][]ports.Document
	order   []string // group creation order
	closed  bool
}

var _ ports.Persistence = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		samples: make(map[string]map[string]any),
		groups:  make(map[string][]ports.Document),
	}
}

// PutSample creates or overwrites a sample.
func (s *Store) PutSample(id string, description map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.samples[id] = description
	return nil
}

// ScanSamples returns samples sorted by id.
func (s *Store) ScanSamples() ([]ports.SampleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	ids := make([]string, 0, len(s.samples))
	for id := range s.samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]ports.SampleRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, ports.SampleRecord{ID: id, Description: s.samples[id]})
	}
	return out, nil
}

// UpdateGroupAppend appends doc to an existing group.
func (s *Store) UpdateGroupAppend(sampleID string, doc ports.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	docs, ok := s.groups[sampleID]
	if !ok {
		return fmt.Errorf("group %q: %w", sampleID, ports.ErrGroupNotFound)
	}
	s.groups[sampleID] = append(docs, doc)
	return nil
}

// CreateGroup creates (or replaces) a group record.
func (s *Store) CreateGroup(sampleID string, docs []ports.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if _, ok := s.groups[sampleID]; !ok {
		s.order = append(s.order, sampleID)
	}
	s.groups[sampleID] = append([]ports.Document(nil), docs...)
	return nil
}

// ScanGroups returns groups in creation order.
func (s *Store) ScanGroups() ([]ports.GroupRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	out := make([]ports.GroupRecord, 0, len(s.order))
	for _, id := range s.order {
		docs := append([]ports.Document(nil), s.groups[id]...)
		out = append(out, ports.GroupRecord{SampleID: id, Documents: docs})
	}
	return out, nil
}

// Close marks the store closed. Further calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var errClosed = fmt.Errorf("memory store closed")

// EnsureCollections is a no-op; maps exist from NewStore.
func (s *Store) EnsureCollections() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}
