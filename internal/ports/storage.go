// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

import "errors"

// ErrGroupNotFound is returned by UpdateGroupAppend when no match group record
// exists yet for the sample. It is a control signal, not a failure: the caller
// falls back to CreateGroup.
var ErrGroupNotFound = errors.New("match group not found")

// Persistence stores samples and match groups. Two logical collections:
// "samples" keyed by sample id and "matches" keyed by sample id.
//
// Adapters (bbolt, sqlite, memory) provision both collections when opened.
// Writes are serialized by the caller; adapters need not be safe for
// concurrent mutation beyond what the backing store provides.
type Persistence interface {
	// PutSample creates or overwrites the sample with the given id.
	PutSample(id string, description map[string]any) error

	// ScanSamples returns every stored sample in a stable order.
	// Used once at startup to hydrate the in-memory registry.
	ScanSamples() ([]SampleRecord, error)

	// UpdateGroupAppend appends doc to an existing group record.
	// Returns ErrGroupNotFound (possibly wrapped) if the group does not exist.
	UpdateGroupAppend(sampleID string, doc Document) error

	// CreateGroup creates the group record with docs as its initial members.
	CreateGroup(sampleID string, docs []Document) error

	// ScanGroups returns every stored group with its members in append order.
	ScanGroups() ([]GroupRecord, error)

	// Close releases the underlying store.
	Close() error
}

// Document is a structured record as received: a JSON object decoded into
// map[string]any. Values are JSON values (string, json.Number, bool, nil,
// []any, map[string]any).
type Document = map[string]any

// SampleRecord is a named reference pattern. Description is stored as given,
// never flattened.
type SampleRecord struct {
	ID          string         `json:"sample_id"`
	Description map[string]any `json:"description"`
}

// GroupRecord is the persisted form of a match group.
type GroupRecord struct {
	SampleID  string     `json:"sample_id"`
	Documents []Document `json:"documents"`
}

// Provisioner is implemented by stores that create their collections
// explicitly. EnsureCollections must be idempotent.
type Provisioner interface {
	EnsureCollections() error
}
