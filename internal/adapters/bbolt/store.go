// Package bbolt implements ports.Persistence using bbolt (embedded B+ tree).
// Two top-level buckets: "samples" maps sample id to its JSON description,
// "matches" holds one nested bucket per match group. Writes are transactional,
// so a crash mid-append cannot corrupt previously committed members.
package bbolt

import (
	"errors"
	"fmt"
	"time"

	"github.com/corey/doclink/internal/ports"
	bolt "go.etcd.io/bbolt"
)

// Bucket keys
var (
	bucketSamples = []byte("samples")
	bucketMatches = []byte("matches")
)

// Store implements ports.Persistence backed by bbolt.
type Store struct {
	db *bolt.DB
}

var (
	_ ports.Persistence = (*Store)(nil)
	_ ports.Provisioner = (*Store)(nil)
)

// NewStore opens (or creates) a bbolt database at the given path and
// provisions both buckets. The 1s timeout surfaces a held file lock
// (another daemon) instead of blocking forever.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	s := &Store{db: db}
	if err := s.EnsureCollections(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// EnsureCollections creates the samples and matches buckets if missing.
func (s *Store) EnsureCollections() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSamples, bucketMatches} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensure buckets: %w", err)
	}
	return nil
}

// PutSample creates or overwrites a sample description.
func (s *Store) PutSample(id string, description map[string]any) error {
	if id == "" {
		return fmt.Errorf("empty sample id")
	}
	data, err := encodeObject(description)
	if err != nil {
		return fmt.Errorf("marshal sample %q: %w", id, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketSamples)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

// ScanSamples returns every sample, ordered by id (bbolt key order).
func (s *Store) ScanSamples() ([]ports.SampleRecord, error) {
	type raw struct {
		id   string
		data []byte
	}
	var rows []raw

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSamples)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			// Copy bytes out of the transaction (bbolt slices are only valid within tx)
			rows = append(rows, raw{id: string(k), data: copyBytes(v)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]ports.SampleRecord, 0, len(rows))
	for _, r := range rows {
		desc, err := decodeObject(r.data)
		if err != nil {
			return nil, fmt.Errorf("unmarshal sample %q: %w", r.id, err)
		}
		out = append(out, ports.SampleRecord{ID: r.id, Description: desc})
	}
	return out, nil
}

// UpdateGroupAppend appends doc to an existing group bucket.
// Returns a wrapped ports.ErrGroupNotFound when the group has no bucket yet.
func (s *Store) UpdateGroupAppend(sampleID string, doc ports.Document) error {
	data, err := encodeObject(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		matches := tx.Bucket(bucketMatches)
		if matches == nil {
			return fmt.Errorf("group %q: %w", sampleID, ports.ErrGroupNotFound)
		}
		g := matches.Bucket([]byte(sampleID))
		if g == nil {
			return fmt.Errorf("group %q: %w", sampleID, ports.ErrGroupNotFound)
		}
		return appendMember(g, data)
	})
}

// CreateGroup creates the group bucket with docs as its first members.
// An existing bucket for the same id is replaced.
func (s *Store) CreateGroup(sampleID string, docs []ports.Document) error {
	if sampleID == "" {
		return fmt.Errorf("empty sample id")
	}
	encoded := make([][]byte, 0, len(docs))
	for i, d := range docs {
		data, err := encodeObject(d)
		if err != nil {
			return fmt.Errorf("marshal document %d: %w", i, err)
		}
		encoded = append(encoded, data)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		matches, err := tx.CreateBucketIfNotExists(bucketMatches)
		if err != nil {
			return err
		}
		if err := matches.DeleteBucket([]byte(sampleID)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		g, err := matches.CreateBucket([]byte(sampleID))
		if err != nil {
			return err
		}
		for _, data := range encoded {
			if err := appendMember(g, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func appendMember(g *bolt.Bucket, data []byte) error {
	seq, err := g.NextSequence()
	if err != nil {
		return err
	}
	return g.Put(memberKey(seq), data)
}

// ScanGroups returns every group ordered by sample id, members in append order.
func (s *Store) ScanGroups() ([]ports.GroupRecord, error) {
	type rawGroup struct {
		id      string
		members [][]byte
	}
	var groups []rawGroup

	err := s.db.View(func(tx *bolt.Tx) error {
		matches := tx.Bucket(bucketMatches)
		if matches == nil {
			return nil
		}
		return matches.ForEachBucket(func(k []byte) error {
			rg := rawGroup{id: string(k)}
			c := matches.Bucket(k).Cursor()
			for mk, v := c.First(); mk != nil; mk, v = c.Next() {
				if _, err := decodeMemberKey(mk); err != nil {
					return fmt.Errorf("group %q: %w", rg.id, err)
				}
				rg.members = append(rg.members, copyBytes(v))
			}
			groups = append(groups, rg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]ports.GroupRecord, 0, len(groups))
	for _, rg := range groups {
		docs := make([]ports.Document, 0, len(rg.members))
		for i, data := range rg.members {
			d, err := decodeObject(data)
			if err != nil {
				return nil, fmt.Errorf("unmarshal group %q member %d: %w", rg.id, i, err)
			}
			docs = append(docs, d)
		}
		out = append(out, ports.GroupRecord{SampleID: rg.id, Documents: docs})
	}
	return out, nil
}
