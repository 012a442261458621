// Package sqlite implements ports.Persistence on SQLite via modernc.org/sqlite
// (pure Go, no cgo). Samples live in one table; match groups are split into a
// group table and a member table so an append is a single INSERT.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/corey/doclink/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	sample_id   TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS match_groups (
	sample_id  TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS match_members (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	sample_id TEXT NOT NULL REFERENCES match_groups(sample_id) ON DELETE CASCADE,
	document  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_match_members_sample ON match_members(sample_id, id);`

// Store implements ports.Persistence backed by a SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

var (
	_ ports.Persistence = (*Store)(nil)
	_ ports.Provisioner = (*Store)(nil)
)

// NewStore opens (or creates) the database at path and provisions the schema.
// Use ":memory:" for a throwaway database.
func NewStore(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: writes are serialized by the caller and an in-memory
	// database is private to its connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.EnsureCollections(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EnsureCollections creates the tables if missing.
func (s *Store) EnsureCollections() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutSample upserts a sample description.
func (s *Store) PutSample(id string, description map[string]any) error {
	if id == "" {
		return fmt.Errorf("empty sample id")
	}
	data, err := marshalObject(description)
	if err != nil {
		return fmt.Errorf("marshal sample %q: %w", id, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO samples (sample_id, description, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(sample_id) DO UPDATE SET
			description = excluded.description,
			updated_at = excluded.updated_at`,
		id, data, now())
	if err != nil {
		return fmt.Errorf("put sample %q: %w", id, err)
	}
	return nil
}

// ScanSamples returns every sample ordered by id.
func (s *Store) ScanSamples() ([]ports.SampleRecord, error) {
	rows, err := s.db.Query("SELECT sample_id, description FROM samples ORDER BY sample_id")
	if err != nil {
		return nil, fmt.Errorf("scan samples: %w", err)
	}
	defer rows.Close()

	var out []ports.SampleRecord
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}
		desc, err := unmarshalObject(data)
		if err != nil {
			return nil, fmt.Errorf("unmarshal sample %q: %w", id, err)
		}
		out = append(out, ports.SampleRecord{ID: id, Description: desc})
	}
	return out, rows.Err()
}

// UpdateGroupAppend inserts doc as the next member of an existing group.
// Returns a wrapped ports.ErrGroupNotFound when the group row is absent.
func (s *Store) UpdateGroupAppend(sampleID string, doc ports.Document) error {
	data, err := marshalObject(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRow("SELECT COUNT(*) FROM match_groups WHERE sample_id = ?", sampleID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup group %q: %w", sampleID, err)
	}
	if exists == 0 {
		return fmt.Errorf("group %q: %w", sampleID, ports.ErrGroupNotFound)
	}
	if _, err := tx.Exec("INSERT INTO match_members (sample_id, document) VALUES (?, ?)", sampleID, data); err != nil {
		return fmt.Errorf("append to group %q: %w", sampleID, err)
	}
	return tx.Commit()
}

// CreateGroup writes the group row and its initial members. Existing members
// for the same id are replaced; the group keeps its original position.
func (s *Store) CreateGroup(sampleID string, docs []ports.Document) error {
	if sampleID == "" {
		return fmt.Errorf("empty sample id")
	}
	encoded := make([]string, 0, len(docs))
	for i, d := range docs {
		data, err := marshalObject(d)
		if err != nil {
			return fmt.Errorf("marshal document %d: %w", i, err)
		}
		encoded = append(encoded, data)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO match_groups (sample_id, created_at) VALUES (?, ?)
		ON CONFLICT(sample_id) DO NOTHING`, sampleID, now()); err != nil {
		return fmt.Errorf("create group %q: %w", sampleID, err)
	}
	if _, err := tx.Exec("DELETE FROM match_members WHERE sample_id = ?", sampleID); err != nil {
		return fmt.Errorf("reset group %q: %w", sampleID, err)
	}
	stmt, err := tx.Prepare("INSERT INTO match_members (sample_id, document) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, data := range encoded {
		if _, err := stmt.Exec(sampleID, data); err != nil {
			return fmt.Errorf("insert member into %q: %w", sampleID, err)
		}
	}
	return tx.Commit()
}

// ScanGroups returns groups in creation order with members in append order.
func (s *Store) ScanGroups() ([]ports.GroupRecord, error) {
	rows, err := s.db.Query(`
		SELECT g.sample_id, m.document
		FROM match_groups g
		LEFT JOIN match_members m ON m.sample_id = g.sample_id
		ORDER BY g.rowid, m.id`)
	if err != nil {
		return nil, fmt.Errorf("scan groups: %w", err)
	}
	defer rows.Close()

	var out []ports.GroupRecord
	for rows.Next() {
		var id string
		var data sql.NullString
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].SampleID != id {
			out = append(out, ports.GroupRecord{SampleID: id, Documents: []ports.Document{}})
		}
		if !data.Valid {
			continue
		}
		doc, err := unmarshalObject(data.String)
		if err != nil {
			return nil, fmt.Errorf("unmarshal member of %q: %w", id, err)
		}
		last := &out[len(out)-1]
		last.Documents = append(last.Documents, doc)
	}
	return out, rows.Err()
}

func marshalObject(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalObject(data string) (map[string]any, error) {
	var out map[string]any
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
