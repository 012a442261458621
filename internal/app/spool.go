package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	fsw "github.com/corey/doclink/internal/adapters/fsnotify"
	"github.com/corey/doclink/internal/logger"
	"github.com/corey/doclink/internal/ports"
)

// IngestFunc processes one batch of records.
type IngestFunc func(records []ports.BatchRecord) ports.BatchResult

// Spool consumes record files dropped into the spool directory.
//
// A *.json file is one record whose body is the whole file. A *.jsonl file is
// a batch with one record per non-blank line. After processing, the file is
// moved to done/; records that failed are appended to failed/<name>.jsonl
// together with their status and error so they can be resubmitted.
type Spool struct {
	dir    string
	done   string
	failed string
	ingest IngestFunc
	log    *zap.SugaredLogger

	mu    sync.Mutex // one file at a time
	files atomic.Int64
}

// FailedRecord is one line of a dead-letter file.
type FailedRecord struct {
	ID     string             `json:"id"`
	Body   string             `json:"body"`
	Status ports.RecordStatus `json:"status"`
	Error  string             `json:"error"`
	Batch  string             `json:"batch_id"`
}

// NewSpool returns a consumer for the spool paths in p.
func NewSpool(p *Paths, ingest IngestFunc) *Spool {
	return &Spool{
		dir:    p.SpoolDir,
		done:   p.SpoolDone,
		failed: p.SpoolFailed,
		ingest: ingest,
		log:    logger.ComponentLogger("spool"),
	}
}

// Dir returns the watched directory.
func (s *Spool) Dir() string { return s.dir }

// Processed returns how many files have been consumed.
func (s *Spool) Processed() int64 { return s.files.Load() }

// Drain processes every record file already in the spool directory, oldest
// name first. Returns the number of files consumed.
func (s *Spool) Drain() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read spool dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !fsw.IsSpoolFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	n := 0
	for _, name := range names {
		ok, err := s.consume(filepath.Join(s.dir, name))
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// OnFile is the watcher callback. Errors are logged; the file stays in place
// and is retried on the next Drain.
func (s *Spool) OnFile(path string) {
	if _, err := s.consume(path); err != nil {
		s.log.Errorw("spool file failed", logger.FieldPath, path, logger.FieldError, err)
	}
}

// consume processes one file. Returns false when the file was already gone.
func (s *Spool) consume(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	name := filepath.Base(path)
	records := decodeSpoolFile(name, data)
	res := s.ingest(records)

	if res.Failed > 0 {
		if err := s.deadLetter(name, records, res); err != nil {
			return false, err
		}
	}
	if err := s.ack(path, name); err != nil {
		return false, err
	}
	s.files.Add(1)

	s.log.Infow("spool file consumed",
		logger.FieldPath, name,
		logger.FieldBatchID, res.BatchID,
		logger.FieldCount, res.Total,
		logger.FieldFailed, res.Failed)
	return true, nil
}

// decodeSpoolFile splits a spool file into records. Record ids are derived
// from the file name so failures point back at their source. Lines are split
// from the bytes already read, so no line is too long to become a record.
func decodeSpoolFile(name string, data []byte) []ports.BatchRecord {
	if filepath.Ext(name) != ".jsonl" {
		return []ports.BatchRecord{{ID: name, Body: string(data)}}
	}

	var records []ports.BatchRecord
	for line, raw := range bytes.Split(data, []byte{'\n'}) {
		text := bytes.TrimSpace(raw)
		if len(text) == 0 {
			continue
		}
		records = append(records, ports.BatchRecord{
			ID:   fmt.Sprintf("%s:%d", name, line+1),
			Body: string(text),
		})
	}
	return records
}

// deadLetter appends the failed records of res to failed/<stem>.jsonl.
func (s *Spool) deadLetter(name string, records []ports.BatchRecord, res ports.BatchResult) error {
	bodies := make(map[string]string, len(records))
	for _, r := range records {
		bodies[r.ID] = r.Body
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	path := filepath.Join(s.failed, stem+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open dead-letter file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, o := range res.Records {
		if o.Status == ports.StatusOK {
			continue
		}
		if err := enc.Encode(FailedRecord{
			ID:     o.ID,
			Body:   bodies[o.ID],
			Status: o.Status,
			Error:  o.Error,
			Batch:  res.BatchID,
		}); err != nil {
			return fmt.Errorf("write dead-letter record: %w", err)
		}
	}
	return nil
}

// ack moves a consumed file into done/. An existing file of the same name is
// kept; the new one gets a timestamp suffix.
func (s *Spool) ack(path, name string) error {
	dst := filepath.Join(s.done, name)
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(name)
		dst = filepath.Join(s.done, fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), time.Now().UnixNano(), ext))
	}
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("move to done: %w", err)
	}
	return nil
}
