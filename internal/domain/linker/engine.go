// Package linker implements document-to-sample matching and transitive
// grouping of documents that share attribute values.
//
// The Engine owns three collections: the sample registry, the append-only
// document history, and the match groups keyed by sample id. Every mutation
// goes through the ports.Persistence collaborator before it is committed in
// memory, so a successful call always leaves memory and storage in step.
//
// The Engine performs no locking. Callers serialize AddSample, AddDocument and
// the read views.
package linker

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/corey/doclink/internal/logger"
	"github.com/corey/doclink/internal/ports"
)

// Via records how a document entered a group.
type Via string

const (
	ViaDirect   Via = "direct"
	ViaIndirect Via = "indirect"
)

// Membership is one document added to one match group.
type Membership struct {
	SampleID string         `json:"sample_id"`
	Document ports.Document `json:"document"`
	Via      Via            `json:"via"`
}

// AddResult describes what a single AddDocument call changed.
type AddResult struct {
	Direct   []string     `json:"direct,omitempty"`   // samples matched directly
	Inserted []Membership `json:"inserted,omitempty"` // new group members, direct first
}

// Stats is a point-in-time summary of engine state.
type Stats struct {
	Samples   int `json:"samples"`
	Documents int `json:"documents"`
	Groups    int `json:"groups"`
	Members   int `json:"members"`
}

// docEntry is a document plus its precomputed keys.
type docEntry struct {
	doc    ports.Document
	key    string   // canonical encoding of the whole document
	values []string // distinct canonical keys of top-level values
}

func newDocEntry(doc ports.Document) *docEntry {
	return &docEntry{
		doc:    doc,
		key:    valueKey(doc),
		values: distinctValueKeys(doc),
	}
}

type sampleEntry struct {
	record ports.SampleRecord
	values []string
}

type group struct {
	id      string
	members []*docEntry
	keys    map[string]struct{}
}

func (g *group) has(key string) bool {
	_, ok := g.keys[key]
	return ok
}

// Engine holds the sample registry, document history and match groups.
type Engine struct {
	store ports.Persistence
	log   *zap.SugaredLogger

	sampleOrder []string
	samples     map[string]*sampleEntry
	sampleIndex map[string]map[string]struct{} // value key -> sample ids

	history      []*docEntry
	historyIndex map[string][]int // value key -> ascending history positions

	groupOrder []string
	groups     map[string]*group
}

// NewEngine creates an empty engine backed by store.
func NewEngine(store ports.Persistence) *Engine {
	return &Engine{
		store:        store,
		log:          logger.ComponentLogger("linker"),
		samples:      make(map[string]*sampleEntry),
		sampleIndex:  make(map[string]map[string]struct{}),
		historyIndex: make(map[string][]int),
		groups:       make(map[string]*group),
	}
}

// Hydrate loads every stored sample into the registry. Nothing is written
// back. Returns the number of samples loaded.
func (e *Engine) Hydrate() (int, error) {
	recs, err := e.store.ScanSamples()
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "scan samples"), ErrPersistence)
	}
	for _, rec := range recs {
		e.registerSample(rec.ID, rec.Description)
	}
	e.log.Debugw("registry hydrated", logger.FieldCount, len(recs))
	return len(recs), nil
}

// AddSample persists and registers a sample. Re-adding an existing id
// overwrites its description and keeps its registration position.
func (e *Engine) AddSample(id string, description map[string]any) error {
	if id == "" {
		return errors.Mark(errors.New("empty sample id"), ErrInvalidSample)
	}
	if description == nil {
		return errors.Mark(errors.Newf("sample %q has no description", id), ErrInvalidSample)
	}
	if err := e.store.PutSample(id, description); err != nil {
		return persistenceError(err, "put sample", id)
	}
	e.registerSample(id, description)
	e.log.Debugw("sample added", logger.FieldSampleID, id)
	return nil
}

func (e *Engine) registerSample(id string, description map[string]any) {
	desc := make(map[string]any, len(description))
	for k, v := range description {
		desc[k] = v
	}

	if old, ok := e.samples[id]; ok {
		for _, vk := range old.values {
			if ids := e.sampleIndex[vk]; ids != nil {
				delete(ids, id)
				if len(ids) == 0 {
					delete(e.sampleIndex, vk)
				}
			}
		}
	} else {
		e.sampleOrder = append(e.sampleOrder, id)
	}

	entry := &sampleEntry{
		record: ports.SampleRecord{ID: id, Description: desc},
		values: distinctValueKeys(desc),
	}
	e.samples[id] = entry
	for _, vk := range entry.values {
		ids := e.sampleIndex[vk]
		if ids == nil {
			ids = make(map[string]struct{})
			e.sampleIndex[vk] = ids
		}
		ids[id] = struct{}{}
	}
}

// AddDocument appends doc to the history, seeds groups from direct matches
// and then rescans the whole history for transitive links.
//
// The history grows even if a later persistence call fails; the error is
// returned and memberships inserted before the failure stay committed.
func (e *Engine) AddDocument(doc ports.Document) (AddResult, error) {
	var res AddResult
	if doc == nil {
		return res, errors.Mark(errors.New("nil document"), ErrParse)
	}

	entry := newDocEntry(doc)
	pos := len(e.history)
	e.history = append(e.history, entry)
	for _, vk := range entry.values {
		e.historyIndex[vk] = append(e.historyIndex[vk], pos)
	}

	res.Direct = e.DirectMatch(Flatten(doc))
	for _, id := range res.Direct {
		out, err := e.storeEntry(id, entry)
		if err != nil {
			return res, err
		}
		if out == Inserted {
			res.Inserted = append(res.Inserted, Membership{SampleID: id, Document: doc, Via: ViaDirect})
		}
	}

	added, err := e.IndirectMatch()
	res.Inserted = append(res.Inserted, added...)
	if err != nil {
		return res, err
	}

	e.log.Debugw("document added",
		"position", pos,
		"direct", len(res.Direct),
		"inserted", len(res.Inserted))
	return res, nil
}

// Samples returns the registry in registration order.
func (e *Engine) Samples() []ports.SampleRecord {
	out := make([]ports.SampleRecord, 0, len(e.sampleOrder))
	for _, id := range e.sampleOrder {
		out = append(out, e.samples[id].record)
	}
	return out
}

// Sample returns a registered sample.
func (e *Engine) Sample(id string) (ports.SampleRecord, bool) {
	s, ok := e.samples[id]
	if !ok {
		return ports.SampleRecord{}, false
	}
	return s.record, true
}

// Groups returns all match groups in creation order. The documents are
// shared with the engine and must be treated as read-only.
func (e *Engine) Groups() []ports.GroupRecord {
	out := make([]ports.GroupRecord, 0, len(e.groupOrder))
	for _, id := range e.groupOrder {
		out = append(out, e.groupRecord(e.groups[id]))
	}
	return out
}

// Group returns one match group.
func (e *Engine) Group(sampleID string) (ports.GroupRecord, bool) {
	g, ok := e.groups[sampleID]
	if !ok {
		return ports.GroupRecord{}, false
	}
	return e.groupRecord(g), true
}

func (e *Engine) groupRecord(g *group) ports.GroupRecord {
	docs := make([]ports.Document, len(g.members))
	for i, m := range g.members {
		docs[i] = m.doc
	}
	return ports.GroupRecord{SampleID: g.id, Documents: docs}
}

// DocumentCount returns the size of the document history.
func (e *Engine) DocumentCount() int {
	return len(e.history)
}

// Stats summarizes the engine state.
func (e *Engine) Stats() Stats {
	members := 0
	for _, g := range e.groups {
		members += len(g.members)
	}
	return Stats{
		Samples:   len(e.samples),
		Documents: len(e.history),
		Groups:    len(e.groups),
		Members:   members,
	}
}
