package linker

import (
	"github.com/cockroachdb/errors"

	"github.com/corey/doclink/internal/logger"
	"github.com/corey/doclink/internal/ports"
)

// StoreOutcome is the result of StoreMatch.
type StoreOutcome int

const (
	Inserted StoreOutcome = iota
	Duplicate
)

func (o StoreOutcome) String() string {
	if o == Duplicate {
		return "duplicate"
	}
	return "inserted"
}

// StoreMatch records doc as a member of the sample's group unless a
// value-equal document is already there. New memberships are persisted with
// an append-else-create: UpdateGroupAppend first, CreateGroup when the store
// reports ports.ErrGroupNotFound. Any other store error is returned marked
// with ErrPersistence and memory is left unchanged.
func (e *Engine) StoreMatch(sampleID string, doc ports.Document) (StoreOutcome, error) {
	return e.storeEntry(sampleID, newDocEntry(doc))
}

func (e *Engine) storeEntry(sampleID string, d *docEntry) (StoreOutcome, error) {
	g := e.groups[sampleID]
	if g != nil && g.has(d.key) {
		return Duplicate, nil
	}

	err := e.store.UpdateGroupAppend(sampleID, d.doc)
	if errors.Is(err, ports.ErrGroupNotFound) {
		err = e.store.CreateGroup(sampleID, []ports.Document{d.doc})
		if err != nil {
			return Inserted, persistenceError(err, "create group", sampleID)
		}
	} else if err != nil {
		return Inserted, persistenceError(err, "append to group", sampleID)
	}

	if g == nil {
		g = &group{id: sampleID, keys: make(map[string]struct{})}
		e.groups[sampleID] = g
		e.groupOrder = append(e.groupOrder, sampleID)
	}
	g.members = append(g.members, d)
	g.keys[d.key] = struct{}{}

	e.log.Debugw("membership stored", logger.FieldSampleID, sampleID, "members", len(g.members))
	return Inserted, nil
}
