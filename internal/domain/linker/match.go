package linker

import (
	"sort"

	"github.com/corey/doclink/internal/logger"
)

// DirectMatch returns the ids of every sample that shares a value with the
// flattened document, in registration order, or nil when none match.
//
// Document leaves are compared against the sample's top-level description
// values, which are NOT flattened. A sample value that is itself a map can
// only equal a document leaf that is the same map, which flattening never
// produces, so nested sample fields never match directly.
func (e *Engine) DirectMatch(flat map[string]any) []string {
	hits := make(map[string]struct{})
	for _, v := range flat {
		for id := range e.sampleIndex[valueKey(v)] {
			hits[id] = struct{}{}
		}
	}
	if len(hits) == 0 {
		return nil
	}

	matched := make([]string, 0, len(hits))
	for _, id := range e.sampleOrder {
		if _, ok := hits[id]; ok {
			matched = append(matched, id)
		}
	}
	return matched
}

// IndirectMatch rescans the full history against every group and pulls in
// documents that share any top-level value with an existing member,
// regardless of field name.
//
// Group membership is snapshotted before the scan and additions are merged
// afterwards, so a document pulled in during this pass does not act as a
// link source until the next rescan. Candidates come from the history value
// index; the result is the same as comparing every history document with
// every snapshotted member.
func (e *Engine) IndirectMatch() ([]Membership, error) {
	type pending struct {
		g       *group
		entries []*docEntry
	}

	var plan []pending
	for _, id := range e.groupOrder {
		g := e.groups[id]
		members := g.members[:len(g.members):len(g.members)]

		cand := make(map[int]struct{})
		for _, m := range members {
			for _, vk := range m.values {
				for _, pos := range e.historyIndex[vk] {
					d := e.history[pos]
					if d.key == m.key || g.has(d.key) {
						continue
					}
					cand[pos] = struct{}{}
				}
			}
		}
		if len(cand) == 0 {
			continue
		}

		positions := make([]int, 0, len(cand))
		for pos := range cand {
			positions = append(positions, pos)
		}
		sort.Ints(positions)

		seen := make(map[string]struct{}, len(positions))
		p := pending{g: g}
		for _, pos := range positions {
			d := e.history[pos]
			if _, dup := seen[d.key]; dup {
				continue
			}
			seen[d.key] = struct{}{}
			p.entries = append(p.entries, d)
		}
		plan = append(plan, p)
	}

	var added []Membership
	for _, p := range plan {
		for _, d := range p.entries {
			out, err := e.storeEntry(p.g.id, d)
			if err != nil {
				return added, err
			}
			if out == Inserted {
				added = append(added, Membership{SampleID: p.g.id, Document: d.doc, Via: ViaIndirect})
			}
		}
	}
	if len(added) > 0 {
		e.log.Debugw("indirect rescan", logger.FieldCount, len(added))
	}
	return added, nil
}
