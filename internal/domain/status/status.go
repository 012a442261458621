// Package status generates the doclink status snapshot.
//
// The daemon rewrites a JSON status file after every batch and sample change.
// `doclink health` reads it when the daemon is not reachable, so the last
// known counters survive a stopped daemon.
package status

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/corey/doclink/internal/domain/linker"
	"github.com/corey/doclink/internal/ports"
)

// StatusFile is the filename within the .doclink directory where status JSON is written.
const StatusFile = "status.json"

// TopGroupCount is how many of the largest groups the snapshot lists.
const TopGroupCount = 3

// StatusData is the JSON payload the daemon writes.
type StatusData struct {
	Samples       int        `json:"samples"`
	Documents     int        `json:"documents"`
	Groups        int        `json:"groups"`
	Members       int        `json:"members"`
	Batches       int64      `json:"batches"`
	RecordsOK     int64      `json:"records_ok"`
	RecordsFailed int64      `json:"records_failed"`
	TopGroups     []string   `json:"top_groups"`
	LastBatch     *BatchInfo `json:"last_batch,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BatchInfo summarizes the most recent batch.
type BatchInfo struct {
	ID        string `json:"id"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// Counters are the daemon's cumulative batch counters.
type Counters struct {
	Batches       int64
	RecordsOK     int64
	RecordsFailed int64
}

// Generate produces a StatusData from engine state and daemon counters.
// last may be nil before the first batch.
func Generate(stats linker.Stats, groups []ports.GroupRecord, c Counters, last *ports.BatchResult) *StatusData {
	sd := &StatusData{
		Samples:       stats.Samples,
		Documents:     stats.Documents,
		Groups:        stats.Groups,
		Members:       stats.Members,
		Batches:       c.Batches,
		RecordsOK:     c.RecordsOK,
		RecordsFailed: c.RecordsFailed,
		TopGroups:     topGroups(groups, TopGroupCount),
		UpdatedAt:     time.Now().UTC(),
	}
	if last != nil {
		sd.LastBatch = &BatchInfo{
			ID:        last.BatchID,
			Total:     last.Total,
			Succeeded: last.Succeeded,
			Failed:    last.Failed,
		}
	}
	return sd
}

// WriteJSON writes the status data as JSON to a file. The file is replaced
// atomically.
func WriteJSON(path string, data *StatusData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadJSON loads a status file written by WriteJSON.
func ReadJSON(path string) (*StatusData, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sd StatusData
	if err := json.Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

// topGroups returns the top N sample ids sorted by member count descending.
func topGroups(groups []ports.GroupRecord, n int) []string {
	if len(groups) == 0 {
		return nil
	}

	type gs struct {
		id   string
		size int
	}

	var sized []gs
	for _, g := range groups {
		if len(g.Documents) > 0 {
			sized = append(sized, gs{g.SampleID, len(g.Documents)})
		}
	}

	sort.Slice(sized, func(i, j int) bool {
		if sized[i].size != sized[j].size {
			return sized[i].size > sized[j].size
		}
		return sized[i].id < sized[j].id
	})

	limit := n
	if limit > len(sized) {
		limit = len(sized)
	}

	result := make([]string, limit)
	for i := 0; i < limit; i++ {
		result[i] = sized[i].id
	}
	return result
}
