package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/corey/doclink/internal/domain/linker"
	"github.com/corey/doclink/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func group(id string, n int) ports.GroupRecord {
	docs := make([]ports.Document, n)
	for i := range docs {
		docs[i] = ports.Document{"n": float64(i)}
	}
	return ports.GroupRecord{SampleID: id, Documents: docs}
}

func TestGenerate_Basic(t *testing.T) {
	stats := linker.Stats{Samples: 3, Documents: 7, Groups: 2, Members: 5}
	groups := []ports.GroupRecord{group("s1", 2), group("s2", 3)}
	c := Counters{Batches: 4, RecordsOK: 6, RecordsFailed: 1}

	data := Generate(stats, groups, c, nil)
	assert.Equal(t, 3, data.Samples)
	assert.Equal(t, 7, data.Documents)
	assert.Equal(t, 2, data.Groups)
	assert.Equal(t, 5, data.Members)
	assert.Equal(t, int64(4), data.Batches)
	assert.Equal(t, int64(6), data.RecordsOK)
	assert.Equal(t, int64(1), data.RecordsFailed)
	assert.Equal(t, []string{"s2", "s1"}, data.TopGroups)
	assert.Nil(t, data.LastBatch)
	assert.False(t, data.UpdatedAt.IsZero())
}

func TestGenerate_WithLastBatch(t *testing.T) {
	last := &ports.BatchResult{BatchID: "b-1", Total: 3, Succeeded: 2, Failed: 1}

	data := Generate(linker.Stats{}, nil, Counters{}, last)
	require.NotNil(t, data.LastBatch)
	assert.Equal(t, "b-1", data.LastBatch.ID)
	assert.Equal(t, 3, data.LastBatch.Total)
	assert.Equal(t, 2, data.LastBatch.Succeeded)
	assert.Equal(t, 1, data.LastBatch.Failed)
}

func TestGenerate_EmptyState(t *testing.T) {
	data := Generate(linker.Stats{}, nil, Counters{}, nil)
	assert.Equal(t, 0, data.Samples)
	assert.Empty(t, data.TopGroups)
}

func TestGenerate_TopGroupsLimitedTo3(t *testing.T) {
	groups := []ports.GroupRecord{
		group("a", 10), group("b", 9), group("c", 8), group("d", 7), group("e", 6),
	}

	data := Generate(linker.Stats{}, groups, Counters{}, nil)
	assert.Equal(t, []string{"a", "b", "c"}, data.TopGroups)
}

func TestGenerate_SkipsEmptyGroups(t *testing.T) {
	groups := []ports.GroupRecord{group("empty", 0), group("one", 1)}

	data := Generate(linker.Stats{}, groups, Counters{}, nil)
	assert.Equal(t, []string{"one"}, data.TopGroups)
}

func TestTopGroups_TiesBreakByID(t *testing.T) {
	top := topGroups([]ports.GroupRecord{group("z", 2), group("a", 2), group("m", 5)}, 3)
	assert.Equal(t, []string{"m", "a", "z"}, top)
}

func TestWriteJSON_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), StatusFile)

	data := &StatusData{Samples: 2, Documents: 5, TopGroups: []string{"s1"}}
	require.NoError(t, WriteJSON(path, data))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded StatusData
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, 2, loaded.Samples)
	assert.Equal(t, 5, loaded.Documents)
	assert.Equal(t, []string{"s1"}, loaded.TopGroups)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteJSON_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), StatusFile)

	require.NoError(t, WriteJSON(path, &StatusData{Batches: 1}))
	require.NoError(t, WriteJSON(path, &StatusData{Batches: 2}))

	loaded, err := ReadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Batches)
}

func TestReadJSON_Missing(t *testing.T) {
	_, err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, os.IsNotExist(err))
}
