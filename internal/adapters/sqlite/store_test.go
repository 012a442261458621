package sqlite

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/doclink/internal/ports"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doclink.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestStore_SchemaIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.EnsureCollections())
	require.NoError(t, store.EnsureCollections())

	var n int
	err := store.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name IN ('samples', 'match_groups', 'match_members')`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_Samples_UpsertAndScan(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.PutSample("b", map[string]any{"k": "v", "n": 7}))
	require.NoError(t, store.PutSample("a", map[string]any{"nested": map[string]any{"x": true}}))
	require.NoError(t, store.PutSample("b", map[string]any{"k": "w"}))

	recs, err := store.ScanSamples()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ports.SampleRecord{ID: "a", Description: map[string]any{"nested": map[string]any{"x": true}}}, recs[0])
	assert.Equal(t, ports.SampleRecord{ID: "b", Description: map[string]any{"k": "w"}}, recs[1])
}

func TestStore_AppendWithoutGroup(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.UpdateGroupAppend("s1", ports.Document{"a": 1.0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrGroupNotFound))

	groups, err := store.ScanGroups()
	require.NoError(t, err)
	assert.Empty(t, groups, "failed append must not create anything")
}

func TestStore_CreateThenAppend(t *testing.T) {
	store, _ := newTestStore(t)

	one := json.Number("1")
	require.NoError(t, store.CreateGroup("s2", []ports.Document{{"z": one}}))
	require.NoError(t, store.CreateGroup("s1", []ports.Document{{"k1": json.Number("1234")}}))
	require.NoError(t, store.UpdateGroupAppend("s1", ports.Document{"k2": "abc"}))
	require.NoError(t, store.UpdateGroupAppend("s2", ports.Document{"y": []any{one, "two"}}))

	groups, err := store.ScanGroups()
	require.NoError(t, err)
	require.Len(t, groups, 2)

	// Creation order, not id order.
	assert.Equal(t, "s2", groups[0].SampleID)
	assert.Equal(t, []ports.Document{{"z": one}, {"y": []any{one, "two"}}}, groups[0].Documents)
	assert.Equal(t, "s1", groups[1].SampleID)
	assert.Equal(t, []ports.Document{{"k1": json.Number("1234")}, {"k2": "abc"}}, groups[1].Documents)
}

func TestStore_CreateGroup_ReplacesMembersKeepsPosition(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.CreateGroup("s1", []ports.Document{{"a": 1.0}, {"b": 2.0}}))
	require.NoError(t, store.CreateGroup("s2", []ports.Document{{"c": 3.0}}))
	require.NoError(t, store.CreateGroup("s1", []ports.Document{{"d": "new"}}))

	groups, err := store.ScanGroups()
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "s1", groups[0].SampleID)
	assert.Equal(t, []ports.Document{{"d": "new"}}, groups[0].Documents)
}

func TestStore_EmptyGroupIsListed(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.CreateGroup("s1", nil))

	groups, err := store.ScanGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Empty(t, groups[0].Documents)
}

func TestStore_SurvivesReopen(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.PutSample("s1", map[string]any{"k": "v"}))
	require.NoError(t, store.CreateGroup("s1", []ports.Document{{"k": "v"}}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.ScanSamples()
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, reopened.UpdateGroupAppend("s1", ports.Document{"x": "v"}))
	groups, err := reopened.ScanGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Documents, 2)
}

func TestStore_InMemory(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutSample("s1", map[string]any{"k": "v"}))
	recs, err := store.ScanSamples()
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
