package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/doclink/internal/ports"
)

func TestStore_SamplesRoundTrip(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.PutSample("b", map[string]any{"k": "v"}))
	require.NoError(t, s.PutSample("a", map[string]any{"k": "w"}))
	require.NoError(t, s.PutSample("b", map[string]any{"k": "x"}))

	recs, err := s.ScanSamples()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
	assert.Equal(t, "x", recs[1].Description["k"])
}

func TestStore_AppendRequiresGroup(t *testing.T) {
	s := NewStore()
	err := s.UpdateGroupAppend("s1", ports.Document{"a": 1.0})
	assert.True(t, errors.Is(err, ports.ErrGroupNotFound))

	require.NoError(t, s.CreateGroup("s1", []ports.Document{{"a": 1.0}}))
	require.NoError(t, s.UpdateGroupAppend("s1", ports.Document{"b": 2.0}))

	groups, err := s.ScanGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []ports.Document{{"a": 1.0}, {"b": 2.0}}, groups[0].Documents)
}

func TestStore_ClosedFails(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Close())
	assert.Error(t, s.PutSample("a", map[string]any{}))
	_, err := s.ScanSamples()
	assert.Error(t, err)
}
