package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockQueries implements socket.AppQueries for testing.
type mockQueries struct {
	samples  []ports.SampleRecord
	groups   []ports.GroupRecord
	ingested []ports.BatchRecord
}

func (m *mockQueries) Ingest(records []ports.BatchRecord) ports.BatchResult {
	m.ingested = append(m.ingested, records...)
	res := ports.BatchResult{BatchID: "batch-1", Total: len(records)}
	for _, r := range records {
		o := ports.RecordOutcome{ID: r.ID, Status: ports.StatusOK}
		if !strings.HasPrefix(strings.TrimSpace(r.Body), "{") {
			o.Status = ports.StatusParseError
			o.Error = "payload is not a JSON object"
			res.Failed++
		} else {
			o.Direct = []string{"s1"}
			res.Succeeded++
		}
		res.Records = append(res.Records, o)
	}
	return res
}

func (m *mockQueries) AddSample(id string, description map[string]any) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("invalid sample: empty id")
	}
	for i, s := range m.samples {
		if s.ID == id {
			m.samples[i].Description = description
			return true, nil
		}
	}
	m.samples = append(m.samples, ports.SampleRecord{ID: id, Description: description})
	return false, nil
}

func (m *mockQueries) SampleList() []ports.SampleRecord { return m.samples }

func (m *mockQueries) GroupList(sampleID string) ([]ports.GroupRecord, error) {
	if sampleID == "" {
		return m.groups, nil
	}
	for _, g := range m.groups {
		if g.SampleID == sampleID {
			return []ports.GroupRecord{g}, nil
		}
	}
	return nil, fmt.Errorf("no match group for sample %q", sampleID)
}

func (m *mockQueries) StatsSnapshot() socket.StatsResult {
	return socket.StatsResult{
		Samples:       len(m.samples),
		Documents:     3,
		Groups:        len(m.groups),
		Members:       2,
		StorageDriver: "bbolt",
	}
}

func setupTestServer(t *testing.T) (*httptest.Server, *mockQueries) {
	t.Helper()
	queries := &mockQueries{
		samples: []ports.SampleRecord{{ID: "s1", Description: map[string]any{"email": "a@example.com"}}},
		groups: []ports.GroupRecord{
			{SampleID: "s1", Documents: []ports.Document{{"email": "a@example.com"}, {"phone": "555"}}},
		},
	}
	srv := NewServer(queries, "")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, queries
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBatchEndpoint_AllSucceed(t *testing.T) {
	ts, q := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/batch", `{"Records": [
		{"messageId": "m1", "body": "{\"email\": \"a@example.com\"}"},
		{"messageId": "m2", "body": "{\"phone\": \"555\"}"}
	]}`)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var result BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, msgBatchOK, result.Body.Message)
	require.NotNil(t, result.Body.Batch)
	assert.Equal(t, 2, result.Body.Batch.Succeeded)

	require.Len(t, q.ingested, 2)
	assert.Equal(t, "m1", q.ingested[0].ID)
	assert.Equal(t, `{"email": "a@example.com"}`, q.ingested[0].Body)
}

func TestBatchEndpoint_PartialFailureIdentifiesRecords(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/batch", `{"Records": [
		{"messageId": "m1", "body": "{\"k\": 1}"},
		{"messageId": "m2", "body": "[1, 2]"},
		{"messageId": "m3", "body": "{\"k\": 2}"}
	]}`)

	assert.Equal(t, 500, resp.StatusCode)

	var result BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 500, result.StatusCode)
	assert.Equal(t, msgBatchFailed, result.Body.Message)
	assert.Contains(t, result.Body.Error, "1 of 3")

	batch := result.Body.Batch
	require.NotNil(t, batch)
	require.Len(t, batch.Records, 3)
	assert.Equal(t, ports.StatusOK, batch.Records[0].Status)
	assert.Equal(t, ports.StatusParseError, batch.Records[1].Status)
	assert.Equal(t, ports.StatusOK, batch.Records[2].Status, "later records still processed")
}

func TestBatchEndpoint_MalformedEvent(t *testing.T) {
	ts, q := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/batch", `{"Records": not-json`)
	assert.Equal(t, 400, resp.StatusCode)

	var result BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 400, result.StatusCode)
	assert.NotEmpty(t, result.Body.Error)
	assert.Empty(t, q.ingested)
}

func TestBatchEndpoint_RejectsGet(t *testing.T) {
	ts, _ := setupTestServer(t)
	resp, err := http.Get(ts.URL + "/api/batch")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSamplesEndpoints(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp := postJSON(t, ts.URL+"/api/samples", `{"sample_id": "s2", "description": {"phone": "555"}}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/samples", `{"sample_id": "s2", "description": {"phone": "556"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var added socket.AddSampleResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&added))
	assert.True(t, added.Replaced)

	resp = postJSON(t, ts.URL+"/api/samples", `{"description": {"phone": "556"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	get, err := http.Get(ts.URL + "/api/samples")
	require.NoError(t, err)
	defer get.Body.Close()
	var list socket.SamplesResult
	require.NoError(t, json.NewDecoder(get.Body).Decode(&list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "556", list.Samples[1].Description["phone"])
}

func TestGroupsEndpoints(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/groups")
	require.NoError(t, err)
	defer resp.Body.Close()
	var all socket.GroupsResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Equal(t, 1, all.Count)

	one, err := http.Get(ts.URL + "/api/groups/s1")
	require.NoError(t, err)
	defer one.Body.Close()
	assert.Equal(t, 200, one.StatusCode)
	var g ports.GroupRecord
	require.NoError(t, json.NewDecoder(one.Body).Decode(&g))
	assert.Equal(t, "s1", g.SampleID)
	assert.Len(t, g.Documents, 2)

	missing, err := http.Get(ts.URL + "/api/groups/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, 404, missing.StatusCode)
}

func TestHealthAndStatsEndpoints(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	var health socket.HealthResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 3, health.Documents)

	stats, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer stats.Body.Close()
	var st socket.StatsResult
	require.NoError(t, json.NewDecoder(stats.Body).Decode(&st))
	assert.Equal(t, "bbolt", st.StorageDriver)
	assert.Equal(t, 2, st.Members)
}

func TestNilQueries(t *testing.T) {
	ts := httptest.NewServer(NewServer(nil, "").Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	stats, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer stats.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, stats.StatusCode)
}

func TestStartStop_WritesPortFile(t *testing.T) {
	portFile := filepath.Join(t.TempDir(), "http.port")
	srv := NewServer(&mockQueries{}, portFile)
	require.NoError(t, srv.Start(0))

	data, err := os.ReadFile(portFile)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d", srv.Port()), string(data))

	resp, err := http.Get(srv.URL() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	srv.Stop()
	srv.Stop()
	_, err = os.Stat(portFile)
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultPort(t *testing.T) {
	port := DefaultPort("/home/user/project")
	assert.GreaterOrEqual(t, port, 19000)
	assert.Less(t, port, 20000)

	// Same path should give same port
	assert.Equal(t, port, DefaultPort("/home/user/project"))

	port3 := DefaultPort("/home/user/other")
	assert.GreaterOrEqual(t, port3, 19000)
	assert.Less(t, port3, 20000)
}

func TestNewBatchResponse(t *testing.T) {
	ok := NewBatchResponse(ports.BatchResult{BatchID: "b", Total: 1, Succeeded: 1})
	assert.Equal(t, http.StatusOK, ok.StatusCode)
	assert.Equal(t, msgBatchOK, ok.Body.Message)
	assert.Empty(t, ok.Body.Error)
	require.NotNil(t, ok.Body.Batch)
	assert.Equal(t, "b", ok.Body.Batch.BatchID)

	bad := NewBatchResponse(ports.BatchResult{Total: 2, Succeeded: 1, Failed: 1})
	assert.Equal(t, http.StatusInternalServerError, bad.StatusCode)
	assert.Equal(t, msgBatchFailed, bad.Body.Message)
	assert.Equal(t, "1 of 2 records failed", bad.Body.Error)
}
