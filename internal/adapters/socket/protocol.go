// Package socket implements a JSON-over-Unix-socket protocol for the doclink daemon.
// The protocol uses newline-delimited JSON: each message is one JSON object + \n.
package socket

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/corey/doclink/internal/ports"
)

// SocketPath returns the Unix socket path for a given project root.
// Format: /tmp/doclink-{first12hex}.sock
func SocketPath(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	h := sha256.Sum256([]byte(abs))
	return fmt.Sprintf("/tmp/doclink-%x.sock", h[:6])
}

// maxMessage bounds one NDJSON line. Ingest batches carry whole documents.
const maxMessage = 16 * 1024 * 1024

// Method names for the protocol.
const (
	MethodIngest    = "ingest"
	MethodAddSample = "add_sample"
	MethodSamples   = "samples"
	MethodGroups    = "groups"
	MethodHealth    = "health"
	MethodStats     = "stats"
	MethodShutdown  = "shutdown"
)

// Request is the wire format for client-to-server messages.
type Request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// Response is the wire format for server-to-client messages.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// IngestParams is the params for an ingest request.
type IngestParams struct {
	Records []ports.BatchRecord `json:"records"`
}

// AddSampleParams is the params for an add_sample request.
type AddSampleParams struct {
	ID          string         `json:"sample_id"`
	Description map[string]any `json:"description"`
}

// AddSampleResult is the result of an add_sample request.
type AddSampleResult struct {
	ID       string `json:"sample_id"`
	Replaced bool   `json:"replaced"`
}

// GroupsParams is the params for a groups request. An empty SampleID lists
// every group.
type GroupsParams struct {
	SampleID string `json:"sample_id,omitempty"`
}

// SamplesResult is the result of a samples request.
type SamplesResult struct {
	Samples []ports.SampleRecord `json:"samples"`
	Count   int                  `json:"count"`
}

// GroupsResult is the result of a groups request.
type GroupsResult struct {
	Groups []ports.GroupRecord `json:"groups"`
	Count  int                 `json:"count"`
}

// HealthResult is the result of a health request.
type HealthResult struct {
	Status    string `json:"status"`
	Samples   int    `json:"samples"`
	Documents int    `json:"documents"`
	Groups    int    `json:"groups"`
	Uptime    string `json:"uptime"`
}

// StatsResult is the result of a stats request.
type StatsResult struct {
	Samples       int    `json:"samples"`
	Documents     int    `json:"documents"`
	Groups        int    `json:"groups"`
	Members       int    `json:"members"`
	Batches       int64  `json:"batches"`
	RecordsOK     int64  `json:"records_ok"`
	RecordsFailed int64  `json:"records_failed"`
	SpoolFiles    int64  `json:"spool_files"`
	StorageDriver string `json:"storage_driver"`
	StoragePath   string `json:"storage_path,omitempty"`
	ProjectRoot   string `json:"project_root"`
	SocketPath    string `json:"socket_path"`
	HTTPPort      int    `json:"http_port,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// DecodeJSON unmarshals one JSON message, keeping numbers as json.Number so
// document values survive the socket without losing precision.
func DecodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON message")
	}
	return nil
}
