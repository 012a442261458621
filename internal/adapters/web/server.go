// Package web serves the batch ingestion endpoint and a JSON API over HTTP.
// Binds to localhost only; no network exposure, no auth needed.
package web

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/logger"
	"github.com/corey/doclink/internal/ports"
)

// maxBody bounds a request body.
const maxBody = 32 << 20

// Response messages for the batch endpoint.
const (
	msgBatchOK     = "Documents processed successfully"
	msgBatchFailed = "Error processing document"
)

// BatchEvent is the queue-delivery shape accepted by POST /api/batch.
type BatchEvent struct {
	Records []EventRecord `json:"Records"`
}

// EventRecord is one queued message. Body holds the document as a JSON string.
type EventRecord struct {
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
}

// BatchResponse mirrors the handler response: a status code and a body
// carrying every record outcome.
type BatchResponse struct {
	StatusCode int               `json:"statusCode"`
	Body       BatchResponseBody `json:"body"`
}

// BatchResponseBody is the body of a BatchResponse.
type BatchResponseBody struct {
	Message string             `json:"message"`
	Error   string             `json:"error,omitempty"`
	Batch   *ports.BatchResult `json:"batch,omitempty"`
}

// Server serves the JSON API over HTTP.
type Server struct {
	queries  socket.AppQueries
	listener net.Listener
	httpSrv  *http.Server
	port     int
	started  time.Time
	stopOnce sync.Once

	portFilePath string // .doclink/http.port
}

// NewServer creates an HTTP server.
// The portFilePath is where the bound port is written for discovery.
func NewServer(queries socket.AppQueries, portFilePath string) *Server {
	return &Server{
		queries:      queries,
		portFilePath: portFilePath,
		started:      time.Now(),
	}
}

// DefaultPort computes a project-specific port: 19000 + (hash(abs_path) % 1000).
func DefaultPort(projectRoot string) int {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	h := sha256.Sum256([]byte(abs))
	// Use first 4 bytes as uint32
	n := uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8 | uint32(h[3])
	return 19000 + int(n%1000)
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/batch", s.handleBatch)
	mux.HandleFunc("POST /api/samples", s.handleAddSample)
	mux.HandleFunc("GET /api/samples", s.handleSamples)
	mux.HandleFunc("GET /api/groups", s.handleGroups)
	mux.HandleFunc("GET /api/groups/{id}", s.handleGroup)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	return mux
}

// Start begins listening on the preferred port. Writes the port to .doclink/http.port.
func (s *Server) Start(preferredPort int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", preferredPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.started = time.Now()

	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Write port file for discovery
	if s.portFilePath != "" {
		os.WriteFile(s.portFilePath, []byte(fmt.Sprintf("%d", s.port)), 0644)
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ComponentLogger("web").Errorw("http server stopped", logger.FieldError, err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.httpSrv.Shutdown(ctx)
		}
		if s.portFilePath != "" {
			os.Remove(s.portFilePath)
		}
	})
}

// Port returns the bound port number.
func (s *Server) Port() int {
	return s.port
}

// URL returns the API base URL.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	var event BatchEvent
	if err := decodeBody(w, r, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, BatchResponse{
			StatusCode: http.StatusBadRequest,
			Body:       BatchResponseBody{Message: msgBatchFailed, Error: err.Error()},
		})
		return
	}

	records := make([]ports.BatchRecord, len(event.Records))
	for i, rec := range event.Records {
		records[i] = ports.BatchRecord{ID: rec.MessageID, Body: rec.Body}
	}
	resp := NewBatchResponse(s.queries.Ingest(records))
	writeJSON(w, resp.StatusCode, resp)
}

// NewBatchResponse wraps a batch result in the handler response shape.
func NewBatchResponse(result ports.BatchResult) BatchResponse {
	resp := BatchResponse{
		StatusCode: result.StatusCode(),
		Body:       BatchResponseBody{Message: msgBatchOK, Batch: &result},
	}
	if result.Failed > 0 {
		resp.Body.Message = msgBatchFailed
		resp.Body.Error = fmt.Sprintf("%d of %d records failed", result.Failed, result.Total)
	}
	return resp
}

func (s *Server) handleAddSample(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	var params socket.AddSampleParams
	if err := decodeBody(w, r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	replaced, err := s.queries.AddSample(params.ID, params.Description)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := http.StatusCreated
	if replaced {
		status = http.StatusOK
	}
	writeJSON(w, status, socket.AddSampleResult{ID: params.ID, Replaced: replaced})
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	samples := s.queries.SampleList()
	writeJSON(w, http.StatusOK, socket.SamplesResult{Samples: samples, Count: len(samples)})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	groups, err := s.queries.GroupList("")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, socket.GroupsResult{Groups: groups, Count: len(groups)})
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	id := r.PathValue("id")
	groups, err := s.queries.GroupList(id)
	if err != nil || len(groups) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no match group for sample %q", id))
		return
	}
	writeJSON(w, http.StatusOK, groups[0])
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	result := socket.HealthResult{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.queries != nil {
		st := s.queries.StatsSnapshot()
		result.Samples = st.Samples
		result.Documents = st.Documents
		result.Groups = st.Groups
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.queries.StatsSnapshot())
}

func (s *Server) ready(w http.ResponseWriter) bool {
	if s.queries == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not available")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
