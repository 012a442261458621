package socket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/corey/doclink/internal/ports"
)

// Client connects to the doclink daemon over a Unix socket.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient creates a client that will connect to the given socket path.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath, timeout: 5 * time.Second}
}

// SetTimeout overrides the per-request deadline. Large ingest batches on a
// slow store may need more than the 5s default.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Ingest sends a batch of records and returns the per-record outcomes.
func (c *Client) Ingest(records []ports.BatchRecord) (*ports.BatchResult, error) {
	var result ports.BatchResult
	if err := c.do(MethodIngest, IngestParams{Records: records}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddSample registers or replaces a sample.
func (c *Client) AddSample(id string, description map[string]any) (*AddSampleResult, error) {
	var result AddSampleResult
	err := c.do(MethodAddSample, AddSampleParams{ID: id, Description: description}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Samples lists the registered samples.
func (c *Client) Samples() (*SamplesResult, error) {
	var result SamplesResult
	if err := c.do(MethodSamples, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Groups lists match groups, or the single group for sampleID when non-empty.
func (c *Client) Groups(sampleID string) (*GroupsResult, error) {
	var result GroupsResult
	if err := c.do(MethodGroups, GroupsParams{SampleID: sampleID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health sends a health check request.
func (c *Client) Health() (*HealthResult, error) {
	var result HealthResult
	if err := c.do(MethodHealth, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats fetches daemon counters.
func (c *Client) Stats() (*StatsResult, error) {
	var result StatsResult
	if err := c.do(MethodStats, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown sends a shutdown request to the daemon.
func (c *Client) Shutdown() error {
	_, err := c.call(Request{
		ID:     uuid.NewString(),
		Method: MethodShutdown,
	})
	return err
}

// Ping checks if the daemon is reachable.
func (c *Client) Ping() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// do sends method with params and decodes the result into out.
func (c *Client) do(method string, params interface{}, out interface{}) error {
	resp, err := c.call(Request{
		ID:     uuid.NewString(),
		Method: method,
		Params: params,
	})
	if err != nil {
		return err
	}

	resultJSON, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := DecodeJSON(resultJSON, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

func (c *Client) call(req Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// Set deadline for the whole request/response
	conn.SetDeadline(time.Now().Add(c.timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxMessage)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return nil, fmt.Errorf("empty response")
	}

	var resp Response
	if err := DecodeJSON(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server error: %s", resp.Error)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	return &resp, nil
}
