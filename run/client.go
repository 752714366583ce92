package run

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/relex/frame-agent/defs"
)

// Client sends requests to the control surface of a remote agent
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the agent at address, e.g. "localhost:3000" or "http://host:3000"
func NewClient(address string) *Client {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return &Client{
		baseURL:    strings.TrimRight(address, "/"),
		httpClient: &http.Client{Timeout: defs.PipelineStopTimeout + defs.ControlShutdownTimeout},
	}
}

// Configure asks the agent to run a pipeline
func (c *Client) Configure(ctx context.Context, req ConfigureRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPut, "/config", body, nil)
}

// Terminate asks the agent to stop its pipeline
func (c *Client) Terminate(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/kill", nil, nil)
}

// Status fetches the pipeline status
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.call(ctx, http.MethodGet, "/status", nil, &st)
	return st, err
}

func (c *Client) call(ctx context.Context, method string, path string, body []byte, output any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var cresp controlResponse
		if json.Unmarshal(data, &cresp) == nil && cresp.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, cresp.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if output != nil {
		return json.Unmarshal(data, output)
	}
	return nil
}
