// Package rube is the workflow-automation collaborator. It fails closed:
// without an API key, Execute reports an explicit unconfigured result
// instead of attempting a request.
package rube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.rube.app/v1"

// Options configure the client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to the Rube workflow API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New constructs a client.
func New(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{apiKey: apiKey, baseURL: strings.TrimSuffix(opts.BaseURL, "/"), http: opts.HTTPClient}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Execute runs a named workflow with the given payload and returns the
// service's decoded response. Unconfigured clients return a {success:false}
// result without error so the model can relay the situation.
func (c *Client) Execute(ctx context.Context, workflowName string, payload map[string]any) (map[string]any, error) {
	if !c.Configured() {
		return map[string]any{"success": false, "message": "workflow automation not configured"}, nil
	}

	body, err := json.Marshal(map[string]any{"workflow": workflowName, "input": payload})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/workflows/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute workflow %s: %w", workflowName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("execute workflow %s: status %d: %s",
			workflowName, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("execute workflow %s: decode response: %w", workflowName, err)
	}
	return result, nil
}
