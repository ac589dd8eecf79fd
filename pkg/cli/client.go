package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apiv1 "github.com/beam-cloud/runwatch/pkg/api/v1"
)

const clientTimeout = 10 * time.Second

// APIError is a non-2xx response from the daemon
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running daemon's HTTP API
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(addr, token string) (*Client, error) {
	u, err := url.Parse(addr)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid daemon address %q", addr)
	}
	return &Client{
		baseURL: strings.TrimSuffix(u.String(), "/") + apiv1.HttpServerBaseRoute,
		token:   token,
		http:    &http.Client{Timeout: clientTimeout},
	}, nil
}

// ListRuns returns every run the daemon knows about
func (c *Client) ListRuns(ctx context.Context) ([]apiv1.RunResponse, error) {
	var runs []apiv1.RunResponse
	err := c.do(ctx, http.MethodGet, "/runs", &runs)
	return runs, err
}

// PollRun asks the daemon to poll a run now
func (c *Client) PollRun(ctx context.Context, name string) (apiv1.RunResponse, error) {
	var run apiv1.RunResponse
	err := c.do(ctx, http.MethodPost, "/runs/"+url.PathEscape(name)+"/poll", &run)
	return run, err
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}
