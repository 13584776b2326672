// Package client submits generation requests to the API and polls their
// jobs until a result is available.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithPoller replaces the poll schedule.
func WithPoller(p Poller) Option {
	return func(c *Client) { c.poller = p }
}

// Client talks to the generation API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	poller  Poller
}

// New creates a client from cfg.
func New(cfg *Config, opts ...Option) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		poller:  Poller{Interval: cfg.PollInterval, MaxAttempts: cfg.PollAttempts},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type submitResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Submit queues a job for capability and returns its id.
func (c *Client) Submit(ctx context.Context, capability string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var out submitResponse
	if err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(capability)+"/generate", payload, &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: "response carries no job id"}
	}
	return out.JobID, nil
}

// Status fetches the job once.
func (c *Client) Status(ctx context.Context, capability, jobID string) (*JobStatus, error) {
	var st JobStatus
	path := "/" + url.PathEscape(capability) + "/status/" + url.PathEscape(jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// AwaitResult polls the job until it finishes and returns its result.
func (c *Client) AwaitResult(ctx context.Context, capability, jobID string) (json.RawMessage, error) {
	return c.poller.Await(ctx, func(ctx context.Context) (*JobStatus, error) {
		return c.Status(ctx, capability, jobID)
	})
}

// Generate submits a job and waits for its result.
func (c *Client) Generate(ctx context.Context, capability string, body any) (json.RawMessage, error) {
	jobID, err := c.Submit(ctx, capability, body)
	if err != nil {
		return nil, err
	}
	return c.AwaitResult(ctx, capability, jobID)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return statusError(res.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(code int, data []byte) error {
	var e errorResponse
	_ = json.Unmarshal(data, &e)
	msg := e.Message
	if msg == "" {
		msg = e.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}

	switch code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusPaymentRequired:
		return &QuotaExceededError{Message: msg}
	case http.StatusNotFound:
		return ErrJobNotFound
	}
	return &APIError{StatusCode: code, Message: msg}
}

// Text returns a result as plain text. Results holding a JSON string are
// unquoted; anything else is returned verbatim.
func Text(result json.RawMessage) string {
	var s string
	if err := json.Unmarshal(result, &s); err == nil {
		return s
	}
	return string(result)
}
