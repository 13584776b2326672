package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ncobase/genqueue/config"
	"github.com/sony/gobreaker"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StaticGenerator returns a fixed text regardless of the prompt.
type StaticGenerator struct {
	Output string
}

func (g StaticGenerator) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.Output, nil
}

// OllamaGenerator calls an Ollama compatible /api/generate endpoint.
type OllamaGenerator struct {
	host  string
	model string
	http  *http.Client
	cb    *gobreaker.CircuitBreaker
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaGenerator creates a generator for the endpoint in c. Calls go
// through a circuit breaker that opens after most of the recent calls failed.
func NewOllamaGenerator(c *config.Ollama) *OllamaGenerator {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	g := &OllamaGenerator{
		host:  strings.TrimRight(c.Host, "/"),
		model: c.Model,
		http:  &http.Client{Timeout: timeout},
	}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ollama",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up is not a backend failure
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	return g
}

// State returns the breaker state.
func (g *OllamaGenerator) State() gobreaker.State {
	return g.cb.State()
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := g.cb.Execute(func() (any, error) {
		return g.call(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (g *OllamaGenerator) call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{Model: g.model, Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var res ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("ollama response: %w", err)
	}
	if res.Error != "" {
		return "", fmt.Errorf("ollama error: %s", res.Error)
	}
	return res.Response, nil
}

// NewGenerators returns one generator per capability for the configured
// provider. The Ollama provider shares a single client and breaker.
func NewGenerators(c *config.Generator, caps []Capability) (map[string]Generator, error) {
	provider := config.GeneratorStatic
	if c != nil && c.Provider != "" {
		provider = c.Provider
	}

	out := make(map[string]Generator, len(caps))
	switch provider {
	case config.GeneratorStatic:
		for _, cp := range caps {
			out[cp.Name] = StaticGenerator{Output: cp.Output}
		}
	case config.GeneratorOllama:
		if c.Ollama == nil || c.Ollama.Host == "" {
			return nil, errors.New("generator.ollama.host is required")
		}
		g := NewOllamaGenerator(c.Ollama)
		for _, cp := range caps {
			out[cp.Name] = g
		}
	default:
		return nil, fmt.Errorf("unknown generator provider %q", provider)
	}
	return out, nil
}
