package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ncobase/genqueue/config"
	"github.com/ncobase/genqueue/queue"
	"github.com/ncobase/genqueue/validator"
	"github.com/sony/gobreaker"
)

func TestCapabilities_Defaults(t *testing.T) {
	want := map[string]int{CaseDigest: 1, MockBar: 2, CaseBuild: 2, Reviewer: 5, Contracts: 3}
	caps := Capabilities(nil)
	if len(caps) != len(want) {
		t.Fatalf("expected %d capabilities, got %d", len(want), len(caps))
	}
	for _, c := range caps {
		if c.Cost != want[c.Name] {
			t.Errorf("%s: expected cost %d, got %d", c.Name, want[c.Name], c.Cost)
		}
	}

	cb, _ := Lookup(CaseBuild)
	rv, _ := Lookup(Reviewer)
	if cb.Alias != "query" || rv.Alias != "build" {
		t.Errorf("unexpected aliases %q, %q", cb.Alias, rv.Alias)
	}
	if _, ok := Lookup("legal-pad"); ok {
		t.Errorf("expected unknown capability lookup to fail")
	}
}

func TestCapabilities_CostOverrides(t *testing.T) {
	caps := Capabilities(&config.Capabilities{Costs: map[string]int{Reviewer: 8, MockBar: 0}})
	for _, c := range caps {
		switch c.Name {
		case Reviewer:
			if c.Cost != 8 {
				t.Errorf("expected reviewer override 8, got %d", c.Cost)
			}
		case MockBar:
			if c.Cost != 2 {
				t.Errorf("expected zero override ignored, got %d", c.Cost)
			}
		}
	}
	if c, _ := Lookup(Reviewer); c.Cost != 5 {
		t.Errorf("expected builtin table untouched, got %d", c.Cost)
	}
}

func TestCapability_Decode(t *testing.T) {
	tests := []struct {
		name   string
		cap    string
		body   string
		fields []string
	}{
		{name: "digest ok", cap: CaseDigest, body: `{"caseText":"People v. Cruz"}`},
		{name: "digest missing", cap: CaseDigest, body: `{}`, fields: []string{"caseText"}},
		{name: "digest empty body", cap: CaseDigest, body: ``, fields: []string{"caseText"}},
		{name: "mock bar ok", cap: MockBar, body: `{"subject":"Remedial Law","difficulty":"Moderate","type":"Essay"}`},
		{name: "mock bar bad enums", cap: MockBar, body: `{"subject":"Tax","difficulty":"Hard","type":"Quiz"}`, fields: []string{"difficulty", "type"}},
		{name: "contract ok", cap: Contracts, body: `{"type":"Lease","parties":"A and B","terms":"1 year"}`},
		{name: "contract bad type", cap: Contracts, body: `{"type":"Loan","parties":"A","terms":"B"}`, fields: []string{"type"}},
		{name: "reviewer missing", cap: Reviewer, body: `{"topic":""}`, fields: []string{"topic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := Lookup(tt.cap)
			req, err := c.Decode([]byte(tt.body))
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("expected valid request, got %v", err)
				}
				if req.Prompt() == "" {
					t.Errorf("expected a prompt")
				}
				return
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			var fe validator.Errors
			if !errors.As(err, &fe) {
				t.Fatalf("expected field errors, got %v", err)
			}
			for _, f := range tt.fields {
				if _, ok := fe[f]; !ok {
					t.Errorf("expected error on %s, got %v", f, fe)
				}
			}
		})
	}
}

func TestCapability_DecodeMalformed(t *testing.T) {
	c, _ := Lookup(CaseBuild)
	if _, err := c.Decode([]byte(`{"query":`)); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestContractRequest_Prompt(t *testing.T) {
	r := &ContractRequest{Type: "Lease", Parties: "Lessor and Lessee", Terms: "monthly", CustomClauses: "no pets"}
	p := r.Prompt()
	if !strings.Contains(p, "lease contract") || !strings.Contains(p, "no pets") {
		t.Errorf("unexpected prompt %q", p)
	}
}

func TestNewProcessor_TagsOwner(t *testing.T) {
	c, _ := Lookup(CaseDigest)
	proc := NewProcessor(c, StaticGenerator{Output: c.Output})

	var reports []int
	out, err := proc(context.Background(), queue.Job{
		OwnerID: "u42",
		Payload: json.RawMessage(`{"caseText":"X vs Y"}`),
	}, func(p int) { reports = append(reports, p) })
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	want := "MOCK DIGEST: The case of X vs Y established... [Processed for u42]"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
	if len(reports) != 2 || reports[0] != 10 || reports[1] != 90 {
		t.Errorf("expected progress 10 then 90, got %v", reports)
	}
}

func TestNewProcessor_InvalidPayload(t *testing.T) {
	c, _ := Lookup(Reviewer)
	proc := NewProcessor(c, StaticGenerator{Output: c.Output})
	_, err := proc(context.Background(), queue.Job{Payload: json.RawMessage(`{}`)}, func(int) {})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestOllamaGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3.2" || req.Stream {
			t.Errorf("unexpected request body %+v", req)
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: "digest of " + req.Prompt})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(&config.Ollama{Host: srv.URL + "/", Model: "llama3.2", Timeout: time.Second})
	out, err := g.Generate(context.Background(), "X vs Y")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "digest of X vs Y" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestOllamaGenerator_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewOllamaGenerator(&config.Ollama{Host: srv.URL, Model: "m", Timeout: time.Second})
	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), "p")
		if err == nil || !strings.Contains(err.Error(), "status 500") {
			t.Fatalf("call %d: expected status error, got %v", i, err)
		}
	}
	if g.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %v", g.State())
	}
	if _, err := g.Generate(context.Background(), "p"); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected open breaker to skip the backend, got %d calls", calls.Load())
	}
}

func TestNewGenerators(t *testing.T) {
	caps := Capabilities(nil)

	gens, err := NewGenerators(nil, caps)
	if err != nil {
		t.Fatalf("static: %v", err)
	}
	if g, ok := gens[Contracts].(StaticGenerator); !ok || !strings.HasPrefix(g.Output, "LEASE AGREEMENT") {
		t.Errorf("unexpected contracts generator %#v", gens[Contracts])
	}

	gens, err = NewGenerators(&config.Generator{Provider: config.GeneratorOllama, Ollama: &config.Ollama{Host: "http://localhost:11434"}}, caps)
	if err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if gens[CaseDigest] != gens[Reviewer] {
		t.Errorf("expected ollama generator to be shared")
	}

	if _, err := NewGenerators(&config.Generator{Provider: "gpt"}, caps); err == nil {
		t.Errorf("expected unknown provider error")
	}
	if _, err := NewGenerators(&config.Generator{Provider: config.GeneratorOllama, Ollama: &config.Ollama{}}, caps); err == nil {
		t.Errorf("expected missing host error")
	}
}

func TestBind(t *testing.T) {
	caps := Capabilities(nil)
	gens, _ := NewGenerators(nil, caps)
	d, err := queue.NewPoolDispatcher(nil)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	r := queue.NewRegistry(queue.NewMemoryStore(), d)
	if err := Bind(r, caps, gens); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got := r.Names(); len(got) != 5 {
		t.Errorf("expected 5 bound queues, got %v", got)
	}
	if err := Bind(r, caps, map[string]Generator{}); err == nil {
		t.Errorf("expected missing generator error")
	}
}
