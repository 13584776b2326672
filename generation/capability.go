// Package generation holds the generation capabilities served by the queue:
// their request bodies, costs, prompts and the processors that run them.
package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ncobase/genqueue/config"
	"github.com/ncobase/genqueue/validator"
)

// Capability names.
const (
	CaseDigest = "case-digest"
	MockBar    = "mock-bar"
	CaseBuild  = "case-build"
	Reviewer   = "reviewer"
	Contracts  = "contracts"
)

// ErrInvalidRequest wraps malformed or invalid request bodies.
var ErrInvalidRequest = errors.New("invalid request")

// Request is a validated capability input.
type Request interface {
	Prompt() string
}

// Capability describes one generation feature.
type Capability struct {
	Name string
	// Cost is charged against the caller's quota per submission.
	Cost int
	// Alias is an extra submit route segment next to "generate".
	Alias string
	// Output is the reference text returned by the static generator.
	Output string

	newRequest func() Request
}

// Decode parses and validates a request body.
func (c Capability) Decode(body []byte) (Request, error) {
	req := c.newRequest()
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return req, nil
}

// CaseDigestRequest asks for a digest of a decision.
type CaseDigestRequest struct {
	CaseText string `json:"caseText" validate:"required"`
}

func (r *CaseDigestRequest) Prompt() string {
	return "Write a case digest with facts, issues, ruling and ratio of the following decision:\n\n" + r.CaseText
}

// MockBarRequest asks for a mock bar examination question.
type MockBarRequest struct {
	Subject    string `json:"subject" validate:"required"`
	Difficulty string `json:"difficulty" validate:"required,oneof=Easy Moderate Difficult"`
	Type       string `json:"type" validate:"required,oneof=Essay Issue-Spotting Situational"`
}

func (r *MockBarRequest) Prompt() string {
	return fmt.Sprintf("Write a %s %s bar examination question on %s, followed by a model answer.",
		strings.ToLower(r.Difficulty), strings.ToLower(r.Type), r.Subject)
}

// CaseBuildRequest asks for case law research.
type CaseBuildRequest struct {
	Query string `json:"query" validate:"required"`
}

func (r *CaseBuildRequest) Prompt() string {
	return "Find and summarize jurisprudence relevant to the following research query, formatted as HTML:\n\n" + r.Query
}

// ReviewerRequest asks for a study reviewer on a topic.
type ReviewerRequest struct {
	Topic string `json:"topic" validate:"required"`
}

func (r *ReviewerRequest) Prompt() string {
	return "Build a law reviewer in Markdown covering the key doctrines, provisions and cases on: " + r.Topic
}

// ContractRequest asks for a contract draft.
type ContractRequest struct {
	Type          string `json:"type" validate:"required,oneof=Lease Sale Employment Service Custom"`
	Parties       string `json:"parties" validate:"required"`
	Terms         string `json:"terms" validate:"required"`
	CustomClauses string `json:"customClauses,omitempty"`
}

func (r *ContractRequest) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a %s contract.\nParties: %s\nTerms: %s\n", strings.ToLower(r.Type), r.Parties, r.Terms)
	if r.CustomClauses != "" {
		fmt.Fprintf(&b, "Include these clauses: %s\n", r.CustomClauses)
	}
	return b.String()
}

var builtin = []Capability{
	{
		Name:       CaseDigest,
		Cost:       1,
		Output:     "MOCK DIGEST: The case of X vs Y established...",
		newRequest: func() Request { return &CaseDigestRequest{} },
	},
	{
		Name:       MockBar,
		Cost:       2,
		Output:     "QUESTION: Explain the doctrine of... \n MODEL ANSWER: ...",
		newRequest: func() Request { return &MockBarRequest{} },
	},
	{
		Name:       CaseBuild,
		Cost:       2,
		Alias:      "query",
		Output:     "<h3>Research Results</h3><p>Found 5 relevant cases...</p>",
		newRequest: func() Request { return &CaseBuildRequest{} },
	},
	{
		Name:       Reviewer,
		Cost:       5,
		Alias:      "build",
		Output:     "# Civil Law Reviewer\n## Key Doctrines\n...",
		newRequest: func() Request { return &ReviewerRequest{} },
	},
	{
		Name:       Contracts,
		Cost:       3,
		Output:     "LEASE AGREEMENT\n\nKNOW ALL MEN BY THESE PRESENTS...",
		newRequest: func() Request { return &ContractRequest{} },
	},
}

// Capabilities returns the built-in capabilities with cost overrides from c
// applied. Non-positive overrides are ignored.
func Capabilities(c *config.Capabilities) []Capability {
	out := make([]Capability, len(builtin))
	copy(out, builtin)
	if c == nil {
		return out
	}
	for i := range out {
		if cost, ok := c.Costs[out[i].Name]; ok && cost > 0 {
			out[i].Cost = cost
		}
	}
	return out
}

// Lookup returns the built-in capability called name.
func Lookup(name string) (Capability, bool) {
	for _, c := range builtin {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// Names returns the built-in capability names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for _, c := range builtin {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
