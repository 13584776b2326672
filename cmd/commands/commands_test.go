package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ncobase/genqueue/security/jwt"
)

func TestReadBody(t *testing.T) {
	raw, err := readBody(nil, "", "")
	if err != nil || string(raw) != "{}" {
		t.Errorf("expected empty object, got %s (%v)", raw, err)
	}

	raw, err = readBody(strings.NewReader(`{"topic":"torts"}`), "-", "")
	if err != nil || string(raw) != `{"topic":"torts"}` {
		t.Errorf("expected stdin body, got %s (%v)", raw, err)
	}

	p := filepath.Join(t.TempDir(), "body.json")
	if err := os.WriteFile(p, []byte(`{"query":"q"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	raw, err = readBody(nil, "", p)
	if err != nil || string(raw) != `{"query":"q"}` {
		t.Errorf("expected file body, got %s (%v)", raw, err)
	}

	if _, err := readBody(nil, "{", ""); err == nil {
		t.Error("expected invalid JSON to be rejected")
	}
	if _, err := readBody(nil, "{}", p); err == nil {
		t.Error("expected --data with --file to be rejected")
	}
}

func TestTokenCommand(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("auth:\n  jwt:\n    secret: cli-secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "-c", p, "-u", "u1", "-r", "attorney"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("token: %v", err)
	}

	claims, err := jwt.NewTokenManager("cli-secret").DecodeToken(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if jwt.GetUserIDFromToken(claims) != "u1" || jwt.GetRoleFromToken(claims) != "attorney" {
		t.Errorf("unexpected claims %v", claims)
	}
}

func TestTokenCommandRequiresUser(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"token"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected missing --user to fail")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), `"version"`) {
		t.Errorf("expected JSON version output, got %s", out.String())
	}
}

// jobAPI serves a case-digest job that completes on its second poll and
// records the last submitted body.
func jobAPI(t *testing.T, submitted *atomic.Value) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/case-digest/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		submitted.Store(string(body))
		_, _ = w.Write([]byte(`{"jobId":"job_case-digest_1","status":"queued"}`))
	})
	mux.HandleFunc("GET /api/case-digest/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "job_case-digest_1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Not Found","message":"Job not found"}`))
			return
		}
		st := map[string]any{"id": "job_case-digest_1", "status": "active", "progress": 10}
		if polls.Add(1) >= 2 {
			st = map[string]any{"id": "job_case-digest_1", "status": "completed", "progress": 100, "result": "MOCK DIGEST [Processed for u1]"}
		}
		_ = json.NewEncoder(w).Encode(st)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("GENQUEUE_API_URL", srv.URL+"/api")
	t.Setenv("GENQUEUE_TOKEN", "tok")
	t.Setenv("GENQUEUE_POLL_INTERVAL", "5ms")
	t.Setenv("GENQUEUE_POLL_ATTEMPTS", "30")
}

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestGenerateCommand(t *testing.T) {
	var submitted atomic.Value
	jobAPI(t, &submitted)

	out, progress, err := runRoot(t, "generate", "case-digest", "-d", `{"caseText":"X vs Y"}`)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.TrimSpace(out) != "MOCK DIGEST [Processed for u1]" {
		t.Errorf("expected digest on stdout, got %q", out)
	}
	if submitted.Load() != `{"caseText":"X vs Y"}` {
		t.Errorf("expected body to be submitted as given, got %v", submitted.Load())
	}
	if !strings.Contains(progress, "queued job_case-digest_1") || !strings.Contains(progress, "active 10%") {
		t.Errorf("expected queue and progress lines on stderr, got %q", progress)
	}
}

func TestGenerateCommandNoWait(t *testing.T) {
	var submitted atomic.Value
	jobAPI(t, &submitted)

	out, _, err := runRoot(t, "generate", "case-digest", "--no-wait")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.TrimSpace(out) != "job_case-digest_1" {
		t.Errorf("expected job id only, got %q", out)
	}
	if submitted.Load() != "{}" {
		t.Errorf("expected empty object body, got %v", submitted.Load())
	}
}

func TestGenerateCommandUnauthorized(t *testing.T) {
	var submitted atomic.Value
	jobAPI(t, &submitted)
	t.Setenv("GENQUEUE_TOKEN", "wrong")

	if _, _, err := runRoot(t, "generate", "case-digest", "-d", "{}"); err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("expected unauthorized error, got %v", err)
	}
}

func TestAwaitCommand(t *testing.T) {
	var submitted atomic.Value
	jobAPI(t, &submitted)

	out, _, err := runRoot(t, "await", "case-digest", "job_case-digest_1")
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if strings.TrimSpace(out) != "MOCK DIGEST [Processed for u1]" {
		t.Errorf("expected digest on stdout, got %q", out)
	}

	if _, _, err := runRoot(t, "await", "case-digest", "job_missing"); err == nil || !strings.Contains(err.Error(), "job not found") {
		t.Errorf("expected job not found, got %v", err)
	}
	if _, _, err := runRoot(t, "await", "case-digest"); err == nil {
		t.Error("expected missing job id to be rejected")
	}
}
