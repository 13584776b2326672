package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func statuses(seq ...*JobStatus) (FetchFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context) (*JobStatus, error) {
		i := int(calls.Add(1)) - 1
		if i >= len(seq) {
			i = len(seq) - 1
		}
		return seq[i], nil
	}, &calls
}

var fast = Poller{Interval: 5 * time.Millisecond, MaxAttempts: 30}

func TestPoller_Completed(t *testing.T) {
	fetch, calls := statuses(
		&JobStatus{Status: StatusWaiting},
		&JobStatus{Status: StatusActive, Progress: 10},
		&JobStatus{Status: StatusCompleted, Progress: 100, Result: json.RawMessage(`"done"`)},
	)
	res, err := fast.Await(context.Background(), fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res) != `"done"` {
		t.Errorf("expected result, got %s", res)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 polls, got %d", calls.Load())
	}
}

func TestPoller_Failed(t *testing.T) {
	fetch, calls := statuses(
		&JobStatus{Status: StatusActive},
		&JobStatus{ID: "job_1", Status: StatusFailed, Error: "generation timed out"},
	)
	_, err := fast.Await(context.Background(), fetch)
	var jf *JobFailedError
	if !errors.As(err, &jf) {
		t.Fatalf("expected JobFailedError, got %v", err)
	}
	if jf.Message != "generation timed out" || jf.JobID != "job_1" {
		t.Errorf("unexpected failure %+v", jf)
	}
	if calls.Load() != 2 {
		t.Errorf("expected polling to stop on failure, got %d polls", calls.Load())
	}

	fetch, _ = statuses(&JobStatus{Status: StatusFailed})
	_, err = fast.Await(context.Background(), fetch)
	if !errors.As(err, &jf) || jf.Message != "Job failed" {
		t.Errorf("expected default failure message, got %v", err)
	}
}

func TestPoller_Timeout(t *testing.T) {
	fetch, calls := statuses(&JobStatus{Status: StatusActive})
	p := Poller{Interval: 50 * time.Millisecond, MaxAttempts: 5}
	_, err := p.Await(context.Background(), fetch)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if calls.Load() != 5 {
		t.Errorf("expected exactly 5 polls, got %d", calls.Load())
	}
}

func TestPoller_SlowFetchBounded(t *testing.T) {
	var calls atomic.Int32
	p := Poller{Interval: 10 * time.Millisecond, MaxAttempts: 3}
	start := time.Now()
	_, err := p.Await(context.Background(), func(ctx context.Context) (*JobStatus, error) {
		calls.Add(1)
		select {
		case <-time.After(time.Second):
			return &JobStatus{Status: StatusActive}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	elapsed := time.Since(start)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("expected await to stop near 30ms, took %v", elapsed)
	}
	if calls.Load() != 1 {
		t.Errorf("expected the slow fetch to be cut short, got %d polls", calls.Load())
	}
}

func TestPoller_FetchErrorStops(t *testing.T) {
	var calls atomic.Int32
	_, err := fast.Await(context.Background(), func(ctx context.Context) (*JobStatus, error) {
		calls.Add(1)
		return nil, ErrJobNotFound
	})
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single poll, got %d", calls.Load())
	}
}

func TestPoller_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch, _ := statuses(&JobStatus{Status: StatusWaiting})
	p := Poller{Interval: 50 * time.Millisecond, MaxAttempts: 100, OnPoll: func(*JobStatus) { cancel() }}
	_, err := p.Await(ctx, fetch)
	if err == nil || errors.Is(err, ErrPollTimeout) {
		t.Errorf("expected cancellation error, got %v", err)
	}
}

// fakeAPI serves one capability whose job completes on the third poll.
func fakeAPI(t *testing.T, submitStatus int) *httptest.Server {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/case-digest/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch submitStatus {
		case http.StatusPaymentRequired:
			w.WriteHeader(submitStatus)
			_, _ = w.Write([]byte(`{"error":"Quota exceeded","message":"You have reached your daily limit. Please upgrade your plan or wait 24 hours."}`))
		case http.StatusInternalServerError:
			w.WriteHeader(submitStatus)
			_, _ = w.Write([]byte(`{"error":"Internal Server Error","message":"Failed to queue job"}`))
		default:
			_, _ = w.Write([]byte(`{"jobId":"job_case-digest_1","status":"queued"}`))
		}
	})
	mux.HandleFunc("GET /api/case-digest/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "job_case-digest_1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Not Found","message":"Job not found"}`))
			return
		}
		st := JobStatus{ID: "job_case-digest_1", Status: StatusActive, Progress: 10}
		if polls.Add(1) >= 3 {
			st = JobStatus{ID: st.ID, Status: StatusCompleted, Progress: 100, Result: json.RawMessage(`"MOCK DIGEST [Processed for u1]"`)}
		}
		_ = json.NewEncoder(w).Encode(st)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, token string) *Client {
	return New(&Config{APIURL: srv.URL + "/api/", Token: token}, WithPoller(fast))
}

func TestClient_Generate(t *testing.T) {
	srv := fakeAPI(t, http.StatusOK)
	c := newTestClient(srv, "tok")

	res, err := c.Generate(context.Background(), "case-digest", map[string]string{"caseText": "X vs Y"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if Text(res) != "MOCK DIGEST [Processed for u1]" {
		t.Errorf("unexpected result %q", Text(res))
	}
}

func TestClient_SubmitErrors(t *testing.T) {
	_, err := newTestClient(fakeAPI(t, http.StatusOK), "bad").Submit(context.Background(), "case-digest", struct{}{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	_, err = newTestClient(fakeAPI(t, http.StatusPaymentRequired), "tok").Generate(context.Background(), "case-digest", struct{}{})
	var qe *QuotaExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if qe.Message != "You have reached your daily limit. Please upgrade your plan or wait 24 hours." {
		t.Errorf("unexpected quota message %q", qe.Message)
	}

	_, err = newTestClient(fakeAPI(t, http.StatusInternalServerError), "tok").Submit(context.Background(), "case-digest", struct{}{})
	var ae *APIError
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusInternalServerError || ae.Message != "Failed to queue job" {
		t.Errorf("expected 500 APIError, got %v", err)
	}
}

func TestClient_AwaitUnknownJob(t *testing.T) {
	c := newTestClient(fakeAPI(t, http.StatusOK), "tok")
	if _, err := c.AwaitResult(context.Background(), "case-digest", "job_nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestText(t *testing.T) {
	if Text(json.RawMessage(`"a\nb"`)) != "a\nb" {
		t.Errorf("expected unquoted string")
	}
	if Text(json.RawMessage(`{"k":1}`)) != `{"k":1}` {
		t.Errorf("expected verbatim JSON")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("GENQUEUE_API_URL", "http://api.test/api")
	t.Setenv("GENQUEUE_POLL_INTERVAL", "500ms")
	c, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if c.APIURL != "http://api.test/api" || c.PollInterval != 500*time.Millisecond {
		t.Errorf("unexpected config %+v", c)
	}
	if c.PollAttempts != 30 {
		t.Errorf("expected default 30 attempts, got %d", c.PollAttempts)
	}
}
