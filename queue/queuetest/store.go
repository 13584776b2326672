// Package queuetest provides a conformance suite for queue.Store
// implementations.
package queuetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ncobase/genqueue/queue"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) queue.Store

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newJob(id, q string) *queue.Job {
	return &queue.Job{
		ID:          id,
		QueueName:   q,
		OwnerID:     "user-1",
		Payload:     json.RawMessage(`{"caseText":"x"}`),
		SubmittedAt: epoch,
		UpdatedAt:   epoch,
	}
}

// RunStoreTests runs the conformance suite against stores built by newStore.
func RunStoreTests(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore) })
	t.Run("DuplicateID", func(t *testing.T) { testDuplicate(t, newStore) })
	t.Run("DeleteOnlyWaiting", func(t *testing.T) { testDelete(t, newStore) })
	t.Run("ClaimOnce", func(t *testing.T) { testClaimOnce(t, newStore) })
	t.Run("ConcurrentClaim", func(t *testing.T) { testConcurrentClaim(t, newStore) })
	t.Run("ProgressMonotonic", func(t *testing.T) { testProgress(t, newStore) })
	t.Run("Complete", func(t *testing.T) { testComplete(t, newStore) })
	t.Run("Fail", func(t *testing.T) { testFail(t, newStore) })
	t.Run("TerminalIsFinal", func(t *testing.T) { testTerminal(t, newStore) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newStore) })
	t.Run("PurgeFinished", func(t *testing.T) { testPurge(t, newStore) })
}

func open(t *testing.T, newStore Factory) queue.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreate(t *testing.T, s queue.Store, job *queue.Job) {
	t.Helper()
	if err := s.Create(context.Background(), job); err != nil {
		t.Fatalf("create %s: %v", job.ID, err)
	}
}

func mustGet(t *testing.T, s queue.Store, id string) *queue.Job {
	t.Helper()
	j, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return j
}

func testCreateAndGet(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	in := newJob("job_a", "case-digest")
	in.Status = queue.StatusCompleted
	in.Progress = 50
	mustCreate(t, s, in)

	j := mustGet(t, s, "job_a")
	if j.Status != queue.StatusWaiting {
		t.Errorf("expected status waiting, got %s", j.Status)
	}
	if j.Progress != 0 {
		t.Errorf("expected progress 0, got %d", j.Progress)
	}
	if j.QueueName != "case-digest" || j.OwnerID != "user-1" {
		t.Errorf("unexpected job fields: %+v", j)
	}
	if string(j.Payload) != `{"caseText":"x"}` {
		t.Errorf("expected payload to round trip, got %s", j.Payload)
	}
	if j.Result != nil || j.Error != "" {
		t.Errorf("expected no result or error, got %s / %q", j.Result, j.Error)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, queue.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func testDuplicate(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	mustCreate(t, s, newJob("job_dup", "q"))
	if err := s.Create(context.Background(), newJob("job_dup", "q")); !errors.Is(err, queue.ErrDuplicateJob) {
		t.Errorf("expected ErrDuplicateJob, got %v", err)
	}
}

func testDelete(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	mustCreate(t, s, newJob("job_w", "q"))
	if err := s.Delete(ctx, "job_w"); err != nil {
		t.Fatalf("delete waiting job: %v", err)
	}
	if _, err := s.Get(ctx, "job_w"); !errors.Is(err, queue.ErrJobNotFound) {
		t.Errorf("expected deleted job to be gone, got %v", err)
	}

	mustCreate(t, s, newJob("job_x", "q"))
	if _, err := s.MarkActive(ctx, "job_x", epoch); err != nil {
		t.Fatalf("mark active: %v", err)
	}
	if err := s.Delete(ctx, "job_x"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition deleting active job, got %v", err)
	}
}

func testClaimOnce(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()
	mustCreate(t, s, newJob("job_c", "q"))

	j, err := s.MarkActive(ctx, "job_c", epoch.Add(time.Second))
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if j.Status != queue.StatusActive {
		t.Errorf("expected active, got %s", j.Status)
	}
	if j.StartedAt == nil || !j.StartedAt.Equal(epoch.Add(time.Second)) {
		t.Errorf("expected started_at to be set, got %v", j.StartedAt)
	}
	if _, err := s.MarkActive(ctx, "job_c", epoch); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("expected second claim to fail, got %v", err)
	}
	if _, err := s.MarkActive(ctx, "missing", epoch); !errors.Is(err, queue.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func testConcurrentClaim(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	mustCreate(t, s, newJob("job_race", "q"))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.MarkActive(context.Background(), "job_race", epoch); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one claim to succeed, got %d", wins.Load())
	}
}

func testProgress(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()
	mustCreate(t, s, newJob("job_p", "q"))

	if err := s.SetProgress(ctx, "job_p", 10, epoch); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("expected progress on waiting job to be rejected, got %v", err)
	}
	if _, err := s.MarkActive(ctx, "job_p", epoch); err != nil {
		t.Fatalf("mark active: %v", err)
	}

	steps := []struct {
		in   int
		want int
	}{
		{30, 30},
		{10, 30},
		{30, 30},
		{90, 90},
		{150, 100},
		{-5, 100},
	}
	for _, step := range steps {
		if err := s.SetProgress(ctx, "job_p", step.in, epoch); err != nil {
			t.Fatalf("set progress %d: %v", step.in, err)
		}
		if got := mustGet(t, s, "job_p").Progress; got != step.want {
			t.Errorf("after %d expected progress %d, got %d", step.in, step.want, got)
		}
	}
}

func testComplete(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()
	mustCreate(t, s, newJob("job_ok", "q"))

	if err := s.MarkCompleted(ctx, "job_ok", json.RawMessage(`"x"`), epoch); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("expected completing a waiting job to fail, got %v", err)
	}
	if _, err := s.MarkActive(ctx, "job_ok", epoch); err != nil {
		t.Fatalf("mark active: %v", err)
	}
	_ = s.SetProgress(ctx, "job_ok", 40, epoch)

	done := epoch.Add(time.Minute)
	if err := s.MarkCompleted(ctx, "job_ok", json.RawMessage(`"MOCK DIGEST"`), done); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	j := mustGet(t, s, "job_ok")
	if j.Status != queue.StatusCompleted {
		t.Errorf("expected completed, got %s", j.Status)
	}
	if j.Progress != 100 {
		t.Errorf("expected progress 100, got %d", j.Progress)
	}
	if string(j.Result) != `"MOCK DIGEST"` {
		t.Errorf("expected result to round trip, got %s", j.Result)
	}
	if j.Error != "" {
		t.Errorf("expected no error, got %q", j.Error)
	}
	if j.FinishedAt == nil || !j.FinishedAt.Equal(done) {
		t.Errorf("expected finished_at %v, got %v", done, j.FinishedAt)
	}
}

func testFail(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()
	mustCreate(t, s, newJob("job_bad", "q"))
	if _, err := s.MarkActive(ctx, "job_bad", epoch); err != nil {
		t.Fatalf("mark active: %v", err)
	}
	if err := s.MarkFailed(ctx, "job_bad", "upstream unavailable", epoch); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	j := mustGet(t, s, "job_bad")
	if j.Status != queue.StatusFailed {
		t.Errorf("expected failed, got %s", j.Status)
	}
	if j.Error != "upstream unavailable" {
		t.Errorf("expected error reason, got %q", j.Error)
	}
	if j.Result != nil {
		t.Errorf("expected no result, got %s", j.Result)
	}
}

func testTerminal(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()
	mustCreate(t, s, newJob("job_t", "q"))
	if _, err := s.MarkActive(ctx, "job_t", epoch); err != nil {
		t.Fatalf("mark active: %v", err)
	}
	if err := s.MarkCompleted(ctx, "job_t", json.RawMessage(`1`), epoch); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	if err := s.MarkFailed(ctx, "job_t", "late", epoch); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("expected failing a completed job to be rejected, got %v", err)
	}
	if err := s.MarkCompleted(ctx, "job_t", json.RawMessage(`2`), epoch); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("expected completing twice to be rejected, got %v", err)
	}
	if err := s.SetProgress(ctx, "job_t", 50, epoch); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("expected progress on completed job to be rejected, got %v", err)
	}
	if _, err := s.MarkActive(ctx, "job_t", epoch); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("expected reclaim to be rejected, got %v", err)
	}

	j := mustGet(t, s, "job_t")
	if j.Status != queue.StatusCompleted || string(j.Result) != "1" || j.Error != "" {
		t.Errorf("expected completed job to be unchanged, got %+v", j)
	}
}

func testStats(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreate(t, s, newJob(fmt.Sprintf("job_a%d", i), "alpha"))
	}
	mustCreate(t, s, newJob("job_b0", "beta"))
	if _, err := s.MarkActive(ctx, "job_a0", epoch); err != nil {
		t.Fatalf("mark active: %v", err)
	}
	if _, err := s.MarkActive(ctx, "job_a1", epoch); err != nil {
		t.Fatalf("mark active: %v", err)
	}
	if err := s.MarkFailed(ctx, "job_a1", "boom", epoch); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	alpha := stats["alpha"]
	if alpha[queue.StatusWaiting] != 1 || alpha[queue.StatusActive] != 1 || alpha[queue.StatusFailed] != 1 {
		t.Errorf("unexpected alpha stats: %v", alpha)
	}
	if alpha.Total() != 3 {
		t.Errorf("expected 3 alpha jobs, got %d", alpha.Total())
	}
	if stats["beta"][queue.StatusWaiting] != 1 {
		t.Errorf("unexpected beta stats: %v", stats["beta"])
	}
}

func testPurge(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()

	finish := func(id string, at time.Time) {
		mustCreate(t, s, newJob(id, "q"))
		if _, err := s.MarkActive(ctx, id, at); err != nil {
			t.Fatalf("mark active: %v", err)
		}
		if err := s.MarkCompleted(ctx, id, json.RawMessage(`"ok"`), at); err != nil {
			t.Fatalf("mark completed: %v", err)
		}
	}
	finish("job_old", epoch)
	finish("job_new", epoch.Add(2*time.Hour))
	mustCreate(t, s, newJob("job_waiting", "q"))

	n, err := s.PurgeFinished(ctx, epoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged job, got %d", n)
	}
	if _, err := s.Get(ctx, "job_old"); !errors.Is(err, queue.ErrJobNotFound) {
		t.Errorf("expected old job to be purged, got %v", err)
	}
	mustGet(t, s, "job_new")
	mustGet(t, s, "job_waiting")
}
