package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ncobase/genqueue/queue"
	"github.com/ncobase/genqueue/queue/queuetest"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestStore(t *testing.T) {
	queuetest.RunStoreTests(t, func(t *testing.T) queue.Store {
		_, rdb := newTestClient(t)
		return New(rdb, "")
	})
}

func TestStore_KeyLayout(t *testing.T) {
	mr, rdb := newTestClient(t)
	s := New(rdb, "gq")
	ctx := context.Background()

	job := &queue.Job{ID: "job_1", QueueName: "reviewer", OwnerID: "u1", SubmittedAt: time.Now(), UpdatedAt: time.Now()}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := mr.HGet("gq:job:job_1", "status"); got != "waiting" {
		t.Errorf("expected waiting status in hash, got %q", got)
	}
	if mr.HGet("gq:job:job_1", "payload") != "" {
		t.Error("expected nil payload to be omitted")
	}
	if got := mr.HGet("gq:stats", "reviewer|waiting"); got != "1" {
		t.Errorf("expected stats counter 1, got %q", got)
	}
	members, err := mr.Members("gq:jobs")
	if err != nil || len(members) != 1 || members[0] != "job_1" {
		t.Errorf("expected job in index, got %v (%v)", members, err)
	}

	got, err := s.Get(ctx, "job_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Payload != nil {
		t.Errorf("expected nil payload, got %s", got.Payload)
	}
}
