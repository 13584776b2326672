package data_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ncobase/genqueue/config"
	"github.com/ncobase/genqueue/data"
	"github.com/ncobase/genqueue/data/redisstore"
	"github.com/ncobase/genqueue/data/sqlstore"
	"github.com/ncobase/genqueue/queue"

	_ "github.com/ncobase/genqueue/data/all"
)

func TestNew_Memory(t *testing.T) {
	d, cleanup, err := data.New(context.Background(), &config.Data{Driver: config.DriverMemory})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer cleanup()

	if _, ok := d.Jobs.(*queue.MemoryStore); !ok {
		t.Errorf("expected memory store, got %T", d.Jobs)
	}
	if d.Redis != nil || d.DB != nil {
		t.Error("expected no connections for the memory driver")
	}
	if d.Health(context.Background())["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", d.Health(context.Background()))
	}
}

func TestNew_SQLite(t *testing.T) {
	cfg := &config.Data{Driver: config.DriverSQLite, Source: "file:data_test?mode=memory&cache=shared"}
	d, cleanup, err := data.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer cleanup()

	if _, ok := d.Jobs.(*sqlstore.Store); !ok {
		t.Fatalf("expected sql store, got %T", d.Jobs)
	}

	now := time.Now()
	job := &queue.Job{ID: "job_sqlite", QueueName: "case-digest", OwnerID: "u1", SubmittedAt: now, UpdatedAt: now}
	if err := d.Jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := d.Jobs.Get(context.Background(), "job_sqlite"); err != nil {
		t.Errorf("get: %v", err)
	}

	health := d.Health(context.Background())
	services := health["services"].(map[string]any)
	if _, ok := services["database"]; !ok {
		t.Errorf("expected database entry in health, got %v", services)
	}
}

func TestNew_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	defer mr.Close()

	cfg := &config.Data{Driver: config.DriverRedis, Redis: &config.Redis{Addr: mr.Addr()}}
	d, cleanup, err := data.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer cleanup()

	if _, ok := d.Jobs.(*redisstore.Store); !ok {
		t.Errorf("expected redis store, got %T", d.Jobs)
	}
	if d.Redis == nil {
		t.Error("expected redis client")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Data
	}{
		{"nil config", nil},
		{"redis without address", &config.Data{Driver: config.DriverRedis, Redis: &config.Redis{}}},
		{"unknown driver", &config.Data{Driver: "oracle"}},
		{"sqlite without source", &config.Data{Driver: config.DriverSQLite}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := data.New(context.Background(), tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
