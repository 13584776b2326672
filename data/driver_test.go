package data

import (
	"context"
	"strings"
	"sync"
	"testing"
)

type mockDriver struct {
	name string
}

func (d *mockDriver) Name() string                                      { return d.name }
func (d *mockDriver) Connect(ctx context.Context, cfg any) (any, error) { return "mock-connection", nil }
func (d *mockDriver) Close(conn any) error                              { return nil }
func (d *mockDriver) Ping(ctx context.Context, conn any) error          { return nil }

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic")
		}
	}()
	fn()
}

func TestRegisterDatabaseDriver(t *testing.T) {
	RegisterDatabaseDriver(&mockDriver{name: "test-db"})

	retrieved, err := GetDatabaseDriver("test-db")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if retrieved.Name() != "test-db" {
		t.Errorf("expected driver name 'test-db', got %q", retrieved.Name())
	}

	expectPanic(t, func() { RegisterDatabaseDriver(&mockDriver{name: "test-db"}) })
	expectPanic(t, func() { RegisterDatabaseDriver(nil) })
	expectPanic(t, func() { RegisterDatabaseDriver(&mockDriver{}) })
}

func TestRegisterCacheDriver(t *testing.T) {
	RegisterCacheDriver(&mockDriver{name: "test-cache"})

	if _, err := GetCacheDriver("test-cache"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	expectPanic(t, func() { RegisterCacheDriver(&mockDriver{name: "test-cache"}) })
	expectPanic(t, func() { RegisterCacheDriver(nil) })
}

func TestGetDriverNotFound(t *testing.T) {
	_, err := GetDatabaseDriver("nonexistent")
	if err == nil {
		t.Fatal("expected error when getting non-existent driver")
	}
	if !strings.Contains(err.Error(), "data/all") {
		t.Errorf("expected import hint in error, got %q", err.Error())
	}
	if _, err := GetCacheDriver("nonexistent"); err == nil {
		t.Error("expected error when getting non-existent cache driver")
	}
}

func TestListRegisteredDrivers(t *testing.T) {
	RegisterDatabaseDriver(&mockDriver{name: "list-b"})
	RegisterDatabaseDriver(&mockDriver{name: "list-a"})

	drivers := ListRegisteredDrivers()
	names := strings.Join(drivers["database"], ",")
	if !strings.Contains(names, "list-a,list-b") {
		t.Errorf("expected sorted driver names, got %v", drivers["database"])
	}
	if _, ok := drivers["cache"]; !ok {
		t.Error("expected cache entry in driver listing")
	}
}

func TestDriverConcurrentAccess(t *testing.T) {
	RegisterDatabaseDriver(&mockDriver{name: "concurrent-test"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := GetDatabaseDriver("concurrent-test"); err != nil {
				t.Errorf("concurrent access failed: %v", err)
			}
		}()
	}
	wg.Wait()
}
