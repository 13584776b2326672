package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/ncobase/genqueue/queue"
	"github.com/ncobase/genqueue/queue/queuetest"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStore(t *testing.T) {
	queuetest.RunStoreTests(t, func(t *testing.T) queue.Store {
		s, err := New(context.Background(), openTestDB(t), DialectSQLite)
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		return s
	})
}

func TestNew_SchemaIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 2; i++ {
		if _, err := New(context.Background(), db, DialectSQLite); err != nil {
			t.Fatalf("init schema pass %d: %v", i, err)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	got := pg.rebind(`UPDATE gen_jobs SET status = ? WHERE id = ? AND status = ?`)
	want := `UPDATE gen_jobs SET status = $1 WHERE id = $2 AND status = $3`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	my := &Store{dialect: DialectMySQL}
	if q := my.rebind(`SELECT ? `); q != `SELECT ? ` {
		t.Errorf("expected mysql query unchanged, got %q", q)
	}
}

func TestDialectFor(t *testing.T) {
	tests := map[string]Dialect{
		"sqlite":   DialectSQLite,
		"sqlite3":  DialectSQLite,
		"postgres": DialectPostgres,
		"mysql":    DialectMySQL,
	}
	for driver, want := range tests {
		got, err := DialectFor(driver)
		if err != nil || got != want {
			t.Errorf("%s: expected %s, got %s (%v)", driver, want, got, err)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
