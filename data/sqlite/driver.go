// Package sqlite registers the SQLite database drivers.
//
// Two drivers are provided:
//
//	sqlite   modernc.org/sqlite, pure Go
//	sqlite3  github.com/mattn/go-sqlite3, requires CGO
//
// Both accept the usual DSN forms, e.g. "file:genqueue.db?cache=shared" or
// "file::memory:?cache=shared".
package sqlite

import (
	"context"
	"fmt"

	"github.com/ncobase/genqueue/config"
	"github.com/ncobase/genqueue/data"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	_ "modernc.org/sqlite"          // sqlite driver
)

// driver implements data.DatabaseDriver for one SQLite binding.
type driver struct {
	name      string
	sqlDriver string
}

// Name returns the driver identifier used in configuration files.
func (d *driver) Name() string {
	return d.name
}

// Connect opens a SQLite database. SQLite serialises writers, so the pool
// is limited to one open connection unless configured otherwise.
func (d *driver) Connect(ctx context.Context, cfg any) (any, error) {
	dbCfg, ok := cfg.(*config.Data)
	if !ok {
		return nil, fmt.Errorf("%s: invalid configuration type, expected *config.Data", d.name)
	}
	return data.OpenDB(ctx, d.sqlDriver, dbCfg, 1)
}

// Close terminates the SQLite connection and releases resources.
func (d *driver) Close(conn any) error {
	return data.CloseDB(conn)
}

// Ping verifies the connection is alive.
func (d *driver) Ping(ctx context.Context, conn any) error {
	return data.PingDB(ctx, conn)
}

func init() {
	data.RegisterDatabaseDriver(&driver{name: config.DriverSQLite, sqlDriver: "sqlite"})
	data.RegisterDatabaseDriver(&driver{name: config.DriverSQLite3, sqlDriver: "sqlite3"})
}
