package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ncobase/genqueue/config"
)

// OpenDB opens a database/sql handle with the named sql driver, applies the
// pool settings of cfg and verifies it with a ping. defaultMaxOpen is used
// when cfg leaves MaxOpenConn unset.
func OpenDB(ctx context.Context, sqlDriver string, cfg *config.Data, defaultMaxOpen int) (*sql.DB, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("%s: connection source is empty", cfg.Driver)
	}

	db, err := sql.Open(sqlDriver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open connection: %w", cfg.Driver, err)
	}

	if cfg.MaxIdleConn > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	switch {
	case cfg.MaxOpenConn > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConn)
	case defaultMaxOpen > 0:
		db.SetMaxOpenConns(defaultMaxOpen)
	}
	if cfg.ConnMaxLifeTime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifeTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", cfg.Driver, err)
	}

	return db, nil
}

// CloseDB closes a connection returned by a DatabaseDriver.
func CloseDB(conn any) error {
	db, ok := conn.(*sql.DB)
	if !ok {
		return fmt.Errorf("data: invalid connection type, expected *sql.DB")
	}
	return db.Close()
}

// PingDB pings a connection returned by a DatabaseDriver.
func PingDB(ctx context.Context, conn any) error {
	db, ok := conn.(*sql.DB)
	if !ok {
		return fmt.Errorf("data: invalid connection type, expected *sql.DB")
	}
	return db.PingContext(ctx)
}
