package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/ncobase/genqueue/config"
	"github.com/ncobase/genqueue/data/redisstore"
	"github.com/ncobase/genqueue/data/sqlstore"
	"github.com/ncobase/genqueue/queue"
	"github.com/redis/go-redis/v9"
)

// Data represents the data layer: the job store and the shared connections
// it was built on.
type Data struct {
	DB    *sql.DB
	Redis *redis.Client
	Jobs  queue.Store

	cfg      *config.Data
	dbDriver DatabaseDriver
	rdDriver CacheDriver

	mu     sync.Mutex
	closed bool
}

// New opens the connections named by cfg and builds the job store. The
// memory driver needs no connection. Redis is connected whenever an address
// is configured, as quota counters, rate limiting and the asynq dispatcher
// can use it regardless of the job store.
func New(ctx context.Context, cfg *config.Data) (*Data, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("data: config is nil")
	}
	d := &Data{cfg: cfg}

	if cfg.Redis.Enabled() {
		drv, err := GetCacheDriver(config.DriverRedis)
		if err != nil {
			return nil, nil, err
		}
		conn, err := drv.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		d.Redis = conn.(*redis.Client)
		d.rdDriver = drv
	}

	cleanup := func() {
		if errs := d.Close(); len(errs) > 0 {
			fmt.Printf("data cleanup errors: %v\n", errs)
		}
	}

	switch {
	case cfg.Driver == "" || cfg.Driver == config.DriverMemory:
		d.Jobs = queue.NewMemoryStore()
	case cfg.Driver == config.DriverRedis:
		if d.Redis == nil {
			cleanup()
			return nil, nil, errors.New("data: redis job store requires data.redis.addr")
		}
		d.Jobs = redisstore.New(d.Redis, "")
	case cfg.IsSQL():
		if err := d.openSQL(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
	default:
		cleanup()
		return nil, nil, fmt.Errorf("data: unsupported driver %q", cfg.Driver)
	}

	return d, cleanup, nil
}

func (d *Data) openSQL(ctx context.Context) error {
	drv, err := GetDatabaseDriver(d.cfg.Driver)
	if err != nil {
		return err
	}
	conn, err := drv.Connect(ctx, d.cfg)
	if err != nil {
		return err
	}
	d.DB = conn.(*sql.DB)
	d.dbDriver = drv

	dialect, err := sqlstore.DialectFor(d.cfg.Driver)
	if err != nil {
		return err
	}
	store, err := sqlstore.New(ctx, d.DB, dialect)
	if err != nil {
		return err
	}
	d.Jobs = store
	return nil
}

// Driver returns the configured job store driver.
func (d *Data) Driver() string {
	if d.cfg.Driver == "" {
		return config.DriverMemory
	}
	return d.cfg.Driver
}

// Close closes the job store and every connection.
func (d *Data) Close() []error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if d.Jobs != nil {
		if err := d.Jobs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.DB != nil && d.dbDriver != nil {
		if err := d.dbDriver.Close(d.DB); err != nil {
			errs = append(errs, err)
		}
		d.DB = nil
	}
	if d.Redis != nil && d.rdDriver != nil {
		if err := d.rdDriver.Close(d.Redis); err != nil {
			errs = append(errs, err)
		}
		d.Redis = nil
	}
	return errs
}
