package data

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Drivers register themselves from init functions, following database/sql,
// and are looked up by the name used in configuration.

// DatabaseDriver opens database/sql connections for the job store.
type DatabaseDriver interface {
	// Name returns the driver identifier (e.g., "postgres", "mysql", "sqlite")
	Name() string

	// Connect opens and verifies a connection from a *config.Data.
	Connect(ctx context.Context, cfg any) (any, error)

	// Close terminates the database connection and releases resources.
	Close(conn any) error

	// Ping verifies the connection is alive and functional.
	Ping(ctx context.Context, conn any) error
}

// CacheDriver opens key-value store connections from a *config.Redis.
type CacheDriver interface {
	// Name returns the driver identifier (e.g., "redis")
	Name() string

	// Connect establishes a new cache connection.
	Connect(ctx context.Context, cfg any) (any, error)

	// Close terminates the cache connection.
	Close(conn any) error

	// Ping verifies the cache connection is alive.
	Ping(ctx context.Context, conn any) error
}

var (
	databaseDrivers   = make(map[string]DatabaseDriver)
	databaseDriversMu sync.RWMutex

	cacheDrivers   = make(map[string]CacheDriver)
	cacheDriversMu sync.RWMutex
)

// RegisterDatabaseDriver makes a database driver available by the provided name.
// It is intended to be called from the init function in driver packages.
//
// If RegisterDatabaseDriver is called twice with the same name or if driver is nil,
// it panics.
func RegisterDatabaseDriver(driver DatabaseDriver) {
	databaseDriversMu.Lock()
	defer databaseDriversMu.Unlock()

	if driver == nil {
		panic("data: RegisterDatabaseDriver driver is nil")
	}

	name := driver.Name()
	if name == "" {
		panic("data: RegisterDatabaseDriver driver name is empty")
	}

	if _, exists := databaseDrivers[name]; exists {
		panic(fmt.Sprintf("data: RegisterDatabaseDriver called twice for driver %s", name))
	}

	databaseDrivers[name] = driver
}

// RegisterCacheDriver makes a cache driver available by the provided name.
// It follows the same pattern as RegisterDatabaseDriver.
func RegisterCacheDriver(driver CacheDriver) {
	cacheDriversMu.Lock()
	defer cacheDriversMu.Unlock()

	if driver == nil {
		panic("data: RegisterCacheDriver driver is nil")
	}

	name := driver.Name()
	if name == "" {
		panic("data: RegisterCacheDriver driver name is empty")
	}

	if _, exists := cacheDrivers[name]; exists {
		panic(fmt.Sprintf("data: RegisterCacheDriver called twice for driver %s", name))
	}

	cacheDrivers[name] = driver
}

// GetDatabaseDriver retrieves a registered database driver by name.
func GetDatabaseDriver(name string) (DatabaseDriver, error) {
	databaseDriversMu.RLock()
	defer databaseDriversMu.RUnlock()

	driver, ok := databaseDrivers[name]
	if !ok {
		return nil, fmt.Errorf(
			"data: database driver %q not registered, import github.com/ncobase/genqueue/data/all (available: %v)",
			name, sortedKeys(databaseDrivers),
		)
	}

	return driver, nil
}

// GetCacheDriver retrieves a registered cache driver by name.
func GetCacheDriver(name string) (CacheDriver, error) {
	cacheDriversMu.RLock()
	defer cacheDriversMu.RUnlock()

	driver, ok := cacheDrivers[name]
	if !ok {
		return nil, fmt.Errorf(
			"data: cache driver %q not registered, import github.com/ncobase/genqueue/data/all (available: %v)",
			name, sortedKeys(cacheDrivers),
		)
	}

	return driver, nil
}

// ListRegisteredDrivers returns a snapshot of all registered drivers.
func ListRegisteredDrivers() map[string][]string {
	result := make(map[string][]string)

	databaseDriversMu.RLock()
	result["database"] = sortedKeys(databaseDrivers)
	databaseDriversMu.RUnlock()

	cacheDriversMu.RLock()
	result["cache"] = sortedKeys(cacheDrivers)
	cacheDriversMu.RUnlock()

	return result
}

func sortedKeys[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
