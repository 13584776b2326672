// Package mysql registers the MySQL database driver backed by
// github.com/go-sql-driver/mysql. The DSN must set parseTime=true:
//
//	data:
//	  driver: mysql
//	  source: user:pass@tcp(localhost:3306)/genqueue?parseTime=true
package mysql

import (
	"context"
	"fmt"

	"github.com/ncobase/genqueue/config"
	"github.com/ncobase/genqueue/data"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

type driver struct{}

func (d *driver) Name() string {
	return config.DriverMySQL
}

func (d *driver) Connect(ctx context.Context, cfg any) (any, error) {
	dbCfg, ok := cfg.(*config.Data)
	if !ok {
		return nil, fmt.Errorf("mysql: invalid configuration type, expected *config.Data")
	}
	return data.OpenDB(ctx, "mysql", dbCfg, 0)
}

func (d *driver) Close(conn any) error {
	return data.CloseDB(conn)
}

func (d *driver) Ping(ctx context.Context, conn any) error {
	return data.PingDB(ctx, conn)
}

func init() {
	data.RegisterDatabaseDriver(&driver{})
}
