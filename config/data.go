package config

import (
	"time"

	"github.com/spf13/viper"
)

// Data store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverRedis    = "redis"
)

// Data job record store config struct
type Data struct {
	Driver          string
	Source          string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifeTime time.Duration
	Redis           *Redis
}

// IsSQL reports whether the driver is backed by database/sql.
func (d *Data) IsSQL() bool {
	switch d.Driver {
	case DriverSQLite, DriverSQLite3, DriverPostgres, DriverMySQL:
		return true
	}
	return false
}

// Redis config struct
type Redis struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
}

// Enabled reports whether a redis address is configured.
func (r *Redis) Enabled() bool {
	return r != nil && r.Addr != ""
}

// getDataConfig returns the data config.
func getDataConfig(v *viper.Viper) *Data {
	return &Data{
		Driver:          getStringOrDefault(v, "data.driver", DriverMemory),
		Source:          v.GetString("data.source"),
		MaxIdleConn:     getIntOrDefault(v, "data.max_idle_conn", 0),
		MaxOpenConn:     getIntOrDefault(v, "data.max_open_conn", 0),
		ConnMaxLifeTime: getDurationOrDefault(v, "data.conn_max_life_time", 0),
		Redis: &Redis{
			Addr:         v.GetString("data.redis.addr"),
			Username:     v.GetString("data.redis.username"),
			Password:     v.GetString("data.redis.password"),
			DB:           v.GetInt("data.redis.db"),
			ReadTimeout:  getDurationOrDefault(v, "data.redis.read_timeout", 3*time.Second),
			WriteTimeout: getDurationOrDefault(v, "data.redis.write_timeout", 3*time.Second),
			DialTimeout:  getDurationOrDefault(v, "data.redis.dial_timeout", 5*time.Second),
		},
	}
}
