package client

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds client settings read from the environment.
type Config struct {
	APIURL       string        `env:"GENQUEUE_API_URL" envDefault:"http://localhost:3000/api"`
	Token        string        `env:"GENQUEUE_TOKEN"`
	PollInterval time.Duration `env:"GENQUEUE_POLL_INTERVAL" envDefault:"2s"`
	PollAttempts int           `env:"GENQUEUE_POLL_ATTEMPTS" envDefault:"30"`
	HTTPTimeout  time.Duration `env:"GENQUEUE_HTTP_TIMEOUT" envDefault:"30s"`
}

// LoadConfig parses the client settings from the environment.
func LoadConfig() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
