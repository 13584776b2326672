package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	logcfg "github.com/ncobase/genqueue/logging/logger/config"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. GENQUEUE_SERVER_PORT.
const EnvPrefix = "GENQUEUE"

var (
	config *Config
	path   string
	once   sync.Once
	mu     sync.Mutex
	v      *viper.Viper
)

// Config represents the configuration implementation.
type Config struct {
	AppName      string
	RunMode      string
	Host         string
	Port         int
	Logger       *logcfg.Config
	Auth         *Auth
	Quota        *Quota
	Queue        *Queue
	Capabilities *Capabilities
	Generator    *Generator
	Data         *Data
	RateLimit    *RateLimit
	Observes     *Observes
	Viper        *viper.Viper
}

func init() {
	flag.StringVar(&path, "conf", "", "e.g: bin ./config.yaml")
}

// SetPath overrides the configuration file used by Init and Reload.
func SetPath(p string) {
	mu.Lock()
	defer mu.Unlock()
	path = p
}

// Init initializes and loads the configuration.
func Init() (cfg *Config, err error) {
	once.Do(func() {
		cfg, err = loadConfiguration()
	})
	if err == nil && cfg == nil {
		cfg = config
	}
	return cfg, err
}

// GetConfig returns the configuration.
// It does not handle errors internally; instead, it returns the error for the caller to handle.
func GetConfig() (*Config, error) {
	mu.Lock()
	current := config
	mu.Unlock()
	if current != nil {
		return current, nil
	}
	cfg, err := Init()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}
	return cfg, nil
}

// loadConfiguration loads the configuration from the file and sets it globally.
func loadConfiguration() (*Config, error) {
	if !flag.Parsed() {
		flag.Parse()
	}
	mu.Lock()
	p := path
	mu.Unlock()

	cfg, err := LoadConfig(p)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	mu.Lock()
	config = cfg
	v = cfg.Viper
	mu.Unlock()
	return cfg, nil
}

// LoadConfig loads the configuration from the file. When configPath is empty
// the usual locations are searched and a missing file is tolerated, leaving
// defaults and GENQUEUE_* environment variables in effect.
func LoadConfig(configPath string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if configPath != "" {
		vp.SetConfigFile(configPath)
	} else {
		vp.SetConfigName("config")
		vp.AddConfigPath("/etc/genqueue")
		vp.AddConfigPath("$HOME/.genqueue")
		vp.AddConfigPath(".")
		if ex, err := os.Executable(); err == nil {
			vp.AddConfigPath(filepath.Dir(ex))
		}
	}

	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(vp), nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(vp *viper.Viper) *Config {
	return &Config{
		AppName:      getStringOrDefault(vp, "app_name", "genqueue"),
		RunMode:      getStringOrDefault(vp, "run_mode", "release"),
		Host:         getStringOrDefault(vp, "server.host", "0.0.0.0"),
		Port:         getIntOrDefault(vp, "server.port", 3000),
		Logger:       logcfg.GetConfig(vp),
		Auth:         getAuth(vp),
		Quota:        getQuotaConfig(vp),
		Queue:        getQueueConfig(vp),
		Capabilities: getCapabilitiesConfig(vp),
		Generator:    getGeneratorConfig(vp),
		Data:         getDataConfig(vp),
		RateLimit:    getRateLimitConfig(vp),
		Observes:     getObservesConfig(vp),
		Viper:        vp,
	}
}

// Reload reloads the configuration from the file.
func Reload() error {
	mu.Lock()
	defer mu.Unlock()

	newConfig, err := LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	config = newConfig
	return nil
}

// Watch watches the configuration file and reloads it when it changes.
func Watch(callback func(*Config)) {
	mu.Lock()
	vp := v
	mu.Unlock()
	if vp == nil {
		return
	}

	vp.OnConfigChange(func(e fsnotify.Event) {
		if err := Reload(); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
			return
		}
		mu.Lock()
		current := config
		mu.Unlock()
		callback(current)
	})
	vp.WatchConfig()
}
