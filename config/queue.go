package config

import (
	"time"

	"github.com/spf13/viper"
)

// Queue dispatch drivers
const (
	QueueDriverPool  = "pool"
	QueueDriverAsynq = "asynq"
)

// Queue job queue config struct
type Queue struct {
	Driver           string
	MaxWorkers       int
	QueueSize        int
	JobTimeout       time.Duration
	Retention        time.Duration
	PurgeInterval    time.Duration
	AsynqConcurrency int
}

// getQueueConfig returns the queue config.
func getQueueConfig(v *viper.Viper) *Queue {
	return &Queue{
		Driver:           getStringOrDefault(v, "queue.driver", QueueDriverPool),
		MaxWorkers:       getIntOrDefault(v, "queue.max_workers", 10),
		QueueSize:        getIntOrDefault(v, "queue.queue_size", 1000),
		JobTimeout:       getDurationOrDefault(v, "queue.job_timeout", 2*time.Minute),
		Retention:        getDurationOrDefault(v, "queue.retention", 0),
		PurgeInterval:    getDurationOrDefault(v, "queue.purge_interval", time.Hour),
		AsynqConcurrency: getIntOrDefault(v, "queue.asynq_concurrency", 10),
	}
}

// Capabilities holds per capability cost overrides.
type Capabilities struct {
	Costs map[string]int
}

// getCapabilitiesConfig reads capabilities.<name>.cost entries.
func getCapabilitiesConfig(v *viper.Viper) *Capabilities {
	costs := make(map[string]int)
	for name := range v.GetStringMap("capabilities") {
		key := "capabilities." + name + ".cost"
		if v.IsSet(key) {
			costs[name] = v.GetInt(key)
		}
	}
	return &Capabilities{Costs: costs}
}

// Generator providers
const (
	GeneratorStatic = "static"
	GeneratorOllama = "ollama"
)

// Generator text generation backend config struct
type Generator struct {
	Provider string
	Ollama   *Ollama
}

// Ollama compatible HTTP endpoint config struct
type Ollama struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// getGeneratorConfig returns the generator config.
func getGeneratorConfig(v *viper.Viper) *Generator {
	return &Generator{
		Provider: getStringOrDefault(v, "generator.provider", GeneratorStatic),
		Ollama: &Ollama{
			Host:    getStringOrDefault(v, "generator.ollama.host", "http://localhost:11434"),
			Model:   getStringOrDefault(v, "generator.ollama.model", "llama3.2"),
			Timeout: getDurationOrDefault(v, "generator.ollama.timeout", 90*time.Second),
		},
	}
}
