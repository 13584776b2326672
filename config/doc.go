// Package config loads the service configuration with Viper.
//
// The file is looked up from the -conf flag, or as config.{yaml,json,toml}
// in /etc/genqueue, $HOME/.genqueue, the working directory and the binary
// directory. Every key can be overridden from the environment with the
// GENQUEUE_ prefix, dots replaced by underscores:
//
//	GENQUEUE_SERVER_PORT=8080
//	GENQUEUE_AUTH_JWT_SECRET=change-me
//
// Example YAML:
//
//	app_name: genqueue
//	run_mode: release
//	server:
//	  host: 0.0.0.0
//	  port: 3000
//	auth:
//	  jwt:
//	    secret: change-me
//	    expire: 24h
//	quota:
//	  window: 24h
//	  default_limit: 100
//	  limits:
//	    student: 5
//	    attorney: 50
//	queue:
//	  driver: pool        # pool | asynq (asynq needs data.redis and a non memory data.driver)
//	  max_workers: 10
//	  queue_size: 1000
//	  job_timeout: 2m
//	capabilities:
//	  reviewer:
//	    cost: 5
//	generator:
//	  provider: static    # static | ollama
//	data:
//	  driver: memory      # memory | sqlite | sqlite3 | postgres | mysql | redis
//	  redis:
//	    addr: localhost:6379
//
// Watch reloads the file on change and hands the new Config to a callback:
//
//	config.Watch(func(c *config.Config) {
//	    gate.SetPolicy(quota.PolicyFromConfig(c.Quota))
//	})
package config
