package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ncobase/genqueue/concurrency/worker"
	"github.com/ncobase/genqueue/config"
	"github.com/ncobase/genqueue/data"
	_ "github.com/ncobase/genqueue/data/all"
	"github.com/ncobase/genqueue/generation"
	"github.com/ncobase/genqueue/logging/logger"
	"github.com/ncobase/genqueue/logging/observes"
	"github.com/ncobase/genqueue/queue"
	"github.com/ncobase/genqueue/quota"
	"github.com/ncobase/genqueue/security/jwt"
	"github.com/ncobase/genqueue/version"
)

const stopTimeout = 10 * time.Second

// components holds everything the HTTP layer is built on.
type components struct {
	conf     *config.Config
	data     *data.Data
	registry *queue.Registry
	gate     *quota.Gate
	caps     []generation.Capability
	tokens   *jwt.TokenManager
	started  time.Time
}

// NewServer creates a new server.
func NewServer(conf *config.Config) (http.Handler, func(), error) {
	ctx := context.Background()
	log := logger.StdLogger()

	shutdownTracer, err := initObserves(conf)
	if err != nil {
		return nil, nil, err
	}

	d, cleanupData, err := data.New(ctx, conf.Data)
	if err != nil {
		logger.Errorf(ctx, "Failed initializing data layer: %+v", err)
		return nil, nil, err
	}

	dispatcher, err := newDispatcher(conf)
	if err != nil {
		cleanupData()
		return nil, nil, err
	}

	registry := queue.NewRegistry(d.Jobs, dispatcher,
		queue.WithJobTimeout(conf.Queue.JobTimeout),
		queue.WithLogger(log),
	)

	caps := generation.Capabilities(conf.Capabilities)
	gens, err := generation.NewGenerators(conf.Generator, caps)
	if err != nil {
		cleanupData()
		return nil, nil, fmt.Errorf("failed initializing generators: %w", err)
	}
	if err := generation.Bind(registry, caps, gens); err != nil {
		cleanupData()
		return nil, nil, err
	}
	if err := registry.Start(); err != nil {
		cleanupData()
		return nil, nil, fmt.Errorf("failed starting queues: %w", err)
	}

	gate := quota.NewGate(newUsageStore(d), quota.PolicyFromConfig(conf.Quota), quota.WithLogger(log))
	config.Watch(func(c *config.Config) {
		gate.SetPolicy(quota.PolicyFromConfig(c.Quota))
		logger.Infof(context.Background(), "Quota policy reloaded")
	})

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go registry.RunJanitor(janitorCtx, conf.Queue.Retention, conf.Queue.PurgeInterval)

	c := &components{
		conf:     conf,
		data:     d,
		registry: registry,
		gate:     gate,
		caps:     caps,
		tokens:   jwt.NewTokenManager(conf.Auth.JWT.Secret, conf.Auth.JWT.Expire),
		started:  time.Now(),
	}

	router, err := ginServer(c)
	if err != nil {
		stopJanitor()
		_ = registry.Stop(ctx)
		cleanupData()
		return nil, nil, err
	}

	logger.Infof(ctx, "Serving capabilities %v on %s dispatcher", registry.Names(), conf.Queue.Driver)

	return router, func() {
		stopJanitor()
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := registry.Stop(stopCtx); err != nil {
			logger.Errorf(stopCtx, "Error stopping queues: %v", err)
		}
		cleanupData()
		if shutdownTracer != nil {
			if err := shutdownTracer(stopCtx); err != nil {
				logger.Errorf(stopCtx, "Error shutting down tracer: %v", err)
			}
		}
		observes.FlushSentry(2 * time.Second)
	}, nil
}

// newDispatcher selects the in process pool or the Redis backed asynq
// dispatcher.
func newDispatcher(conf *config.Config) (queue.Dispatcher, error) {
	q := conf.Queue
	switch q.Driver {
	case "", config.QueueDriverPool:
		return queue.NewPoolDispatcher(&worker.Config{
			MaxWorkers: q.MaxWorkers,
			QueueSize:  q.QueueSize,
		})
	case config.QueueDriverAsynq:
		rc := conf.Data.Redis
		if !rc.Enabled() {
			return nil, fmt.Errorf("queue driver %q requires data.redis.addr", q.Driver)
		}
		// tasks may run on any instance, so the job store must be shared too
		if d := conf.Data.Driver; d == "" || d == config.DriverMemory {
			return nil, fmt.Errorf("queue driver %q requires a shared job store, got data.driver %q", q.Driver, config.DriverMemory)
		}
		return queue.NewAsynqDispatcher(asynq.RedisClientOpt{
			Addr:         rc.Addr,
			Username:     rc.Username,
			Password:     rc.Password,
			DB:           rc.DB,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
		}, queue.AsynqConfig{
			Queue:       conf.AppName,
			Concurrency: q.AsynqConcurrency,
		}), nil
	}
	return nil, fmt.Errorf("unknown queue driver %q", q.Driver)
}

// newUsageStore keeps quota counters in Redis when it is configured so they
// are shared across instances.
func newUsageStore(d *data.Data) quota.UsageStore {
	if d.Redis != nil {
		return quota.NewRedisUsage(d.Redis, "")
	}
	return quota.NewMemoryUsage()
}

// initObserves starts Sentry and the OTLP tracer when they are configured.
func initObserves(conf *config.Config) (func(context.Context) error, error) {
	if conf.Observes == nil {
		return nil, nil
	}
	info := version.GetVersionInfo()

	if s := conf.Observes.Sentry; s != nil && s.Endpoint != "" {
		release := s.Release
		if release == "" {
			release = info.Version
		}
		if err := observes.NewSentry(&observes.SentryOptions{
			Dsn:         s.Endpoint,
			Name:        conf.AppName,
			Release:     release,
			Environment: s.Environment,
			SampleRate:  s.SampleRate,
		}); err != nil {
			return nil, fmt.Errorf("failed initializing sentry: %w", err)
		}
	}

	t := conf.Observes.Tracer
	if t == nil || t.Endpoint == "" {
		return nil, nil
	}
	name := t.ServiceName
	if name == "" {
		name = conf.AppName
	}
	shutdown, err := observes.NewTracer(&observes.TracerOption{
		URL:                t.Endpoint,
		Name:               name,
		Version:            info.Version,
		Branch:             info.Branch,
		Revision:           info.Revision,
		Environment:        t.Environment,
		SamplingRate:       t.SamplingRate,
		BatchTimeout:       t.BatchTimeout,
		ExportTimeout:      t.ExportTimeout,
		MaxExportBatchSize: t.MaxExportBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed initializing tracer: %w", err)
	}
	return shutdown, nil
}
