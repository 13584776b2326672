package provider

import (
	"github.com/gin-gonic/gin"
	"github.com/ncobase/genqueue/handler"
	"github.com/ncobase/genqueue/logging/logger"
	"github.com/ncobase/genqueue/middleware"
)

// registerRest registers the REST routes.
func registerRest(e *gin.Engine, c *components) {
	log := logger.StdLogger()

	e.GET("/health", handler.Health(c.conf.AppName, c.started, c.data.Health))

	api := e.Group("/api")
	if rl := c.conf.RateLimit; rl != nil && rl.Enabled {
		cfg := middleware.RateLimitConfig{
			Limit:  rl.Limit,
			Window: rl.Window,
			Logger: log,
		}
		if c.data.Redis != nil {
			cfg.Counter = middleware.NewRedisCounter(c.data.Redis, "rl:")
		}
		api.Use(middleware.RateLimiter(cfg))
	}
	api.Use(middleware.Authenticate(c.tokens, log))

	handler.NewJobHandler(c.registry, c.gate, c.caps, log).Register(api)

	admin := api.Group("/admin", middleware.AdminOnly(log))
	handler.NewAdminHandler(c.registry, c.gate, log).Register(admin)
}
