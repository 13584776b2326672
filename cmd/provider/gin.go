package provider

import (
	"github.com/gin-gonic/gin"
	"github.com/ncobase/genqueue/ecode"
	"github.com/ncobase/genqueue/logging/logger"
	"github.com/ncobase/genqueue/middleware"
	"github.com/ncobase/genqueue/net/resp"
)

// ginServer creates and initializes the server.
func ginServer(c *components) (*gin.Engine, error) {
	// Set gin mode
	if c.conf.RunMode == "" {
		c.conf.RunMode = gin.ReleaseMode
	}
	gin.SetMode(c.conf.RunMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.Trace(), middleware.Logger(logger.StdLogger()))

	registerRest(engine, c)

	// No route
	engine.NoRoute(func(ctx *gin.Context) {
		resp.Fail(ctx.Writer, resp.NotFound(ecode.Text(ecode.NotFound)))
	})

	return engine, nil
}
