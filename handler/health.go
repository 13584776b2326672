package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/genqueue/net/resp"
	"github.com/ncobase/genqueue/version"
)

// HealthChecker reports the status of backing services.
type HealthChecker func(ctx context.Context) map[string]any

// Health returns the liveness handler. It always answers OK while the
// process serves requests; checker results are attached for operators.
func Health(name string, started time.Time, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":  "OK",
			"uptime":  time.Since(started).Seconds(),
			"name":    name,
			"version": version.GetVersionInfo().Version,
		}
		if checker != nil {
			body["data"] = checker(c.Request.Context())
		}
		resp.Success(c.Writer, body)
	}
}
