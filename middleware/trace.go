package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/genqueue/ctxutil"
	"github.com/ncobase/genqueue/logging/logger"
)

// TraceHeader carries the request trace id in both directions.
const TraceHeader = "X-Trace-ID"

// Trace reuses the inbound trace id or assigns a new one, and echoes it.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader(TraceHeader); id != "" {
			ctx = ctxutil.SetTraceID(ctx, id)
		}
		ctx, traceID := ctxutil.EnsureTraceID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ctxutil.TraceIDKey, traceID)
		c.Header(TraceHeader, traceID)
		c.Next()
	}
}

// Logger logs every request once it completes.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", ctxutil.ClientIP(c),
		}
		if uid := ctxutil.GetUserID(ctx); uid != "" {
			fields = append(fields, "user_id", uid)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error(ctx, append([]any{"Request failed"}, fields...)...)
		case status >= 400:
			log.Warn(ctx, append([]any{"Request rejected"}, fields...)...)
		default:
			log.Info(ctx, append([]any{"Request handled"}, fields...)...)
		}
	}
}
