package ctxutil

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ctxKey scopes values stored with context.WithValue.
type ctxKey string

const (
	ginContextKey ctxKey = "gin_context"
	TraceIDKey           = "trace_id"
	userIDKey            = "user_id"
	userRoleKey          = "user_role"
	tokenKey             = "token"
)

// WithGinContext returns a context.Context that embeds the *gin.Context.
func WithGinContext(ctx context.Context, c *gin.Context) context.Context {
	return context.WithValue(ctx, ginContextKey, c)
}

// GetGinContext extracts *gin.Context from context.Context if it exists.
func GetGinContext(ctx context.Context) (*gin.Context, bool) {
	if ctx == nil {
		return nil, false
	}
	if c, ok := ctx.(*gin.Context); ok {
		return c, true
	}
	if c, ok := ctx.Value(ginContextKey).(*gin.Context); ok {
		return c, ok
	}
	return nil, false
}

// GetValue retrieves a value from the context.
func GetValue(ctx context.Context, key string) any {
	if ctx == nil {
		return nil
	}
	if c, ok := GetGinContext(ctx); ok {
		if val, exists := c.Get(key); exists {
			return val
		}
	}
	return ctx.Value(ctxKey(key))
}

// SetValue sets a value to the context.
func SetValue(ctx context.Context, key string, val any) context.Context {
	if c, ok := GetGinContext(ctx); ok {
		c.Set(key, val)
	}
	return context.WithValue(ctx, ctxKey(key), val)
}

// SetUserID sets user id to context.Context.
func SetUserID(ctx context.Context, uid string) context.Context {
	return SetValue(ctx, userIDKey, uid)
}

// GetUserID gets user id from context.Context.
func GetUserID(ctx context.Context) string {
	if uid, ok := GetValue(ctx, userIDKey).(string); ok {
		return uid
	}
	return ""
}

// SetUserRole sets the caller role to context.Context.
func SetUserRole(ctx context.Context, role string) context.Context {
	return SetValue(ctx, userRoleKey, role)
}

// GetUserRole gets the caller role from context.Context.
func GetUserRole(ctx context.Context) string {
	if role, ok := GetValue(ctx, userRoleKey).(string); ok {
		return role
	}
	return ""
}

// SetToken sets token to context.Context.
func SetToken(ctx context.Context, token string) context.Context {
	return SetValue(ctx, tokenKey, token)
}

// GetToken gets token from context.Context.
func GetToken(ctx context.Context) string {
	if token, ok := GetValue(ctx, tokenKey).(string); ok {
		return token
	}
	return ""
}

// GetTraceID gets trace id from context.Context or gin.Context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := GetValue(ctx, TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// SetTraceID sets trace id to context.Context and gin.Context if available.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	return SetValue(ctx, TraceIDKey, traceID)
}

// EnsureTraceID ensures that a trace ID exists in the context.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if traceID := GetTraceID(ctx); traceID != "" {
		return ctx, traceID
	}
	traceID := uuid.NewString()
	return SetTraceID(ctx, traceID), traceID
}

// Detach returns a background context carrying the trace id and caller of
// ctx, for work that outlives the request.
func Detach(ctx context.Context) context.Context {
	return CopyValues(context.Background(), ctx)
}

// CopyValues copies the trace id and caller of src onto dst.
func CopyValues(dst, src context.Context) context.Context {
	if traceID := GetTraceID(src); traceID != "" {
		dst = SetTraceID(dst, traceID)
	}
	if uid := GetUserID(src); uid != "" {
		dst = SetUserID(dst, uid)
	}
	if role := GetUserRole(src); role != "" {
		dst = SetUserRole(dst, role)
	}
	return dst
}
