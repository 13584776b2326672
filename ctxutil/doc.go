// Package ctxutil provides helpers for request-scoped values shared between
// gin handlers, middleware and background job execution.
//
// Values set through SetValue are written to both the *gin.Context (when one
// is embedded) and the standard context, so handlers and plain functions see
// the same caller:
//
//	ctx = ctxutil.SetUserID(ctx, "user-123")
//	ctx = ctxutil.SetUserRole(ctx, "student")
//	userID := ctxutil.GetUserID(ctx)
//
// Trace ids follow every request and every job it spawns:
//
//	ctx, traceID := ctxutil.EnsureTraceID(ctx)
//	jobCtx := ctxutil.Detach(ctx)
package ctxutil
