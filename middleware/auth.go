// Package middleware provides the gin middleware of the API: bearer token
// authentication, admin authorization, request tracing and logging, and the
// per client rate limiter.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/genqueue/ctxutil"
	"github.com/ncobase/genqueue/logging/logger"
	"github.com/ncobase/genqueue/net/resp"
	"github.com/ncobase/genqueue/quota"
	"github.com/ncobase/genqueue/security/jwt"
)

// Authenticate validates the bearer token and stores the caller id and role
// on the request context.
func Authenticate(tm *jwt.TokenManager, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			resp.Fail(c.Writer, resp.UnAuthorized("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			resp.Fail(c.Writer, resp.UnAuthorized("invalid authorization header format"))
			c.Abort()
			return
		}
		token := strings.TrimSpace(parts[1])

		claims, err := tm.DecodeToken(token)
		if err != nil {
			log.Warn(c.Request.Context(), "Invalid token", "error", err)
			resp.Fail(c.Writer, resp.UnAuthorized("invalid or expired token"))
			c.Abort()
			return
		}

		userID := jwt.GetUserIDFromToken(claims)
		role := jwt.GetRoleFromToken(claims)
		if userID == "" || role == "" {
			resp.Fail(c.Writer, resp.UnAuthorized("invalid token payload"))
			c.Abort()
			return
		}

		ctx := ctxutil.SetUserID(c.Request.Context(), userID)
		ctx = ctxutil.SetUserRole(ctx, role)
		ctx = ctxutil.SetToken(ctx, token)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", userID)
		c.Set("user_role", role)

		c.Next()
	}
}

// AdminOnly rejects callers without the admin role.
func AdminOnly(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CurrentCaller(c)
		if caller == nil {
			resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
			c.Abort()
			return
		}
		if !caller.IsAdmin() {
			log.Warn(c.Request.Context(), "Access denied", "user_id", caller.ID, "user_role", caller.Role)
			resp.Fail(c.Writer, resp.Forbidden("insufficient permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentCaller returns the authenticated caller, or nil.
func CurrentCaller(c *gin.Context) *quota.Caller {
	ctx := c.Request.Context()
	id := ctxutil.GetUserID(ctx)
	if id == "" {
		return nil
	}
	return &quota.Caller{ID: id, Role: ctxutil.GetUserRole(ctx)}
}
