package resp

import (
	"net/http"

	"github.com/ncobase/genqueue/ecode"
)

// UnAuthorized indicates that the request is unauthorized.
func UnAuthorized(message string, data ...any) *Exception {
	return newResponse(http.StatusUnauthorized, ecode.Unauthorized, message, data...)
}

// Forbidden indicates that access to the resource is forbidden.
func Forbidden(message string, data ...any) *Exception {
	return newResponse(http.StatusForbidden, ecode.AccessDenied, message, data...)
}

// BadRequest indicates a bad request.
func BadRequest(message string, data ...any) *Exception {
	return newResponse(http.StatusBadRequest, ecode.RequestErr, message, data...)
}

// NotFound indicates that the requested resource is not found.
func NotFound(message string, data ...any) *Exception {
	return newResponse(http.StatusNotFound, ecode.NotFound, message, data...)
}

// PaymentRequired indicates that the caller has exhausted its quota.
func PaymentRequired(title, message string, data ...any) *Exception {
	e := newResponse(http.StatusPaymentRequired, ecode.QuotaExceeded, message, data...)
	e.Error = title
	return e
}

// TooManyRequests indicates that the caller hit a rate limit.
func TooManyRequests(message string, data ...any) *Exception {
	return newResponse(http.StatusTooManyRequests, ecode.TooManyRequests, message, data...)
}

// InternalServer indicates an internal server error.
func InternalServer(message string, data ...any) *Exception {
	return newResponse(http.StatusInternalServerError, ecode.ServerErr, message, data...)
}
