package ecode

import (
	"net/http"
	"sync"
)

const (
	OK = 0

	// Authentication
	NoLogin      = -101
	Unauthorized = -102
	AccessDenied = -403

	// Request
	RequestErr = -400
	ParamErr   = -401

	// Resource
	NotFound     = -404
	NothingFound = -405
	Conflict     = -409

	// Business
	QuotaExceeded   = -402
	TooManyRequests = -429

	// Server
	ServerErr          = -500
	ServiceUnavailable = -503
	Deadline           = -504
)

var (
	mu       sync.RWMutex
	messages = map[int]string{
		OK:                 "ok",
		NoLogin:            "Account not logged in",
		Unauthorized:       "Unauthorized",
		AccessDenied:       "Access denied",
		RequestErr:         "Invalid request",
		ParamErr:           "Invalid parameters",
		NotFound:           "Not found",
		NothingFound:       "Nothing found",
		Conflict:           "Conflict",
		QuotaExceeded:      "Quota exceeded",
		TooManyRequests:    "Too many requests",
		ServerErr:          "Internal server error",
		ServiceUnavailable: "Service unavailable",
		Deadline:           "Deadline exceeded",
	}
	statuses = map[int]int{
		OK:                 http.StatusOK,
		NoLogin:            http.StatusUnauthorized,
		Unauthorized:       http.StatusUnauthorized,
		AccessDenied:       http.StatusForbidden,
		RequestErr:         http.StatusBadRequest,
		ParamErr:           http.StatusBadRequest,
		NotFound:           http.StatusNotFound,
		NothingFound:       http.StatusNotFound,
		Conflict:           http.StatusConflict,
		QuotaExceeded:      http.StatusPaymentRequired,
		TooManyRequests:    http.StatusTooManyRequests,
		ServerErr:          http.StatusInternalServerError,
		ServiceUnavailable: http.StatusServiceUnavailable,
		Deadline:           http.StatusGatewayTimeout,
	}
)

// Text returns the message registered for code.
func Text(code int) string {
	mu.RLock()
	defer mu.RUnlock()
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[ServerErr]
}

// Register adds or replaces the message of a custom code.
func Register(code int, message string) {
	mu.Lock()
	defer mu.Unlock()
	messages[code] = message
}

// ToHTTPStatus maps a business code to its HTTP status.
func ToHTTPStatus(code int) int {
	mu.RLock()
	defer mu.RUnlock()
	if status, ok := statuses[code]; ok {
		return status
	}
	if code == OK {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
