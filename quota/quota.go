// Package quota implements the per caller admission gate: a fixed window
// usage counter checked and incremented atomically before a job is queued.
package quota

import (
	"errors"
	"fmt"
	"time"

	"github.com/ncobase/genqueue/config"
)

// Roles with built-in meaning.
const (
	RoleAdmin    = "admin"
	RoleStudent  = "student"
	RoleAttorney = "attorney"
)

// ExceededMessage is shown to callers that ran out of quota.
const ExceededMessage = "You have reached your daily limit. Please upgrade your plan or wait 24 hours."

var (
	ErrUnauthorized  = errors.New("caller identity required")
	ErrInvalidCost   = errors.New("cost must be at least 1")
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// Caller identifies who is being charged.
type Caller struct {
	ID   string
	Role string
}

// IsAdmin reports whether the caller bypasses the quota.
func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Policy maps roles to limits per window.
type Policy struct {
	Limits       map[string]int
	DefaultLimit int
	Window       time.Duration
}

// DefaultPolicy returns the reference table: student 5, attorney 50, anyone
// else 100, per 24 hours.
func DefaultPolicy() Policy {
	return Policy{
		Limits:       map[string]int{RoleStudent: 5, RoleAttorney: 50},
		DefaultLimit: 100,
		Window:       24 * time.Hour,
	}
}

// PolicyFromConfig builds a policy from the quota section.
func PolicyFromConfig(c *config.Quota) Policy {
	p := DefaultPolicy()
	if c == nil {
		return p
	}
	if c.Limits != nil {
		p.Limits = make(map[string]int, len(c.Limits))
		for role, limit := range c.Limits {
			p.Limits[role] = limit
		}
	}
	if c.DefaultLimit > 0 {
		p.DefaultLimit = c.DefaultLimit
	}
	if c.Window > 0 {
		p.Window = c.Window
	}
	return p
}

// LimitFor returns the limit of role.
func (p Policy) LimitFor(role string) int {
	if limit, ok := p.Limits[role]; ok {
		return limit
	}
	return p.DefaultLimit
}

// Usage is a caller's counter within the current window.
type Usage struct {
	Used        int       `json:"used"`
	WindowStart time.Time `json:"window_start"`
}

// Decision describes an admitted request.
type Decision struct {
	Bypass    bool      `json:"bypass"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// QuotaError is returned when a request would exceed the caller's limit.
type QuotaError struct {
	CallerID string
	Role     string
	Used     int
	Limit    int
	Cost     int
	ResetAt  time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: used %d of %d, cost %d", e.CallerID, e.Used, e.Limit, e.Cost)
}

// Is matches ErrQuotaExceeded.
func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Message returns the text shown to the caller.
func (e *QuotaError) Message() string {
	return ExceededMessage
}
