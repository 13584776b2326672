package quota

import (
	"context"
	"sync"
	"time"

	"github.com/ncobase/genqueue/logging/logger"
)

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger used by the gate.
func WithLogger(l *logger.Logger) Option {
	return func(g *Gate) { g.log = l }
}

// Gate admits or rejects requests by the caller's remaining quota.
type Gate struct {
	store UsageStore
	now   func() time.Time
	log   *logger.Logger

	mu     sync.RWMutex
	policy Policy
}

// NewGate creates a gate charging usage to store under policy.
func NewGate(store UsageStore, policy Policy, opts ...Option) *Gate {
	g := &Gate{
		store:  store,
		policy: policy,
		now:    time.Now,
		log:    logger.StdLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the current policy.
func (g *Gate) Policy() Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policy
}

// SetPolicy replaces the policy. Counters are kept.
func (g *Gate) SetPolicy(p Policy) {
	g.mu.Lock()
	g.policy = p
	g.mu.Unlock()
}

// Check charges cost units to caller. Admins pass without being charged.
// A rejected request returns a *QuotaError and leaves the counter as it was.
func (g *Gate) Check(ctx context.Context, caller *Caller, cost int) (Decision, error) {
	if caller == nil || caller.ID == "" || caller.Role == "" {
		return Decision{}, ErrUnauthorized
	}
	if cost < 1 {
		return Decision{}, ErrInvalidCost
	}
	if caller.IsAdmin() {
		return Decision{Bypass: true}, nil
	}

	p := g.Policy()
	limit := p.LimitFor(caller.Role)
	u, allowed, err := g.store.Consume(ctx, caller.ID, cost, limit, p.Window, g.now())
	if err != nil {
		return Decision{}, err
	}

	resetAt := u.WindowStart.Add(p.Window)
	if !allowed {
		g.log.Info(ctx, "Quota exceeded", "user_id", caller.ID, "role", caller.Role, "used", u.Used, "limit", limit, "cost", cost)
		return Decision{}, &QuotaError{
			CallerID: caller.ID,
			Role:     caller.Role,
			Used:     u.Used,
			Limit:    limit,
			Cost:     cost,
			ResetAt:  resetAt,
		}
	}

	remaining := limit - u.Used
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Used: u.Used, Limit: limit, Remaining: remaining, ResetAt: resetAt}, nil
}

// Refund returns cost units charged by a Check whose request did not go
// through.
func (g *Gate) Refund(ctx context.Context, caller *Caller, cost int) error {
	if caller == nil || caller.ID == "" || caller.IsAdmin() || cost < 1 {
		return nil
	}
	return g.store.Refund(ctx, caller.ID, cost)
}

// Usage returns the caller's counter in the current window.
func (g *Gate) Usage(ctx context.Context, callerID string) (Usage, error) {
	return g.store.Get(ctx, callerID, g.Policy().Window, g.now())
}

// Reset empties the caller's counter and starts a new window.
func (g *Gate) Reset(ctx context.Context, callerID string) error {
	if err := g.store.Reset(ctx, callerID, g.Policy().Window, g.now()); err != nil {
		return err
	}
	g.log.Info(ctx, "Quota reset", "user_id", callerID)
	return nil
}
