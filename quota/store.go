package quota

import (
	"context"
	"sync"
	"time"
)

// UsageStore keeps usage counters. Consume must apply the window reset and
// the check-and-increment as one atomic step per caller.
type UsageStore interface {
	// Consume resets the window when now-WindowStart exceeds window, then
	// adds cost if the result stays within limit. It reports the counter
	// after the call and whether cost was added.
	Consume(ctx context.Context, callerID string, cost, limit int, window time.Duration, now time.Time) (Usage, bool, error)
	// Refund subtracts cost, never going below zero.
	Refund(ctx context.Context, callerID string, cost int) error
	// Get returns the counter, with an expired window reported as empty.
	Get(ctx context.Context, callerID string, window time.Duration, now time.Time) (Usage, error)
	// Reset starts a new empty window of the given length at now.
	Reset(ctx context.Context, callerID string, window time.Duration, now time.Time) error
}

// MemoryUsage keeps counters in process memory for the process lifetime.
type MemoryUsage struct {
	mu     sync.Mutex
	counts map[string]*Usage
}

// NewMemoryUsage creates an empty in-memory usage store.
func NewMemoryUsage() *MemoryUsage {
	return &MemoryUsage{counts: make(map[string]*Usage)}
}

func expired(u *Usage, window time.Duration, now time.Time) bool {
	return now.Sub(u.WindowStart) > window
}

func (m *MemoryUsage) Consume(_ context.Context, callerID string, cost, limit int, window time.Duration, now time.Time) (Usage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.counts[callerID]
	if !ok || expired(u, window, now) {
		u = &Usage{WindowStart: now}
		m.counts[callerID] = u
	}
	if u.Used+cost > limit {
		return *u, false, nil
	}
	u.Used += cost
	return *u, true, nil
}

func (m *MemoryUsage) Refund(_ context.Context, callerID string, cost int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.counts[callerID]; ok {
		u.Used -= cost
		if u.Used < 0 {
			u.Used = 0
		}
	}
	return nil
}

func (m *MemoryUsage) Get(_ context.Context, callerID string, window time.Duration, now time.Time) (Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.counts[callerID]
	if !ok || expired(u, window, now) {
		return Usage{WindowStart: now}, nil
	}
	return *u, nil
}

func (m *MemoryUsage) Reset(_ context.Context, callerID string, _ time.Duration, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counts[callerID] = &Usage{WindowStart: now}
	return nil
}
