package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Job statuses reported by the API.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Reference poll schedule: 30 polls two seconds apart.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 30
)

var (
	ErrPollTimeout  = errors.New("timeout waiting for generation")
	ErrUnauthorized = errors.New("unauthorized")
	ErrJobNotFound  = errors.New("job not found")
)

// errPending marks a poll that saw a non terminal job.
var errPending = errors.New("job pending")

// JobFailedError reports a job that finished in the failed state.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	return e.Message
}

// QuotaExceededError reports a submission rejected for lack of quota.
type QuotaExceededError struct {
	Message string
}

func (e *QuotaExceededError) Error() string {
	return "quota exceeded: " + e.Message
}

// APIError is any other non success answer.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// JobStatus is the body of a status poll.
type JobStatus struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// FetchFunc loads the current status of the awaited job.
type FetchFunc func(ctx context.Context) (*JobStatus, error)

// Poller polls at a fixed interval for a bounded number of attempts.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	// OnPoll, when set, sees every fetched status.
	OnPoll func(*JobStatus)
}

// Await polls fetch until the job completes or fails. A completed job
// returns its result and a failed one a *JobFailedError, both without
// further polls. Fetch errors stop polling and are returned as is. Running
// out of attempts, or out of MaxAttempts*Interval in total, returns
// ErrPollTimeout.
func (p Poller) Await(ctx context.Context, fetch FetchFunc) (json.RawMessage, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}

	pollCtx, cancel := context.WithTimeout(ctx, interval*time.Duration(attempts))
	defer cancel()

	op := func() (json.RawMessage, error) {
		st, err := fetch(pollCtx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if p.OnPoll != nil {
			p.OnPoll(st)
		}
		switch st.Status {
		case StatusCompleted:
			return st.Result, nil
		case StatusFailed:
			msg := st.Error
			if msg == "" {
				msg = "Job failed"
			}
			return nil, backoff.Permanent(&JobFailedError{JobID: st.ID, Message: msg})
		}
		return nil, errPending
	}

	res, err := backoff.Retry(pollCtx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if errors.Is(err, errPending) {
		return nil, ErrPollTimeout
	}
	// a slow fetch can use up the whole budget; the caller's own
	// cancellation still wins
	if err != nil && ctx.Err() == nil && errors.Is(pollCtx.Err(), context.DeadlineExceeded) {
		return nil, ErrPollTimeout
	}
	return res, err
}
