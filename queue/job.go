package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusWaiting, StatusActive, StatusCompleted, StatusFailed}

// IsTerminal reports whether s is completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrDuplicateJob      = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrNoProcessor       = errors.New("no processor bound to queue")
	ErrProcessorBound    = errors.New("processor already bound to queue")
	ErrNotStarted        = errors.New("dispatcher not started")
)

// EnqueueError reports that a job could not be handed to the dispatcher.
// The job record is not kept.
type EnqueueError struct {
	Queue string
	Err   error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue to %q: %v", e.Queue, e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }

// Job is a single generation request and its outcome.
type Job struct {
	ID          string          `json:"id"`
	QueueName   string          `json:"queue"`
	OwnerID     string          `json:"owner_id"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Payload = cloneRaw(j.Payload)
	c.Result = cloneRaw(j.Result)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}

// ClampProgress bounds p to [0, 100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// QueueStats counts jobs per status.
type QueueStats map[Status]int

// Total returns the number of jobs across statuses.
func (s QueueStats) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}
