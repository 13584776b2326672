// Package handler provides the HTTP endpoints for submitting generation
// jobs, polling their status and administering queues and quotas.
package handler

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/genqueue/generation"
	"github.com/ncobase/genqueue/logging/logger"
	"github.com/ncobase/genqueue/middleware"
	"github.com/ncobase/genqueue/net/resp"
	"github.com/ncobase/genqueue/queue"
	"github.com/ncobase/genqueue/quota"
	"github.com/ncobase/genqueue/validator"
)

// maxBodySize bounds generation request bodies.
const maxBodySize = 1 << 20

// StatusQueued is reported for accepted submissions.
const StatusQueued = "queued"

// SubmitResponse is returned by the generate endpoints.
type SubmitResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// StatusResponse is returned by the status endpoints.
type StatusResponse struct {
	ID       string          `json:"id"`
	Status   queue.Status    `json:"status"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// JobHandler handles generation submissions and status polls.
type JobHandler struct {
	registry *queue.Registry
	gate     *quota.Gate
	caps     []generation.Capability
	logger   *logger.Logger
}

// NewJobHandler creates a new job handler serving caps.
func NewJobHandler(reg *queue.Registry, gate *quota.Gate, caps []generation.Capability, log *logger.Logger) *JobHandler {
	return &JobHandler{
		registry: reg,
		gate:     gate,
		caps:     caps,
		logger:   log,
	}
}

// Register mounts the submit and status routes of every capability on r.
func (h *JobHandler) Register(r gin.IRouter) {
	for _, c := range h.caps {
		g := r.Group("/" + c.Name)
		g.POST("/generate", h.Generate(c))
		if c.Alias != "" {
			g.POST("/"+c.Alias, h.Generate(c))
		}
		g.GET("/status/:jobId", h.Status(c.Name))
	}
}

// Generate validates the request, charges the caller's quota and queues a
// job. A failed enqueue refunds the charge.
func (h *JobHandler) Generate(c generation.Capability) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		caller := middleware.CurrentCaller(ctx)
		if caller == nil {
			resp.Fail(ctx.Writer, resp.UnAuthorized("Unauthorized"))
			return
		}
		rctx := ctx.Request.Context()

		body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxBodySize+1))
		if err != nil || len(body) > maxBodySize {
			resp.Fail(ctx.Writer, resp.BadRequest("request body too large or unreadable"))
			return
		}
		if _, err := c.Decode(body); err != nil {
			var fe validator.Errors
			if errors.As(err, &fe) {
				resp.Fail(ctx.Writer, resp.BadRequest(fe.Error(), fe))
				return
			}
			resp.Fail(ctx.Writer, resp.BadRequest("invalid JSON body"))
			return
		}

		if _, err := h.gate.Check(rctx, caller, c.Cost); err != nil {
			var qe *quota.QuotaError
			switch {
			case errors.As(err, &qe):
				resp.Fail(ctx.Writer, resp.PaymentRequired("Quota exceeded", qe.Message()))
			case errors.Is(err, quota.ErrUnauthorized):
				resp.Fail(ctx.Writer, resp.UnAuthorized("Unauthorized"))
			default:
				h.logger.Error(rctx, "Quota check failed", "capability", c.Name, "error", err)
				resp.Fail(ctx.Writer, resp.InternalServer("Failed to queue job"))
			}
			return
		}

		job, err := h.submit(ctx, c.Name, caller.ID, body)
		if err != nil {
			if rerr := h.gate.Refund(rctx, caller, c.Cost); rerr != nil {
				h.logger.Error(rctx, "Quota refund failed", "user_id", caller.ID, "error", rerr)
			}
			h.logger.Error(rctx, "Failed to queue job", "capability", c.Name, "error", err)
			resp.Fail(ctx.Writer, resp.InternalServer("Failed to queue job"))
			return
		}

		resp.Success(ctx.Writer, &SubmitResponse{JobID: job.ID, Status: StatusQueued})
	}
}

func (h *JobHandler) submit(ctx *gin.Context, name, ownerID string, body []byte) (*queue.Job, error) {
	q := h.registry.Queue(name)
	if q == nil {
		return nil, &queue.EnqueueError{Queue: name, Err: queue.ErrNoProcessor}
	}
	return q.Submit(ctx.Request.Context(), ownerID, body)
}

// Status reports a job of queue name. Jobs of other callers are reported as
// not found unless the caller is an admin.
func (h *JobHandler) Status(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		caller := middleware.CurrentCaller(ctx)
		if caller == nil {
			resp.Fail(ctx.Writer, resp.UnAuthorized("Unauthorized"))
			return
		}
		rctx := ctx.Request.Context()

		q := h.registry.Queue(name)
		if q == nil {
			resp.Fail(ctx.Writer, resp.NotFound("Job not found"))
			return
		}
		job, err := q.GetStatus(rctx, ctx.Param("jobId"))
		if errors.Is(err, queue.ErrJobNotFound) || (err == nil && job.OwnerID != caller.ID && !caller.IsAdmin()) {
			resp.Fail(ctx.Writer, resp.NotFound("Job not found"))
			return
		}
		if err != nil {
			h.logger.Error(rctx, "Failed to load job", "job_id", ctx.Param("jobId"), "error", err)
			resp.Fail(ctx.Writer, resp.InternalServer("Failed to load job"))
			return
		}

		resp.Success(ctx.Writer, &StatusResponse{
			ID:       job.ID,
			Status:   job.Status,
			Progress: job.Progress,
			Result:   job.Result,
			Error:    job.Error,
		})
	}
}
