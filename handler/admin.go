package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/ncobase/genqueue/logging/logger"
	"github.com/ncobase/genqueue/net/resp"
	"github.com/ncobase/genqueue/queue"
	"github.com/ncobase/genqueue/quota"
)

// AdminHandler exposes queue and quota administration.
type AdminHandler struct {
	registry *queue.Registry
	gate     *quota.Gate
	logger   *logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(reg *queue.Registry, gate *quota.Gate, log *logger.Logger) *AdminHandler {
	return &AdminHandler{registry: reg, gate: gate, logger: log}
}

// Register mounts the admin routes on r. Callers must guard r.
func (h *AdminHandler) Register(r gin.IRouter) {
	r.GET("/queues", h.Queues)
	r.POST("/queues/clear", h.ClearQueues)
	r.GET("/usage/:userId", h.Usage)
	r.POST("/usage/:userId/reset", h.ResetUsage)
}

// Queues returns per queue counts by status, outcome metrics and the
// dispatcher counters.
func (h *AdminHandler) Queues(c *gin.Context) {
	stats, err := h.registry.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to load queue stats", "error", err)
		resp.Fail(c.Writer, resp.InternalServer("failed to load queue stats"))
		return
	}

	resp.Success(c.Writer, gin.H{
		"queues":     stats,
		"dispatcher": h.registry.DispatcherMetrics(),
		"metrics":    h.registry.Metrics(),
	})
}

// ClearQueues deletes every finished job.
func (h *AdminHandler) ClearQueues(c *gin.Context) {
	n, err := h.registry.ClearFinished(c.Request.Context())
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to clear queues", "error", err)
		resp.Fail(c.Writer, resp.InternalServer("failed to clear queues"))
		return
	}
	resp.Success(c.Writer, gin.H{"message": "Queues cleared", "cleared": n})
}

// Usage returns a caller's quota usage in the current window.
func (h *AdminHandler) Usage(c *gin.Context) {
	userID := c.Param("userId")
	u, err := h.gate.Usage(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to load usage", "user_id", userID, "error", err)
		resp.Fail(c.Writer, resp.InternalServer("failed to load usage"))
		return
	}

	resp.Success(c.Writer, gin.H{
		"user_id":      userID,
		"used":         u.Used,
		"window_start": u.WindowStart,
		"reset_at":     u.WindowStart.Add(h.gate.Policy().Window),
	})
}

// ResetUsage empties a caller's quota counter.
func (h *AdminHandler) ResetUsage(c *gin.Context) {
	userID := c.Param("userId")
	if err := h.gate.Reset(c.Request.Context(), userID); err != nil {
		h.logger.Error(c.Request.Context(), "Failed to reset usage", "user_id", userID, "error", err)
		resp.Fail(c.Writer, resp.InternalServer("failed to reset usage"))
		return
	}
	resp.Success(c.Writer, gin.H{"message": "Usage reset", "user_id": userID})
}
