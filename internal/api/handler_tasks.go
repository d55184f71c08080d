package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"laundry-reservation-backend/internal/dispatch"
	"laundry-reservation-backend/internal/model"
)

// executeTaskRequest carries either the intent ID alone or the full
// intent. In both shapes the ledger decides whether the work is still owed.
type executeTaskRequest struct {
	IntentID string                    `json:"intent_id"`
	Intent   *model.NotificationIntent `json:"intent"`
}

func (r executeTaskRequest) id() (string, bool) {
	if r.Intent == nil {
		return r.IntentID, r.IntentID != ""
	}
	in := r.Intent
	if in.ID == "" || !in.Kind.Valid() || in.UserID == "" || in.FireAt.IsZero() {
		return "", false
	}
	p := in.MachinePath()
	if p.Country == "" || p.City == "" || p.University == "" || p.Dorm == "" || p.MachineID == "" {
		return "", false
	}
	if r.IntentID != "" && r.IntentID != in.ID {
		return "", false
	}
	return in.ID, true
}

// ExecuteTask is the entry point the deferred-execution service calls when
// an intent is due.
func (h *Handler) ExecuteTask(c *gin.Context) {
	var req executeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	id, ok := req.id()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "intent_id or a complete intent is required"})
		return
	}

	res, err := h.executor.Execute(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if res == dispatch.NotFound {
		c.JSON(http.StatusNotFound, gin.H{"status": res.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": res.String()})
}
