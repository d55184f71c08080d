package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/parse"
	"laundry-reservation-backend/internal/store"
)

type putMachineRequest struct {
	Status         model.MachineStatus `json:"status" binding:"required,oneof=free reserved in_use"`
	ReservedBy     *string             `json:"reserved_by"`
	ReservationEnd *time.Time          `json:"reservation_end"`
	CurrentUser    *string             `json:"current_user"`
	EndTime        *time.Time          `json:"end_time"`
}

// validate checks that the holder fields match the status: a reserved
// machine names its user, an in-use machine names its user and end time,
// and a free machine carries no holder at all.
func (r putMachineRequest) validate() error {
	switch r.Status {
	case model.StatusReserved:
		if r.ReservedBy == nil || *r.ReservedBy == "" {
			return errors.New("reserved_by is required for a reserved machine")
		}
	case model.StatusInUse:
		if r.CurrentUser == nil || *r.CurrentUser == "" {
			return errors.New("current_user is required for a machine in use")
		}
		if r.EndTime == nil || r.EndTime.IsZero() {
			return errors.New("end_time is required for a machine in use")
		}
	case model.StatusFree:
		if r.ReservedBy != nil || r.ReservationEnd != nil || r.CurrentUser != nil || r.EndTime != nil {
			return errors.New("a free machine cannot have a holder")
		}
	}
	return nil
}

// GetMachine returns the machine document at the wildcard path.
func (h *Handler) GetMachine(c *gin.Context) {
	path, err := parse.MachinePath(c.Param("doc"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.store.GetMachine(c.Request.Context(), path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "machine not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, m)
}

// PutMachine writes the machine document. This is how the external actor
// starts a reservation or a cycle; updates fire the transition watcher.
func (h *Handler) PutMachine(c *gin.Context) {
	path, err := parse.MachinePath(c.Param("doc"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req putMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m := model.Machine{
		Status:         req.Status,
		ReservedBy:     req.ReservedBy,
		ReservationEnd: req.ReservationEnd,
		CurrentUser:    req.CurrentUser,
		EndTime:        req.EndTime,
		LastUpdated:    time.Now().UTC(),
	}
	m.SetPath(path)

	saved, err := h.store.SaveMachine(c.Request.Context(), m)
	if err != nil && !errors.Is(err, store.ErrCallback) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		// The document is written; only part of the follow-up work failed.
		log.Printf("Machine %s saved with callback errors: %v", path, err)
	}
	c.JSON(http.StatusOK, saved)
}
