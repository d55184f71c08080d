package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"

	"laundry-reservation-backend/internal/dispatch"
	"laundry-reservation-backend/internal/store"
)

// Executor runs a ledger intent by ID.
type Executor interface {
	Execute(ctx context.Context, id string) (dispatch.Result, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	executor Executor
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, executor Executor, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		executor: executor,
		webpush:  webpushOptions,
	}
}
