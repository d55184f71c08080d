package store

import (
	"context"
	"errors"
	"time"

	"laundry-reservation-backend/internal/model"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrCallback wraps failures of change callbacks. The write that
	// triggered them has already been committed.
	ErrCallback = errors.New("change callback failed")
)

// MachineUpdateFunc observes an update of an existing machine document.
type MachineUpdateFunc func(ctx context.Context, before, after model.Machine) error

// IntentCreateFunc observes the creation of a ledger intent.
type IntentCreateFunc func(ctx context.Context, intent model.NotificationIntent) error

// MachineStore reads and writes machine documents.
type MachineStore interface {
	GetMachine(ctx context.Context, path model.MachinePath) (model.Machine, error)
	// SaveMachine creates or replaces a machine. Replacing an existing
	// machine fires the update callbacks.
	SaveMachine(ctx context.Context, m model.Machine) (model.Machine, error)
	// ReleaseMachine forces a machine back to free and fires the update
	// callbacks.
	ReleaseMachine(ctx context.Context, path model.MachinePath, now time.Time) (model.Machine, error)
}

// IntentLedger is the durable store of pending notification intents.
// Intents are only ever created or deleted.
type IntentLedger interface {
	// CreateIntent assigns an ID, stores the intent as pending and fires
	// the create callbacks.
	CreateIntent(ctx context.Context, intent *model.NotificationIntent) error
	GetIntent(ctx context.Context, id string) (model.NotificationIntent, error)
	DeleteIntent(ctx context.Context, id string) error
	PendingIntents(ctx context.Context) ([]model.NotificationIntent, error)
}

// SubscriptionStore resolves the push devices registered by users.
type SubscriptionStore interface {
	UserSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error)
	PutSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Store defines the interface for all database operations.
type Store interface {
	MachineStore
	IntentLedger
	SubscriptionStore

	OnMachineUpdate(fn MachineUpdateFunc)
	OnIntentCreate(fn IntentCreateFunc)
}
