package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"laundry-reservation-backend/internal/clock"
	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/notification"
	"laundry-reservation-backend/internal/store"
	"laundry-reservation-backend/internal/taskqueue"
)

// ErrUnknownKind is returned for intents whose kind is outside the enum.
var ErrUnknownKind = errors.New("unknown intent kind")

// Result tells the caller of Execute what happened to the intent.
type Result int

const (
	// Executed means the intent ran and was removed from the ledger.
	Executed Result = iota
	// NotFound means the intent was no longer in the ledger; it was
	// already handled and nothing was written.
	NotFound
)

func (r Result) String() string {
	if r == NotFound {
		return "not_found"
	}
	return "executed"
}

// UserNotifier delivers a message to every device of a user.
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, msg notification.Message) error
}

// TaskPayload is the opaque payload handed to the deferred-execution
// service and posted back to the execute endpoint.
type TaskPayload struct {
	IntentID string `json:"intent_id"`
}

// Dispatcher runs ledger intents, either inline when they are already due
// or through the deferred-execution service.
type Dispatcher struct {
	ledger     store.IntentLedger
	machines   store.MachineStore
	notifier   UserNotifier
	scheduler  taskqueue.Scheduler
	clock      clock.Clock
	executeURL string

	// inflight collapses concurrent executions of one intent in this process.
	inflight singleflight.Group
}

// New creates a Dispatcher. executeURL is the endpoint the scheduler calls
// back when a deferred intent is due.
func New(ledger store.IntentLedger, machines store.MachineStore, notifier UserNotifier, scheduler taskqueue.Scheduler, clk clock.Clock, executeURL string) *Dispatcher {
	return &Dispatcher{
		ledger:     ledger,
		machines:   machines,
		notifier:   notifier,
		scheduler:  scheduler,
		clock:      clk,
		executeURL: executeURL,
	}
}

// OnIntentCreated is a store.IntentCreateFunc. Due intents execute inline;
// future ones are handed to the scheduler and stay in the ledger until
// they run.
func (d *Dispatcher) OnIntentCreated(ctx context.Context, intent model.NotificationIntent) error {
	delay := intent.FireAt.Sub(d.clock.Now())
	if delay <= 0 {
		_, err := d.Execute(ctx, intent.ID)
		return err
	}

	payload, err := json.Marshal(TaskPayload{IntentID: intent.ID})
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}
	if err := d.scheduler.Schedule(ctx, taskqueue.Task{
		Target:  d.executeURL,
		Payload: payload,
		FireAt:  intent.FireAt,
	}); err != nil {
		return fmt.Errorf("failed to schedule intent %s: %w", intent.ID, err)
	}
	log.Printf("Scheduled %s intent %s for %s in %s", intent.Kind, intent.ID, intent.MachinePath(), delay)
	return nil
}

// Execute runs the intent with the given ID: notify the user, correct the
// machine for terminal kinds, then delete the intent. An ID that is no
// longer in the ledger yields NotFound and no writes.
//
// Delivery failures are logged and ignored. Failures to read or release
// the machine or to delete the intent are returned, leaving the intent in
// the ledger so a redelivery repeats the whole sequence.
func (d *Dispatcher) Execute(ctx context.Context, id string) (Result, error) {
	// The run is shared by every concurrent caller for id, so one caller
	// going away must not cancel it for the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := d.inflight.Do(id, func() (any, error) {
		return d.execute(shared, id)
	})
	if err != nil {
		return Executed, err
	}
	return v.(Result), nil
}

func (d *Dispatcher) execute(ctx context.Context, id string) (Result, error) {
	intent, err := d.ledger.GetIntent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Intent %s not found, already handled", id)
		return NotFound, nil
	}
	if err != nil {
		return Executed, err
	}

	msg, ok := notification.Content(intent.Kind)
	if !ok {
		return Executed, fmt.Errorf("%w: %q on intent %s", ErrUnknownKind, intent.Kind, id)
	}

	if err := d.notifier.NotifyUser(ctx, intent.UserID, msg); err != nil {
		log.Printf("Failed to notify user %s for intent %s: %v", intent.UserID, id, err)
	}

	switch intent.Kind {
	case model.KindEnd, model.KindAggressive:
		if err := d.releaseIfHeld(ctx, intent.MachinePath()); err != nil {
			return Executed, err
		}
	case model.KindAutoRelease:
		if err := d.forceRelease(ctx, intent.MachinePath()); err != nil {
			return Executed, err
		}
	}

	if err := d.ledger.DeleteIntent(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return Executed, err
	}
	log.Printf("Executed %s intent %s for %s", intent.Kind, id, intent.MachinePath())
	return Executed, nil
}

// releaseIfHeld frees the machine unless it is already free.
func (d *Dispatcher) releaseIfHeld(ctx context.Context, path model.MachinePath) error {
	m, err := d.machines.GetMachine(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Machine %s not found, nothing to release", path)
		return nil
	}
	if err != nil {
		return err
	}
	if m.Status == model.StatusFree {
		return nil
	}
	return d.forceRelease(ctx, path)
}

// forceRelease frees the machine whatever its state.
func (d *Dispatcher) forceRelease(ctx context.Context, path model.MachinePath) error {
	_, err := d.machines.ReleaseMachine(ctx, path, d.clock.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Machine %s not found, nothing to release", path)
		return nil
	}
	if err != nil && !errors.Is(err, store.ErrCallback) {
		return err
	}
	log.Printf("Released machine %s", path)
	return nil
}

// Recover resubmits every pending intent. The ledger is the record of
// owed work; scheduled tasks do not survive a restart.
func (d *Dispatcher) Recover(ctx context.Context) (int, error) {
	pending, err := d.ledger.PendingIntents(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, intent := range pending {
		if err := d.OnIntentCreated(ctx, intent); err != nil {
			errs = append(errs, err)
		}
	}
	return len(pending), errors.Join(errs...)
}
