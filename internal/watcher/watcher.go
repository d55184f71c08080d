package watcher

import (
	"context"
	"errors"
	"log"
	"time"

	"laundry-reservation-backend/internal/clock"
	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/store"
)

// DefaultReservationHold is how long a reservation holds a machine.
const DefaultReservationHold = 5 * time.Minute

type offset struct {
	kind  model.IntentKind
	delta time.Duration
}

// reminders fire relative to the end of a reservation or a cycle.
var reminders = []offset{
	{model.KindReminder5Min, -5 * time.Minute},
	{model.KindReminder2Min, -2 * time.Minute},
	{model.KindEnd, 0},
	{model.KindAggressive, 30 * time.Second},
}

// autoRelease backs up a cycle that nobody ends by hand.
var autoRelease = offset{model.KindAutoRelease, 60 * time.Second}

// Plan returns the intents owed for the transition prev -> next on the
// machine at path. It reads nothing but its arguments.
//
// Entering Reserved yields the four reminders relative to now+hold.
// Entering InUse with an end time yields the four reminders plus an
// auto-release relative to that end time. The two variants are checked
// independently; every other transition yields nothing.
func Plan(prev, next State, path model.MachinePath, now time.Time, hold time.Duration) []model.NotificationIntent {
	var intents []model.NotificationIntent

	if r, ok := next.(Reserved); ok {
		if _, was := prev.(Reserved); !was {
			end := now.Add(hold)
			intents = append(intents, build(path, r.User, end, reminders)...)
		}
	}

	if u, ok := next.(InUse); ok && !u.End.IsZero() {
		if _, was := prev.(InUse); !was {
			offsets := append(append([]offset(nil), reminders...), autoRelease)
			intents = append(intents, build(path, u.User, u.End, offsets)...)
		}
	}

	return intents
}

func build(path model.MachinePath, user string, end time.Time, offsets []offset) []model.NotificationIntent {
	intents := make([]model.NotificationIntent, 0, len(offsets))
	for _, o := range offsets {
		intents = append(intents, model.NotificationIntent{
			Country:    path.Country,
			City:       path.City,
			University: path.University,
			Dorm:       path.Dorm,
			MachineID:  path.MachineID,
			UserID:     user,
			Kind:       o.kind,
			FireAt:     end.Add(o.delta),
			Status:     model.IntentPending,
		})
	}
	return intents
}

// Watcher turns machine updates into ledger intents. It never writes the
// machine itself.
type Watcher struct {
	ledger store.IntentLedger
	clock  clock.Clock
	hold   time.Duration
}

// New creates a Watcher writing to ledger. A non-positive hold uses
// DefaultReservationHold.
func New(ledger store.IntentLedger, clk clock.Clock, hold time.Duration) *Watcher {
	if hold <= 0 {
		hold = DefaultReservationHold
	}
	return &Watcher{ledger: ledger, clock: clk, hold: hold}
}

// HandleMachineUpdate is a store.MachineUpdateFunc. Each planned intent is
// written independently; failures do not stop the remaining writes and
// are returned joined. Redelivering the same update creates the intents
// again.
func (w *Watcher) HandleMachineUpdate(ctx context.Context, before, after model.Machine) error {
	path := after.Path()
	intents := Plan(StateOf(before), StateOf(after), path, w.clock.Now(), w.hold)
	if len(intents) == 0 {
		return nil
	}

	log.Printf("Machine %s went %s -> %s, creating %d intents", path, before.Status, after.Status, len(intents))

	var errs []error
	created := 0
	for i := range intents {
		err := w.ledger.CreateIntent(ctx, &intents[i])
		if err != nil && !errors.Is(err, store.ErrCallback) {
			log.Printf("Failed to create %s intent for machine %s: %v", intents[i].Kind, path, err)
			errs = append(errs, err)
			continue
		}
		created++
		if err != nil {
			log.Printf("Intent %s created but its dispatch failed: %v", intents[i].ID, err)
			errs = append(errs, err)
		}
	}

	if created < len(intents) {
		log.Printf("Created %d of %d intents for machine %s", created, len(intents), path)
	}
	return errors.Join(errs...)
}
