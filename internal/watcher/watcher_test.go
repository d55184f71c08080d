package watcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laundry-reservation-backend/internal/clock"
	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/store"
)

var testPath = model.MachinePath{Country: "fr", City: "lyon", University: "ucbl", Dorm: "a", MachineID: "m1"}

func strPtr(s string) *string { return &s }

func machine(status model.MachineStatus, user string, end *time.Time) model.Machine {
	m := model.Machine{Status: status}
	m.SetPath(testPath)
	switch status {
	case model.StatusReserved:
		m.ReservedBy, m.ReservationEnd = strPtr(user), end
	case model.StatusInUse:
		m.CurrentUser, m.EndTime = strPtr(user), end
	}
	return m
}

type fireAt struct {
	kind model.IntentKind
	at   time.Time
}

func schedule(intents []model.NotificationIntent) []fireAt {
	out := make([]fireAt, len(intents))
	for i, in := range intents {
		out[i] = fireAt{in.Kind, in.FireAt}
	}
	return out
}

func TestPlan(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := now.Add(45 * time.Minute)
	hold := 5 * time.Minute

	testCases := []struct {
		name     string
		prev     State
		next     State
		expected []fireAt
		user     string
	}{
		{
			name: "free to reserved",
			prev: Free{},
			next: Reserved{User: "alice"},
			user: "alice",
			expected: []fireAt{
				{model.KindReminder5Min, now},
				{model.KindReminder2Min, now.Add(3 * time.Minute)},
				{model.KindEnd, now.Add(5 * time.Minute)},
				{model.KindAggressive, now.Add(5*time.Minute + 30*time.Second)},
			},
		},
		{
			name: "in use to reserved",
			prev: InUse{User: "bob", End: end},
			next: Reserved{User: "alice"},
			user: "alice",
			expected: []fireAt{
				{model.KindReminder5Min, now},
				{model.KindReminder2Min, now.Add(3 * time.Minute)},
				{model.KindEnd, now.Add(5 * time.Minute)},
				{model.KindAggressive, now.Add(5*time.Minute + 30*time.Second)},
			},
		},
		{
			name: "reserved to in use",
			prev: Reserved{User: "alice"},
			next: InUse{User: "alice", End: end},
			user: "alice",
			expected: []fireAt{
				{model.KindReminder5Min, end.Add(-5 * time.Minute)},
				{model.KindReminder2Min, end.Add(-2 * time.Minute)},
				{model.KindEnd, end},
				{model.KindAggressive, end.Add(30 * time.Second)},
				{model.KindAutoRelease, end.Add(60 * time.Second)},
			},
		},
		{
			name: "free to in use",
			prev: Free{},
			next: InUse{User: "carol", End: end},
			user: "carol",
			expected: []fireAt{
				{model.KindReminder5Min, end.Add(-5 * time.Minute)},
				{model.KindReminder2Min, end.Add(-2 * time.Minute)},
				{model.KindEnd, end},
				{model.KindAggressive, end.Add(30 * time.Second)},
				{model.KindAutoRelease, end.Add(60 * time.Second)},
			},
		},
		{name: "in use without end time", prev: Free{}, next: InUse{User: "carol"}},
		{name: "reserved stays reserved", prev: Reserved{User: "alice"}, next: Reserved{User: "alice"}},
		{name: "in use stays in use", prev: InUse{User: "a", End: end}, next: InUse{User: "a", End: end.Add(time.Hour)}},
		{name: "reserved to free", prev: Reserved{User: "alice"}, next: Free{}},
		{name: "in use to free", prev: InUse{User: "alice", End: end}, next: Free{}},
		{name: "free to free", prev: Free{}, next: Free{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			intents := Plan(tc.prev, tc.next, testPath, now, hold)
			if tc.expected == nil {
				assert.Empty(t, intents)
				return
			}
			assert.Equal(t, tc.expected, schedule(intents))
			for _, in := range intents {
				assert.Equal(t, tc.user, in.UserID)
				assert.Equal(t, testPath, in.MachinePath())
				assert.Equal(t, model.IntentPending, in.Status)
			}
		})
	}
}

func TestStateOf(t *testing.T) {
	end := time.Now()
	assert.Equal(t, Free{}, StateOf(machine(model.StatusFree, "", nil)))
	assert.Equal(t, Reserved{User: "a", End: end}, StateOf(machine(model.StatusReserved, "a", &end)))
	assert.Equal(t, InUse{User: "b", End: end}, StateOf(machine(model.StatusInUse, "b", &end)))
	assert.Equal(t, InUse{User: "b"}, StateOf(machine(model.StatusInUse, "b", nil)))
	assert.Equal(t, Free{}, StateOf(model.Machine{Status: "broken"}))
}

// fakeLedger records created intents and fails on the configured kinds.
type fakeLedger struct {
	created []model.NotificationIntent
	failOn  map[model.IntentKind]error
}

func (f *fakeLedger) CreateIntent(ctx context.Context, intent *model.NotificationIntent) error {
	if err, ok := f.failOn[intent.Kind]; ok && !errors.Is(err, store.ErrCallback) {
		return err
	}
	intent.ID = fmt.Sprintf("intent-%d", len(f.created)+1)
	f.created = append(f.created, *intent)
	return f.failOn[intent.Kind]
}

func (f *fakeLedger) GetIntent(ctx context.Context, id string) (model.NotificationIntent, error) {
	return model.NotificationIntent{}, store.ErrNotFound
}

func (f *fakeLedger) DeleteIntent(ctx context.Context, id string) error { return nil }

func (f *fakeLedger) PendingIntents(ctx context.Context) ([]model.NotificationIntent, error) {
	return f.created, nil
}

func TestWatcher_HandleMachineUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{}
	w := New(ledger, clock.NewFake(now), 0)

	err := w.HandleMachineUpdate(context.Background(),
		machine(model.StatusFree, "", nil),
		machine(model.StatusReserved, "alice", nil))
	require.NoError(t, err)

	require.Len(t, ledger.created, 4)
	assert.Equal(t, now.Add(DefaultReservationHold), ledger.created[2].FireAt)
	assert.Equal(t, model.KindEnd, ledger.created[2].Kind)
}

func TestWatcher_NoIntentsForOtherUpdates(t *testing.T) {
	ledger := &fakeLedger{}
	w := New(ledger, clock.NewFake(time.Now()), time.Minute)

	end := time.Now().Add(time.Hour)
	require.NoError(t, w.HandleMachineUpdate(context.Background(),
		machine(model.StatusInUse, "a", &end),
		machine(model.StatusFree, "", nil)))
	assert.Empty(t, ledger.created)
}

func TestWatcher_PartialFailure(t *testing.T) {
	end := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{failOn: map[model.IntentKind]error{
		model.KindReminder2Min: errors.New("disk full"),
		model.KindAggressive:   fmt.Errorf("%w: queue unavailable", store.ErrCallback),
	}}
	w := New(ledger, clock.NewFake(end.Add(-time.Hour)), 0)

	err := w.HandleMachineUpdate(context.Background(),
		machine(model.StatusReserved, "alice", nil),
		machine(model.StatusInUse, "alice", &end))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.ErrorIs(t, err, store.ErrCallback)

	kinds := make([]model.IntentKind, len(ledger.created))
	for i, in := range ledger.created {
		kinds[i] = in.Kind
	}
	assert.Equal(t, []model.IntentKind{
		model.KindReminder5Min, model.KindEnd, model.KindAggressive, model.KindAutoRelease,
	}, kinds, "the remaining intents are still written")
}

func TestWatcher_DuplicateDeliveryDoubleCreates(t *testing.T) {
	ledger := &fakeLedger{}
	w := New(ledger, clock.NewFake(time.Now()), 0)
	before := machine(model.StatusFree, "", nil)
	after := machine(model.StatusReserved, "alice", nil)

	require.NoError(t, w.HandleMachineUpdate(context.Background(), before, after))
	require.NoError(t, w.HandleMachineUpdate(context.Background(), before, after))
	assert.Len(t, ledger.created, 8)
}
