package watcher

import (
	"time"

	"laundry-reservation-backend/internal/model"
)

// State is the tagged union of machine states: Free, Reserved or InUse.
type State interface {
	isState()
}

// Free means nobody holds the machine.
type Free struct{}

// Reserved means User holds the machine before starting a cycle.
type Reserved struct {
	User string
	End  time.Time
}

// InUse means User is running a cycle. End is zero when the document
// carries no end time.
type InUse struct {
	User string
	End  time.Time
}

func (Free) isState()     {}
func (Reserved) isState() {}
func (InUse) isState()    {}

// StateOf reads the state variant of a machine snapshot. Unknown status
// values read as Free.
func StateOf(m model.Machine) State {
	switch m.Status {
	case model.StatusReserved:
		return Reserved{User: deref(m.ReservedBy), End: derefTime(m.ReservationEnd)}
	case model.StatusInUse:
		return InUse{User: deref(m.CurrentUser), End: derefTime(m.EndTime)}
	}
	return Free{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
