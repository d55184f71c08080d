package model

import (
	"fmt"
	"time"
)

// MachineStatus is the lifecycle state stored on a machine document.
type MachineStatus string

const (
	StatusFree     MachineStatus = "free"
	StatusReserved MachineStatus = "reserved"
	StatusInUse    MachineStatus = "in_use"
)

// MachinePath addresses a machine document.
type MachinePath struct {
	Country    string `json:"country"`
	City       string `json:"city"`
	University string `json:"university"`
	Dorm       string `json:"dorm"`
	MachineID  string `json:"machine_id"`
}

// String renders the document path, e.g.
// countries/fr/cities/lyon/universities/ucbl/dorms/a/machines/m1.
func (p MachinePath) String() string {
	return fmt.Sprintf("countries/%s/cities/%s/universities/%s/dorms/%s/machines/%s",
		p.Country, p.City, p.University, p.Dorm, p.MachineID)
}

// Machine represents one physical washing machine.
type Machine struct {
	Country    string `gorm:"primaryKey;size:64" json:"country"`
	City       string `gorm:"primaryKey;size:64" json:"city"`
	University string `gorm:"primaryKey;size:128" json:"university"`
	Dorm       string `gorm:"primaryKey;size:128" json:"dorm"`
	MachineID  string `gorm:"primaryKey;size:128" json:"machine_id"`

	Status MachineStatus `gorm:"size:16;not null;default:free" json:"status"`

	// Reservation variant.
	ReservedBy     *string    `gorm:"size:128" json:"reserved_by"`
	ReservationEnd *time.Time `json:"reservation_end"`

	// Cycle variant.
	CurrentUser *string    `gorm:"size:128" json:"current_user"`
	EndTime     *time.Time `json:"end_time"`

	LastUpdated time.Time `gorm:"not null" json:"last_updated"`
}

// Path returns the document address of the machine.
func (m Machine) Path() MachinePath {
	return MachinePath{
		Country:    m.Country,
		City:       m.City,
		University: m.University,
		Dorm:       m.Dorm,
		MachineID:  m.MachineID,
	}
}

// SetPath copies the path components onto the machine.
func (m *Machine) SetPath(p MachinePath) {
	m.Country = p.Country
	m.City = p.City
	m.University = p.University
	m.Dorm = p.Dorm
	m.MachineID = p.MachineID
}

// Release clears every holder field and marks the machine free.
func (m *Machine) Release(now time.Time) {
	m.Status = StatusFree
	m.ReservedBy = nil
	m.ReservationEnd = nil
	m.CurrentUser = nil
	m.EndTime = nil
	m.LastUpdated = now
}
