package model

import "time"

// IntentKind identifies what a notification intent does when it fires.
type IntentKind string

const (
	KindReminder5Min IntentKind = "REMINDER_5_MIN"
	KindReminder2Min IntentKind = "REMINDER_2_MIN"
	KindEnd          IntentKind = "END"
	KindAggressive   IntentKind = "AGGRESSIVE"
	KindAutoRelease  IntentKind = "AUTO_RELEASE"
)

// IntentKinds lists every kind in firing order.
var IntentKinds = []IntentKind{
	KindReminder5Min,
	KindReminder2Min,
	KindEnd,
	KindAggressive,
	KindAutoRelease,
}

// Valid reports whether k is one of the known kinds.
func (k IntentKind) Valid() bool {
	switch k {
	case KindReminder5Min, KindReminder2Min, KindEnd, KindAggressive, KindAutoRelease:
		return true
	}
	return false
}

// Terminal reports whether executing k also corrects the machine state.
func (k IntentKind) Terminal() bool {
	return k == KindEnd || k == KindAggressive || k == KindAutoRelease
}

// IntentStatus is the ledger status of an intent. Completed intents are
// deleted, so pending is the only stored value.
type IntentStatus string

const IntentPending IntentStatus = "pending"

// NotificationIntent is one pending notification-or-release action.
// The machine path is stored inline so execution never needs a lookup to
// address the machine.
type NotificationIntent struct {
	ID         string       `gorm:"primaryKey;size:36" json:"id"`
	Country    string       `gorm:"size:64;not null" json:"country"`
	City       string       `gorm:"size:64;not null" json:"city"`
	University string       `gorm:"size:128;not null" json:"university"`
	Dorm       string       `gorm:"size:128;not null" json:"dorm"`
	MachineID  string       `gorm:"size:128;not null" json:"machine_id"`
	UserID     string       `gorm:"size:128;not null;index" json:"user_id"`
	Kind       IntentKind   `gorm:"size:32;not null" json:"kind"`
	FireAt     time.Time    `gorm:"not null;index" json:"fire_at"`
	Status     IntentStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// MachinePath returns the address of the machine the intent refers to.
func (i NotificationIntent) MachinePath() MachinePath {
	return MachinePath{
		Country:    i.Country,
		City:       i.City,
		University: i.University,
		Dorm:       i.Dorm,
		MachineID:  i.MachineID,
	}
}
