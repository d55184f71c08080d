package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntentKind(t *testing.T) {
	for _, k := range IntentKinds {
		assert.True(t, k.Valid(), "%s should be valid", k)
	}
	assert.False(t, IntentKind("LATER").Valid())
	assert.False(t, IntentKind("").Valid())

	assert.False(t, KindReminder5Min.Terminal())
	assert.False(t, KindReminder2Min.Terminal())
	assert.True(t, KindEnd.Terminal())
	assert.True(t, KindAggressive.Terminal())
	assert.True(t, KindAutoRelease.Terminal())
}

func TestMachinePath(t *testing.T) {
	p := MachinePath{Country: "fr", City: "lyon", University: "ucbl", Dorm: "a", MachineID: "m1"}
	assert.Equal(t, "countries/fr/cities/lyon/universities/ucbl/dorms/a/machines/m1", p.String())

	var m Machine
	m.SetPath(p)
	assert.Equal(t, p, m.Path())

	i := NotificationIntent{Country: "fr", City: "lyon", University: "ucbl", Dorm: "a", MachineID: "m1"}
	assert.Equal(t, p, i.MachinePath())
}

func TestMachineRelease(t *testing.T) {
	user := "alice"
	end := time.Now()
	m := Machine{Status: StatusInUse, CurrentUser: &user, EndTime: &end, ReservedBy: &user, ReservationEnd: &end}

	now := end.Add(time.Minute)
	m.Release(now)

	assert.Equal(t, StatusFree, m.Status)
	assert.Nil(t, m.CurrentUser)
	assert.Nil(t, m.EndTime)
	assert.Nil(t, m.ReservedBy)
	assert.Nil(t, m.ReservationEnd)
	assert.Equal(t, now, m.LastUpdated)
}
