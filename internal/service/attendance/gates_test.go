package attendance

import (
	"testing"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/stretchr/testify/assert"
)

func openCheckInInput() GateInput {
	today := workingDay()
	return GateInput{
		HasIdentity:      true,
		Today:            &today,
		LocationResolved: true,
		Now:              testNow,
	}
}

func TestCheckInGate_AvailableWhenAllConditionsHold(t *testing.T) {
	gate := CheckInGate(openCheckInInput())
	assert.True(t, gate.Available)
	assert.Empty(t, gate.Reasons)
}

func TestCheckInGate_EachConditionInIsolation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *GateInput)
		reason string
	}{
		{
			name:   "non working day",
			mutate: func(in *GateInput) { in.Today.IsWorkingDay = false },
			reason: ReasonNonWorkingDay,
		},
		{
			name:   "window flag closed",
			mutate: func(in *GateInput) { in.Today.Windows.CheckIn.IsOpen = false },
			reason: ReasonWindowClosed,
		},
		{
			name:   "window flag stale after end",
			mutate: func(in *GateInput) { in.Now = at(10, 1) },
			reason: ReasonWindowClosed,
		},
		{
			name: "already checked in",
			mutate: func(in *GateInput) {
				in.Today.Attendance = &attendance.Record{CheckInTime: ptr(at(7, 45))}
			},
			reason: ReasonAlreadyCheckedIn,
		},
		{
			name:   "location unresolved",
			mutate: func(in *GateInput) { in.LocationResolved = false },
			reason: ReasonLocationUnresolved,
		},
		{
			name:   "identity missing",
			mutate: func(in *GateInput) { in.HasIdentity = false },
			reason: ReasonIdentityMissing,
		},
		{
			name:   "not loaded",
			mutate: func(in *GateInput) { in.Today = nil },
			reason: ReasonNotLoaded,
		},
		{
			name:   "in flight",
			mutate: func(in *GateInput) { in.InFlight = true },
			reason: ReasonInFlight,
		},
		{
			name: "on leave",
			mutate: func(in *GateInput) {
				in.Today.Attendance = &attendance.Record{Status: attendance.StatusOnLeave}
			},
			reason: ReasonOnLeave,
		},
		{
			name: "regularization pending",
			mutate: func(in *GateInput) {
				in.Today.Attendance = &attendance.Record{RegularizationStatus: ptr(attendance.RegularizationPending)}
			},
			reason: ReasonRegularizationPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := openCheckInInput()
			tt.mutate(&in)

			gate := CheckInGate(in)
			assert.False(t, gate.Available)
			assert.Equal(t, []string{tt.reason}, gate.Reasons)
		})
	}
}

func TestCheckInGate_CombinedConditions(t *testing.T) {
	in := openCheckInInput()
	in.Today.IsWorkingDay = false
	in.Today.Windows.CheckIn.IsOpen = false
	in.Today.Attendance = &attendance.Record{CheckInTime: ptr(at(7, 45))}
	in.LocationResolved = false

	gate := CheckInGate(in)
	assert.False(t, gate.Available)
	assert.ElementsMatch(t, []string{
		ReasonNonWorkingDay,
		ReasonWindowClosed,
		ReasonAlreadyCheckedIn,
		ReasonLocationUnresolved,
	}, gate.Reasons)

	// Fixing only some of them is still not enough
	in.Today.IsWorkingDay = true
	in.LocationResolved = true
	assert.False(t, CheckInGate(in).Available)
}

func TestCheckOutGate(t *testing.T) {
	checkedInDay := func() *attendance.Today {
		today := checkedIn(at(8, 0))
		today.Windows.CheckOut.IsOpen = true
		return &today
	}

	t.Run("available inside window", func(t *testing.T) {
		gate := CheckOutGate(GateInput{HasIdentity: true, Today: checkedInDay(), LocationResolved: true, Now: at(15, 0)})
		assert.True(t, gate.Available)
	})

	t.Run("window closed", func(t *testing.T) {
		today := checkedInDay()
		today.Windows.CheckOut.IsOpen = false
		gate := CheckOutGate(GateInput{HasIdentity: true, Today: today, LocationResolved: true, Now: at(15, 0)})
		assert.Equal(t, []string{ReasonWindowClosed}, gate.Reasons)
	})

	t.Run("before minimum time", func(t *testing.T) {
		today := checkedInDay()
		today.Windows.CheckOut.MinTime = ptr(at(16, 0))
		gate := CheckOutGate(GateInput{HasIdentity: true, Today: today, LocationResolved: true, Now: at(15, 0)})
		assert.Equal(t, []string{ReasonWindowClosed}, gate.Reasons)
	})

	t.Run("not checked in", func(t *testing.T) {
		today := checkedInDay()
		today.Attendance = nil
		gate := CheckOutGate(GateInput{HasIdentity: true, Today: today, LocationResolved: true, Now: at(15, 0)})
		assert.Equal(t, []string{ReasonNotCheckedIn}, gate.Reasons)
	})

	t.Run("already checked out", func(t *testing.T) {
		today := checkedInDay()
		today.Attendance.CheckOutTime = ptr(at(14, 0))
		gate := CheckOutGate(GateInput{HasIdentity: true, Today: today, LocationResolved: true, Now: at(15, 0)})
		assert.Equal(t, []string{ReasonAlreadyCheckedOut}, gate.Reasons)
	})
}
