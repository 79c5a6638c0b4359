package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
)

// Gate reason codes, rendered by the shell as hints next to disabled buttons.
const (
	ReasonIdentityMissing       = "identity_missing"
	ReasonNotLoaded             = "not_loaded"
	ReasonNonWorkingDay         = "non_working_day"
	ReasonWindowClosed          = "window_closed"
	ReasonAlreadyCheckedIn      = "already_checked_in"
	ReasonNotCheckedIn          = "not_checked_in"
	ReasonAlreadyCheckedOut     = "already_checked_out"
	ReasonOnLeave               = "on_leave"
	ReasonRegularizationPending = "regularization_pending"
	ReasonLocationUnresolved    = "location_unresolved"
	ReasonInFlight              = "in_flight"
)

// GateInput is everything a gate looks at.
type GateInput struct {
	HasIdentity      bool
	Today            *attendance.Today
	LocationResolved bool
	InFlight         bool
	Now              time.Time
}

// CheckInGate decides whether check-in may be invoked.
func CheckInGate(in GateInput) attendance.Gate {
	var reasons []string
	if !in.HasIdentity {
		reasons = append(reasons, ReasonIdentityMissing)
	}
	if in.Today == nil {
		reasons = append(reasons, ReasonNotLoaded)
	} else {
		if !in.Today.IsWorkingDay {
			reasons = append(reasons, ReasonNonWorkingDay)
		}
		if !in.Today.Windows.CheckIn.Usable(in.Now) {
			reasons = append(reasons, ReasonWindowClosed)
		}
		if rec := in.Today.Attendance; rec != nil && rec.CheckInTime != nil {
			reasons = append(reasons, ReasonAlreadyCheckedIn)
		}
		reasons = append(reasons, sideStateReasons(in.Today)...)
	}
	if !in.LocationResolved {
		reasons = append(reasons, ReasonLocationUnresolved)
	}
	if in.InFlight {
		reasons = append(reasons, ReasonInFlight)
	}
	return attendance.Gate{Available: len(reasons) == 0, Reasons: reasons}
}

// CheckOutGate decides whether check-out may be invoked. The check-out
// window is not usable before its MinTime.
func CheckOutGate(in GateInput) attendance.Gate {
	var reasons []string
	if !in.HasIdentity {
		reasons = append(reasons, ReasonIdentityMissing)
	}
	if in.Today == nil {
		reasons = append(reasons, ReasonNotLoaded)
	} else {
		if !in.Today.Windows.CheckOut.Usable(in.Now) {
			reasons = append(reasons, ReasonWindowClosed)
		}
		rec := in.Today.Attendance
		if rec == nil || rec.CheckInTime == nil {
			reasons = append(reasons, ReasonNotCheckedIn)
		}
		if rec != nil && rec.CheckOutTime != nil {
			reasons = append(reasons, ReasonAlreadyCheckedOut)
		}
		reasons = append(reasons, sideStateReasons(in.Today)...)
	}
	if !in.LocationResolved {
		reasons = append(reasons, ReasonLocationUnresolved)
	}
	if in.InFlight {
		reasons = append(reasons, ReasonInFlight)
	}
	return attendance.Gate{Available: len(reasons) == 0, Reasons: reasons}
}

func sideStateReasons(today *attendance.Today) []string {
	switch attendance.DeriveDayState(today) {
	case attendance.DayOnLeave:
		return []string{ReasonOnLeave}
	case attendance.DayRegularizationPending:
		return []string{ReasonRegularizationPending}
	}
	return nil
}
