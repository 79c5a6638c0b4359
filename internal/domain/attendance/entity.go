package attendance

import (
	"time"
)

type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
	StatusAbsent  Status = "ABSENT"
	StatusOnLeave Status = "ON_LEAVE"
	StatusHalfDay Status = "HALF_DAY"
)

const RegularizationPending = "PENDING"

// Record is the server-owned attendance of one user for the current day.
// The client never mutates it; every fetch replaces it wholesale.
type Record struct {
	ID                   string     `json:"id,omitempty"`
	Date                 string     `json:"date,omitempty"`
	CheckInTime          *time.Time `json:"checkInTime,omitempty"`
	CheckOutTime         *time.Time `json:"checkOutTime,omitempty"`
	Status               Status     `json:"status,omitempty"`
	LateByMinutes        *int       `json:"lateByMinutes,omitempty"`
	LiveWorkingHours     *float64   `json:"liveWorkingHours,omitempty"`
	WorkingHours         *float64   `json:"workingHours,omitempty"`
	RegularizationStatus *string    `json:"regularizationStatus,omitempty"`
}

// Validate reports records that break the check-out-after-check-in invariant.
func (r *Record) Validate() error {
	if r == nil {
		return nil
	}
	if r.CheckOutTime != nil && r.CheckInTime == nil {
		return ErrInconsistentRecord
	}
	return nil
}

// Running reports whether the user is checked in and not yet checked out.
func (r *Record) Running() bool {
	return r != nil && r.CheckInTime != nil && r.CheckOutTime == nil
}

// Window is a server-computed interval during which an action is permitted.
// IsOpen is only accurate at fetch time.
type Window struct {
	Start   time.Time  `json:"start"`
	End     time.Time  `json:"end"`
	IsOpen  bool       `json:"isOpen"`
	MinTime *time.Time `json:"minTime,omitempty"`
}

type Windows struct {
	CheckIn  Window `json:"checkIn"`
	CheckOut Window `json:"checkOut"`
}

// Config carries the school's attendance settings. Display hints only.
type Config struct {
	CheckInStartTime    string   `json:"checkInStartTime,omitempty"`
	CheckInEndTime      string   `json:"checkInEndTime,omitempty"`
	CheckOutStartTime   string   `json:"checkOutStartTime,omitempty"`
	CheckOutEndTime     string   `json:"checkOutEndTime,omitempty"`
	MinWorkingHours     float64  `json:"minWorkingHours,omitempty"`
	GraceMinutes        int      `json:"graceMinutes,omitempty"`
	EnableGeoFencing    bool     `json:"enableGeoFencing,omitempty"`
	SchoolLatitude      *float64 `json:"schoolLatitude,omitempty"`
	SchoolLongitude     *float64 `json:"schoolLongitude,omitempty"`
	AllowedRadiusMeters float64  `json:"allowedRadiusMeters,omitempty"`
}

type MonthlyStats struct {
	TotalWorkingDays     int     `json:"totalWorkingDays"`
	PresentDays          int     `json:"presentDays"`
	LateDays             int     `json:"lateDays"`
	AbsentDays           int     `json:"absentDays"`
	LeaveDays            int     `json:"leaveDays"`
	AttendancePercentage float64 `json:"attendancePercentage"`
}

// Today is the payload of the "mark" GET endpoint.
type Today struct {
	Attendance   *Record      `json:"attendance"`
	IsWorkingDay bool         `json:"isWorkingDay"`
	DayType      string       `json:"dayType,omitempty"`
	Config       Config       `json:"config"`
	Windows      Windows      `json:"windows"`
	MonthlyStats MonthlyStats `json:"monthlyStats"`

	FetchedAt time.Time `json:"-"`
}

// Day returns the attendance-day key used to scope frozen values.
func (t *Today) Day() string {
	if t == nil {
		return ""
	}
	if t.Attendance != nil && t.Attendance.Date != "" {
		if len(t.Attendance.Date) >= 10 {
			return t.Attendance.Date[:10]
		}
		return t.Attendance.Date
	}
	if t.Attendance != nil && t.Attendance.CheckInTime != nil {
		return t.Attendance.CheckInTime.Format("2006-01-02")
	}
	return t.FetchedAt.Format("2006-01-02")
}

type DayState string

const (
	DayNotMarked             DayState = "NOT_MARKED"
	DayCheckedIn             DayState = "CHECKED_IN"
	DayCheckedOut            DayState = "CHECKED_OUT"
	DayOnLeave               DayState = "ON_LEAVE"
	DayRegularizationPending DayState = "REGULARIZATION_PENDING"
	DayNonWorking            DayState = "NON_WORKING_DAY"
)

// Terminal reports states that offer no check-in/out for the rest of the day.
func (d DayState) Terminal() bool {
	switch d {
	case DayCheckedOut, DayOnLeave, DayRegularizationPending:
		return true
	}
	return false
}

// DeriveDayState maps a fetch result onto the observed day state.
func DeriveDayState(t *Today) DayState {
	if t == nil {
		return DayNotMarked
	}
	rec := t.Attendance
	if rec != nil {
		if rec.Status == StatusOnLeave {
			return DayOnLeave
		}
		if rec.RegularizationStatus != nil && *rec.RegularizationStatus == RegularizationPending {
			return DayRegularizationPending
		}
		switch {
		case rec.CheckOutTime != nil:
			return DayCheckedOut
		case rec.CheckInTime != nil:
			return DayCheckedIn
		}
	}
	if !t.IsWorkingDay {
		return DayNonWorking
	}
	return DayNotMarked
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

type DeviceInfo struct {
	Model     string `json:"model,omitempty"`
	Platform  string `json:"platform,omitempty"`
	OSVersion string `json:"osVersion,omitempty"`
	InstallID string `json:"installId,omitempty"`
}

// DeviceContext is proof-of-presence metadata attached to check-in/out.
// It is regenerated each time the location is resolved and never persisted.
type DeviceContext struct {
	Location   Location   `json:"location"`
	DeviceInfo DeviceInfo `json:"deviceInfo"`
	ResolvedAt time.Time  `json:"resolvedAt"`
}

type MarkType string

const (
	MarkCheckIn  MarkType = "CHECK_IN"
	MarkCheckOut MarkType = "CHECK_OUT"
)
