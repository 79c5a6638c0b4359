package mockapi

import (
	"fmt"
	"math"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
)

const clockLayout = "15:04"

// Schedule is the school's attendance configuration. Clock times are HH:MM
// in Location.
type Schedule struct {
	CheckInStart    string
	CheckInEnd      string
	CheckOutStart   string
	CheckOutEnd     string
	GraceMinutes    int
	MinWorkingHours float64
	Location        *time.Location
	// WorkingDays defaults to Monday through Friday.
	WorkingDays []time.Weekday
	// SchoolLatitude and SchoolLongitude are echoed to clients as a distance hint.
	SchoolLatitude  *float64
	SchoolLongitude *float64
	AllowedRadius   float64
}

func DefaultSchedule() Schedule {
	return Schedule{
		CheckInStart:    "07:00",
		CheckInEnd:      "10:00",
		CheckOutStart:   "13:00",
		CheckOutEnd:     "20:00",
		GraceMinutes:    15,
		MinWorkingHours: 4,
	}
}

func (s Schedule) Validate() error {
	for name, v := range map[string]string{
		"check-in start":  s.CheckInStart,
		"check-in end":    s.CheckInEnd,
		"check-out start": s.CheckOutStart,
		"check-out end":   s.CheckOutEnd,
	} {
		if _, err := time.Parse(clockLayout, v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	if s.GraceMinutes < 0 {
		return fmt.Errorf("grace minutes must not be negative")
	}
	if s.MinWorkingHours < 0 {
		return fmt.Errorf("minimum working hours must not be negative")
	}
	return nil
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

// at returns the instant of clock time hhmm on day's calendar date.
func (s Schedule) at(day time.Time, hhmm string) time.Time {
	t, err := time.Parse(clockLayout, hhmm)
	if err != nil {
		return time.Time{}
	}
	y, m, d := day.In(s.location()).Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, s.location())
}

func (s Schedule) isWorkingDay(day time.Time) bool {
	days := s.WorkingDays
	if len(days) == 0 {
		days = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	}
	wd := day.In(s.location()).Weekday()
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}

// windows computes both windows for now. The check-out window's minimum
// time is only set once the user has checked in.
func (s Schedule) windows(now time.Time, rec *attendance.Record) attendance.Windows {
	in := attendance.Window{
		Start: s.at(now, s.CheckInStart),
		End:   s.at(now, s.CheckInEnd),
	}
	in.IsOpen = !now.Before(in.Start) && !now.After(in.End)

	out := attendance.Window{
		Start: s.at(now, s.CheckOutStart),
		End:   s.at(now, s.CheckOutEnd),
	}
	earliest := out.Start
	if rec != nil && rec.CheckInTime != nil {
		minTime := rec.CheckInTime.Add(time.Duration(s.MinWorkingHours * float64(time.Hour)))
		out.MinTime = &minTime
		if minTime.After(earliest) {
			earliest = minTime
		}
	}
	out.IsOpen = !now.Before(earliest) && !now.After(out.End)

	return attendance.Windows{CheckIn: in, CheckOut: out}
}

// lateness returns the minutes past the check-in start once the grace period
// has elapsed, or 0 when on time.
func (s Schedule) lateness(checkIn time.Time) int {
	start := s.at(checkIn, s.CheckInStart)
	if !checkIn.After(start.Add(time.Duration(s.GraceMinutes) * time.Minute)) {
		return 0
	}
	return int(checkIn.Sub(start) / time.Minute)
}

func (s Schedule) config() attendance.Config {
	return attendance.Config{
		CheckInStartTime:    s.CheckInStart,
		CheckInEndTime:      s.CheckInEnd,
		CheckOutStartTime:   s.CheckOutStart,
		CheckOutEndTime:     s.CheckOutEnd,
		MinWorkingHours:     s.MinWorkingHours,
		GraceMinutes:        s.GraceMinutes,
		EnableGeoFencing:    s.SchoolLatitude != nil && s.SchoolLongitude != nil,
		SchoolLatitude:      s.SchoolLatitude,
		SchoolLongitude:     s.SchoolLongitude,
		AllowedRadiusMeters: s.AllowedRadius,
	}
}

func hours(from, to time.Time) float64 {
	return math.Round(to.Sub(from).Hours()*100) / 100
}
