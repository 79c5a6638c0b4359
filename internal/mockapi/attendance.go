package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/validator"
	"github.com/google/uuid"
)

// GetToday returns the caller's record, windows and monthly stats.
func (s *Server) GetToday(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if q := r.URL.Query().Get("userId"); q != "" && q != user.ID {
		response.NotFound(w, "User not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.Today++

	now := s.clock.Now()
	date := s.today()
	var rec *attendance.Record
	if stored, ok := s.records[recordKey(user.ID, date)]; ok {
		cp := *stored
		if cp.Running() {
			live := hours(*cp.CheckInTime, now)
			cp.LiveWorkingHours = &live
		}
		rec = &cp
	}

	writeJSON(w, http.StatusOK, attendance.Today{
		Attendance:   rec,
		IsWorkingDay: s.workingDayLocked(now),
		DayType:      s.dayTypeLocked(now),
		Config:       s.schedule.config(),
		Windows:      s.schedule.windows(now, rec),
		MonthlyStats: s.monthlyStatsLocked(user.ID, now),
	})
}

// Mark records a check-in or check-out. Business rejections are answered with
// 200 and success=false, as the real backend does.
func (s *Server) Mark(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req attendance.MarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}
	if req.UserID != user.ID {
		response.NotFound(w, "User not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.Mark++

	now := s.clock.Now()
	if !s.workingDayLocked(now) {
		reject(w, "Today is not a working day")
		return
	}

	date := s.today()
	key := recordKey(user.ID, date)
	rec := s.records[key]
	windows := s.schedule.windows(now, rec)

	switch req.Type {
	case attendance.MarkCheckIn:
		if rec != nil && rec.CheckInTime != nil {
			reject(w, "You have already checked in today")
			return
		}
		if rec != nil && rec.Status == attendance.StatusOnLeave {
			reject(w, "You are on leave today")
			return
		}
		if !windows.CheckIn.IsOpen {
			reject(w, windowMessage("Check-in", now, windows.CheckIn.Start))
			return
		}

		if rec == nil {
			rec = &attendance.Record{ID: newID(), Date: date}
			s.records[key] = rec
		}
		checkIn := now
		rec.CheckInTime = &checkIn
		rec.Status = attendance.StatusPresent
		late := s.schedule.lateness(now)
		if late > 0 {
			rec.Status = attendance.StatusLate
			rec.LateByMinutes = &late
		}
		isLate := late > 0
		slog.Info("Mock check-in", "user_id", user.ID, "late_minutes", late, "accuracy", req.Location.Accuracy)
		writeJSON(w, http.StatusOK, attendance.MarkResponse{Success: true, Message: "Checked in successfully", IsLate: &isLate})

	case attendance.MarkCheckOut:
		if rec == nil || rec.CheckInTime == nil {
			reject(w, "You have not checked in today")
			return
		}
		if rec.CheckOutTime != nil {
			reject(w, "You have already checked out today")
			return
		}
		if !windows.CheckOut.IsOpen {
			opens := windows.CheckOut.Start
			if windows.CheckOut.MinTime != nil && windows.CheckOut.MinTime.After(opens) {
				opens = *windows.CheckOut.MinTime
			}
			reject(w, windowMessage("Check-out", now, opens))
			return
		}

		checkOut := now
		worked := hours(*rec.CheckInTime, checkOut)
		rec.CheckOutTime = &checkOut
		rec.WorkingHours = &worked
		rec.LiveWorkingHours = nil
		slog.Info("Mock check-out", "user_id", user.ID, "working_hours", worked)
		writeJSON(w, http.StatusOK, attendance.MarkResponse{Success: true, Message: "Checked out successfully"})
	}
}

// SubmitLeave stores a leave request. A range covering today marks the day
// as ON_LEAVE when nothing has been marked yet.
func (s *Server) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req attendance.LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	if err := validateLeave(req, user.ID); err != nil {
		response.HandleError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.Leave++
	s.leaves = append(s.leaves, req)

	date := s.today()
	if req.StartDate <= date && date <= req.EndDate {
		key := recordKey(user.ID, date)
		rec := s.records[key]
		if rec == nil {
			rec = &attendance.Record{ID: newID(), Date: date}
			s.records[key] = rec
		}
		if rec.CheckInTime == nil {
			rec.Status = attendance.StatusOnLeave
		}
	}

	writeJSON(w, http.StatusOK, attendance.SubmitResponse{Success: true, Message: "Leave request submitted for approval"})
}

// SubmitRegularization stores a correction request and flags the day's
// record as pending.
func (s *Server) SubmitRegularization(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req attendance.RegularizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	draft := attendance.RegularizationDraft{Date: req.Date, RequestedStatus: req.RequestedStatus, Reason: req.Reason}
	if err := draft.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}
	if req.UserID != user.ID {
		response.NotFound(w, "User not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.Regularization++
	s.regularizations = append(s.regularizations, req)

	key := recordKey(user.ID, req.Date)
	rec := s.records[key]
	if rec == nil {
		rec = &attendance.Record{ID: newID(), Date: req.Date, Status: attendance.StatusAbsent}
		s.records[key] = rec
	}
	pending := attendance.RegularizationPending
	rec.RegularizationStatus = &pending

	writeJSON(w, http.StatusOK, attendance.SubmitResponse{Success: true, Message: "Regularization request submitted"})
}

func validateLeave(req attendance.LeaveRequest, userID string) error {
	draft := attendance.LeaveDraft{
		LeaveType:             attendance.LeaveType(strings.ToUpper(string(req.LeaveType))),
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		Reason:                req.Reason,
		EmergencyContact:      req.EmergencyContact,
		EmergencyContactPhone: req.EmergencyContactPhone,
	}
	if err := draft.Validate(); err != nil {
		return err
	}

	var errs validator.ValidationErrors
	if req.UserID != userID {
		errs = append(errs, validator.ValidationError{
			Field:   "userId",
			Message: "userId must be the signed-in user",
		})
	}
	if days, err := draft.TotalDays(); err == nil && days != req.TotalDays {
		errs = append(errs, validator.ValidationError{
			Field:   "totalDays",
			Message: "totalDays does not match the date range",
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (s *Server) workingDayLocked(now time.Time) bool {
	if s.holidays[dateOf(now, s.schedule.location())] {
		return false
	}
	return s.schedule.isWorkingDay(now)
}

func (s *Server) dayTypeLocked(now time.Time) string {
	switch {
	case s.holidays[dateOf(now, s.schedule.location())]:
		return "HOLIDAY"
	case !s.schedule.isWorkingDay(now):
		return "WEEKEND"
	default:
		return "WORKING"
	}
}

func (s *Server) monthlyStatsLocked(userID string, now time.Time) attendance.MonthlyStats {
	loc := s.schedule.location()
	y, m, _ := now.In(loc).Date()
	var stats attendance.MonthlyStats

	for d := time.Date(y, m, 1, 12, 0, 0, 0, loc); !d.After(now); d = d.AddDate(0, 0, 1) {
		if !s.workingDayLocked(d) {
			continue
		}
		stats.TotalWorkingDays++
		rec, ok := s.records[recordKey(userID, dateOf(d, loc))]
		switch {
		case !ok:
			if dateOf(d, loc) != dateOf(now, loc) {
				stats.AbsentDays++
			}
		case rec.Status == attendance.StatusOnLeave:
			stats.LeaveDays++
		case rec.Status == attendance.StatusLate:
			stats.LateDays++
			stats.PresentDays++
		case rec.Status == attendance.StatusPresent || rec.Status == attendance.StatusHalfDay:
			stats.PresentDays++
		default:
			stats.AbsentDays++
		}
	}
	if stats.TotalWorkingDays > 0 {
		stats.AttendancePercentage = float64(stats.PresentDays) * 100 / float64(stats.TotalWorkingDays)
	}
	return stats
}

func reject(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, attendance.MarkResponse{Success: false, Message: message})
}

func windowMessage(action string, now, opens time.Time) string {
	if now.Before(opens) {
		return action + " window is not open yet"
	}
	return action + " window has closed"
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
