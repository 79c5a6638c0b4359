package attendance

import (
	"strings"

	"github.com/cmlabs-hris/attendance-agent/internal/pkg/validator"
)

// ========================================
// MARK (CHECK-IN / CHECK-OUT) DTOs
// ========================================

type MarkRequest struct {
	UserID     string     `json:"userId"`
	Type       MarkType   `json:"type"`
	Location   Location   `json:"location"`
	DeviceInfo DeviceInfo `json:"deviceInfo"`
}

func (r *MarkRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.UserID) {
		errs = append(errs, validator.ValidationError{
			Field:   "userId",
			Message: "userId is required",
		})
	}

	if r.Type != MarkCheckIn && r.Type != MarkCheckOut {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type must be one of: CHECK_IN, CHECK_OUT",
		})
	}

	if !validator.IsInRange(r.Location.Latitude, -90, 90) {
		errs = append(errs, validator.ValidationError{
			Field:   "location.latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if !validator.IsInRange(r.Location.Longitude, -180, 180) {
		errs = append(errs, validator.ValidationError{
			Field:   "location.longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if r.Location.Accuracy < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "location.accuracy",
			Message: "accuracy must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type MarkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	IsLate  *bool  `json:"isLate,omitempty"`
}

// SubmitResponse is returned by the leave and regularization endpoints.
type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ========================================
// SHELL INPUT DTOs
// ========================================

// LifecycleRequest reports a foreground/background transition of the shell.
type LifecycleRequest struct {
	State AppState `json:"state"`
}

func (r *LifecycleRequest) Validate() error {
	var errs validator.ValidationErrors

	if !r.State.Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "state",
			Message: "state must be one of: active, inactive, background",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// LocationReport is a fix from the shell's own GPS. An empty body asks the
// agent to resolve the location itself.
type LocationReport struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Accuracy  float64  `json:"accuracy"`
}

// Empty reports whether no coordinate was supplied.
func (r *LocationReport) Empty() bool {
	return r.Latitude == nil && r.Longitude == nil
}

func (r *LocationReport) Validate() error {
	var errs validator.ValidationErrors

	if r.Latitude == nil || !validator.IsInRange(*r.Latitude, -90, 90) {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if r.Longitude == nil || !validator.IsInRange(*r.Longitude, -180, 180) {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if r.Accuracy < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "accuracy",
			Message: "accuracy must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

func (r *LocationReport) Location() Location {
	var loc Location
	if r.Latitude != nil {
		loc.Latitude = *r.Latitude
	}
	if r.Longitude != nil {
		loc.Longitude = *r.Longitude
	}
	loc.Accuracy = r.Accuracy
	return loc
}

// ========================================
// LEAVE REQUEST DTOs
// ========================================

type LeaveType string

const (
	LeaveCasual    LeaveType = "CASUAL"
	LeaveSick      LeaveType = "SICK"
	LeaveEarned    LeaveType = "EARNED"
	LeaveEmergency LeaveType = "EMERGENCY"
)

var leaveTypes = []string{string(LeaveCasual), string(LeaveSick), string(LeaveEarned), string(LeaveEmergency)}

// LeaveDraft is the transient leave form state.
type LeaveDraft struct {
	LeaveType             LeaveType `json:"leaveType"`
	StartDate             string    `json:"startDate"` // YYYY-MM-DD
	EndDate               string    `json:"endDate"`   // YYYY-MM-DD
	Reason                string    `json:"reason"`
	EmergencyContact      *string   `json:"emergencyContact,omitempty"`
	EmergencyContactPhone *string   `json:"emergencyContactPhone,omitempty"`
}

// NewLeaveDraft returns the empty draft a freshly opened form starts with.
func NewLeaveDraft() LeaveDraft {
	return LeaveDraft{LeaveType: LeaveCasual}
}

// TotalDays derives the inclusive day count. Both dates are required.
func (d LeaveDraft) TotalDays() (int, error) {
	start, okStart := validator.IsValidDate(d.StartDate)
	end, okEnd := validator.IsValidDate(d.EndDate)
	if !okStart || !okEnd {
		return 0, ErrDatesRequired
	}
	days := validator.DaysInclusive(start, end)
	if days == 0 {
		return 0, ErrEndBeforeStart
	}
	return days, nil
}

func (d LeaveDraft) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsInSlice(string(d.LeaveType), leaveTypes) {
		errs = append(errs, validator.ValidationError{
			Field:   "leaveType",
			Message: "leaveType must be one of: " + strings.Join(leaveTypes, ", "),
		})
	}

	start, okStart := validator.IsValidDate(d.StartDate)
	if validator.IsEmpty(d.StartDate) {
		errs = append(errs, validator.ValidationError{
			Field:   "startDate",
			Message: "startDate is required",
		})
	} else if !okStart {
		errs = append(errs, validator.ValidationError{
			Field:   "startDate",
			Message: "startDate must be in YYYY-MM-DD format",
		})
	}

	end, okEnd := validator.IsValidDate(d.EndDate)
	if validator.IsEmpty(d.EndDate) {
		errs = append(errs, validator.ValidationError{
			Field:   "endDate",
			Message: "endDate is required",
		})
	} else if !okEnd {
		errs = append(errs, validator.ValidationError{
			Field:   "endDate",
			Message: "endDate must be in YYYY-MM-DD format",
		})
	}

	if okStart && okEnd && end.Before(start) {
		errs = append(errs, validator.ValidationError{
			Field:   "endDate",
			Message: "endDate must not be before startDate",
		})
	}

	if validator.IsEmpty(d.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "reason is required",
		})
	}

	if d.EmergencyContactPhone != nil && !validator.IsEmpty(*d.EmergencyContactPhone) &&
		!validator.IsValidPhoneNumber(*d.EmergencyContactPhone) {
		errs = append(errs, validator.ValidationError{
			Field:   "emergencyContactPhone",
			Message: "emergencyContactPhone must be a valid phone number",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// LeavePatch carries partial form input; nil fields are left untouched.
type LeavePatch struct {
	LeaveType             *LeaveType `json:"leaveType,omitempty"`
	StartDate             *string    `json:"startDate,omitempty"`
	EndDate               *string    `json:"endDate,omitempty"`
	Reason                *string    `json:"reason,omitempty"`
	EmergencyContact      *string    `json:"emergencyContact,omitempty"`
	EmergencyContactPhone *string    `json:"emergencyContactPhone,omitempty"`
}

func (p LeavePatch) Apply(d *LeaveDraft) {
	if p.LeaveType != nil {
		d.LeaveType = LeaveType(strings.ToUpper(string(*p.LeaveType)))
	}
	if p.StartDate != nil {
		d.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		d.EndDate = *p.EndDate
	}
	if p.Reason != nil {
		d.Reason = *p.Reason
	}
	if p.EmergencyContact != nil {
		d.EmergencyContact = p.EmergencyContact
	}
	if p.EmergencyContactPhone != nil {
		d.EmergencyContactPhone = p.EmergencyContactPhone
	}
}

// LeaveRequest is the wire payload of the leave-management endpoint.
type LeaveRequest struct {
	UserID                string    `json:"userId"`
	LeaveType             LeaveType `json:"leaveType"`
	StartDate             string    `json:"startDate"`
	EndDate               string    `json:"endDate"`
	Reason                string    `json:"reason"`
	TotalDays             int       `json:"totalDays"`
	EmergencyContact      *string   `json:"emergencyContact,omitempty"`
	EmergencyContactPhone *string   `json:"emergencyContactPhone,omitempty"`
}

// ToRequest validates the draft and builds the payload with derived totalDays.
func (d LeaveDraft) ToRequest(userID string) (LeaveRequest, error) {
	if err := d.Validate(); err != nil {
		return LeaveRequest{}, err
	}
	days, err := d.TotalDays()
	if err != nil {
		return LeaveRequest{}, err
	}
	return LeaveRequest{
		UserID:                userID,
		LeaveType:             d.LeaveType,
		StartDate:             d.StartDate,
		EndDate:               d.EndDate,
		Reason:                strings.TrimSpace(d.Reason),
		TotalDays:             days,
		EmergencyContact:      d.EmergencyContact,
		EmergencyContactPhone: d.EmergencyContactPhone,
	}, nil
}

// ========================================
// REGULARIZATION DTOs
// ========================================

var regularizationStatuses = []string{string(StatusPresent), string(StatusHalfDay), string(StatusOnLeave)}

type RegularizationDraft struct {
	Date            string `json:"date"` // YYYY-MM-DD
	RequestedStatus Status `json:"requestedStatus"`
	Reason          string `json:"reason"`
}

func NewRegularizationDraft() RegularizationDraft {
	return RegularizationDraft{RequestedStatus: StatusPresent}
}

func (d RegularizationDraft) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(d.Date) {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date is required",
		})
	} else if _, ok := validator.IsValidDate(d.Date); !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must be in YYYY-MM-DD format",
		})
	}

	if !validator.IsInSlice(string(d.RequestedStatus), regularizationStatuses) {
		errs = append(errs, validator.ValidationError{
			Field:   "requestedStatus",
			Message: "requestedStatus must be one of: " + strings.Join(regularizationStatuses, ", "),
		})
	}

	if validator.IsEmpty(d.Reason) {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: "reason is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type RegularizationPatch struct {
	Date            *string `json:"date,omitempty"`
	RequestedStatus *Status `json:"requestedStatus,omitempty"`
	Reason          *string `json:"reason,omitempty"`
}

func (p RegularizationPatch) Apply(d *RegularizationDraft) {
	if p.Date != nil {
		d.Date = *p.Date
	}
	if p.RequestedStatus != nil {
		d.RequestedStatus = Status(strings.ToUpper(string(*p.RequestedStatus)))
	}
	if p.Reason != nil {
		d.Reason = *p.Reason
	}
}

type RegularizationRequest struct {
	UserID          string `json:"userId"`
	Date            string `json:"date"`
	RequestedStatus Status `json:"requestedStatus"`
	Reason          string `json:"reason"`
}

func (d RegularizationDraft) ToRequest(userID string) (RegularizationRequest, error) {
	if err := d.Validate(); err != nil {
		return RegularizationRequest{}, err
	}
	return RegularizationRequest{
		UserID:          userID,
		Date:            d.Date,
		RequestedStatus: d.RequestedStatus,
		Reason:          strings.TrimSpace(d.Reason),
	}, nil
}
