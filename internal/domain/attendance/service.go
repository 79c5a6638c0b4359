package attendance

import (
	"context"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
)

// ========================================
// CONTROLLER STATE
// ========================================

type FetchStatus string

const (
	FetchIdle    FetchStatus = "idle"
	FetchLoading FetchStatus = "loading"
	FetchSuccess FetchStatus = "success"
	FetchError   FetchStatus = "error"
	FetchBlocked FetchStatus = "blocked"
)

type AppState string

const (
	AppActive     AppState = "active"
	AppInactive   AppState = "inactive"
	AppBackground AppState = "background"
)

func (s AppState) Valid() bool {
	return s == AppActive || s == AppInactive || s == AppBackground
}

// Gate tells the UI whether an action can be invoked and, if not, why.
type Gate struct {
	Available bool     `json:"available"`
	Reasons   []string `json:"reasons,omitempty"`
}

// Pulse is the attention animation that runs alongside the live timer.
type Pulse struct {
	Active bool `json:"active"`
	Phase  int  `json:"phase"`
}

type TrackerState struct {
	Hours   float64 `json:"hours"`
	Running bool    `json:"running"`
	Frozen  bool    `json:"frozen"`
	Pulse   Pulse   `json:"pulse"`
}

type LocationStatus string

const (
	LocationPending  LocationStatus = "pending"
	LocationResolved LocationStatus = "resolved"
	LocationFailed   LocationStatus = "failed"
)

type LocationState struct {
	Status         LocationStatus `json:"status"`
	Context        *DeviceContext `json:"context,omitempty"`
	Error          string         `json:"error,omitempty"`
	DistanceMeters *float64       `json:"distanceMeters,omitempty"`
}

type Busy struct {
	CheckIn        bool `json:"checkIn"`
	CheckOut       bool `json:"checkOut"`
	Leave          bool `json:"leave"`
	Regularization bool `json:"regularization"`
}

type LeaveFormState struct {
	Open       bool       `json:"open"`
	Draft      LeaveDraft `json:"draft"`
	TotalDays  *int       `json:"totalDays,omitempty"`
	Submitting bool       `json:"submitting"`
}

type RegularizationFormState struct {
	Open       bool                `json:"open"`
	Draft      RegularizationDraft `json:"draft"`
	Submitting bool                `json:"submitting"`
}

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
)

type Action string

const (
	ActionCheckIn        Action = "check_in"
	ActionCheckOut       Action = "check_out"
	ActionLeave          Action = "leave_request"
	ActionRegularization Action = "regularization"
)

// Notice is the user-facing outcome of an action. Late is set from the
// check-in response and is Provisional until a refetch carries lateByMinutes.
type Notice struct {
	Kind        NoticeKind `json:"kind"`
	Action      Action     `json:"action"`
	Message     string     `json:"message"`
	Late        bool       `json:"late,omitempty"`
	Provisional bool       `json:"provisional,omitempty"`
	At          time.Time  `json:"at"`
}

type State struct {
	User          *session.CurrentUser `json:"user,omitempty"`
	Blocked       bool                 `json:"blocked"`
	BlockedReason string               `json:"blockedReason,omitempty"`
	AppState      AppState             `json:"appState"`

	FetchStatus FetchStatus `json:"fetchStatus"`
	FetchError  string      `json:"fetchError,omitempty"`
	FetchedAt   *time.Time  `json:"fetchedAt,omitempty"`
	Today       *Today      `json:"today,omitempty"`
	DayState    DayState    `json:"dayState"`

	Tracker        TrackerState  `json:"tracker"`
	CheckInWindow  *WindowView   `json:"checkInWindow,omitempty"`
	CheckOutWindow *WindowView   `json:"checkOutWindow,omitempty"`
	CheckIn        Gate          `json:"checkIn"`
	CheckOut       Gate          `json:"checkOut"`
	Busy           Busy          `json:"busy"`
	Location       LocationState `json:"location"`

	LeaveForm          LeaveFormState          `json:"leaveForm"`
	RegularizationForm RegularizationFormState `json:"regularizationForm"`
	LastNotice         *Notice                 `json:"lastNotice,omitempty"`
}

// AttendanceService is the attendance session controller as driven by a UI shell.
type AttendanceService interface {
	// State returns the current view model
	State() State

	// Refresh refetches today's data, collapsing with any in-flight fetch
	Refresh(ctx context.Context) error

	// SetAppState records foreground/background transitions
	SetAppState(ctx context.Context, state AppState)

	// ResolveLocation re-resolves the device location and context
	ResolveLocation(ctx context.Context) error

	// ReportLocation accepts a fix from the shell's own GPS and resolves with it
	ReportLocation(ctx context.Context, loc Location) error

	// Remount re-reads the persisted session and restarts polling
	Remount() error

	CheckIn(ctx context.Context) (Notice, error)
	CheckOut(ctx context.Context) (Notice, error)

	OpenLeaveForm() LeaveFormState
	UpdateLeaveForm(patch LeavePatch) (LeaveFormState, error)
	DismissLeaveForm()
	SubmitLeave(ctx context.Context) (Notice, error)

	OpenRegularizationForm() RegularizationFormState
	UpdateRegularizationForm(patch RegularizationPatch) (RegularizationFormState, error)
	DismissRegularizationForm()
	SubmitRegularization(ctx context.Context) (Notice, error)
}
