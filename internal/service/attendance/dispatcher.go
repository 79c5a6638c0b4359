package attendance

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/jonboulle/clockwork"
)

type todayCache interface {
	Snapshot() FetchSnapshot
	Invalidate(ctx context.Context) (attendance.Today, error)
}

type deviceLocator interface {
	DeviceContext() (attendance.DeviceContext, bool)
}

// Dispatcher sends the four user actions. Each action excludes itself while
// in flight and is independent of the others. Nothing is retried and no
// local state is patched: success invalidates the fetch cache instead.
type Dispatcher struct {
	repo    attendance.AttendanceRepository
	user    session.CurrentUser
	cache   todayCache
	locator deviceLocator
	clock   clockwork.Clock

	Leave          *LeaveForm
	Regularization *RegularizationForm

	checkIn, checkOut, leave, regularization atomic.Bool

	mu       sync.RWMutex
	onNotice func(attendance.Notice)
}

func NewDispatcher(repo attendance.AttendanceRepository, user session.CurrentUser, cache todayCache, locator deviceLocator, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		repo:           repo,
		user:           user,
		cache:          cache,
		locator:        locator,
		clock:          clock,
		Leave:          NewLeaveForm(),
		Regularization: NewRegularizationForm(),
	}
}

// OnNotice registers the callback that receives every action outcome.
func (d *Dispatcher) OnNotice(fn func(attendance.Notice)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onNotice = fn
}

func (d *Dispatcher) Busy() attendance.Busy {
	return attendance.Busy{
		CheckIn:        d.checkIn.Load(),
		CheckOut:       d.checkOut.Load(),
		Leave:          d.leave.Load(),
		Regularization: d.regularization.Load(),
	}
}

// Gates evaluates both mark gates against the current cache and location.
func (d *Dispatcher) Gates() (checkIn, checkOut attendance.Gate) {
	return CheckInGate(d.gateInput(d.checkIn.Load())), CheckOutGate(d.gateInput(d.checkOut.Load()))
}

func (d *Dispatcher) gateInput(inFlight bool) GateInput {
	_, resolved := d.locator.DeviceContext()
	return GateInput{
		HasIdentity:      d.user.HasIdentity(),
		Today:            d.cache.Snapshot().Today,
		LocationResolved: resolved,
		InFlight:         inFlight,
		Now:              d.clock.Now(),
	}
}

func (d *Dispatcher) CheckIn(ctx context.Context) (attendance.Notice, error) {
	return d.mark(ctx, attendance.MarkCheckIn)
}

func (d *Dispatcher) CheckOut(ctx context.Context) (attendance.Notice, error) {
	return d.mark(ctx, attendance.MarkCheckOut)
}

func (d *Dispatcher) mark(ctx context.Context, markType attendance.MarkType) (attendance.Notice, error) {
	action, flag, gate := attendance.ActionCheckIn, &d.checkIn, CheckInGate
	defaultMessage := "Checked in successfully"
	if markType == attendance.MarkCheckOut {
		action, flag, gate = attendance.ActionCheckOut, &d.checkOut, CheckOutGate
		defaultMessage = "Checked out successfully"
	}

	if !flag.CompareAndSwap(false, true) {
		return attendance.Notice{}, attendance.ErrActionInFlight
	}
	defer flag.Store(false)

	if g := gate(d.gateInput(false)); !g.Available {
		return attendance.Notice{}, &attendance.UnavailableError{Action: action, Reasons: g.Reasons}
	}

	dc, _ := d.locator.DeviceContext()
	req := attendance.MarkRequest{
		UserID:     d.user.ID,
		Type:       markType,
		Location:   dc.Location,
		DeviceInfo: dc.DeviceInfo,
	}
	if err := req.Validate(); err != nil {
		return d.fail(action, err), err
	}

	resp, err := d.repo.Mark(context.WithoutCancel(ctx), d.user.SchoolID, req)
	if err != nil {
		return d.fail(action, err), err
	}

	notice := attendance.Notice{
		Kind:    attendance.NoticeSuccess,
		Action:  action,
		Message: fallback(resp.Message, defaultMessage),
		At:      d.clock.Now(),
	}
	// Lateness minutes are only known after the refetch; until then the
	// flag from the mark response is shown as provisional.
	if markType == attendance.MarkCheckIn && resp.IsLate != nil && *resp.IsLate {
		notice.Kind = attendance.NoticeWarning
		notice.Late = true
		notice.Provisional = true
	}

	slog.Info("Attendance marked", "type", markType, "user_id", d.user.ID, "late", notice.Late)
	d.invalidate(ctx)
	d.emit(notice)
	return notice, nil
}

func (d *Dispatcher) SubmitLeave(ctx context.Context) (attendance.Notice, error) {
	if !d.leave.CompareAndSwap(false, true) {
		return attendance.Notice{}, attendance.ErrActionInFlight
	}
	defer d.leave.Store(false)

	draft := d.Leave.Draft()
	if !d.user.HasIdentity() {
		return attendance.Notice{}, session.ErrMissingIdentity
	}

	req, err := draft.ToRequest(d.user.ID)
	if err != nil {
		return d.fail(attendance.ActionLeave, err), err
	}

	d.Leave.setSubmitting(true)
	resp, err := d.repo.SubmitLeave(context.WithoutCancel(ctx), d.user.SchoolID, req)
	d.Leave.setSubmitting(false)
	if err != nil {
		return d.fail(attendance.ActionLeave, err), err
	}

	d.Leave.Dismiss()
	slog.Info("Leave request submitted", "user_id", d.user.ID, "total_days", req.TotalDays)
	return d.succeed(ctx, attendance.ActionLeave, fallback(resp.Message, "Leave request submitted")), nil
}

func (d *Dispatcher) SubmitRegularization(ctx context.Context) (attendance.Notice, error) {
	if !d.regularization.CompareAndSwap(false, true) {
		return attendance.Notice{}, attendance.ErrActionInFlight
	}
	defer d.regularization.Store(false)

	draft := d.Regularization.Draft()
	if !d.user.HasIdentity() {
		return attendance.Notice{}, session.ErrMissingIdentity
	}

	req, err := draft.ToRequest(d.user.ID)
	if err != nil {
		return d.fail(attendance.ActionRegularization, err), err
	}

	d.Regularization.setSubmitting(true)
	resp, err := d.repo.SubmitRegularization(context.WithoutCancel(ctx), d.user.SchoolID, req)
	d.Regularization.setSubmitting(false)
	if err != nil {
		return d.fail(attendance.ActionRegularization, err), err
	}

	d.Regularization.Dismiss()
	slog.Info("Regularization request submitted", "user_id", d.user.ID, "date", req.Date)
	return d.succeed(ctx, attendance.ActionRegularization, fallback(resp.Message, "Regularization request submitted")), nil
}

func (d *Dispatcher) succeed(ctx context.Context, action attendance.Action, message string) attendance.Notice {
	notice := attendance.Notice{
		Kind:    attendance.NoticeSuccess,
		Action:  action,
		Message: message,
		At:      d.clock.Now(),
	}
	d.invalidate(ctx)
	d.emit(notice)
	return notice
}

func (d *Dispatcher) fail(action attendance.Action, err error) attendance.Notice {
	slog.Warn("Attendance action failed", "action", action, "error", err)
	notice := attendance.Notice{
		Kind:    attendance.NoticeError,
		Action:  action,
		Message: userMessage(err),
		At:      d.clock.Now(),
	}
	d.emit(notice)
	return notice
}

func (d *Dispatcher) invalidate(ctx context.Context) {
	if _, err := d.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("Refetch after action failed", "error", err)
	}
}

func (d *Dispatcher) emit(notice attendance.Notice) {
	d.mu.RLock()
	fn := d.onNotice
	d.mu.RUnlock()
	if fn != nil {
		fn(notice)
	}
}

// userMessage returns the server's text for rejections and the error text otherwise.
func userMessage(err error) string {
	var rejected serverError
	if errors.As(err, &rejected) && rejected.UserMessage() != "" {
		return rejected.UserMessage()
	}
	return err.Error()
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
