package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-agent/internal/service/location"
	"github.com/jonboulle/clockwork"
)

// SSE event names
const (
	EventState     = "state"
	EventTick      = "tick"
	EventNotice    = "notice"
	EventSignedOut = "signed_out"
)

type Options struct {
	Repo     attendance.AttendanceRepository
	Sessions session.SessionRepository
	Location *location.Resolver
	Hub      *sse.Hub
	Clock    clockwork.Clock

	// Topic is the SSE topic events are published on
	Topic        string
	PollInterval time.Duration
	TickInterval time.Duration
	Retries      int
	RetryDelay   time.Duration
}

// mount is everything that lives between Mount and Unmount.
type mount struct {
	user       *session.CurrentUser
	blocked    error
	fetcher    *Fetcher
	tracker    *Tracker
	dispatcher *Dispatcher
	scheduler  *cron.Scheduler
}

type AttendanceServiceImpl struct {
	opts  Options
	clock clockwork.Clock

	mu         sync.RWMutex
	root       context.Context
	current    *mount
	appState   attendance.AppState
	lastNotice *attendance.Notice
}

func NewAttendanceService(opts Options) *AttendanceServiceImpl {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.Topic == "" {
		opts.Topic = "attendance"
	}
	if opts.Location == nil {
		opts.Location = location.NewResolver(location.Options{Clock: opts.Clock})
	}
	s := &AttendanceServiceImpl{
		opts:     opts,
		clock:    opts.Clock,
		appState: attendance.AppActive,
	}
	opts.Location.OnChange(func(attendance.LocationState) { s.publishState() })
	return s
}

// Mount reads the session once, starts location resolution and the poll job.
// The identity read here stays fixed until the next Remount.
func (s *AttendanceServiceImpl) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return nil
	}
	s.root = ctx

	m := &mount{}
	sess, err := s.opts.Sessions.Load(ctx)
	switch {
	case err == nil:
		user := sess.User
		m.user = &user
		if !user.HasIdentity() {
			m.blocked = session.ErrMissingIdentity
		}
	case errors.Is(err, session.ErrNoSession):
		m.blocked = session.ErrMissingIdentity
	default:
		s.mu.Unlock()
		return fmt.Errorf("failed to read session: %w", err)
	}

	var user session.CurrentUser
	if m.user != nil {
		user = *m.user
	}
	m.fetcher = NewFetcher(s.opts.Repo, user, FetcherOptions{
		Retries:    s.opts.Retries,
		RetryDelay: s.opts.RetryDelay,
		Clock:      s.clock,
	})
	m.tracker = NewTracker(s.clock, s.opts.TickInterval)
	m.dispatcher = NewDispatcher(s.opts.Repo, user, m.fetcher, s.opts.Location, s.clock)

	m.fetcher.Subscribe(func(snap FetchSnapshot) {
		m.tracker.Sync(snap.Today)
		s.publishState()
	})
	m.tracker.OnTick(func(state attendance.TrackerState) {
		s.publish(EventTick, state)
	})
	m.dispatcher.OnNotice(func(n attendance.Notice) {
		s.mu.Lock()
		s.lastNotice = &n
		s.mu.Unlock()
		s.publish(EventNotice, n)
	})

	m.scheduler = cron.NewScheduler(ctx, s.clock)
	if m.blocked == nil {
		m.scheduler.AddJob("attendance-poll", s.opts.PollInterval, func(ctx context.Context) error {
			_, err := m.fetcher.Refresh(ctx)
			return err
		})
	}

	s.current = m
	s.lastNotice = nil
	s.mu.Unlock()

	if m.blocked != nil {
		slog.Warn("Attendance controller blocked", "reason", m.blocked)
	} else {
		slog.Info("Attendance controller mounted", "user_id", user.ID, "school_id", user.SchoolID)
	}

	s.opts.Location.Start(ctx)
	m.scheduler.Start()
	s.publishState()
	return nil
}

// Unmount stops polling and the live timer. In-flight requests finish on
// their own and their results are dropped.
func (s *AttendanceServiceImpl) Unmount() {
	s.mu.Lock()
	m := s.current
	s.current = nil
	s.mu.Unlock()

	if m == nil {
		return
	}
	m.scheduler.Stop()
	m.fetcher.Close()
	m.tracker.Close()
	slog.Info("Attendance controller unmounted")
}

// Remount implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Remount() error {
	s.mu.RLock()
	root := s.root
	s.mu.RUnlock()
	if root == nil {
		root = context.Background()
	}

	s.Unmount()
	return s.Mount(root)
}

// HandleSignOut is the hook the REST client fires after clearing a rejected
// session. It runs the remount asynchronously because it may be called from
// inside a poll job.
func (s *AttendanceServiceImpl) HandleSignOut(reason error) {
	if s.opts.Hub != nil {
		s.opts.Hub.Forget(s.opts.Topic)
	}
	s.publish(EventSignedOut, map[string]string{"reason": reason.Error()})
	go func() {
		if err := s.Remount(); err != nil {
			slog.Error("Failed to remount after sign-out", "error", err)
		}
	}()
}

func (s *AttendanceServiceImpl) mounted() (*mount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, attendance.ErrNotLoaded
	}
	return s.current, nil
}

// Refresh implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Refresh(ctx context.Context) error {
	m, err := s.mounted()
	if err != nil {
		return err
	}
	if m.blocked != nil {
		return m.blocked
	}
	_, err = m.fetcher.Refresh(ctx)
	return err
}

// SetAppState implements attendance.AttendanceService. Returning to the
// foreground refetches so windows are not shown stale after sleep.
func (s *AttendanceServiceImpl) SetAppState(ctx context.Context, state attendance.AppState) {
	s.mu.Lock()
	prev := s.appState
	s.appState = state
	s.mu.Unlock()

	if state != attendance.AppActive || prev == attendance.AppActive {
		s.publishState()
		return
	}

	slog.Debug("App returned to foreground, refreshing", "from", prev)
	if err := s.Refresh(ctx); err != nil && !errors.Is(err, session.ErrMissingIdentity) {
		slog.Warn("Foreground refresh failed", "error", err)
	}
	s.publishState()
}

// ResolveLocation implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ResolveLocation(ctx context.Context) error {
	return s.opts.Location.Resolve(ctx)
}

// ReportLocation stores a fix pushed by the shell and resolves with it.
func (s *AttendanceServiceImpl) ReportLocation(ctx context.Context, loc attendance.Location) error {
	return s.opts.Location.Report(ctx, loc)
}

func (s *AttendanceServiceImpl) CheckIn(ctx context.Context) (attendance.Notice, error) {
	m, err := s.mounted()
	if err != nil {
		return attendance.Notice{}, err
	}
	defer s.publishState()
	return m.dispatcher.CheckIn(ctx)
}

func (s *AttendanceServiceImpl) CheckOut(ctx context.Context) (attendance.Notice, error) {
	m, err := s.mounted()
	if err != nil {
		return attendance.Notice{}, err
	}
	defer s.publishState()
	return m.dispatcher.CheckOut(ctx)
}

func (s *AttendanceServiceImpl) OpenLeaveForm() attendance.LeaveFormState {
	m, err := s.mounted()
	if err != nil {
		return attendance.LeaveFormState{}
	}
	m.dispatcher.Leave.Open()
	return m.dispatcher.Leave.Snapshot()
}

func (s *AttendanceServiceImpl) UpdateLeaveForm(patch attendance.LeavePatch) (attendance.LeaveFormState, error) {
	m, err := s.mounted()
	if err != nil {
		return attendance.LeaveFormState{}, err
	}
	if err := m.dispatcher.Leave.Update(patch.Apply); err != nil {
		return m.dispatcher.Leave.Snapshot(), err
	}
	return m.dispatcher.Leave.Snapshot(), nil
}

func (s *AttendanceServiceImpl) DismissLeaveForm() {
	if m, err := s.mounted(); err == nil {
		m.dispatcher.Leave.Dismiss()
	}
}

func (s *AttendanceServiceImpl) SubmitLeave(ctx context.Context) (attendance.Notice, error) {
	m, err := s.mounted()
	if err != nil {
		return attendance.Notice{}, err
	}
	defer s.publishState()
	return m.dispatcher.SubmitLeave(ctx)
}

func (s *AttendanceServiceImpl) OpenRegularizationForm() attendance.RegularizationFormState {
	m, err := s.mounted()
	if err != nil {
		return attendance.RegularizationFormState{}
	}
	m.dispatcher.Regularization.Open()
	return m.dispatcher.Regularization.Snapshot()
}

func (s *AttendanceServiceImpl) UpdateRegularizationForm(patch attendance.RegularizationPatch) (attendance.RegularizationFormState, error) {
	m, err := s.mounted()
	if err != nil {
		return attendance.RegularizationFormState{}, err
	}
	if err := m.dispatcher.Regularization.Update(patch.Apply); err != nil {
		return m.dispatcher.Regularization.Snapshot(), err
	}
	return m.dispatcher.Regularization.Snapshot(), nil
}

func (s *AttendanceServiceImpl) DismissRegularizationForm() {
	if m, err := s.mounted(); err == nil {
		m.dispatcher.Regularization.Dismiss()
	}
}

func (s *AttendanceServiceImpl) SubmitRegularization(ctx context.Context) (attendance.Notice, error) {
	m, err := s.mounted()
	if err != nil {
		return attendance.Notice{}, err
	}
	defer s.publishState()
	return m.dispatcher.SubmitRegularization(ctx)
}

// TrackerStats exposes the live timer's start/stop counts of the current mount.
func (s *AttendanceServiceImpl) TrackerStats() TrackerStats {
	m, err := s.mounted()
	if err != nil {
		return TrackerStats{}
	}
	return m.tracker.Stats()
}

// State implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) State() attendance.State {
	s.mu.RLock()
	m := s.current
	appState := s.appState
	notice := s.lastNotice
	s.mu.RUnlock()

	state := attendance.State{
		AppState:    appState,
		FetchStatus: attendance.FetchIdle,
		DayState:    attendance.DayNotMarked,
		LastNotice:  notice,
		Location:    s.opts.Location.State(nil),
	}
	if m == nil {
		return state
	}

	state.User = m.user
	if m.blocked != nil {
		state.Blocked = true
		state.BlockedReason = m.blocked.Error()
	}

	snap := m.fetcher.Snapshot()
	state.FetchStatus = snap.Status
	if snap.Err != nil {
		state.FetchError = userMessage(snap.Err)
	}
	state.FetchedAt = snap.FetchedAt
	state.Today = snap.Today
	state.DayState = attendance.DeriveDayState(snap.Today)
	state.Tracker = m.tracker.State()

	now := s.clock.Now()
	if snap.Today != nil {
		in := snap.Today.Windows.CheckIn.View(now)
		out := snap.Today.Windows.CheckOut.View(now)
		state.CheckInWindow, state.CheckOutWindow = &in, &out
		state.Location = s.opts.Location.State(&snap.Today.Config)
	}

	state.CheckIn, state.CheckOut = m.dispatcher.Gates()
	state.Busy = m.dispatcher.Busy()
	state.LeaveForm = m.dispatcher.Leave.Snapshot()
	state.RegularizationForm = m.dispatcher.Regularization.Snapshot()
	return state
}

func (s *AttendanceServiceImpl) publishState() {
	if s.opts.Hub == nil {
		return
	}
	s.publish(EventState, s.State())
}

func (s *AttendanceServiceImpl) publish(event string, data interface{}) {
	if s.opts.Hub == nil {
		return
	}
	s.opts.Hub.Publish(sse.Event{Topic: s.opts.Topic, Event: event, Data: data})
}
var _ attendance.AttendanceService = (*AttendanceServiceImpl)(nil)
