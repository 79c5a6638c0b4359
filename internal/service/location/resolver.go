package location

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/geo"
	"github.com/jonboulle/clockwork"
)

// Resolver turns provider fixes into the DeviceContext attached to
// check-in/out. Resolution is asynchronous; while it runs the state is
// pending and location-gated actions stay unavailable.
type Resolver struct {
	provider Provider
	device   attendance.DeviceInfo
	timeout  time.Duration
	clock    clockwork.Clock

	mu       sync.Mutex
	state    attendance.LocationState
	seq      uint64
	onChange func(attendance.LocationState)
}

// Options configures a Resolver.
type Options struct {
	Provider Provider
	Device   attendance.DeviceInfo
	Timeout  time.Duration
	Clock    clockwork.Clock
}

func NewResolver(opts Options) *Resolver {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		provider: opts.Provider,
		device:   opts.Device,
		timeout:  timeout,
		clock:    clock,
		state:    attendance.LocationState{Status: attendance.LocationPending},
	}
}

// OnChange registers a callback fired after every state change.
func (r *Resolver) OnChange(fn func(attendance.LocationState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Start resolves in the background.
func (r *Resolver) Start(ctx context.Context) {
	go func() {
		if err := r.Resolve(ctx); err != nil {
			slog.Warn("Location resolution failed", "error", err)
		}
	}()
}

// Resolve queries the provider and records the outcome. Only the most
// recently started resolution may write the state.
func (r *Resolver) Resolve(ctx context.Context) error {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.state = attendance.LocationState{Status: attendance.LocationPending}
	r.notifyLocked()
	r.mu.Unlock()

	if r.provider == nil {
		return r.fail(seq, attendance.ErrNoFix)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	loc, err := r.provider.Locate(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = attendance.ErrNoFix
		}
		return r.fail(seq, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.seq {
		return nil
	}
	r.state = attendance.LocationState{
		Status: attendance.LocationResolved,
		Context: &attendance.DeviceContext{
			Location:   loc,
			DeviceInfo: r.device,
			ResolvedAt: r.clock.Now(),
		},
	}
	r.notifyLocked()
	slog.Debug("Location resolved", "latitude", loc.Latitude, "longitude", loc.Longitude, "accuracy", loc.Accuracy)
	return nil
}

// Report pushes a fix to the provider and resolves again.
func (r *Resolver) Report(ctx context.Context, loc attendance.Location) error {
	reporter, ok := r.provider.(Reporter)
	if !ok {
		return attendance.ErrReportUnsupported
	}
	if err := reporter.Report(loc); err != nil {
		return err
	}
	return r.Resolve(ctx)
}

func (r *Resolver) fail(seq uint64, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.seq {
		return err
	}
	r.state = attendance.LocationState{Status: attendance.LocationFailed, Error: err.Error()}
	r.notifyLocked()
	return err
}

func (r *Resolver) notifyLocked() {
	if r.onChange != nil {
		go r.onChange(r.state)
	}
}

// State returns the current resolution state, annotated with the distance to
// the school when the server configuration carries its coordinates.
func (r *Resolver) State(cfg *attendance.Config) attendance.LocationState {
	r.mu.Lock()
	state := r.state
	r.mu.Unlock()

	if state.Context != nil && cfg != nil && cfg.SchoolLatitude != nil && cfg.SchoolLongitude != nil {
		d := geo.HaversineDistance(
			state.Context.Location.Latitude, state.Context.Location.Longitude,
			*cfg.SchoolLatitude, *cfg.SchoolLongitude,
		)
		state.DistanceMeters = &d
	}
	return state
}

// DeviceContext returns the resolved context, if any.
func (r *Resolver) DeviceContext() (attendance.DeviceContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Status != attendance.LocationResolved || r.state.Context == nil {
		return attendance.DeviceContext{}, false
	}
	return *r.state.Context, true
}
