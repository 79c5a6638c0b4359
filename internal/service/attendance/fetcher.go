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
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const fetchKey = "today"

// FetchSnapshot is what the Fetcher currently holds: the latest successful
// result plus the status and error of the most recent attempt.
type FetchSnapshot struct {
	Status    attendance.FetchStatus
	Today     *attendance.Today
	Err       error
	FetchedAt *time.Time
}

type FetcherOptions struct {
	Retries    int
	RetryDelay time.Duration
	Clock      clockwork.Clock
}

// Fetcher owns the cached "today" result. Concurrent refreshes collapse into
// one request. Invalidate starts a new generation; results of fetches started
// under an older generation are dropped.
type Fetcher struct {
	repo       attendance.AttendanceRepository
	user       session.CurrentUser
	retries    int
	retryDelay time.Duration
	clock      clockwork.Clock

	group singleflight.Group
	done  chan struct{}

	mu         sync.RWMutex
	snapshot   FetchSnapshot
	generation uint64
	closed     bool
	listeners []func(FetchSnapshot)
}

func NewFetcher(repo attendance.AttendanceRepository, user session.CurrentUser, opts FetcherOptions) *Fetcher {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	f := &Fetcher{
		repo:       repo,
		user:       user,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		clock:      clock,
		done:       make(chan struct{}),
		snapshot:   FetchSnapshot{Status: attendance.FetchIdle},
	}
	if !user.HasIdentity() {
		f.snapshot = FetchSnapshot{Status: attendance.FetchBlocked, Err: session.ErrMissingIdentity}
	}
	return f
}

// Subscribe registers fn to run after every applied result.
func (f *Fetcher) Subscribe(fn func(FetchSnapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Snapshot returns the current cache contents.
func (f *Fetcher) Snapshot() FetchSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot
}

// Refresh fetches today's data, joining any request already in flight.
func (f *Fetcher) Refresh(ctx context.Context) (attendance.Today, error) {
	if !f.user.HasIdentity() {
		return attendance.Today{}, session.ErrMissingIdentity
	}

	ch := f.group.DoChan(fetchKey, func() (interface{}, error) {
		return f.fetch(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return attendance.Today{}, res.Err
		}
		return res.Val.(attendance.Today), nil
	case <-ctx.Done():
		return attendance.Today{}, ctx.Err()
	}
}

// Invalidate discards any shared in-flight request and fetches again, so the
// result reflects server state after a mutation.
func (f *Fetcher) Invalidate(ctx context.Context) (attendance.Today, error) {
	f.mu.Lock()
	f.generation++
	f.mu.Unlock()
	f.group.Forget(fetchKey)
	return f.Refresh(ctx)
}

// Close stops pending retries. Results that arrive afterwards are dropped.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
}

func (f *Fetcher) fetch(ctx context.Context) (attendance.Today, error) {
	gen := f.setLoading()

	var (
		today attendance.Today
		err   error
	)
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying attendance fetch", "attempt", attempt, "error", err)
			select {
			case <-f.clock.After(f.retryDelay):
			case <-f.done:
				return attendance.Today{}, err
			}
		}

		today, err = f.repo.GetToday(ctx, f.user.SchoolID, f.user.ID)
		if err == nil || !retryable(err) {
			break
		}
	}

	if err != nil {
		err = fmt.Errorf("failed to fetch attendance: %w", err)
	}
	f.apply(gen, today, err)
	return today, err
}

// setLoading marks the cache as loading and returns the current generation.
func (f *Fetcher) setLoading() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.snapshot.Status = attendance.FetchLoading
	}
	return f.generation
}

func (f *Fetcher) apply(gen uint64, today attendance.Today, err error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if gen != f.generation {
		f.mu.Unlock()
		slog.Debug("Dropping superseded attendance fetch", "generation", gen, "current", f.generation)
		return
	}
	if err != nil {
		f.snapshot.Status = attendance.FetchError
		f.snapshot.Err = err
	} else {
		fetchedAt := today.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = f.clock.Now()
			today.FetchedAt = fetchedAt
		}
		f.snapshot = FetchSnapshot{
			Status:    attendance.FetchSuccess,
			Today:     &today,
			FetchedAt: &fetchedAt,
		}
	}
	snap := f.snapshot
	listeners := append([]func(FetchSnapshot){}, f.listeners...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// serverError is an answer from the backend, as opposed to a transport failure.
type serverError interface {
	Temporary() bool
	UserMessage() string
}

// retryable reports transport failures and temporary server errors.
// Rejections, sign-out and malformed records are final.
func retryable(err error) bool {
	switch {
	case errors.Is(err, session.ErrSignedOut),
		errors.Is(err, session.ErrTokenExpired),
		errors.Is(err, session.ErrMissingIdentity),
		errors.Is(err, attendance.ErrInconsistentRecord),
		errors.Is(err, context.Canceled):
		return false
	}
	var rejected serverError
	if errors.As(err, &rejected) {
		return rejected.Temporary()
	}
	return true
}
