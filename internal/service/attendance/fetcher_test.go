package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_MissingIdentityMakesNoRequest(t *testing.T) {
	repo := &fakeRepo{}
	f := NewFetcher(repo, session.CurrentUser{ID: "u-1"}, FetcherOptions{})

	_, err := f.Refresh(context.Background())
	assert.ErrorIs(t, err, session.ErrMissingIdentity)

	get, _, _, _ := repo.calls()
	assert.Equal(t, 0, get)
	assert.Equal(t, attendance.FetchBlocked, f.Snapshot().Status)
}

func TestFetcher_ConcurrentRefreshesCollapse(t *testing.T) {
	release := make(chan struct{})
	repo := &fakeRepo{getToday: func(ctx context.Context) (attendance.Today, error) {
		<-release
		return workingDay(), nil
	}}
	f := NewFetcher(repo, testUser, FetcherOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}

	assert.Eventually(t, func() bool {
		get, _, _, _ := repo.calls()
		return get == 1 && f.Snapshot().Status == attendance.FetchLoading
	}, time.Second, 5*time.Millisecond)
	// let the second caller join the shared call
	time.Sleep(20 * time.Millisecond)

	close(release)
	wg.Wait()

	get, _, _, _ := repo.calls()
	assert.Equal(t, 1, get)
	assert.Equal(t, attendance.FetchSuccess, f.Snapshot().Status)
}

func TestFetcher_RetriesTransportErrorsTwice(t *testing.T) {
	repo := &fakeRepo{}
	f := NewFetcher(repo, testUser, FetcherOptions{Retries: 2, RetryDelay: time.Millisecond})

	_, err := f.Refresh(context.Background())
	require.NoError(t, err)

	repo.mu.Lock()
	repo.getToday = func(context.Context) (attendance.Today, error) {
		return attendance.Today{}, errors.New("dial tcp: connection refused")
	}
	repo.mu.Unlock()

	_, err = f.Refresh(context.Background())
	require.Error(t, err)

	get, _, _, _ := repo.calls()
	assert.Equal(t, 1+3, get)

	snap := f.Snapshot()
	assert.Equal(t, attendance.FetchError, snap.Status)
	assert.Error(t, snap.Err)
	require.NotNil(t, snap.Today, "last successful result is kept")
	assert.True(t, snap.Today.IsWorkingDay)
}

func TestFetcher_DoesNotRetryRejections(t *testing.T) {
	repo := &fakeRepo{getToday: func(context.Context) (attendance.Today, error) {
		return attendance.Today{}, &rejection{status: 403, message: "forbidden"}
	}}
	f := NewFetcher(repo, testUser, FetcherOptions{Retries: 2, RetryDelay: time.Millisecond})

	_, err := f.Refresh(context.Background())
	require.Error(t, err)

	get, _, _, _ := repo.calls()
	assert.Equal(t, 1, get)
}

func TestFetcher_DoesNotRetrySignOut(t *testing.T) {
	repo := &fakeRepo{getToday: func(context.Context) (attendance.Today, error) {
		return attendance.Today{}, session.ErrSignedOut
	}}
	f := NewFetcher(repo, testUser, FetcherOptions{Retries: 2, RetryDelay: time.Millisecond})

	_, err := f.Refresh(context.Background())
	assert.ErrorIs(t, err, session.ErrSignedOut)

	get, _, _, _ := repo.calls()
	assert.Equal(t, 1, get)
}

func TestFetcher_RetriesTemporaryServerErrors(t *testing.T) {
	attempts := 0
	repo := &fakeRepo{}
	repo.getToday = func(context.Context) (attendance.Today, error) {
		attempts++
		if attempts == 1 {
			return attendance.Today{}, &rejection{status: 503, message: "unavailable"}
		}
		return workingDay(), nil
	}
	f := NewFetcher(repo, testUser, FetcherOptions{Retries: 2, RetryDelay: time.Millisecond})

	_, err := f.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, attendance.FetchSuccess, f.Snapshot().Status)
}

func TestFetcher_InvalidateDropsOlderResults(t *testing.T) {
	release := make(chan struct{})
	first := true
	var mu sync.Mutex
	repo := &fakeRepo{getToday: func(context.Context) (attendance.Today, error) {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			<-release
			return attendance.Today{DayType: "before"}, nil
		}
		return attendance.Today{DayType: "after"}, nil
	}}
	f := NewFetcher(repo, testUser, FetcherOptions{})

	notified := 0
	f.Subscribe(func(FetchSnapshot) { notified++ })

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.Refresh(context.Background())
	}()
	assert.Eventually(t, func() bool {
		get, _, _, _ := repo.calls()
		return get == 1
	}, time.Second, 5*time.Millisecond)

	today, err := f.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "after", today.DayType)
	assert.Equal(t, "after", f.Snapshot().Today.DayType)

	close(release)
	<-done

	snap := f.Snapshot()
	assert.Equal(t, "after", snap.Today.DayType, "a fetch started before Invalidate never overwrites")
	assert.Equal(t, attendance.FetchSuccess, snap.Status)
	assert.Equal(t, 1, notified)
}

func TestFetcher_RefreshWithinGenerationApplies(t *testing.T) {
	days := []string{"one", "two"}
	var mu sync.Mutex
	repo := &fakeRepo{getToday: func(context.Context) (attendance.Today, error) {
		mu.Lock()
		defer mu.Unlock()
		day := days[0]
		days = days[1:]
		return attendance.Today{DayType: day}, nil
	}}
	f := NewFetcher(repo, testUser, FetcherOptions{})

	_, err := f.Refresh(context.Background())
	require.NoError(t, err)
	_, err = f.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "two", f.Snapshot().Today.DayType)
}

func TestFetcher_CloseDropsLateResults(t *testing.T) {
	release := make(chan struct{})
	repo := &fakeRepo{getToday: func(context.Context) (attendance.Today, error) {
		<-release
		return workingDay(), nil
	}}
	f := NewFetcher(repo, testUser, FetcherOptions{})

	notified := 0
	f.Subscribe(func(FetchSnapshot) { notified++ })

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.Refresh(context.Background())
	}()
	assert.Eventually(t, func() bool {
		get, _, _, _ := repo.calls()
		return get == 1
	}, time.Second, 5*time.Millisecond)

	f.Close()
	close(release)
	<-done

	assert.Equal(t, 0, notified)
	assert.Nil(t, f.Snapshot().Today)
}
