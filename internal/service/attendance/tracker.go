package attendance

import (
	"math"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/jonboulle/clockwork"
)

// TrackerStats counts ticker lifecycles. Every start is matched by exactly
// one stop once the tracker is closed.
type TrackerStats struct {
	Starts int
	Stops  int
}

// Tracker interpolates hours worked between polls. It runs a ticker only
// while the user is checked in and not checked out, and freezes at the
// server's final value once check-out is observed.
type Tracker struct {
	clock    clockwork.Clock
	interval time.Duration

	mu        sync.Mutex
	hours     float64
	running   bool
	frozen    bool
	frozenDay string
	checkIn   time.Time
	pulse     attendance.Pulse
	closed    bool
	stats     TrackerStats
	onTick    func(attendance.TrackerState)

	ticker clockwork.Ticker
	stop   chan struct{}
	done   chan struct{}
}

func NewTracker(clock clockwork.Clock, interval time.Duration) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Tracker{clock: clock, interval: interval}
}

// OnTick registers a callback for every recomputation.
func (t *Tracker) OnTick(fn func(attendance.TrackerState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = fn
}

// Sync observes an applied fetch result.
func (t *Tracker) Sync(today *attendance.Today) {
	t.mu.Lock()
	if t.closed || today == nil {
		t.mu.Unlock()
		return
	}

	day := today.Day()
	if t.frozen && t.frozenDay == day {
		t.mu.Unlock()
		return
	}

	var done chan struct{}
	rec := today.Attendance
	switch {
	case rec.Running():
		t.frozen = false
		if t.running && t.checkIn.Equal(*rec.CheckInTime) {
			break
		}
		t.checkIn = *rec.CheckInTime
		if rec.LiveWorkingHours != nil {
			t.hours = round2(*rec.LiveWorkingHours)
		} else {
			t.hours = hoursBetween(t.checkIn, t.clock.Now())
		}
		t.running = true
		t.startLocked()

	case rec != nil && rec.CheckOutTime != nil:
		done = t.stopLocked()
		if rec.WorkingHours != nil {
			t.hours = round2(*rec.WorkingHours)
		} else if rec.CheckInTime != nil {
			t.hours = hoursBetween(*rec.CheckInTime, *rec.CheckOutTime)
		}
		t.running = false
		t.frozen = true
		t.frozenDay = day

	default:
		done = t.stopLocked()
		t.hours = 0
		t.running = false
		t.frozen = false
	}
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

// State returns the value to display.
func (t *Tracker) State() attendance.TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// Stats returns ticker start/stop counts.
func (t *Tracker) Stats() TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Close stops the ticker for good. No tick is delivered after Close returns.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.running = false
	done := t.stopLocked()
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (t *Tracker) stateLocked() attendance.TrackerState {
	return attendance.TrackerState{
		Hours:   t.hours,
		Running: t.running,
		Frozen:  t.frozen,
		Pulse:   t.pulse,
	}
}

func (t *Tracker) startLocked() {
	if t.ticker != nil {
		return
	}
	t.ticker = t.clock.NewTicker(t.interval)
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.stats.Starts++
	t.pulse = attendance.Pulse{Active: true}

	go t.loop(t.ticker, t.stop, t.done)
}

// stopLocked tears the ticker down and resets the pulse. The returned channel
// closes once the tick goroutine has exited; wait on it without holding mu.
func (t *Tracker) stopLocked() chan struct{} {
	t.pulse = attendance.Pulse{}
	if t.ticker == nil {
		return nil
	}
	close(t.stop)
	t.ticker.Stop()
	done := t.done
	t.ticker, t.stop, t.done = nil, nil, nil
	t.stats.Stops++
	return done
}

func (t *Tracker) loop(ticker clockwork.Ticker, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			t.tick(stop)
		}
	}
}

func (t *Tracker) tick(stop chan struct{}) {
	t.mu.Lock()
	select {
	case <-stop:
		t.mu.Unlock()
		return
	default:
	}
	t.hours = hoursBetween(t.checkIn, t.clock.Now())
	t.pulse.Phase = 1 - t.pulse.Phase
	state := t.stateLocked()
	fn := t.onTick
	t.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

func hoursBetween(from, to time.Time) float64 {
	h := to.Sub(from).Hours()
	if h < 0 {
		h = 0
	}
	return round2(h)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
