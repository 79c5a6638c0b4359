package attendance

import "time"

type WindowPhase string

const (
	WindowUpcoming WindowPhase = "upcoming"
	WindowOpen     WindowPhase = "open"
	WindowClosed   WindowPhase = "closed"
)

// WindowView is what the UI renders for a window: its phase plus a countdown.
type WindowView struct {
	Phase           WindowPhase `json:"phase"`
	Start           time.Time   `json:"start"`
	End             time.Time   `json:"end"`
	OpensInSeconds  int64       `json:"opensInSeconds,omitempty"`
	ClosesInSeconds int64       `json:"closesInSeconds,omitempty"`
}

// earliest returns the first instant the action may run, honouring MinTime.
func (w Window) earliest() time.Time {
	if w.MinTime != nil && w.MinTime.After(w.Start) {
		return *w.MinTime
	}
	return w.Start
}

// Usable reports whether the action may be invoked at now. The server flag
// must be set and now must still fall inside the interval, because IsOpen
// goes stale between polls.
func (w Window) Usable(now time.Time) bool {
	if !w.IsOpen {
		return false
	}
	start := w.earliest()
	if !start.IsZero() && now.Before(start) {
		return false
	}
	if !w.End.IsZero() && now.After(w.End) {
		return false
	}
	return true
}

// View computes the phase and countdown at now.
func (w Window) View(now time.Time) WindowView {
	v := WindowView{Start: w.Start, End: w.End}
	start := w.earliest()

	switch {
	case !start.IsZero() && now.Before(start):
		v.Phase = WindowUpcoming
		v.OpensInSeconds = int64(start.Sub(now).Seconds())
	case w.Usable(now):
		v.Phase = WindowOpen
		if !w.End.IsZero() {
			v.ClosesInSeconds = int64(w.End.Sub(now).Seconds())
		}
	default:
		v.Phase = WindowClosed
	}
	return v
}
