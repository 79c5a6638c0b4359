package attendance

import (
	"sync"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
)

// form holds one modal's transient draft. It has its own lock so that form
// edits never wait on another action's request.
type form[D any] struct {
	mu         sync.Mutex
	open       bool
	draft      D
	submitting bool
	empty      func() D
}

func newForm[D any](empty func() D) *form[D] {
	return &form[D]{draft: empty(), empty: empty}
}

// Open starts an empty draft. Reopening an open form keeps its draft.
func (f *form[D]) Open() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		return
	}
	f.open = true
	f.draft = f.empty()
}

// Update applies fn to the draft of an open form.
func (f *form[D]) Update(fn func(*D)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return attendance.ErrFormNotOpen
	}
	fn(&f.draft)
	return nil
}

// Dismiss closes the form and discards its draft.
func (f *form[D]) Dismiss() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.submitting = false
	f.draft = f.empty()
}

// Draft returns a copy of the draft. A closed form holds an empty draft.
func (f *form[D]) Draft() D {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

func (f *form[D]) setSubmitting(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = v
}

func (f *form[D]) snapshot() (open bool, draft D, submitting bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, f.draft, f.submitting
}

type LeaveForm struct {
	*form[attendance.LeaveDraft]
}

func NewLeaveForm() *LeaveForm {
	return &LeaveForm{newForm(attendance.NewLeaveDraft)}
}

// Snapshot returns the form state with totalDays derived when both dates parse.
func (f *LeaveForm) Snapshot() attendance.LeaveFormState {
	open, draft, submitting := f.snapshot()
	state := attendance.LeaveFormState{Open: open, Draft: draft, Submitting: submitting}
	if days, err := draft.TotalDays(); err == nil {
		state.TotalDays = &days
	}
	return state
}

type RegularizationForm struct {
	*form[attendance.RegularizationDraft]
}

func NewRegularizationForm() *RegularizationForm {
	return &RegularizationForm{newForm(attendance.NewRegularizationDraft)}
}

func (f *RegularizationForm) Snapshot() attendance.RegularizationFormState {
	open, draft, submitting := f.snapshot()
	return attendance.RegularizationFormState{Open: open, Draft: draft, Submitting: submitting}
}
