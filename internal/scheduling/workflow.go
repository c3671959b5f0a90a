package scheduling

import (
	"context"
	"slices"
)

type WorkflowState int

const (
	AwaitingStart WorkflowState = iota
	AwaitingEnd
	Validating
	Committed
	Cancelled
)

func (s WorkflowState) String() string {
	return [...]string{"awaiting_start", "awaiting_end", "validating", "committed", "cancelled"}[s]
}

// MinuteOptions are the minutes offered after an hour is picked.
var MinuteOptions = []int{0, 15, 30, 45}

// BracketWorkflow collects a start and an end time for a new shift bracket.
// Nothing is persisted until Commit.
type BracketWorkflow struct {
	event   *Event
	state   WorkflowState
	hours   []int
	start   Clock
	end     Clock
	bracket *ShiftBracket
}

func (e *Event) NewBracketWorkflow() (*BracketWorkflow, error) {
	hours, err := e.HourOptions()
	if err != nil {
		return nil, err
	}
	return &BracketWorkflow{event: e, hours: hours}, nil
}

func (w *BracketWorkflow) State() WorkflowState { return w.state }

// HourOptions is shared by the start and end prompts.
func (w *BracketWorkflow) HourOptions() []int { return w.hours }

func (w *BracketWorkflow) Bracket() *ShiftBracket { return w.bracket }

func (w *BracketWorkflow) checkClock(c Clock) error {
	if !c.Valid() || !slices.Contains(w.hours, c.Hour) {
		return Validationf("%s is not within the event hours", c)
	}
	return nil
}

func (w *BracketWorkflow) SetStart(c Clock) error {
	if w.state != AwaitingStart {
		return Validationf("the start time was already chosen")
	}
	if err := w.checkClock(c); err != nil {
		return err
	}
	w.start = c
	w.state = AwaitingEnd
	return nil
}

// SetEnd records the end time and validates the whole bracket. On failure
// the workflow stays in AwaitingEnd.
func (w *BracketWorkflow) SetEnd(c Clock) error {
	if w.state != AwaitingEnd {
		return Validationf("choose a start time first")
	}
	if err := w.checkClock(c); err != nil {
		return err
	}
	w.end = c
	w.state = Validating
	start, end := w.event.ResolveClock(w.start), w.event.ResolveClock(w.end)
	if err := w.event.ValidateBracket(start, end, 0); err != nil {
		w.state = AwaitingEnd
		return err
	}
	return nil
}

// Commit persists the bracket. Overlap is checked again because the event
// may have changed while the user was answering prompts.
func (w *BracketWorkflow) Commit(ctx context.Context) (*ShiftBracket, error) {
	if w.state != Validating {
		return nil, Validationf("the shift is not ready to be saved")
	}
	b, err := w.event.AddShiftBracket(ctx, w.event.ResolveClock(w.start), w.event.ResolveClock(w.end))
	if err != nil {
		w.state = Cancelled
		return nil, err
	}
	w.bracket = b
	w.state = Committed
	return b, nil
}

func (w *BracketWorkflow) Cancel() {
	if w.state != Committed {
		w.state = Cancelled
	}
}
