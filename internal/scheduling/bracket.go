package scheduling

import (
	"time"

	"venuebot/internal/db/models"
)

// ShiftBracket is a staffed sub-interval of an event. It belongs to exactly
// one event.
type ShiftBracket struct {
	ID      int64
	EventID int64
	Start   time.Time
	End     time.Time
}

func bracketFromRecord(rec models.ShiftBracketRecord, loc *time.Location) *ShiftBracket {
	return &ShiftBracket{
		ID:      rec.ID,
		EventID: rec.EventID,
		Start:   rec.StartTime.In(loc),
		End:     rec.EndTime.In(loc),
	}
}

// Length is the bracket's duration in minutes, wrapping past midnight.
func (b *ShiftBracket) Length() int {
	return spanMinutes(ClockOf(b.Start), ClockOf(b.End))
}

// OverlapsWith compares both brackets on a single time-of-day axis anchored
// at midnight of b's start date.
func (b *ShiftBracket) OverlapsWith(o *ShiftBracket) bool {
	ref := b.Start
	s1, e1 := b.offsets(ref)
	s2, e2 := o.offsets(ref)
	return s1 < e2 && e1 > s2
}

func (b *ShiftBracket) offsets(ref time.Time) (int, int) {
	s := minutesSince(ref, b.Start)
	e := minutesSince(ref, b.End)
	if e < s {
		e += minutesPerDay
	}
	return s, e
}

// Range renders "HH:MM - HH:MM".
func (b *ShiftBracket) Range() string {
	return ClockOf(b.Start).String() + " - " + ClockOf(b.End).String()
}

func (b *ShiftBracket) Record() models.ShiftBracketRecord {
	return models.ShiftBracketRecord{
		ID:        b.ID,
		EventID:   b.EventID,
		StartTime: b.Start,
		EndTime:   b.End,
	}
}
