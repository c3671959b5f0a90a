package scheduling

import (
	"context"
	"sort"
	"time"

	"venuebot/internal/db/models"
	appLog "venuebot/internal/log"
)

type TemplateShift struct {
	ID    int64
	Start Clock
	End   Clock
}

type TemplatePosition struct {
	ID         int64
	PositionID int64
	Quantity   int
	Emoji      string
}

type TemplateElement struct {
	Kind ElementKind
	Element
}

// EventTemplate is a frozen snapshot of an event's configuration. It keeps
// times of day only; dates are chosen when an event is stamped from it.
type EventTemplate struct {
	ID          int64
	Name        string
	Description string
	ImageURL    string
	HasTimes    bool
	Start       Clock
	End         Clock
	Shifts      []TemplateShift
	Positions   []TemplatePosition
	Elements    []TemplateElement
}

func templateFromRecord(rec models.EventRecord, loc *time.Location) *EventTemplate {
	t := &EventTemplate{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		ImageURL:    rec.ImageURL,
	}
	if rec.StartTime != nil && rec.EndTime != nil {
		t.HasTimes = true
		t.Start = ClockOf(rec.StartTime.In(loc))
		t.End = ClockOf(rec.EndTime.In(loc))
	}
	for _, br := range rec.ShiftBrackets {
		t.Shifts = append(t.Shifts, TemplateShift{
			ID:    br.ID,
			Start: ClockOf(br.StartTime.In(loc)),
			End:   ClockOf(br.EndTime.In(loc)),
		})
	}
	for _, p := range rec.Positions {
		tp := TemplatePosition{ID: p.ID, PositionID: p.PositionID, Quantity: p.Quantity}
		if p.Emoji != nil {
			tp.Emoji = *p.Emoji
		}
		t.Positions = append(t.Positions, tp)
	}
	kinds := make([]string, 0, len(rec.Elements))
	for kind := range rec.Elements {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		for _, el := range rec.Elements[kind] {
			t.Elements = append(t.Elements, TemplateElement{Kind: ElementKind(kind), Element: Element{Title: el.Title, Value: el.Value}})
		}
	}
	return t
}

// Snapshot freezes the event's configuration into a template named name.
func (e *Event) Snapshot(name string) *EventTemplate {
	t := &EventTemplate{
		Name:        name,
		Description: e.description,
		ImageURL:    e.imageURL,
		HasTimes:    e.HasTimes(),
	}
	if t.Name == "" {
		t.Name = e.name
	}
	if t.HasTimes {
		t.Start, t.End = ClockOf(e.Start()), ClockOf(e.End())
	}
	for _, b := range e.Brackets() {
		t.Shifts = append(t.Shifts, TemplateShift{Start: ClockOf(b.Start), End: ClockOf(b.End)})
	}
	for _, p := range e.positions.all() {
		t.Positions = append(t.Positions, TemplatePosition{PositionID: p.PositionID(), Quantity: p.Quantity(), Emoji: p.Emoji()})
	}
	for _, kind := range []ElementKind{ElementNote, ElementLink} {
		for _, el := range e.elements[kind] {
			t.Elements = append(t.Elements, TemplateElement{Kind: kind, Element: el})
		}
	}
	return t
}

// SpansMidnight reports whether the template's end falls on the day after
// its start.
func (t *EventTemplate) SpansMidnight() bool {
	return t.HasTimes && !t.Start.Before(t.End)
}

// DatesOn places the template's window on base's calendar date, keeping the
// next-day relationship of the end.
func (t *EventTemplate) DatesOn(base time.Time) (time.Time, time.Time) {
	start := t.Start.On(base)
	end := t.End.On(base)
	if t.SpansMidnight() {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// shiftDates dates a template shift relative to an event starting at start.
func (t *EventTemplate) shiftDates(start time.Time, s TemplateShift) (time.Time, time.Time) {
	resolve := func(c Clock) time.Time {
		at := c.On(start)
		if c.Before(t.Start) {
			at = at.AddDate(0, 0, 1)
		}
		return at
	}
	from, to := resolve(s.Start), resolve(s.End)
	if !to.After(from) {
		to = to.AddDate(0, 0, 1)
	}
	return from, to
}

// CopyFrom fills a blank event from a template, dating it on base's
// calendar day, and persists the assembled event once.
func (e *Event) CopyFrom(ctx context.Context, t *EventTemplate, base time.Time) error {
	e.name = t.Name
	e.description = t.Description
	e.imageURL = t.ImageURL
	for _, el := range t.Elements {
		e.elements[el.Kind] = append(e.elements[el.Kind], el.Element)
	}
	if t.HasTimes {
		e.start, e.end = t.DatesOn(base.In(e.sys.loc))
		for _, s := range t.Shifts {
			start, end := t.shiftDates(e.start, s)
			id, err := e.sys.store.CreateShiftBracket(ctx, e.id, start, end)
			if err != nil {
				return persistence("create shift bracket", err)
			}
			e.brackets.put(id, &ShiftBracket{ID: id, EventID: e.id, Start: start, End: end})
		}
	}
	for _, p := range t.Positions {
		if _, ok := e.sys.roster.Position(p.PositionID); !ok {
			appLog.Warn("template references a missing position", "template", t.ID, "position", p.PositionID)
			continue
		}
		id, err := e.sys.store.CreateEventPosition(ctx, e.id, p.PositionID, p.Quantity)
		if err != nil {
			return persistence("create event position", err)
		}
		ep := &EventPosition{
			id:       id,
			eventID:  e.id,
			position: Ref[*Position]{ID: p.PositionID},
			quantity: p.Quantity,
			emoji:    p.Emoji,
			store:    e.sys.store,
		}
		e.positions.put(id, ep)
		if p.Emoji != "" {
			if err := ep.update(ctx); err != nil {
				return err
			}
		}
	}
	return e.Update(ctx)
}
