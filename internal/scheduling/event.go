package scheduling

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"venuebot/internal/db/models"
	appLog "venuebot/internal/log"
)

const maxNameLen = 100

// ElementKind groups secondary display elements of an event post.
type ElementKind string

const (
	ElementNote ElementKind = "note"
	ElementLink ElementKind = "link"
)

type Element struct {
	Title string
	Value string
}

// PostState tracks whether the public post matches the event.
type PostState int

const (
	Draft PostState = iota
	Posted
	PostedStale
)

func (s PostState) String() string {
	switch s {
	case Posted:
		return "posted"
	case PostedStale:
		return "posted (stale)"
	default:
		return "draft"
	}
}

// Event is the aggregate root of the scheduling model: a time window, the
// shift brackets covering it and the positions staffing them.
type Event struct {
	id          int64
	name        string
	description string
	imageURL    string
	start       time.Time
	end         time.Time
	isTemplate  bool
	post        *MessageRef
	stale       bool
	elements    map[ElementKind][]Element
	brackets    arena[*ShiftBracket]
	positions   arena[*EventPosition]
	sys         *system
}

func newEvent(id int64, sys *system) *Event {
	return &Event{id: id, sys: sys, elements: make(map[ElementKind][]Element)}
}

// eventFromRecord builds a fully loaded event. Brackets and positions are
// attached before signups are cross-checked against the brackets.
func eventFromRecord(rec models.EventRecord, sys *system) *Event {
	e := newEvent(rec.ID, sys)
	e.name = rec.Name
	e.description = rec.Description
	e.imageURL = rec.ImageURL
	e.isTemplate = rec.IsTemplate
	if rec.StartTime != nil {
		e.start = rec.StartTime.In(sys.loc)
	}
	if rec.EndTime != nil {
		e.end = rec.EndTime.In(sys.loc)
	}
	if rec.PostURL != nil && *rec.PostURL != "" {
		if ref, err := ParseJumpURL(*rec.PostURL); err == nil {
			e.post = &ref
		} else {
			appLog.Warn("ignoring malformed post url", "event", rec.ID, "url", *rec.PostURL)
		}
	}
	for kind, els := range rec.Elements {
		for _, el := range els {
			e.elements[ElementKind(kind)] = append(e.elements[ElementKind(kind)], Element{Title: el.Title, Value: el.Value})
		}
	}
	for _, br := range rec.ShiftBrackets {
		e.brackets.put(br.ID, bracketFromRecord(br, sys.loc))
	}
	for _, pr := range rec.Positions {
		ep := positionFromRecord(pr, sys.store)
		for _, s := range ep.Signups() {
			if _, ok := e.brackets.get(s.BracketID); !ok {
				appLog.Warn("dropping signup for unknown bracket", "event", rec.ID, "signup", s.ID, "bracket", s.BracketID)
				ep.signups.remove(s.ID)
			}
		}
		e.positions.put(pr.ID, ep)
	}
	return e
}

func (e *Event) ID() int64           { return e.id }
func (e *Event) Name() string        { return e.name }
func (e *Event) Description() string { return e.description }
func (e *Event) ImageURL() string    { return e.imageURL }
func (e *Event) IsTemplate() bool    { return e.isTemplate }
func (e *Event) HasTimes() bool      { return !e.start.IsZero() && !e.end.IsZero() }

// Start is the event start in the guild timezone, zero when unset.
func (e *Event) Start() time.Time { return e.localize(e.start) }

// End is the event end in the guild timezone, rolled to the next day when
// its time of day is earlier than the start's.
func (e *Event) End() time.Time {
	if !e.HasTimes() {
		return e.localize(e.end)
	}
	return rollEnd(e.Start(), e.localize(e.end))
}

func (e *Event) localize(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(e.sys.loc)
}

// DurationMinutes is the length of the event window, 0 when unset.
func (e *Event) DurationMinutes() int {
	if !e.HasTimes() {
		return 0
	}
	return int(e.End().Sub(e.Start()).Minutes())
}

func (e *Event) PostRef() *MessageRef { return e.post }

func (e *Event) State() PostState {
	switch {
	case e.post == nil:
		return Draft
	case e.stale:
		return PostedStale
	default:
		return Posted
	}
}

// LockedOut reports whether the event is within the lockout threshold of
// its start.
func (e *Event) LockedOut() bool { return e.sys.lockedOut(e.start) }

// Brackets returns the shift brackets ordered by start.
func (e *Event) Brackets() []*ShiftBracket {
	out := e.brackets.all()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (e *Event) Bracket(id int64) (*ShiftBracket, bool) { return e.brackets.get(id) }

func (e *Event) Positions() []*EventPosition { return e.positions.all() }

func (e *Event) Position(id int64) (*EventPosition, bool) { return e.positions.get(id) }

func (e *Event) Elements(kind ElementKind) []Element {
	return append([]Element(nil), e.elements[kind]...)
}

// CoveredMinutes sums bracket lengths. Gaps and placement are not checked.
func (e *Event) CoveredMinutes() int {
	total := 0
	for _, b := range e.brackets.all() {
		total += b.Length()
	}
	return total
}

// IsFullyCovered reports whether the brackets add up to at least the event
// duration. It is a capacity check, not a tiling check.
func (e *Event) IsFullyCovered() bool {
	if !e.HasTimes() {
		return false
	}
	return e.CoveredMinutes() >= e.DurationMinutes()
}

// Record is the persisted form of the event and everything it owns.
func (e *Event) Record() models.EventRecord {
	rec := models.EventRecord{
		ID:          e.id,
		GuildID:     e.sys.guildID,
		Name:        e.name,
		Description: e.description,
		ImageURL:    e.imageURL,
		IsTemplate:  e.isTemplate,
		Elements:    make(map[string][]models.ElementRecord),
	}
	if !e.start.IsZero() {
		start := e.start
		rec.StartTime = &start
	}
	if !e.end.IsZero() {
		end := e.end
		rec.EndTime = &end
	}
	if e.post != nil {
		url := e.post.JumpURL()
		rec.PostURL = &url
	}
	for kind, els := range e.elements {
		for _, el := range els {
			rec.Elements[string(kind)] = append(rec.Elements[string(kind)], models.ElementRecord{Title: el.Title, Value: el.Value})
		}
	}
	for _, b := range e.Brackets() {
		rec.ShiftBrackets = append(rec.ShiftBrackets, b.Record())
	}
	for _, p := range e.positions.all() {
		rec.Positions = append(rec.Positions, p.Record())
	}
	return rec
}

// Update persists the event's own fields.
func (e *Event) Update(ctx context.Context) error {
	if err := e.sys.store.UpdateEvent(ctx, e.Record()); err != nil {
		return persistence("update event", err)
	}
	return nil
}

// change applies mutate, persists, and undoes mutate when persisting fails.
func (e *Event) change(ctx context.Context, mutate func(), undo func()) error {
	mutate()
	if err := e.Update(ctx); err != nil {
		undo()
		return err
	}
	e.touch(ctx)
	return nil
}

func (e *Event) Rename(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Validationf("the event name cannot be empty")
	}
	if len(name) > maxNameLen {
		return Validationf("the event name can be at most %d characters", maxNameLen)
	}
	old := e.name
	return e.change(ctx, func() { e.name = name }, func() { e.name = old })
}

func (e *Event) SetDescription(ctx context.Context, description string) error {
	old := e.description
	description = strings.TrimSpace(description)
	return e.change(ctx, func() { e.description = description }, func() { e.description = old })
}

func (e *Event) SetImageURL(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url != "" && !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return Validationf("the image must be an http(s) URL")
	}
	old := e.imageURL
	return e.change(ctx, func() { e.imageURL = url }, func() { e.imageURL = old })
}

// SetSchedule sets the event window. An end whose time of day is earlier
// than the start's lands on the following day.
func (e *Event) SetSchedule(ctx context.Context, start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return Validationf("both a start and an end time are required")
	}
	start = start.In(e.sys.loc)
	end = end.In(e.sys.loc)
	if ClockOf(start) == ClockOf(end) && !end.After(start) {
		return Validationf("the event must end at a different time than it starts")
	}
	end = rollEnd(start, end)
	if end.Sub(start) > 24*time.Hour {
		return Validationf("events can last at most 24 hours")
	}
	oldStart, oldEnd := e.start, e.end
	return e.change(ctx,
		func() { e.start, e.end = start, end },
		func() { e.start, e.end = oldStart, oldEnd })
}

func (e *Event) AddElement(ctx context.Context, kind ElementKind, el Element) error {
	if strings.TrimSpace(el.Title) == "" || strings.TrimSpace(el.Value) == "" {
		return Validationf("elements need a title and a value")
	}
	old := e.elements[kind]
	return e.change(ctx,
		func() { e.elements[kind] = append(append([]Element(nil), old...), el) },
		func() { e.elements[kind] = old })
}

func (e *Event) RemoveElement(ctx context.Context, kind ElementKind, index int) error {
	old := e.elements[kind]
	if index < 0 || index >= len(old) {
		return invalid(ErrNotFound, "there is no %s #%d", kind, index+1)
	}
	next := append(append([]Element(nil), old[:index]...), old[index+1:]...)
	return e.change(ctx, func() { e.elements[kind] = next }, func() { e.elements[kind] = old })
}

// HourOptions lists the selectable local hours from the start hour through
// the end hour, wrapping past midnight.
func (e *Event) HourOptions() ([]int, error) {
	if !e.HasTimes() {
		return nil, ErrTimesUnset
	}
	start, end := e.Start(), e.End()
	steps := (end.Hour() - start.Hour() + 24) % 24
	if steps == 0 && end.Sub(start) >= time.Hour {
		// a full day: every hour is selectable
		steps = 23
	}
	hours := make([]int, 0, steps+1)
	for i := 0; i <= steps; i++ {
		hours = append(hours, (start.Hour()+i)%24)
	}
	return hours, nil
}

// ResolveClock dates c within the event night: times earlier than the event
// start's time of day fall on the following day.
func (e *Event) ResolveClock(c Clock) time.Time {
	start := e.Start()
	t := c.On(start)
	if c.Before(ClockOf(start)) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// validateShape checks everything about a candidate bracket except overlap.
func (e *Event) validateShape(start, end time.Time) error {
	if !e.HasTimes() {
		return ErrTimesUnset
	}
	if !end.After(start) {
		return Validationf("the shift must end after it starts")
	}
	if start.Before(e.Start()) || end.After(e.End()) {
		return Validationf("the shift %s - %s falls outside the event hours %s - %s",
			ClockOf(start), ClockOf(end), ClockOf(e.Start()), ClockOf(e.End()))
	}
	return nil
}

// conflict returns the first bracket other than exclude that overlaps b.
func (e *Event) conflict(b *ShiftBracket, exclude int64) *ShiftBracket {
	for _, other := range e.Brackets() {
		if other.ID == exclude || other.ID == b.ID {
			continue
		}
		if b.OverlapsWith(other) {
			return other
		}
	}
	return nil
}

// ValidateBracket reports whether start-end could be added without
// conflicts, ignoring the bracket with id exclude.
func (e *Event) ValidateBracket(start, end time.Time, exclude int64) error {
	if err := e.validateShape(start, end); err != nil {
		return err
	}
	if other := e.conflict(&ShiftBracket{Start: start, End: end}, exclude); other != nil {
		return invalid(ErrOverlap, "that shift overlaps the existing shift %s", other.Range())
	}
	return nil
}

// AddShiftBracket persists a new bracket and keeps it only if it does not
// overlap an existing one; a conflicting bracket is deleted again.
func (e *Event) AddShiftBracket(ctx context.Context, start, end time.Time) (*ShiftBracket, error) {
	start, end = start.In(e.sys.loc), end.In(e.sys.loc)
	if err := e.validateShape(start, end); err != nil {
		return nil, err
	}
	id, err := e.sys.store.CreateShiftBracket(ctx, e.id, start, end)
	if err != nil {
		return nil, persistence("create shift bracket", err)
	}
	b := &ShiftBracket{ID: id, EventID: e.id, Start: start, End: end}
	if other := e.conflict(b, 0); other != nil {
		if err := e.sys.store.DeleteShiftBracket(ctx, id); err != nil {
			appLog.Error("rollback of conflicting shift bracket failed", err, "event", e.id, "bracket", id)
			return nil, persistence("delete conflicting shift bracket", err)
		}
		return nil, invalid(ErrOverlap, "that shift overlaps the existing shift %s", other.Range())
	}
	e.brackets.put(id, b)
	e.touch(ctx)
	return b, nil
}

// RemoveShiftBracket deletes a bracket and its signups. Removing a bracket
// that is already gone is a no-op.
func (e *Event) RemoveShiftBracket(ctx context.Context, id int64) error {
	if _, ok := e.brackets.get(id); !ok {
		return nil
	}
	if err := e.sys.store.DeleteShiftBracket(ctx, id); err != nil {
		return persistence("delete shift bracket", err)
	}
	e.brackets.remove(id)
	for _, p := range e.positions.all() {
		p.dropBracket(id)
	}
	e.touch(ctx)
	return nil
}

// SetBracketStart moves a bracket's start, re-checking overlap.
func (e *Event) SetBracketStart(ctx context.Context, id int64, c Clock) error {
	return e.retime(ctx, id, func(b *ShiftBracket) (time.Time, time.Time) { return e.ResolveClock(c), b.End })
}

// SetBracketEnd moves a bracket's end, re-checking overlap.
func (e *Event) SetBracketEnd(ctx context.Context, id int64, c Clock) error {
	return e.retime(ctx, id, func(b *ShiftBracket) (time.Time, time.Time) { return b.Start, e.ResolveClock(c) })
}

// RetimeBracket moves both ends of a bracket at once. The new window is
// validated as a whole and written in one update.
func (e *Event) RetimeBracket(ctx context.Context, id int64, start, end Clock) error {
	return e.retime(ctx, id, func(*ShiftBracket) (time.Time, time.Time) { return e.ResolveClock(start), e.ResolveClock(end) })
}

func (e *Event) retime(ctx context.Context, id int64, next func(*ShiftBracket) (time.Time, time.Time)) error {
	b, ok := e.brackets.get(id)
	if !ok {
		return invalid(ErrNotFound, "that shift no longer exists")
	}
	if !e.HasTimes() {
		return ErrTimesUnset
	}
	start, end := next(b)
	if err := e.ValidateBracket(start, end, id); err != nil {
		return err
	}
	oldStart, oldEnd := b.Start, b.End
	b.Start, b.End = start, end
	if err := e.sys.store.UpdateShiftBracket(ctx, b.Record()); err != nil {
		b.Start, b.End = oldStart, oldEnd
		return persistence("update shift bracket", err)
	}
	e.touch(ctx)
	return nil
}

// AddPosition adds a staffing requirement for a roster position.
func (e *Event) AddPosition(ctx context.Context, positionID int64, quantity int, emoji string) (*EventPosition, error) {
	pos, ok := e.sys.roster.Position(positionID)
	if !ok {
		return nil, invalid(ErrNotFound, "that position does not exist")
	}
	if quantity < 1 {
		return nil, Validationf("quantity must be at least 1")
	}
	for _, p := range e.positions.all() {
		if p.PositionID() == positionID {
			return nil, Validationf("%s is already required for this event", pos.Name)
		}
	}
	id, err := e.sys.store.CreateEventPosition(ctx, e.id, positionID, quantity)
	if err != nil {
		return nil, persistence("create event position", err)
	}
	ep := &EventPosition{
		id:       id,
		eventID:  e.id,
		position: Ref[*Position]{ID: positionID},
		quantity: quantity,
		store:    e.sys.store,
	}
	e.positions.put(id, ep)
	if emoji != "" {
		if err := ep.SetEmoji(ctx, emoji); err != nil {
			e.positions.remove(id)
			if derr := e.sys.store.DeleteEventPosition(ctx, id); derr != nil {
				appLog.Error("rollback of event position failed", derr, "event", e.id, "event_position", id)
			}
			return nil, err
		}
	}
	e.touch(ctx)
	return ep, nil
}

// RemovePosition deletes a staffing requirement and its signups.
func (e *Event) RemovePosition(ctx context.Context, id int64) error {
	if _, ok := e.positions.get(id); !ok {
		return nil
	}
	if err := e.sys.store.DeleteEventPosition(ctx, id); err != nil {
		return persistence("delete event position", err)
	}
	e.positions.remove(id)
	e.touch(ctx)
	return nil
}

// SetPositionQuantity changes the target headcount of a position.
func (e *Event) SetPositionQuantity(ctx context.Context, id int64, quantity int) error {
	ep, ok := e.positions.get(id)
	if !ok {
		return invalid(ErrNotFound, "that position is not part of this event")
	}
	if err := ep.SetQuantity(ctx, quantity); err != nil {
		return err
	}
	e.touch(ctx)
	return nil
}

// PositionFull reports IsFull for position id against this event's brackets.
func (e *Event) PositionFull(id int64) bool {
	ep, ok := e.positions.get(id)
	return ok && ep.IsFull(e.Brackets())
}

// checkSlot validates that staffID can take bracketID on ep.
func (e *Event) checkSlot(ep *EventPosition, staffID, bracketID int64) error {
	b, ok := e.brackets.get(bracketID)
	if !ok {
		return invalid(ErrNotFound, "that shift no longer exists")
	}
	for _, s := range ep.SignupsFor(staffID) {
		if s.BracketID == bracketID {
			return Validationf("already signed up for %s", b.Range())
		}
	}
	if ep.OpenSlots(bracketID) == 0 {
		return invalid(ErrBracketFull, "the %s shift is already full", b.Range())
	}
	return nil
}

// Signup creates one signup per bracket for a qualified staff member. All
// brackets are validated first; a failed create rolls back the ones made.
func (e *Event) Signup(ctx context.Context, positionID int64, staff *StaffMember, bracketIDs []int64) ([]*EventSignup, error) {
	ep, ok := e.positions.get(positionID)
	if !ok {
		return nil, invalid(ErrNotFound, "that position is not part of this event")
	}
	if !staff.QualifiedFor(ep.PositionID()) {
		return nil, ErrNotQualified
	}
	if len(bracketIDs) == 0 {
		return nil, Validationf("pick at least one shift")
	}
	var ids []int64
	seen := make(map[int64]bool, len(bracketIDs))
	for _, id := range bracketIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := e.checkSlot(ep, staff.ID, id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	created := make([]*EventSignup, 0, len(ids))
	for _, id := range ids {
		s, err := ep.addSignup(ctx, staff.ID, id)
		if err != nil {
			for _, c := range created {
				if rerr := ep.removeSignup(ctx, c.ID); rerr != nil {
					appLog.Error("rollback of signup failed", rerr, "event", e.id, "signup", c.ID)
				}
			}
			return nil, err
		}
		created = append(created, s)
	}
	e.touch(ctx)
	return created, nil
}

// Assign manually puts a staff member on a bracket, skipping the
// qualification check.
func (e *Event) Assign(ctx context.Context, positionID, staffID, bracketID int64) (*EventSignup, error) {
	ep, ok := e.positions.get(positionID)
	if !ok {
		return nil, invalid(ErrNotFound, "that position is not part of this event")
	}
	if _, ok := e.sys.roster.Staff(staffID); !ok {
		return nil, invalid(ErrNotFound, "that staff member is not on the roster")
	}
	if err := e.checkSlot(ep, staffID, bracketID); err != nil {
		return nil, err
	}
	s, err := ep.addSignup(ctx, staffID, bracketID)
	if err != nil {
		return nil, err
	}
	e.touch(ctx)
	return s, nil
}

// Unassign deletes a signup wherever it lives in the event.
func (e *Event) Unassign(ctx context.Context, signupID int64) error {
	for _, ep := range e.positions.all() {
		if _, ok := ep.signups.get(signupID); ok {
			if err := ep.removeSignup(ctx, signupID); err != nil {
				return err
			}
			e.touch(ctx)
			return nil
		}
	}
	return nil
}

// ToggleResult describes what ToggleUserSignup did.
type ToggleResult struct {
	Removed int
	Added   []*EventSignup
}

// ToggleUserSignup signs staff off a position they hold, or otherwise lets
// them choose among the brackets with open slots and signs them up.
func (e *Event) ToggleUserSignup(ctx context.Context, positionID int64, staff *StaffMember, chooser Chooser) (ToggleResult, error) {
	ep, ok := e.positions.get(positionID)
	if !ok {
		return ToggleResult{}, invalid(ErrNotFound, "that position is not part of this event")
	}
	if held := ep.SignupsFor(staff.ID); len(held) > 0 {
		removed := 0
		for _, s := range held {
			if err := ep.removeSignup(ctx, s.ID); err != nil {
				if removed > 0 {
					e.touch(ctx)
				}
				return ToggleResult{Removed: removed}, err
			}
			removed++
		}
		e.touch(ctx)
		return ToggleResult{Removed: removed}, nil
	}
	if !staff.QualifiedFor(ep.PositionID()) {
		return ToggleResult{}, ErrNotQualified
	}
	open := ep.AvailableShifts(e.Brackets())
	if len(open) == 0 {
		return ToggleResult{}, ErrNoOpenShifts
	}
	name := "this position"
	if pos, ok := ep.Position(e.sys.roster.PositionLookup()); ok {
		name = pos.Name
	}
	chosen, err := chooser.ChooseBrackets(ctx, fmt.Sprintf("Pick the %s shifts you want to work", name), open)
	if err != nil {
		return ToggleResult{}, err
	}
	if len(chosen) == 0 {
		return ToggleResult{}, ErrCancelled
	}
	// the event may have changed while the prompt was open, Signup re-checks
	added, err := e.Signup(ctx, positionID, staff, chosen)
	if err != nil {
		return ToggleResult{}, err
	}
	return ToggleResult{Added: added}, nil
}

// touch marks the post stale and tries to re-render it. A failed refresh
// leaves the post stale for the refresh job.
func (e *Event) touch(ctx context.Context) {
	if e.post == nil {
		return
	}
	e.stale = true
	if err := e.UpdatePostComponents(ctx); err != nil {
		appLog.Warn("post refresh failed, will retry", "event", e.id, "err", err)
	}
}

// Post publishes the event to channelID, or re-renders the existing post.
// A post whose message was deleted is published again.
func (e *Event) Post(ctx context.Context, channelID string) error {
	if e.isTemplate {
		return Validationf("templates cannot be posted")
	}
	if e.post != nil {
		err := e.sys.poster.Edit(ctx, *e.post, e.View())
		if err == nil {
			e.stale = false
			return nil
		}
		if KindOf(err) != KindStaleReference {
			return err
		}
		appLog.Info("posted message is gone, posting again", "event", e.id)
		e.post = nil
	}
	if channelID == "" {
		return Validationf("no scheduling channel is configured")
	}
	ref, err := e.sys.poster.Publish(ctx, channelID, e.View())
	if err != nil {
		return err
	}
	e.post, e.stale = &ref, false
	return e.Update(ctx)
}

// UpdatePostComponents re-renders the existing post in place. A deleted
// message falls back to draft.
func (e *Event) UpdatePostComponents(ctx context.Context) error {
	if e.post == nil {
		return nil
	}
	err := e.sys.poster.Edit(ctx, *e.post, e.View())
	switch {
	case err == nil:
		e.stale = false
		return nil
	case KindOf(err) == KindStaleReference:
		e.post, e.stale = nil, false
		return e.Update(ctx)
	default:
		e.stale = true
		return err
	}
}

// Unpost deletes the public post, tolerating one that is already gone.
func (e *Event) Unpost(ctx context.Context) error {
	if e.post == nil {
		return nil
	}
	if err := e.sys.poster.Delete(ctx, *e.post); err != nil && KindOf(err) != KindStaleReference {
		return err
	}
	e.post, e.stale = nil, false
	return e.Update(ctx)
}
