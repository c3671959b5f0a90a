package scheduling

import (
	"context"

	"venuebot/internal/db/models"
)

// EventPosition is a staffing requirement of an event: quantity people of
// one position for every shift bracket.
type EventPosition struct {
	id       int64
	eventID  int64
	position Ref[*Position]
	quantity int
	emoji    string
	signups  arena[*EventSignup]
	store    Store
}

func positionFromRecord(rec models.EventPositionRecord, store Store) *EventPosition {
	ep := &EventPosition{
		id:       rec.ID,
		eventID:  rec.EventID,
		position: Ref[*Position]{ID: rec.PositionID},
		quantity: rec.Quantity,
		store:    store,
	}
	if rec.Emoji != nil {
		ep.emoji = *rec.Emoji
	}
	for _, s := range rec.Signups {
		ep.signups.put(s.ID, signupFromRecord(s))
	}
	return ep
}

func (p *EventPosition) ID() int64         { return p.id }
func (p *EventPosition) EventID() int64    { return p.eventID }
func (p *EventPosition) PositionID() int64 { return p.position.ID }
func (p *EventPosition) Quantity() int     { return p.quantity }
func (p *EventPosition) Emoji() string     { return p.emoji }

// Position resolves the underlying roster position.
func (p *EventPosition) Position(l Lookup[*Position]) (*Position, bool) {
	return p.position.Resolve(l)
}

func (p *EventPosition) Signups() []*EventSignup { return p.signups.all() }

func (p *EventPosition) SignupsByBracket(bracketID int64) []*EventSignup {
	var out []*EventSignup
	for _, s := range p.signups.all() {
		if s.BracketID == bracketID {
			out = append(out, s)
		}
	}
	return out
}

func (p *EventPosition) SignupsFor(staffID int64) []*EventSignup {
	var out []*EventSignup
	for _, s := range p.signups.all() {
		if s.Staff.ID == staffID {
			out = append(out, s)
		}
	}
	return out
}

// OpenSlots is how many more signups bracketID can take.
func (p *EventPosition) OpenSlots(bracketID int64) int {
	n := p.quantity - len(p.SignupsByBracket(bracketID))
	if n < 0 {
		return 0
	}
	return n
}

// IsFull reports whether every bracket has quantity signups. With no
// brackets the position is vacuously full.
func (p *EventPosition) IsFull(brackets []*ShiftBracket) bool {
	for _, b := range brackets {
		if p.OpenSlots(b.ID) > 0 {
			return false
		}
	}
	return true
}

// AvailableShifts returns the brackets that still have open slots.
func (p *EventPosition) AvailableShifts(brackets []*ShiftBracket) []*ShiftBracket {
	var out []*ShiftBracket
	for _, b := range brackets {
		if p.OpenSlots(b.ID) > 0 {
			out = append(out, b)
		}
	}
	return out
}

func (p *EventPosition) SetQuantity(ctx context.Context, quantity int) error {
	if quantity < 1 {
		return Validationf("quantity must be at least 1")
	}
	old := p.quantity
	p.quantity = quantity
	if err := p.update(ctx); err != nil {
		p.quantity = old
		return err
	}
	return nil
}

func (p *EventPosition) SetEmoji(ctx context.Context, emoji string) error {
	old := p.emoji
	p.emoji = emoji
	if err := p.update(ctx); err != nil {
		p.emoji = old
		return err
	}
	return nil
}

func (p *EventPosition) update(ctx context.Context) error {
	if err := p.store.UpdateEventPosition(ctx, p.Record()); err != nil {
		return persistence("update event position", err)
	}
	return nil
}

func (p *EventPosition) addSignup(ctx context.Context, staffID, bracketID int64) (*EventSignup, error) {
	id, err := p.store.CreateEventSignup(ctx, p.id, staffID, bracketID)
	if err != nil {
		return nil, persistence("create event signup", err)
	}
	s := &EventSignup{
		ID:         id,
		PositionID: p.id,
		Staff:      Ref[*StaffMember]{ID: staffID},
		BracketID:  bracketID,
	}
	p.signups.put(id, s)
	return s, nil
}

// removeSignup tolerates a signup that is already gone.
func (p *EventPosition) removeSignup(ctx context.Context, id int64) error {
	if _, ok := p.signups.get(id); !ok {
		return nil
	}
	if err := p.store.DeleteEventSignup(ctx, id); err != nil {
		return persistence("delete event signup", err)
	}
	p.signups.remove(id)
	return nil
}

// dropBracket forgets signups of a deleted bracket; the store cascades them.
func (p *EventPosition) dropBracket(bracketID int64) int {
	n := 0
	for _, s := range p.SignupsByBracket(bracketID) {
		p.signups.remove(s.ID)
		n++
	}
	return n
}

func (p *EventPosition) Record() models.EventPositionRecord {
	rec := models.EventPositionRecord{
		ID:         p.id,
		EventID:    p.eventID,
		PositionID: p.position.ID,
		Quantity:   p.quantity,
	}
	if p.emoji != "" {
		emoji := p.emoji
		rec.Emoji = &emoji
	}
	for _, s := range p.signups.all() {
		rec.Signups = append(rec.Signups, s.Record())
	}
	return rec
}
