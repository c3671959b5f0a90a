package scheduling

import (
	"slices"
	"sort"
	"strings"
)

// Position is a staffable role with a linked permission role.
type Position struct {
	ID           int64
	Name         string
	RoleID       string
	HourlySalary float64
}

// StaffMember is a guild member who can be scheduled.
type StaffMember struct {
	ID        int64
	UserID    string
	Name      string
	Positions []int64
}

// QualifiedFor reports whether positionID is in the member's allowed set.
func (s *StaffMember) QualifiedFor(positionID int64) bool {
	return slices.Contains(s.Positions, positionID)
}

// Mention renders the member for chat output.
func (s *StaffMember) Mention() string {
	if s.UserID != "" {
		return "<@" + s.UserID + ">"
	}
	return s.Name
}

// Roster is the guild's registry of positions and staff. Scheduling entities
// only hold ids into it.
type Roster struct {
	positions Index[*Position]
	staff     Index[*StaffMember]
	byUser    map[string]int64
}

func NewRoster() *Roster {
	return &Roster{
		positions: make(Index[*Position]),
		staff:     make(Index[*StaffMember]),
		byUser:    make(map[string]int64),
	}
}

func (r *Roster) PutPosition(p *Position) { r.positions[p.ID] = p }

func (r *Roster) PutStaff(s *StaffMember) {
	r.staff[s.ID] = s
	if s.UserID != "" {
		r.byUser[s.UserID] = s.ID
	}
}

func (r *Roster) PositionLookup() Lookup[*Position] { return r.positions }

func (r *Roster) StaffLookup() Lookup[*StaffMember] { return r.staff }

func (r *Roster) Position(id int64) (*Position, bool) { return r.positions.Get(id) }

func (r *Roster) Staff(id int64) (*StaffMember, bool) { return r.staff.Get(id) }

func (r *Roster) StaffByUser(userID string) (*StaffMember, bool) {
	id, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	return r.staff.Get(id)
}

// PositionByName matches case-insensitively.
func (r *Roster) PositionByName(name string) (*Position, bool) {
	for _, p := range r.positions {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return nil, false
}

// Positions returns every position sorted by name.
func (r *Roster) Positions() []*Position {
	out := make([]*Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// QualifiedStaff lists the members allowed to work positionID, by name.
func (r *Roster) QualifiedStaff(positionID int64) []*StaffMember {
	var out []*StaffMember
	for _, s := range r.staff {
		if s.QualifiedFor(positionID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
