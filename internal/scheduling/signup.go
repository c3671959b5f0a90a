package scheduling

import "venuebot/internal/db/models"

// EventSignup assigns one staff member to one bracket of an event position.
// Signups are never edited, only created and deleted.
type EventSignup struct {
	ID         int64
	PositionID int64
	Staff      Ref[*StaffMember]
	BracketID  int64
}

func signupFromRecord(rec models.EventSignupRecord) *EventSignup {
	return &EventSignup{
		ID:         rec.ID,
		PositionID: rec.EventPositionID,
		Staff:      Ref[*StaffMember]{ID: rec.StaffID},
		BracketID:  rec.BracketID,
	}
}

func (s *EventSignup) Record() models.EventSignupRecord {
	return models.EventSignupRecord{
		ID:              s.ID,
		EventPositionID: s.PositionID,
		StaffID:         s.Staff.ID,
		BracketID:       s.BracketID,
	}
}
