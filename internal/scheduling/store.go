package scheduling

import (
	"context"
	"time"

	"venuebot/internal/db/models"
)

// Store is the persistence backend. Create calls assign ids; the backend
// cascades deletes of an event or position to its children.
type Store interface {
	CreateEvent(ctx context.Context, guildID string) (int64, error)
	UpdateEvent(ctx context.Context, rec models.EventRecord) error
	DeleteEvent(ctx context.Context, id int64) error

	CreateShiftBracket(ctx context.Context, eventID int64, start, end time.Time) (int64, error)
	UpdateShiftBracket(ctx context.Context, rec models.ShiftBracketRecord) error
	DeleteShiftBracket(ctx context.Context, id int64) error

	CreateEventPosition(ctx context.Context, eventID, positionID int64, quantity int) (int64, error)
	UpdateEventPosition(ctx context.Context, rec models.EventPositionRecord) error
	DeleteEventPosition(ctx context.Context, id int64) error

	CreateEventSignup(ctx context.Context, positionID, staffID, bracketID int64) (int64, error)
	DeleteEventSignup(ctx context.Context, id int64) error

	UpdateEventSystem(ctx context.Context, rec models.EventSystemRecord) error
}

// Poster renders post views on the chat platform. Edit and Delete report a
// missing message as a KindStaleReference error and refused sends as
// KindPermission.
type Poster interface {
	Publish(ctx context.Context, channelID string, view PostView) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, view PostView) error
	Delete(ctx context.Context, ref MessageRef) error
}

// Chooser asks a user to pick one or more shift brackets. Implementations
// return ErrCancelled when the user dismisses the prompt or it times out.
type Chooser interface {
	ChooseBrackets(ctx context.Context, prompt string, options []*ShiftBracket) ([]int64, error)
}

// Confirmer asks a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}
