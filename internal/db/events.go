package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"venuebot/internal/db/models"
	"venuebot/internal/scheduling"

	"github.com/jackc/pgx/v5"
)

var _ scheduling.Store = (*DB)(nil)

func (db *DB) CreateEvent(ctx context.Context, guildID string) (int64, error) {
	return db.insertID(ctx, `
		INSERT INTO events (guild_id)
		VALUES ($1)
		RETURNING id`, guildID)
}

func (db *DB) UpdateEvent(ctx context.Context, rec models.EventRecord) error {
	elements, err := encodeElements(rec.Elements)
	if err != nil {
		return err
	}
	query := `
		UPDATE events
		SET name = $1, description = $2, start_time = $3, end_time = $4,
			image_url = $5, post_url = $6, is_template = $7, elements = $8::jsonb
		WHERE id = $9`

	err = db.execOne(ctx, query,
		rec.Name,
		rec.Description,
		rec.StartTime,
		rec.EndTime,
		rec.ImageURL,
		rec.PostURL,
		rec.IsTemplate,
		elements,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating event %d: %w", rec.ID, err)
	}
	return nil
}

// DeleteEvent removes an event; brackets, positions and signups cascade.
func (db *DB) DeleteEvent(ctx context.Context, id int64) error {
	_, err := db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

func (db *DB) CreateShiftBracket(ctx context.Context, eventID int64, start, end time.Time) (int64, error) {
	return db.insertID(ctx, `
		INSERT INTO shift_brackets (event_id, start_time, end_time)
		VALUES ($1, $2, $3)
		RETURNING id`, eventID, start, end)
}

func (db *DB) UpdateShiftBracket(ctx context.Context, rec models.ShiftBracketRecord) error {
	return db.execOne(ctx, `
		UPDATE shift_brackets
		SET start_time = $1, end_time = $2
		WHERE id = $3`, rec.StartTime, rec.EndTime, rec.ID)
}

func (db *DB) DeleteShiftBracket(ctx context.Context, id int64) error {
	_, err := db.Exec(ctx, `DELETE FROM shift_brackets WHERE id = $1`, id)
	return err
}

func (db *DB) CreateEventPosition(ctx context.Context, eventID, positionID int64, quantity int) (int64, error) {
	return db.insertID(ctx, `
		INSERT INTO event_positions (event_id, position_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id`, eventID, positionID, quantity)
}

func (db *DB) UpdateEventPosition(ctx context.Context, rec models.EventPositionRecord) error {
	return db.execOne(ctx, `
		UPDATE event_positions
		SET quantity = $1, emoji = $2
		WHERE id = $3`, rec.Quantity, rec.Emoji, rec.ID)
}

func (db *DB) DeleteEventPosition(ctx context.Context, id int64) error {
	_, err := db.Exec(ctx, `DELETE FROM event_positions WHERE id = $1`, id)
	return err
}

func (db *DB) CreateEventSignup(ctx context.Context, positionID, staffID, bracketID int64) (int64, error) {
	return db.insertID(ctx, `
		INSERT INTO event_signups (event_position_id, staff_id, bracket_id)
		VALUES ($1, $2, $3)
		RETURNING id`, positionID, staffID, bracketID)
}

func (db *DB) DeleteEventSignup(ctx context.Context, id int64) error {
	_, err := db.Exec(ctx, `DELETE FROM event_signups WHERE id = $1`, id)
	return err
}

func (db *DB) UpdateEventSystem(ctx context.Context, rec models.EventSystemRecord) error {
	query := `
		INSERT INTO event_systems (guild_id, event_lockout, channel_id, timezone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE
		SET event_lockout = EXCLUDED.event_lockout,
			channel_id = EXCLUDED.channel_id,
			timezone = EXCLUDED.timezone`

	_, err := db.Exec(ctx, query, rec.GuildID, rec.EventLockout, rec.ChannelID, rec.Timezone)
	return err
}

// GetOrCreateEventSystem loads a guild's settings, creating the row with
// defaults on first use.
func (db *DB) GetOrCreateEventSystem(ctx context.Context, guildID string, defaults models.EventSystemRecord) (models.EventSystemRecord, error) {
	query := `
		SELECT guild_id, event_lockout, channel_id, timezone
		FROM event_systems
		WHERE guild_id = $1`

	var rec models.EventSystemRecord
	err := db.QueryRow(ctx, query, guildID).Scan(&rec.GuildID, &rec.EventLockout, &rec.ChannelID, &rec.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		defaults.GuildID = guildID
		if err := db.UpdateEventSystem(ctx, defaults); err != nil {
			return rec, fmt.Errorf("error creating event system: %w", err)
		}
		return defaults, nil
	}
	if err != nil {
		return rec, fmt.Errorf("error getting event system: %w", err)
	}
	return rec, nil
}

// LoadEventSystem returns the guild's settings with every event and
// template, their brackets, positions and signups nested.
func (db *DB) LoadEventSystem(ctx context.Context, guildID string, defaults models.EventSystemRecord) (models.EventSystemRecord, error) {
	rec, err := db.GetOrCreateEventSystem(ctx, guildID, defaults)
	if err != nil {
		return rec, err
	}
	events, err := db.guildEvents(ctx, guildID)
	if err != nil {
		return rec, fmt.Errorf("error loading events: %w", err)
	}
	brackets, err := db.guildBrackets(ctx, guildID)
	if err != nil {
		return rec, fmt.Errorf("error loading shift brackets: %w", err)
	}
	positions, err := db.guildEventPositions(ctx, guildID)
	if err != nil {
		return rec, fmt.Errorf("error loading event positions: %w", err)
	}
	signups, err := db.guildSignups(ctx, guildID)
	if err != nil {
		return rec, fmt.Errorf("error loading signups: %w", err)
	}

	byID := make(map[int64]*models.EventPositionRecord, len(positions))
	for _, p := range positions {
		byID[p.ID] = p
	}
	for _, s := range signups {
		if p, ok := byID[s.EventPositionID]; ok {
			p.Signups = append(p.Signups, s)
		}
	}
	for _, ev := range events {
		ev.ShiftBrackets = brackets[ev.ID]
		for _, p := range positions {
			if p.EventID == ev.ID {
				ev.Positions = append(ev.Positions, *p)
			}
		}
		rec.Events = append(rec.Events, *ev)
	}
	return rec, nil
}

func (db *DB) guildEvents(ctx context.Context, guildID string) ([]*models.EventRecord, error) {
	query := `
		SELECT id, guild_id, name, description, start_time, end_time,
			image_url, post_url, is_template, elements
		FROM events
		WHERE guild_id = $1
		ORDER BY id`

	rows, err := db.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.EventRecord
	for rows.Next() {
		ev := &models.EventRecord{}
		var elements []byte
		err := rows.Scan(
			&ev.ID,
			&ev.GuildID,
			&ev.Name,
			&ev.Description,
			&ev.StartTime,
			&ev.EndTime,
			&ev.ImageURL,
			&ev.PostURL,
			&ev.IsTemplate,
			&elements,
		)
		if err != nil {
			return nil, err
		}
		if ev.Elements, err = decodeElements(elements); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (db *DB) guildBrackets(ctx context.Context, guildID string) (map[int64][]models.ShiftBracketRecord, error) {
	query := `
		SELECT b.id, b.event_id, b.start_time, b.end_time
		FROM shift_brackets b
		JOIN events e ON b.event_id = e.id
		WHERE e.guild_id = $1
		ORDER BY b.start_time`

	rows, err := db.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]models.ShiftBracketRecord)
	for rows.Next() {
		var b models.ShiftBracketRecord
		if err := rows.Scan(&b.ID, &b.EventID, &b.StartTime, &b.EndTime); err != nil {
			return nil, err
		}
		out[b.EventID] = append(out[b.EventID], b)
	}
	return out, rows.Err()
}

func (db *DB) guildEventPositions(ctx context.Context, guildID string) ([]*models.EventPositionRecord, error) {
	query := `
		SELECT p.id, p.event_id, p.position_id, p.quantity, p.emoji
		FROM event_positions p
		JOIN events e ON p.event_id = e.id
		WHERE e.guild_id = $1
		ORDER BY p.id`

	rows, err := db.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EventPositionRecord
	for rows.Next() {
		p := &models.EventPositionRecord{}
		if err := rows.Scan(&p.ID, &p.EventID, &p.PositionID, &p.Quantity, &p.Emoji); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) guildSignups(ctx context.Context, guildID string) ([]models.EventSignupRecord, error) {
	query := `
		SELECT s.id, s.event_position_id, s.staff_id, s.bracket_id
		FROM event_signups s
		JOIN event_positions p ON s.event_position_id = p.id
		JOIN events e ON p.event_id = e.id
		WHERE e.guild_id = $1
		ORDER BY s.id`

	rows, err := db.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EventSignupRecord
	for rows.Next() {
		var s models.EventSignupRecord
		if err := rows.Scan(&s.ID, &s.EventPositionID, &s.StaffID, &s.BracketID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GuildIDs lists every guild with scheduling settings.
func (db *DB) GuildIDs(ctx context.Context) ([]string, error) {
	rows, err := db.Query(ctx, `SELECT guild_id FROM event_systems ORDER BY guild_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func encodeElements(elements map[string][]models.ElementRecord) (string, error) {
	if len(elements) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(elements)
	if err != nil {
		return "", fmt.Errorf("error encoding elements: %w", err)
	}
	return string(data), nil
}

func decodeElements(data []byte) (map[string][]models.ElementRecord, error) {
	out := make(map[string][]models.ElementRecord)
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("error decoding elements: %w", err)
	}
	return out, nil
}
