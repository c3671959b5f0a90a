package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"venuebot/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrDuplicate is returned when a unique constraint rejects a row.
var ErrDuplicate = errors.New("already exists")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreatePosition adds a position to the guild roster.
func (db *DB) CreatePosition(ctx context.Context, p models.PositionRecord) (models.PositionRecord, error) {
	query := `
		INSERT INTO positions (guild_id, name, role_id, hourly_salary)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := db.QueryRow(ctx, query, p.GuildID, strings.TrimSpace(p.Name), p.RoleID, p.HourlySalary).Scan(&p.ID, &p.CreatedAt)
	if isUniqueViolation(err) {
		return p, fmt.Errorf("position %q: %w", p.Name, ErrDuplicate)
	}
	if err != nil {
		return p, fmt.Errorf("error creating position: %w", err)
	}
	return p, nil
}

// ListPositions returns the guild's positions ordered by name.
func (db *DB) ListPositions(ctx context.Context, guildID string) ([]models.PositionRecord, error) {
	query := `
		SELECT id, guild_id, name, role_id, hourly_salary, created_at
		FROM positions
		WHERE guild_id = $1
		ORDER BY name`

	rows, err := db.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PositionRecord
	for rows.Next() {
		var p models.PositionRecord
		if err := rows.Scan(&p.ID, &p.GuildID, &p.Name, &p.RoleID, &p.HourlySalary, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetOrCreateStaff retrieves a staff member by Discord user id or creates one.
func (db *DB) GetOrCreateStaff(ctx context.Context, guildID, userID, name string) (models.StaffRecord, error) {
	query := `
		SELECT id, guild_id, user_id, name, positions, created_at
		FROM staff
		WHERE guild_id = $1 AND user_id = $2`

	var s models.StaffRecord
	err := db.QueryRow(ctx, query, guildID, userID).Scan(&s.ID, &s.GuildID, &s.UserID, &s.Name, &s.Positions, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		insertQuery := `
			INSERT INTO staff (guild_id, user_id, name, positions)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`

		s = models.StaffRecord{GuildID: guildID, UserID: userID, Name: name, Positions: pq.Int64Array{}}
		err = db.QueryRow(ctx, insertQuery, guildID, userID, name, s.Positions).Scan(&s.ID, &s.CreatedAt)
		if err != nil {
			return s, fmt.Errorf("error creating staff member: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("error getting staff member: %w", err)
	}
	return s, nil
}

func (db *DB) ListStaff(ctx context.Context, guildID string) ([]models.StaffRecord, error) {
	query := `
		SELECT id, guild_id, user_id, name, positions, created_at
		FROM staff
		WHERE guild_id = $1
		ORDER BY name`

	rows, err := db.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StaffRecord
	for rows.Next() {
		var s models.StaffRecord
		if err := rows.Scan(&s.ID, &s.GuildID, &s.UserID, &s.Name, &s.Positions, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetStaffPositions replaces the positions a staff member is qualified for.
func (db *DB) SetStaffPositions(ctx context.Context, staffID int64, positions []int64) error {
	err := db.execOne(ctx, `
		UPDATE staff
		SET positions = $1
		WHERE id = $2`, pq.Int64Array(positions), staffID)
	if err != nil {
		return fmt.Errorf("error updating staff positions: %w", err)
	}
	return nil
}
