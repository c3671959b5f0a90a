package models

import (
	"time"

	"github.com/lib/pq"
)

type PositionRecord struct {
	ID           int64     `db:"id"`
	GuildID      string    `db:"guild_id"`
	Name         string    `db:"name"`
	RoleID       string    `db:"role_id"`
	HourlySalary float64   `db:"hourly_salary"`
	CreatedAt    time.Time `db:"created_at"`
}

type StaffRecord struct {
	ID        int64         `db:"id"`
	GuildID   string        `db:"guild_id"`
	UserID    string        `db:"user_id"`
	Name      string        `db:"name"`
	Positions pq.Int64Array `db:"positions"`
	CreatedAt time.Time     `db:"created_at"`
}
