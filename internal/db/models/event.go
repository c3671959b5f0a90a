package models

import "time"

// EventRecord is the persisted form of an event, including its children when
// loaded as part of an EventSystemRecord.
type EventRecord struct {
	ID            int64                      `db:"id" json:"id"`
	GuildID       string                     `db:"guild_id" json:"guild_id"`
	Name          string                     `db:"name" json:"name"`
	Description   string                     `db:"description" json:"description"`
	StartTime     *time.Time                 `db:"start_time" json:"start_time"`
	EndTime       *time.Time                 `db:"end_time" json:"end_time"`
	ImageURL      string                     `db:"image_url" json:"image_url"`
	PostURL       *string                    `db:"post_url" json:"post_url"`
	IsTemplate    bool                       `db:"is_template" json:"is_template"`
	Elements      map[string][]ElementRecord `db:"elements" json:"elements"`
	ShiftBrackets []ShiftBracketRecord       `db:"-" json:"shift_brackets"`
	Positions     []EventPositionRecord      `db:"-" json:"positions"`
}

type ElementRecord struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type ShiftBracketRecord struct {
	ID        int64     `db:"id" json:"id"`
	EventID   int64     `db:"event_id" json:"event_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
}

type EventPositionRecord struct {
	ID         int64               `db:"id" json:"id"`
	EventID    int64               `db:"event_id" json:"event_id"`
	PositionID int64               `db:"position_id" json:"position_id"`
	Quantity   int                 `db:"quantity" json:"quantity"`
	Emoji      *string             `db:"emoji" json:"emoji"`
	Signups    []EventSignupRecord `db:"-" json:"signups"`
}

type EventSignupRecord struct {
	ID              int64 `db:"id" json:"id"`
	EventPositionID int64 `db:"event_position_id" json:"event_position_id"`
	StaffID         int64 `db:"staff_id" json:"staff_id"`
	BracketID       int64 `db:"bracket_id" json:"bracket_id"`
}
