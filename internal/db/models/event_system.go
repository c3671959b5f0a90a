package models

// EventSystemRecord holds a guild's scheduling settings and, when loaded,
// every event and template of the guild.
type EventSystemRecord struct {
	GuildID      string        `db:"guild_id" json:"guild_id"`
	EventLockout int           `db:"event_lockout" json:"event_lockout"`
	ChannelID    *int64        `db:"channel_id" json:"channel_id"`
	Timezone     string        `db:"timezone" json:"timezone"`
	Events       []EventRecord `db:"-" json:"events"`
}
