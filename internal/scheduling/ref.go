package scheduling

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup resolves entities owned by some registry.
type Lookup[T any] interface {
	Get(id int64) (T, bool)
}

// Index is an id-keyed Lookup.
type Index[T any] map[int64]T

func (ix Index[T]) Get(id int64) (T, bool) {
	v, ok := ix[id]
	return v, ok
}

// Ref is a weak reference by id. The referenced entity stays owned by its
// registry and is looked up on every access.
type Ref[T any] struct {
	ID int64
}

func (r Ref[T]) Valid() bool { return r.ID != 0 }

func (r Ref[T]) Resolve(l Lookup[T]) (T, bool) {
	var zero T
	if !r.Valid() || l == nil {
		return zero, false
	}
	return l.Get(r.ID)
}

// MessageRef locates a posted message.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

const jumpPrefix = "https://discord.com/channels/"

// JumpURL renders the reference as a message link, the form it is persisted in.
func (m MessageRef) JumpURL() string {
	return fmt.Sprintf("%s%s/%s/%s", jumpPrefix, m.GuildID, m.ChannelID, m.MessageID)
}

// ParseJumpURL is the inverse of JumpURL.
func ParseJumpURL(url string) (MessageRef, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(url), jumpPrefix)
	if !ok {
		// older links used the discordapp.com host
		rest, ok = strings.CutPrefix(strings.TrimSpace(url), "https://discordapp.com/channels/")
	}
	if !ok {
		return MessageRef{}, fmt.Errorf("not a message link: %q", url)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return MessageRef{}, fmt.Errorf("malformed message link: %q", url)
	}
	return MessageRef{GuildID: parts[0], ChannelID: parts[1], MessageID: parts[2]}, nil
}

// Discord snowflakes are persisted as bigint.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return id, err == nil && id > 0
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
