package bot

import (
	"context"
	"errors"
	"net/http"

	appLog "venuebot/internal/log"
	"venuebot/internal/scheduling"

	"github.com/bwmarrin/discordgo"
)

// poster publishes event posts to text channels, or to forum channels as one
// thread per event.
type poster struct {
	s       *discordgo.Session
	guildID string
}

var _ scheduling.Poster = (*poster)(nil)

func newPoster(s *discordgo.Session, guildID string) *poster {
	return &poster{s: s, guildID: guildID}
}

func (p *poster) channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := p.s.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return p.s.Channel(channelID)
}

func (p *poster) Publish(ctx context.Context, channelID string, view scheduling.PostView) (scheduling.MessageRef, error) {
	ch, err := p.channel(channelID)
	if err != nil {
		return scheduling.MessageRef{}, mapRESTError("the schedule channel", err)
	}
	msg := &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{renderEmbed(view)},
		Components: renderComponents(view),
	}

	if ch.Type != discordgo.ChannelTypeGuildForum {
		m, err := p.s.ChannelMessageSendComplex(channelID, msg)
		if err != nil {
			return scheduling.MessageRef{}, mapRESTError("the schedule channel", err)
		}
		return scheduling.MessageRef{GuildID: p.guildID, ChannelID: channelID, MessageID: m.ID}, nil
	}

	// reuse an open thread for the same event and day
	if thread := p.findThread(channelID, view.ThreadName); thread != nil {
		m, err := p.s.ChannelMessageSendComplex(thread.ID, msg)
		if err != nil {
			return scheduling.MessageRef{}, mapRESTError("the event thread", err)
		}
		return scheduling.MessageRef{GuildID: p.guildID, ChannelID: thread.ID, MessageID: m.ID}, nil
	}

	thread, err := p.s.ForumThreadStartComplex(channelID, &discordgo.ThreadStart{
		Name:                view.ThreadName,
		AutoArchiveDuration: 10080,
	}, msg)
	if err != nil {
		return scheduling.MessageRef{}, mapRESTError("the schedule forum", err)
	}
	// the starter message of a forum thread shares the thread's id
	return scheduling.MessageRef{GuildID: p.guildID, ChannelID: thread.ID, MessageID: thread.ID}, nil
}

func (p *poster) findThread(forumID, name string) *discordgo.Channel {
	active, err := p.s.GuildThreadsActive(p.guildID)
	if err != nil {
		appLog.Warn("could not list active threads", "guild", p.guildID, "err", err)
		return nil
	}
	for _, t := range active.Threads {
		if t.ParentID == forumID && scheduling.SameThread(t.Name, name) {
			return t
		}
	}
	return nil
}

func (p *poster) Edit(ctx context.Context, ref scheduling.MessageRef, view scheduling.PostView) error {
	_, err := p.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         ref.MessageID,
		Channel:    ref.ChannelID,
		Embeds:     []*discordgo.MessageEmbed{renderEmbed(view)},
		Components: renderComponents(view),
	})
	if err != nil {
		return mapRESTError("the event post", err)
	}
	return nil
}

func (p *poster) Delete(ctx context.Context, ref scheduling.MessageRef) error {
	if ref.ChannelID == ref.MessageID {
		// forum starter message: remove the whole thread
		if _, err := p.s.ChannelDelete(ref.ChannelID); err != nil {
			return mapRESTError("the event thread", err)
		}
		return nil
	}
	if err := p.s.ChannelMessageDelete(ref.ChannelID, ref.MessageID); err != nil {
		return mapRESTError("the event post", err)
	}
	return nil
}

// mapRESTError classifies Discord failures into scheduling error kinds.
func mapRESTError(what string, err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
			return scheduling.StaleReference(what+" no longer exists", err)
		case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
			return scheduling.PermissionDenied("I am missing permissions for "+what, err)
		}
	}
	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return scheduling.StaleReference(what+" no longer exists", err)
		case http.StatusForbidden:
			return scheduling.PermissionDenied("I am missing permissions for "+what, err)
		}
	}
	return err
}
