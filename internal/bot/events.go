package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"venuebot/internal/ics"
	"venuebot/internal/scheduling"
	"venuebot/internal/web"

	"github.com/bwmarrin/discordgo"
)

// eventFromOptions resolves the autocompleted event option.
func eventFromOptions(g *guildState, opts options) (*scheduling.Event, error) {
	id, err := opts.id("event")
	if err != nil {
		return nil, err
	}
	ev, ok := g.mgr.Event(id)
	if !ok {
		return nil, scheduling.Validationf("that event no longer exists")
	}
	return ev, nil
}

// finish reports the outcome of a deferred command.
func finish(s *discordgo.Session, i *discordgo.InteractionCreate, msg string, err error) {
	if err != nil {
		reportError(s, i, err)
		return
	}
	respondWithSuccess(s, i, msg)
}

func (b *Bot) handleEvent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub, opts := subcommand(i.ApplicationCommandData())
	ctx := b.ctx

	if sub == "calendar" {
		b.handleCalendar(s, i)
		return
	}

	var msg string
	var preview *discordgo.MessageEmbed
	err := b.withGuild(ctx, i.GuildID, func(g *guildState) error {
		if sub == "create" {
			var err error
			msg, err = createEvent(ctx, g, opts)
			return err
		}
		if sub == "list" {
			msg = listEvents(g.mgr)
			return nil
		}

		ev, err := eventFromOptions(g, opts)
		if err != nil {
			return err
		}
		switch sub {
		case "edit":
			msg, err = editEvent(ctx, ev, opts)
		case "schedule":
			msg, err = scheduleEvent(ctx, g, ev, opts)
		case "note", "link":
			kind := scheduling.ElementKind(sub)
			value := opts.string("text")
			if kind == scheduling.ElementLink {
				value = opts.string("url")
			}
			err = ev.AddElement(ctx, kind, scheduling.Element{Title: opts.string("title"), Value: value})
			msg = fmt.Sprintf("Added %s **%s** to %s", sub, opts.string("title"), eventLabel(ev))
		case "clear":
			msg, err = clearElements(ctx, ev, scheduling.ElementKind(opts.string("kind")))
		case "post":
			channelID := g.mgr.ChannelID()
			if opt, ok := opts["channel"]; ok {
				channelID = opt.ChannelValue(nil).ID
			}
			if err = ev.Post(ctx, channelID); err == nil {
				msg = "Posted " + eventLabel(ev)
				if ref := ev.PostRef(); ref != nil {
					msg += ": " + ref.JumpURL()
				}
			}
		case "unpost":
			err = ev.Unpost(ctx)
			msg = "Removed the post of " + eventLabel(ev)
		case "preview":
			preview = renderEmbed(ev.View())
			msg = fmt.Sprintf("Preview of %s (%s)", eventLabel(ev), ev.State())
		case "delete":
			label := eventLabel(ev)
			err = g.mgr.RemoveEvent(ctx, ev.ID(), &prompter{bot: b, s: s, i: i, guild: g})
			msg = "Deleted " + label
		default:
			err = scheduling.Validationf("unknown subcommand %q", sub)
		}
		return err
	})
	if err == nil && preview != nil {
		embeds := []*discordgo.MessageEmbed{preview}
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg, Embeds: &embeds}); err != nil {
			logInteractionError(i, "sending preview", err)
		}
		return
	}
	finish(s, i, msg, err)
}

func createEvent(ctx context.Context, g *guildState, opts options) (string, error) {
	name := opts.string("name")
	if name == "" {
		return "", scheduling.Validationf("the event needs a name")
	}
	timed := opts.has("date") || opts.has("start") || opts.has("end")
	if timed && !(opts.has("date") && opts.has("start") && opts.has("end")) {
		return "", scheduling.Validationf("give the date, start and end together, or none of them")
	}
	ev, err := g.mgr.CreateEvent(ctx)
	if err != nil {
		return "", err
	}
	if err := ev.Rename(ctx, name); err != nil {
		return "", err
	}
	if d := opts.string("description"); d != "" {
		if err := ev.SetDescription(ctx, d); err != nil {
			return "", err
		}
	}
	if timed {
		start, end, err := parseSchedule(opts.string("date"), opts.string("start"), opts.string("end"), g.mgr.Location())
		if err != nil {
			return "", err
		}
		if err := ev.SetSchedule(ctx, start, end); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Created %s. Add shifts with `/shift add` and positions with `/staffing add`.", eventLabel(ev)), nil
}

func editEvent(ctx context.Context, ev *scheduling.Event, opts options) (string, error) {
	var changed []string
	if opts.has("name") {
		if err := ev.Rename(ctx, opts.string("name")); err != nil {
			return "", err
		}
		changed = append(changed, "name")
	}
	if opts.has("description") {
		if err := ev.SetDescription(ctx, opts.string("description")); err != nil {
			return "", err
		}
		changed = append(changed, "description")
	}
	if opts.has("image") {
		if err := ev.SetImageURL(ctx, opts.string("image")); err != nil {
			return "", err
		}
		changed = append(changed, "image")
	}
	if len(changed) == 0 {
		return "Nothing to change.", nil
	}
	return fmt.Sprintf("Updated the %s of %s", strings.Join(changed, " and "), eventLabel(ev)), nil
}

func scheduleEvent(ctx context.Context, g *guildState, ev *scheduling.Event, opts options) (string, error) {
	if err := g.mgr.CheckEditable(ev); err != nil {
		return "", err
	}
	start, end, err := parseSchedule(opts.string("date"), opts.string("start"), opts.string("end"), g.mgr.Location())
	if err != nil {
		return "", err
	}
	if err := ev.SetSchedule(ctx, start, end); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s now runs %s - %s", eventLabel(ev),
		ev.Start().Format("Mon 01/02 15:04"), ev.End().Format("15:04")), nil
}

func clearElements(ctx context.Context, ev *scheduling.Event, kind scheduling.ElementKind) (string, error) {
	n := len(ev.Elements(kind))
	for k := n - 1; k >= 0; k-- {
		if err := ev.RemoveElement(ctx, kind, k); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Removed %d %s(s) from %s", n, kind, eventLabel(ev)), nil
}

func listEvents(mgr *scheduling.Manager) string {
	events := mgr.Events()
	if len(events) == 0 {
		return "No events yet. Create one with `/event create`."
	}
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		when := "unscheduled"
		coverage := "-"
		if ev.HasTimes() {
			when = ev.Start().Format("Mon 01/02 15:04")
			coverage = fmt.Sprintf("%d%%", ev.CoveredMinutes()*100/max(ev.DurationMinutes(), 1))
		}
		state := ev.State().String()
		if mgr.IsLockedOut(ev) {
			state += " (locked)"
		}
		rows = append(rows, []string{
			fmt.Sprint(ev.ID()),
			truncateString(ev.Name(), 30),
			when,
			coverage,
			state,
		})
	}
	return formatTable([]string{"ID", "Name", "Starts", "Covered", "Post"}, rows)
}

func (b *Bot) handleCalendar(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var data []byte
	err := b.withGuild(b.ctx, i.GuildID, func(g *guildState) error {
		var err error
		data, err = ics.Export(g.mgr.Events(), ics.Options{
			Name:     getServerName(s, i.GuildID),
			Location: g.mgr.Location(),
			Now:      g.mgr.Now(),
		})
		return err
	})
	if err != nil {
		reportError(s, i, err)
		return
	}
	msg := "Here are the upcoming events."
	if feed := b.config.HTTP; feed.PublicURL != "" && feed.FeedSecret != "" {
		msg += "\nSubscribe to stay up to date: <" + web.FeedURL(feed.PublicURL, feed.FeedSecret, i.GuildID) + ">"
	}
	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &msg,
		Files: []*discordgo.File{{
			Name:        "events.ics",
			ContentType: "text/calendar",
			Reader:      bytes.NewReader(data),
		}},
	})
	if err != nil {
		logInteractionError(i, "sending calendar", err)
	}
}

func (b *Bot) handleTemplate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub, opts := subcommand(i.ApplicationCommandData())
	ctx := b.ctx

	var msg string
	err := b.withGuild(ctx, i.GuildID, func(g *guildState) error {
		switch sub {
		case "save":
			ev, err := eventFromOptions(g, opts)
			if err != nil {
				return err
			}
			t, err := g.mgr.SaveTemplate(ctx, ev.ID(), opts.string("name"))
			if err != nil {
				return err
			}
			msg = fmt.Sprintf("Saved template **%s** with %d shift(s) and %d position(s)", t.Name, len(t.Shifts), len(t.Positions))
			return nil
		case "list":
			msg = listTemplates(g.mgr)
			return nil
		}

		id, err := opts.id("template")
		if err != nil {
			return err
		}
		switch sub {
		case "use":
			var ev *scheduling.Event
			if opts.has("date") {
				day, derr := parseDay(opts.string("date"), g.mgr.Location())
				if derr != nil {
					return derr
				}
				ev, err = g.mgr.NewFromTemplateOn(ctx, id, day)
			} else {
				ev, err = g.mgr.NewFromTemplate(ctx, id)
			}
			if err != nil {
				return err
			}
			msg = "Created " + eventLabel(ev)
		case "recur":
			events, rerr := g.mgr.StampRecurring(ctx, id, opts.string("rule"))
			if rerr != nil && len(events) == 0 {
				return rerr
			}
			msg = recurSummary(events, rerr)
		case "delete":
			if err := g.mgr.RemoveTemplate(ctx, id); err != nil {
				return err
			}
			msg = "Deleted the template"
		default:
			return scheduling.Validationf("unknown subcommand %q", sub)
		}
		return nil
	})
	finish(s, i, msg, err)
}

// recurSummary lists stamped events, noting a failure that stopped the run.
func recurSummary(events []*scheduling.Event, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Created %d event(s):", len(events))
	for _, ev := range events {
		sb.WriteString("\n- " + eventLabel(ev))
	}
	if err != nil {
		sb.WriteString("\nStopped early. " + errorMessage(err))
	}
	return sb.String()
}

func listTemplates(mgr *scheduling.Manager) string {
	templates := mgr.Templates()
	if len(templates) == 0 {
		return "No templates yet. Save one with `/template save`."
	}
	rows := make([][]string, 0, len(templates))
	for _, t := range templates {
		hours := "-"
		if t.HasTimes {
			hours = t.Start.String() + " - " + t.End.String()
		}
		rows = append(rows, []string{
			truncateString(t.Name, 30),
			hours,
			fmt.Sprint(len(t.Shifts)),
			fmt.Sprint(len(t.Positions)),
		})
	}
	return formatTable([]string{"Name", "Hours", "Shifts", "Positions"}, rows)
}
