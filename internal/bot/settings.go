package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"venuebot/internal/db"
	"venuebot/internal/db/models"
	"venuebot/internal/scheduling"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleSchedule(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_, opts := subcommand(i.ApplicationCommandData())
	ctx := b.ctx

	var msg string
	err := b.withGuild(ctx, i.GuildID, func(g *guildState) error {
		if opt, ok := opts["channel"]; ok {
			if err := g.mgr.SetChannel(ctx, opt.ChannelValue(nil).ID); err != nil {
				return err
			}
		}
		if minutes, ok := opts.int("lockout"); ok {
			if err := g.mgr.SetLockout(ctx, minutes); err != nil {
				return err
			}
		}
		if opts.has("timezone") {
			if err := g.mgr.SetTimezone(ctx, opts.string("timezone")); err != nil {
				return err
			}
		}
		msg = describeSettings(g.mgr)
		return nil
	})
	finish(s, i, msg, err)
}

func describeSettings(mgr *scheduling.Manager) string {
	channel := "not set"
	if id := mgr.ChannelID(); id != "" {
		channel = "<#" + id + ">"
	}
	return fmt.Sprintf("**Scheduling settings**\nChannel: %s\nLockout: %d minutes before start\nTimezone: %s",
		channel, int(mgr.Lockout().Minutes()), mgr.Location())
}

func (b *Bot) handlePosition(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub, opts := subcommand(i.ApplicationCommandData())
	ctx := b.ctx

	var msg string
	err := b.withGuild(ctx, i.GuildID, func(g *guildState) error {
		switch sub {
		case "add":
			rec := models.PositionRecord{GuildID: i.GuildID, Name: opts.string("name")}
			if rec.Name == "" {
				return scheduling.Validationf("the position needs a name")
			}
			if opt, ok := opts["role"]; ok {
				rec.RoleID = opt.RoleValue(nil, "").ID
			}
			if salary, ok := opts.float("salary"); ok {
				rec.HourlySalary = salary
			}
			rec, err := b.db.CreatePosition(ctx, rec)
			if errors.Is(err, db.ErrDuplicate) {
				return scheduling.Validationf("a position named %q already exists", rec.Name)
			}
			if err != nil {
				return err
			}
			g.mgr.Roster().PutPosition(positionFromRecord(rec))
			msg = fmt.Sprintf("Created the position **%s**", rec.Name)
		case "list":
			msg = listPositions(g.mgr.Roster())
		default:
			return scheduling.Validationf("unknown subcommand %q", sub)
		}
		return nil
	})
	finish(s, i, msg, err)
}

func listPositions(roster *scheduling.Roster) string {
	positions := roster.Positions()
	if len(positions) == 0 {
		return "No positions yet. Create one with `/position add`."
	}
	rows := make([][]string, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, []string{p.Name, fmt.Sprintf("%.2f", p.HourlySalary)})
	}
	return formatTable([]string{"Position", "Hourly"}, rows)
}

func (b *Bot) handleStaff(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub, opts := subcommand(i.ApplicationCommandData())
	ctx := b.ctx

	var msg string
	err := b.withGuild(ctx, i.GuildID, func(g *guildState) error {
		if sub == "list" {
			msg = listStaff(g.mgr.Roster(), g.mgr.Roster().Positions())
			return nil
		}
		positionID, err := opts.id("position")
		if err != nil {
			return err
		}
		pos, ok := g.mgr.Roster().Position(positionID)
		if !ok {
			return scheduling.Validationf("that position does not exist")
		}
		staff, err := b.staffFor(ctx, s, g, opts["user"].UserValue(nil), sub == "qualify")
		if err != nil {
			return err
		}
		switch sub {
		case "qualify":
			err = b.setQualified(ctx, g, staff, pos.ID, true)
			msg = fmt.Sprintf("%s can now sign up as %s", staff.Mention(), pos.Name)
		case "unqualify":
			err = b.setQualified(ctx, g, staff, pos.ID, false)
			msg = fmt.Sprintf("%s can no longer sign up as %s", staff.Mention(), pos.Name)
		default:
			err = scheduling.Validationf("unknown subcommand %q", sub)
		}
		return err
	})
	finish(s, i, msg, err)
}

// setQualified persists the member's new position set before updating the
// roster.
func (b *Bot) setQualified(ctx context.Context, g *guildState, staff *scheduling.StaffMember, positionID int64, qualified bool) error {
	next := qualifications(staff.Positions, positionID, qualified)
	if err := b.db.SetStaffPositions(ctx, staff.ID, next); err != nil {
		return err
	}
	updated := *staff
	updated.Positions = next
	g.mgr.Roster().PutStaff(&updated)
	return nil
}

// qualifications returns a copy of current with positionID added or removed.
func qualifications(current []int64, positionID int64, qualified bool) []int64 {
	next := make([]int64, 0, len(current)+1)
	for _, id := range current {
		if id != positionID {
			next = append(next, id)
		}
	}
	if qualified {
		next = append(next, positionID)
	}
	slices.Sort(next)
	return next
}

func listStaff(roster *scheduling.Roster, positions []*scheduling.Position) string {
	var lines []string
	for _, p := range positions {
		var names []string
		for _, m := range roster.QualifiedStaff(p.ID) {
			names = append(names, m.Mention())
		}
		if len(names) == 0 {
			names = append(names, "nobody")
		}
		lines = append(lines, fmt.Sprintf("**%s**: %s", p.Name, strings.Join(names, ", ")))
	}
	if len(lines) == 0 {
		return "No positions yet. Create one with `/position add`."
	}
	return strings.Join(lines, "\n")
}
