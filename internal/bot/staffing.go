package bot

import (
	"context"
	"fmt"
	"strings"

	"venuebot/internal/scheduling"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleShift(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub, opts := subcommand(i.ApplicationCommandData())
	ctx := b.ctx

	var msg string
	err := b.withGuild(ctx, i.GuildID, func(g *guildState) error {
		ev, err := eventFromOptions(g, opts)
		if err != nil {
			return err
		}
		if err := g.mgr.CheckEditable(ev); err != nil {
			return err
		}
		switch sub {
		case "add":
			p := &prompter{bot: b, s: s, i: i, guild: g}
			var br *scheduling.ShiftBracket
			br, err = addShift(ctx, ev, opts, p)
			if err == nil {
				msg = fmt.Sprintf("Added the %s shift to %s", br.Range(), eventLabel(ev))
			}
		case "edit":
			msg, err = editShift(ctx, ev, opts)
		case "remove":
			var id int64
			if id, err = opts.id("shift"); err == nil {
				err = ev.RemoveShiftBracket(ctx, id)
				msg = "Removed the shift and its signups"
			}
		case "assign":
			msg, err = b.assign(ctx, s, g, ev, opts)
		case "unassign":
			msg, err = unassign(ctx, g, ev, opts)
		default:
			err = scheduling.Validationf("unknown subcommand %q", sub)
		}
		return err
	})
	finish(s, i, msg, err)
}

// clockPicker supplies times for the shift workflow.
type clockPicker interface {
	chooseClock(ctx context.Context, label string, hours []int) (scheduling.Clock, error)
}

// addShift runs the bracket workflow. Times given as options are used
// directly, the rest are asked for.
func addShift(ctx context.Context, ev *scheduling.Event, opts options, picker clockPicker) (*scheduling.ShiftBracket, error) {
	w, err := ev.NewBracketWorkflow()
	if err != nil {
		return nil, err
	}
	defer w.Cancel()

	pick := func(name string) (scheduling.Clock, error) {
		if opts.has(name) {
			return scheduling.ParseClock(opts.string(name))
		}
		return picker.chooseClock(ctx, name, w.HourOptions())
	}

	start, err := pick("start")
	if err != nil {
		return nil, err
	}
	if err := w.SetStart(start); err != nil {
		return nil, err
	}
	end, err := pick("end")
	if err != nil {
		return nil, err
	}
	if err := w.SetEnd(end); err != nil {
		return nil, err
	}
	return w.Commit(ctx)
}

func editShift(ctx context.Context, ev *scheduling.Event, opts options) (string, error) {
	id, err := opts.id("shift")
	if err != nil {
		return "", err
	}
	br, ok := ev.Bracket(id)
	if !ok {
		return "", scheduling.Validationf("that shift no longer exists")
	}
	if !opts.has("start") && !opts.has("end") {
		return "Nothing to change.", nil
	}
	start, end := scheduling.ClockOf(br.Start), scheduling.ClockOf(br.End)
	if opts.has("start") {
		if start, err = scheduling.ParseClock(opts.string("start")); err != nil {
			return "", err
		}
	}
	if opts.has("end") {
		if end, err = scheduling.ParseClock(opts.string("end")); err != nil {
			return "", err
		}
	}
	if err := ev.RetimeBracket(ctx, id, start, end); err != nil {
		return "", err
	}
	return "The shift now runs " + br.Range(), nil
}

// staffFor returns the roster entry of a Discord user, creating it when
// create is set.
func (b *Bot) staffFor(ctx context.Context, s *discordgo.Session, g *guildState, u *discordgo.User, create bool) (*scheduling.StaffMember, error) {
	if m, ok := g.mgr.Roster().StaffByUser(u.ID); ok {
		return m, nil
	}
	if !create {
		return nil, scheduling.Validationf("%s is not on the staff roster", "<@"+u.ID+">")
	}
	name := u.Username
	if member, err := s.GuildMember(g.mgr.GuildID(), u.ID); err == nil {
		name = memberName(member, member.User)
	}
	rec, err := b.db.GetOrCreateStaff(ctx, g.mgr.GuildID(), u.ID, name)
	if err != nil {
		return nil, err
	}
	m := staffFromRecord(rec)
	g.mgr.Roster().PutStaff(m)
	return m, nil
}

func (b *Bot) assign(ctx context.Context, s *discordgo.Session, g *guildState, ev *scheduling.Event, opts options) (string, error) {
	slot, err := opts.id("slot")
	if err != nil {
		return "", err
	}
	shift, err := opts.id("shift")
	if err != nil {
		return "", err
	}
	staff, err := b.staffFor(ctx, s, g, opts["user"].UserValue(nil), true)
	if err != nil {
		return "", err
	}
	signup, err := ev.Assign(ctx, slot, staff.ID, shift)
	if err != nil {
		return "", err
	}
	br, _ := ev.Bracket(signup.BracketID)
	return fmt.Sprintf("Assigned %s to the %s shift", staff.Mention(), br.Range()), nil
}

func unassign(ctx context.Context, g *guildState, ev *scheduling.Event, opts options) (string, error) {
	slot, err := opts.id("slot")
	if err != nil {
		return "", err
	}
	ep, ok := ev.Position(slot)
	if !ok {
		return "", scheduling.Validationf("that position is not part of this event")
	}
	u := opts["user"].UserValue(nil)
	staff, ok := g.mgr.Roster().StaffByUser(u.ID)
	if !ok {
		return "", scheduling.Validationf("%s is not on the staff roster", "<@"+u.ID+">")
	}
	held := ep.SignupsFor(staff.ID)
	if len(held) == 0 {
		return "", scheduling.Validationf("%s is not signed up for that position", staff.Mention())
	}
	for _, signup := range held {
		if err := ev.Unassign(ctx, signup.ID); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Removed %s from %d shift(s)", staff.Mention(), len(held)), nil
}

func (b *Bot) handleStaffing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub, opts := subcommand(i.ApplicationCommandData())
	ctx := b.ctx

	var msg string
	err := b.withGuild(ctx, i.GuildID, func(g *guildState) error {
		ev, err := eventFromOptions(g, opts)
		if err != nil {
			return err
		}
		if err := g.mgr.CheckEditable(ev); err != nil {
			return err
		}
		if sub == "add" {
			positionID, err := opts.id("position")
			if err != nil {
				return err
			}
			quantity, _ := opts.int("quantity")
			ep, err := ev.AddPosition(ctx, positionID, quantity, opts.string("emoji"))
			if err != nil {
				return err
			}
			msg = fmt.Sprintf("%s now needs %s", eventLabel(ev), slotLabel(g.mgr.Roster(), ep))
			return nil
		}

		slot, err := opts.id("slot")
		if err != nil {
			return err
		}
		switch sub {
		case "quantity":
			quantity, _ := opts.int("quantity")
			if err := ev.SetPositionQuantity(ctx, slot, quantity); err != nil {
				return err
			}
			msg = fmt.Sprintf("Now %d per shift", quantity)
		case "emoji":
			ep, ok := ev.Position(slot)
			if !ok {
				return scheduling.Validationf("that position is not part of this event")
			}
			if err := ep.SetEmoji(ctx, opts.string("emoji")); err != nil {
				return err
			}
			if err := ev.UpdatePostComponents(ctx); err != nil {
				return err
			}
			msg = "Updated the signup button"
		case "remove":
			if err := ev.RemovePosition(ctx, slot); err != nil {
				return err
			}
			msg = "Removed the position and its signups"
		default:
			return scheduling.Validationf("unknown subcommand %q", sub)
		}
		return nil
	})
	finish(s, i, msg, err)
}

// handleSignupButton toggles the clicking member on a position of a posted
// event.
func (b *Bot) handleSignupButton(s *discordgo.Session, i *discordgo.InteractionCreate, positionID int64) {
	if err := deferEphemeral(s, i); err != nil {
		logInteractionError(i, "acknowledging signup", err)
		return
	}
	user := interactionUser(i)
	if user == nil || i.GuildID == "" {
		editResponse(s, i, "Error: Signups only work inside a server")
		return
	}
	ctx := b.ctx

	var msg string
	err := b.withGuild(ctx, i.GuildID, func(g *guildState) error {
		ev, ok := g.mgr.EventByPosition(positionID)
		if !ok {
			return scheduling.StaleReference("this event no longer exists", nil)
		}
		if err := g.mgr.CheckEditable(ev); err != nil {
			return err
		}
		staff, ok := g.mgr.Roster().StaffByUser(user.ID)
		if !ok {
			return scheduling.Validationf("you are not on the staff roster yet, ask a manager to add you")
		}
		res, err := ev.ToggleUserSignup(ctx, positionID, staff, &prompter{bot: b, s: s, i: i, guild: g})
		if err != nil {
			return err
		}
		var ranges []string
		for _, signup := range res.Added {
			if br, ok := ev.Bracket(signup.BracketID); ok {
				ranges = append(ranges, br.Range())
			}
		}
		msg = signupSummary(eventLabel(ev), res.Removed, ranges)
		return nil
	})
	finish(s, i, msg, err)
}

func signupSummary(event string, removed int, ranges []string) string {
	if removed > 0 {
		return fmt.Sprintf("Removed you from %d shift(s) of %s.", removed, event)
	}
	return fmt.Sprintf("Signed up for %s: %s", event, strings.Join(ranges, ", "))
}
