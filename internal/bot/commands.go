package bot

import (
	"fmt"
	"strconv"
	"strings"

	appLog "venuebot/internal/log"
	"venuebot/internal/scheduling"

	"github.com/bwmarrin/discordgo"
)

var adminPermission = int64(discordgo.PermissionManageServer)

func eventOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         "event",
		Description:  "Select an event",
		Required:     required,
		Autocomplete: true,
	}
}

func templateOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         "template",
		Description:  "Select a template",
		Required:     true,
		Autocomplete: true,
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func autocompleteOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         name,
		Description:  description,
		Required:     true,
		Autocomplete: true,
	}
}

func subCommand(name, description string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     opts,
	}
}

var (
	minQuantity = float64(1)
	minZero  = float64(0)

	commands = []*discordgo.ApplicationCommand{
		{
			Name:                     "event",
			Description:              "Create and manage events",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subCommand("create", "Create a new event",
					stringOption("name", "Event name", true),
					stringOption("date", "Date (format: YYYY-MM-DD)", false),
					stringOption("start", "Start time (format: HH:MM)", false),
					stringOption("end", "End time (format: HH:MM)", false),
					stringOption("description", "Event description", false),
				),
				subCommand("edit", "Change the details of an event",
					eventOption(true),
					stringOption("name", "New name", false),
					stringOption("description", "New description", false),
					stringOption("image", "Image URL shown on the post", false),
				),
				subCommand("schedule", "Set when an event takes place",
					eventOption(true),
					stringOption("date", "Date (format: YYYY-MM-DD)", true),
					stringOption("start", "Start time (format: HH:MM)", true),
					stringOption("end", "End time (format: HH:MM), may be after midnight", true),
				),
				subCommand("note", "Add a note to an event post",
					eventOption(true),
					stringOption("title", "Note title", true),
					stringOption("text", "Note text", true),
				),
				subCommand("link", "Add a link to an event post",
					eventOption(true),
					stringOption("title", "Link title", true),
					stringOption("url", "Link URL", true),
				),
				subCommand("clear", "Remove the notes or links of an event",
					eventOption(true),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "kind",
						Description: "What to remove",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "Notes", Value: string(scheduling.ElementNote)},
							{Name: "Links", Value: string(scheduling.ElementLink)},
						},
					},
				),
				subCommand("post", "Publish an event or refresh its post",
					eventOption(true),
					&discordgo.ApplicationCommandOption{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "Channel to post in (defaults to the schedule channel)",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildForum},
					},
				),
				subCommand("unpost", "Remove the public post of an event", eventOption(true)),
				subCommand("preview", "Show an event the way it will be posted", eventOption(true)),
				subCommand("delete", "Delete an event", eventOption(true)),
				subCommand("list", "List upcoming events"),
				subCommand("calendar", "Download upcoming events as an iCalendar file"),
			},
		},
		{
			Name:                     "shift",
			Description:              "Manage the shifts of an event",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subCommand("add", "Add a shift, leave the times empty to pick them",
					eventOption(true),
					stringOption("start", "Start time (format: HH:MM)", false),
					stringOption("end", "End time (format: HH:MM)", false),
				),
				subCommand("edit", "Move the start or end of a shift",
					eventOption(true),
					autocompleteOption("shift", "Select a shift"),
					stringOption("start", "New start time (format: HH:MM)", false),
					stringOption("end", "New end time (format: HH:MM)", false),
				),
				subCommand("remove", "Remove a shift and its signups",
					eventOption(true),
					autocompleteOption("shift", "Select a shift"),
				),
				subCommand("assign", "Put a staff member on a shift",
					eventOption(true),
					autocompleteOption("slot", "Select an event position"),
					autocompleteOption("shift", "Select a shift"),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "Staff member",
						Required:    true,
					},
				),
				subCommand("unassign", "Take a staff member off a position",
					eventOption(true),
					autocompleteOption("slot", "Select an event position"),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "Staff member",
						Required:    true,
					},
				),
			},
		},
		{
			Name:                     "staffing",
			Description:              "Manage the positions needed at an event",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subCommand("add", "Require a position at an event",
					eventOption(true),
					autocompleteOption("position", "Select a position"),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "quantity",
						Description: "Staff needed per shift",
						Required:    true,
						MinValue:    &minQuantity,
					},
					stringOption("emoji", "Emoji shown on the signup button", false),
				),
				subCommand("quantity", "Change how many staff a position needs",
					eventOption(true),
					autocompleteOption("slot", "Select an event position"),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "quantity",
						Description: "Staff needed per shift",
						Required:    true,
						MinValue:    &minQuantity,
					},
				),
				subCommand("emoji", "Change the signup button emoji",
					eventOption(true),
					autocompleteOption("slot", "Select an event position"),
					stringOption("emoji", "Emoji, leave empty to remove", false),
				),
				subCommand("remove", "Stop requiring a position, removing its signups",
					eventOption(true),
					autocompleteOption("slot", "Select an event position"),
				),
			},
		},
		{
			Name:                     "template",
			Description:              "Reuse event setups",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subCommand("save", "Save an event as a template",
					eventOption(true),
					stringOption("name", "Template name (defaults to the event name)", false),
				),
				subCommand("use", "Create an event from a template",
					templateOption(),
					stringOption("date", "Date (format: YYYY-MM-DD, defaults to today)", false),
				),
				subCommand("recur", "Create events from a template on a recurring schedule",
					templateOption(),
					stringOption("rule", "Recurrence rule, e.g. FREQ=WEEKLY;BYDAY=FR", true),
				),
				subCommand("delete", "Delete a template", templateOption()),
				subCommand("list", "List templates"),
			},
		},
		{
			Name:                     "schedule",
			Description:              "Scheduling settings",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subCommand("settings", "Show or change the scheduling settings",
					&discordgo.ApplicationCommandOption{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "Default channel for event posts",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildForum},
					},
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "lockout",
						Description: "Minutes before an event starts when its schedule locks",
						MinValue:    &minZero,
					},
					stringOption("timezone", "Timezone (e.g., America/New_York, Europe/London)", false),
				),
			},
		},
		{
			Name:                     "position",
			Description:              "Manage staff positions",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subCommand("add", "Create a position",
					stringOption("name", "Position name", true),
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "Role linked to the position",
					},
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionNumber,
						Name:        "salary",
						Description: "Hourly salary",
						MinValue:    &minZero,
					},
				),
				subCommand("list", "List positions"),
			},
		},
		{
			Name:                     "staff",
			Description:              "Manage staff qualifications",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				subCommand("qualify", "Allow a member to sign up for a position",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "Member",
						Required:    true,
					},
					autocompleteOption("position", "Select a position"),
				),
				subCommand("unqualify", "Stop a member from signing up for a position",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "user",
						Description: "Member",
						Required:    true,
					},
					autocompleteOption("position", "Select a position"),
				),
				subCommand("list", "List staff and their positions"),
			},
		},
	}
)

func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		return
	}
	data := i.ApplicationCommandData()
	f := focused(data)
	if f == nil {
		return
	}
	_, opts := subcommand(data)
	input := strings.ToLower(strings.TrimSpace(fmt.Sprint(f.Value)))

	var choices []*discordgo.ApplicationCommandOptionChoice
	err := b.withGuild(b.ctx, i.GuildID, func(g *guildState) error {
		choices = autocompleteChoices(g.mgr, f.Name, opts, input)
		return nil
	})
	if err != nil {
		appLog.Error("error loading guild for autocomplete", err, "guild", i.GuildID)
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
	if err != nil {
		logInteractionError(i, "autocomplete", err)
	}
}

type choice struct {
	label string
	id    int64
}

// autocompleteChoices lists candidates for the focused option, filtered by
// input and capped at Discord's limit of 25.
func autocompleteChoices(mgr *scheduling.Manager, option string, opts options, input string) []*discordgo.ApplicationCommandOptionChoice {
	var candidates []choice
	switch option {
	case "event":
		for _, ev := range mgr.Events() {
			candidates = append(candidates, choice{eventLabel(ev), ev.ID()})
		}
	case "template":
		for _, t := range mgr.Templates() {
			candidates = append(candidates, choice{t.Name, t.ID})
		}
	case "position":
		for _, p := range mgr.Roster().Positions() {
			candidates = append(candidates, choice{p.Name, p.ID})
		}
	case "slot", "shift":
		id, err := strconv.ParseInt(opts.string("event"), 10, 64)
		if err != nil {
			return nil
		}
		ev, ok := mgr.Event(id)
		if !ok {
			return nil
		}
		if option == "shift" {
			for _, br := range ev.Brackets() {
				candidates = append(candidates, choice{br.Range(), br.ID})
			}
			break
		}
		for _, ep := range ev.Positions() {
			candidates = append(candidates, choice{slotLabel(mgr.Roster(), ep), ep.ID()})
		}
	}

	choices := []*discordgo.ApplicationCommandOptionChoice{}
	for _, c := range candidates {
		if input != "" && !strings.Contains(strings.ToLower(c.label), input) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncateString(c.label, 100),
			Value: strconv.FormatInt(c.id, 10),
		})
		if len(choices) >= 25 { // Discord limit
			break
		}
	}
	return choices
}

func eventLabel(ev *scheduling.Event) string {
	name := ev.Name()
	if name == "" {
		name = fmt.Sprintf("Event #%d", ev.ID())
	}
	if !ev.HasTimes() {
		return name + " (unscheduled)"
	}
	return fmt.Sprintf("%s (%s)", name, ev.Start().Format("Mon 01/02 15:04"))
}

func slotLabel(roster *scheduling.Roster, ep *scheduling.EventPosition) string {
	name := "Unknown position"
	if pos, ok := ep.Position(roster.PositionLookup()); ok {
		name = pos.Name
	}
	if ep.Emoji() != "" {
		name = ep.Emoji() + " " + name
	}
	return fmt.Sprintf("%s (%d per shift)", name, ep.Quantity())
}
