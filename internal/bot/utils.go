package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"venuebot/internal/db/models"
	appLog "venuebot/internal/log"
	"venuebot/internal/scheduling"

	"github.com/bwmarrin/discordgo"
)

const dateLayout = "2006-01-02"

// respondWithError answers an interaction that has not been acknowledged yet.
func respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, errMsg string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Error: " + errMsg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logInteractionError(i, "responding with error", err)
	}
}

// deferEphemeral acknowledges a component interaction with a private reply
// to be filled in later.
func deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

// editResponse fills in a deferred response.
func editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg}); err != nil {
		logInteractionError(i, "editing response", err)
	}
}

func respondWithSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	editResponse(s, i, msg)
}

// reportError tells the user why a deferred interaction failed. A cancelled
// operation removes the pending reply instead.
func reportError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	if scheduling.KindOf(err) == scheduling.KindCancelled {
		if derr := s.InteractionResponseDelete(i.Interaction); derr != nil {
			logInteractionError(i, "deleting cancelled response", derr)
		}
		return
	}
	msg := errorMessage(err)
	switch scheduling.KindOf(err) {
	case scheduling.KindValidation, scheduling.KindStaleReference:
		appLog.Debug("rejected interaction", "guild", i.GuildID, "user", interactionUsername(i), "err", err)
	case scheduling.KindPermission:
		appLog.Warn("missing permissions", "guild", i.GuildID, "err", err)
	default:
		appLog.Error("interaction failed", err, "guild", i.GuildID, "user", interactionUsername(i))
	}
	editResponse(s, i, msg)
}

// errorMessage renders err for the initiating user.
func errorMessage(err error) string {
	switch scheduling.KindOf(err) {
	case scheduling.KindValidation, scheduling.KindStaleReference, scheduling.KindPermission:
		return "Error: " + capitalize(scheduling.UserMessage(err))
	case scheduling.KindPersistence:
		return "Error: Could not save changes, please try again"
	default:
		return "Error: An internal error occurred"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func logInteractionError(i *discordgo.InteractionCreate, what string, err error) {
	appLog.Warn("interaction error", "guild", i.GuildID, "while", what, "err", err)
}

// logCommand logs command execution with its flattened options.
func logCommand(i *discordgo.InteractionCreate, commandName string, details ...string) {
	var params []string
	for _, opt := range i.ApplicationCommandData().Options {
		params = append(params, flattenOption(opt)...)
	}
	kv := []any{"guild", i.GuildID, "user", interactionUsername(i), "command", commandName}
	if len(params) > 0 {
		kv = append(kv, "params", strings.Join(params, " "))
	}
	if len(details) > 0 {
		kv = append(kv, "details", strings.Join(details, " "))
	}
	appLog.Info("command executed", kv...)
}

func flattenOption(opt *discordgo.ApplicationCommandInteractionDataOption) []string {
	switch opt.Type {
	case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
		out := []string{opt.Name}
		for _, sub := range opt.Options {
			out = append(out, flattenOption(sub)...)
		}
		return out
	default:
		return []string{fmt.Sprintf("%s:%v", opt.Name, opt.Value)}
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func interactionUsername(i *discordgo.InteractionCreate) string {
	if u := interactionUser(i); u != nil {
		return u.Username
	}
	return "unknown"
}

// memberName prefers the guild nickname.
func memberName(m *discordgo.Member, u *discordgo.User) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u != nil {
		return u.Username
	}
	return "unknown"
}

func getServerName(s *discordgo.Session, guildID string) string {
	if guild, err := s.State.Guild(guildID); err == nil {
		return guild.Name
	}
	if guild, err := s.Guild(guildID); err == nil {
		return guild.Name
	}
	return guildID
}

// options indexes the options of an invoked subcommand by name.
type options map[string]*discordgo.ApplicationCommandInteractionDataOption

// subcommand returns the invoked subcommand name and its options.
func subcommand(data discordgo.ApplicationCommandInteractionData) (string, options) {
	if len(data.Options) == 0 {
		return "", options{}
	}
	sub := data.Options[0]
	if sub.Type != discordgo.ApplicationCommandOptionSubCommand {
		return "", toOptions(data.Options)
	}
	return sub.Name, toOptions(sub.Options)
}

func toOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	out := make(options, len(opts))
	for _, o := range opts {
		out[o.Name] = o
	}
	return out
}

func (o options) has(name string) bool {
	_, ok := o[name]
	return ok
}

// string returns the raw value of a string-like option.
func (o options) string(name string) string {
	opt, ok := o[name]
	if !ok {
		return ""
	}
	if s, ok := opt.Value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func (o options) int(name string) (int, bool) {
	opt, ok := o[name]
	if !ok {
		return 0, false
	}
	switch v := opt.Value.(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

func (o options) float(name string) (float64, bool) {
	opt, ok := o[name]
	if !ok {
		return 0, false
	}
	v, ok := opt.Value.(float64)
	return v, ok
}

// id parses an autocompleted id option.
func (o options) id(name string) (int64, error) {
	raw := o.string(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, scheduling.Validationf("pick a %s from the list", name)
	}
	return id, nil
}

// focused returns the option being typed in an autocomplete interaction.
func focused(data discordgo.ApplicationCommandInteractionData) *discordgo.ApplicationCommandInteractionDataOption {
	var walk func(opts []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption
	walk = func(opts []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
		for _, o := range opts {
			if o.Focused {
				return o
			}
			if f := walk(o.Options); f != nil {
				return f
			}
		}
		return nil
	}
	return walk(data.Options)
}

// parseDay parses a YYYY-MM-DD date in loc.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, scheduling.Validationf("invalid date %q, use YYYY-MM-DD", s)
	}
	return day, nil
}

// parseSchedule combines a date and two clock strings. An end at or before
// the start falls on the next day.
func parseSchedule(date, start, end string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := parseDay(date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := scheduling.ParseClock(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := scheduling.ParseClock(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	startAt := from.On(day)
	endAt := to.On(day)
	if !endAt.After(startAt) {
		endAt = to.On(day.AddDate(0, 0, 1))
	}
	return startAt, endAt, nil
}

func positionFromRecord(p models.PositionRecord) *scheduling.Position {
	return &scheduling.Position{ID: p.ID, Name: p.Name, RoleID: p.RoleID, HourlySalary: p.HourlySalary}
}

func staffFromRecord(s models.StaffRecord) *scheduling.StaffMember {
	return &scheduling.StaffMember{ID: s.ID, UserID: s.UserID, Name: s.Name, Positions: []int64(s.Positions)}
}

// formatTable creates a Discord-friendly table with fixed-width columns
func formatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var result strings.Builder
	result.WriteString("```\n")
	for i, header := range headers {
		result.WriteString(fmt.Sprintf("%-*s", widths[i]+2, header))
	}
	result.WriteString("\n")
	for _, width := range widths {
		result.WriteString(strings.Repeat("-", width+2))
	}
	result.WriteString("\n")
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				result.WriteString(fmt.Sprintf("%-*s", widths[i]+2, cell))
			}
		}
		result.WriteString("\n")
	}
	result.WriteString("```")
	return result.String()
}
