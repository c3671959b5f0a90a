package bot

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"venuebot/internal/scheduling"

	"github.com/bwmarrin/discordgo"
)

func opt(name string, value any) *discordgo.ApplicationCommandInteractionDataOption {
	typ := discordgo.ApplicationCommandOptionString
	if _, ok := value.(float64); ok {
		typ = discordgo.ApplicationCommandOptionInteger
	}
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: typ, Value: value}
}

func TestSubcommandOptions(t *testing.T) {
	data := discordgo.ApplicationCommandInteractionData{
		Name: "staffing",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{{
			Name: "add",
			Type: discordgo.ApplicationCommandOptionSubCommand,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				opt("event", "101"),
				opt("quantity", float64(2)),
				opt("emoji", "  🍸 "),
				opt("position", "Bartender"),
			},
		}},
	}
	sub, opts := subcommand(data)
	if sub != "add" {
		t.Fatalf("subcommand = %q", sub)
	}
	if id, err := opts.id("event"); err != nil || id != 101 {
		t.Errorf("id(event) = %d, %v", id, err)
	}
	if n, ok := opts.int("quantity"); !ok || n != 2 {
		t.Errorf("int(quantity) = %d, %v", n, ok)
	}
	if got := opts.string("emoji"); got != "🍸" {
		t.Errorf("string(emoji) = %q", got)
	}
	if _, err := opts.id("position"); scheduling.UserMessage(err) != "pick a position from the list" {
		t.Errorf("id of free text: %v", err)
	}
	if _, ok := opts.int("missing"); ok || opts.has("missing") || opts.string("missing") != "" {
		t.Error("missing option reported present")
	}

	got := strings.Join(flattenOption(data.Options[0]), " ")
	if got != "add event:101 quantity:2 emoji:  🍸  position:Bartender" {
		t.Errorf("flattenOption = %q", got)
	}
}

func TestFocused(t *testing.T) {
	typing := opt("slot", "bar")
	typing.Focused = true
	data := discordgo.ApplicationCommandInteractionData{
		Options: []*discordgo.ApplicationCommandInteractionDataOption{{
			Name:    "remove",
			Type:    discordgo.ApplicationCommandOptionSubCommand,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{opt("event", "101"), typing},
		}},
	}
	if f := focused(data); f != typing {
		t.Errorf("focused = %v", f)
	}
	if f := focused(discordgo.ApplicationCommandInteractionData{}); f != nil {
		t.Errorf("focused of nothing = %v", f)
	}
}

func TestParseSchedule(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("no tzdata:", err)
	}
	tests := []struct {
		date, start, end string
		wantStart        time.Time
		wantEnd          time.Time
	}{
		{"2024-03-02", "20:00", "23:30",
			time.Date(2024, 3, 2, 20, 0, 0, 0, loc), time.Date(2024, 3, 2, 23, 30, 0, 0, loc)},
		{"2024-03-02", "20:00", "02:00",
			time.Date(2024, 3, 2, 20, 0, 0, 0, loc), time.Date(2024, 3, 3, 2, 0, 0, 0, loc)},
		{"2024-03-02", "20:00", "20:00",
			time.Date(2024, 3, 2, 20, 0, 0, 0, loc), time.Date(2024, 3, 3, 20, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		start, end, err := parseSchedule(tt.date, tt.start, tt.end, loc)
		if err != nil {
			t.Errorf("parseSchedule(%s %s-%s): %v", tt.date, tt.start, tt.end, err)
			continue
		}
		if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
			t.Errorf("parseSchedule(%s %s-%s) = %v - %v", tt.date, tt.start, tt.end, start, end)
		}
	}

	for _, bad := range [][3]string{
		{"03/02/2024", "20:00", "23:00"},
		{"2024-03-02", "8pm", "23:00"},
		{"2024-03-02", "20:00", "25:00"},
	} {
		if _, _, err := parseSchedule(bad[0], bad[1], bad[2], loc); scheduling.KindOf(err) != scheduling.KindValidation {
			t.Errorf("parseSchedule(%v): err = %v", bad, err)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{scheduling.Validationf("the shift is already full"), "Error: The shift is already full"},
		{scheduling.StaleReference("the event post no longer exists", nil), "Error: The event post no longer exists"},
		{scheduling.PermissionDenied("I am missing permissions for the event post", nil), "Error: I am missing permissions for the event post"},
		{fmt.Errorf("update: %w", scheduling.ErrLockedOut), "Error: " + capitalize(scheduling.UserMessage(scheduling.ErrLockedOut))},
		{errors.New("boom"), "Error: An internal error occurred"},
	}
	for _, tt := range tests {
		if got := errorMessage(tt.err); got != tt.want {
			t.Errorf("errorMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
	if capitalize("") != "" {
		t.Error("capitalize of an empty string")
	}
}

func TestQualifications(t *testing.T) {
	current := []int64{3, 1}
	if got := qualifications(current, 2, true); fmt.Sprint(got) != "[1 2 3]" {
		t.Errorf("add = %v", got)
	}
	if got := qualifications(current, 3, false); fmt.Sprint(got) != "[1]" {
		t.Errorf("remove = %v", got)
	}
	if got := qualifications(current, 1, true); fmt.Sprint(got) != "[1 3]" {
		t.Errorf("re-add = %v", got)
	}
	if fmt.Sprint(current) != "[3 1]" {
		t.Errorf("input was modified: %v", current)
	}
}

func TestSignupSummary(t *testing.T) {
	if got := signupSummary("Friday", 2, nil); got != "Removed you from 2 shift(s) of Friday." {
		t.Errorf("got %q", got)
	}
	if got := signupSummary("Friday", 0, []string{"20:00 - 23:00", "23:00 - 02:00"}); got != "Signed up for Friday: 20:00 - 23:00, 23:00 - 02:00" {
		t.Errorf("got %q", got)
	}
}

func TestFormatTable(t *testing.T) {
	got := formatTable([]string{"ID", "Name"}, [][]string{{"101", "Friday"}, {"7", "Sat"}})
	want := "```\n" +
		"ID   Name    \n" +
		"-------------\n" +
		"101  Friday  \n" +
		"7    Sat     \n" +
		"```"
	if got != want {
		t.Errorf("formatTable =\n%s\nwant\n%s", got, want)
	}
}

func TestMemberName(t *testing.T) {
	u := &discordgo.User{ID: "1", Username: "alice"}
	if got := memberName(&discordgo.Member{Nick: "Ali"}, u); got != "Ali" {
		t.Errorf("got %q", got)
	}
	if got := memberName(&discordgo.Member{}, u); got != "alice" {
		t.Errorf("got %q", got)
	}
	if got := memberName(nil, nil); got != "unknown" {
		t.Errorf("got %q", got)
	}
}
