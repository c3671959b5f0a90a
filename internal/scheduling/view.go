package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// SignupCustomIDPrefix prefixes the custom id of position signup buttons.
const SignupCustomIDPrefix = "event_pos_signup_"

// PostView is a platform-neutral rendering of an event post.
type PostView struct {
	Title       string
	Description string
	ImageURL    string
	ThreadName  string
	Locked      bool
	Fields      []ViewField
	Buttons     []ViewButton
}

type ViewField struct {
	Name   string
	Value  string
	Inline bool
}

type ViewButton struct {
	CustomID string
	Label    string
	Emoji    string
	Full     bool
}

func SignupCustomID(eventPositionID int64) string {
	return SignupCustomIDPrefix + strconv.FormatInt(eventPositionID, 10)
}

// ParseSignupCustomID extracts the event position id of a signup button.
func ParseSignupCustomID(customID string) (int64, bool) {
	rest, ok := strings.CutPrefix(customID, SignupCustomIDPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

var spaces = regexp.MustCompile(`\s+`)

// maxThreadName is Discord's limit on thread names, in runes.
const maxThreadName = 100

// ThreadKey names the forum thread an event is posted to. The name part is
// cut so the key fits in maxThreadName.
func ThreadKey(name string, day string) string {
	name = spaces.ReplaceAllString(strings.TrimSpace(name), " ")
	if name == "" {
		name = "Event"
	}
	suffix := " - " + day
	if r := []rune(name); len(r)+utf8.RuneCountInString(suffix) > maxThreadName {
		name = strings.TrimSpace(string(r[:max(maxThreadName-utf8.RuneCountInString(suffix), 1)]))
	}
	return name + suffix
}

// SameThread compares thread names the way ThreadKey normalizes them.
func SameThread(a, b string) bool {
	norm := func(s string) string { return strings.ToLower(spaces.ReplaceAllString(strings.TrimSpace(s), " ")) }
	return norm(a) == norm(b)
}

// View renders the event with live staffing state.
func (e *Event) View() PostView {
	v := PostView{
		Title:       e.name,
		Description: e.description,
		ImageURL:    e.imageURL,
		Locked:      e.LockedOut(),
	}
	if v.Title == "" {
		v.Title = "Untitled event"
	}
	day := "TBD"
	if e.HasTimes() {
		day = e.Start().Format("01/02")
	}
	v.ThreadName = ThreadKey(e.name, day)

	v.Fields = append(v.Fields, ViewField{Name: "Hours", Value: e.hoursLine(), Inline: true})
	v.Fields = append(v.Fields, ViewField{Name: "Shifts", Value: e.shiftsBlock(), Inline: true})

	brackets := e.Brackets()
	positions := e.sys.roster.PositionLookup()
	staff := e.sys.roster.StaffLookup()
	for _, ep := range e.positions.all() {
		name := "Unknown position"
		if pos, ok := ep.Position(positions); ok {
			name = pos.Name
		}
		title := fmt.Sprintf("%s (%d per shift)", name, ep.Quantity())
		if ep.Emoji() != "" {
			title = ep.Emoji() + " " + title
		}
		var lines []string
		for _, b := range brackets {
			signups := ep.SignupsByBracket(b.ID)
			names := make([]string, 0, len(signups))
			for _, s := range signups {
				if m, ok := s.Staff.Resolve(staff); ok {
					names = append(names, m.Mention())
				} else {
					names = append(names, "unknown")
				}
			}
			who := "open"
			if len(names) > 0 {
				who = strings.Join(names, ", ")
			}
			lines = append(lines, fmt.Sprintf("`%s` %d/%d %s", b.Range(), len(signups), ep.Quantity(), who))
		}
		if len(lines) == 0 {
			lines = append(lines, "No shifts yet")
		}
		v.Fields = append(v.Fields, ViewField{Name: title, Value: strings.Join(lines, "\n")})

		label := name
		full := ep.IsFull(brackets)
		if full {
			label += " (full)"
		}
		v.Buttons = append(v.Buttons, ViewButton{
			CustomID: SignupCustomID(ep.ID()),
			Label:    label,
			Emoji:    ep.Emoji(),
			Full:     full,
		})
	}

	for _, kind := range []ElementKind{ElementNote, ElementLink} {
		els := e.elements[kind]
		if len(els) == 0 {
			continue
		}
		var lines []string
		for _, el := range els {
			if kind == ElementLink {
				lines = append(lines, fmt.Sprintf("[%s](%s)", el.Title, el.Value))
			} else {
				lines = append(lines, fmt.Sprintf("**%s**: %s", el.Title, el.Value))
			}
		}
		name := "Notes"
		if kind == ElementLink {
			name = "Links"
		}
		v.Fields = append(v.Fields, ViewField{Name: name, Value: strings.Join(lines, "\n")})
	}
	if v.Locked {
		v.Fields = append(v.Fields, ViewField{Name: "Status", Value: "Locked: the schedule can no longer be changed"})
	}
	return v
}

func (e *Event) hoursLine() string {
	if !e.HasTimes() {
		return "Not scheduled"
	}
	start, end := e.Start(), e.End()
	return fmt.Sprintf("%s %s - %s (%s)",
		start.Format("Mon 01/02"), ClockOf(start), ClockOf(end), formatDuration(e.DurationMinutes()))
}

func (e *Event) shiftsBlock() string {
	brackets := e.Brackets()
	if len(brackets) == 0 {
		return "No shift brackets"
	}
	var b strings.Builder
	for _, br := range brackets {
		fmt.Fprintf(&b, "%s (%s)\n", br.Range(), formatDuration(br.Length()))
	}
	if e.IsFullyCovered() {
		b.WriteString("✅ Fully covered")
	} else {
		fmt.Fprintf(&b, "⚠️ %s of %s covered", formatDuration(e.CoveredMinutes()), formatDuration(e.DurationMinutes()))
	}
	return b.String()
}
