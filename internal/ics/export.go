package ics

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "venuebot/internal/log"
	"venuebot/internal/scheduling"
)

// uidSpace namespaces the stable UIDs of exported events.
var uidSpace = uuid.MustParse("3f0c7a52-9a55-4c1e-8a55-0b6f3c0f6d21")

// Options controls an export. Events that ended before Now are left out;
// a zero Now keeps everything.
type Options struct {
	Name     string
	Location *time.Location
	Now      time.Time
}

// EventUID is the iCalendar UID of an event. It stays the same across
// exports so calendar clients update entries in place.
func EventUID(eventID int64) string {
	return uuid.NewSHA1(uidSpace, []byte(strconv.FormatInt(eventID, 10))).String() + "@venuebot"
}

// Export renders the scheduled events as a PUBLISH calendar.
// Unscheduled events and templates are skipped.
func Export(events []*scheduling.Event, opts Options) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//venuebot//event schedule//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Location != nil {
		cal.SetXWRTimezone(opts.Location.String())
	}

	stamp := opts.Now
	if stamp.IsZero() {
		stamp = time.Now()
	}

	n := 0
	for _, ev := range events {
		if ev.IsTemplate() || !ev.HasTimes() {
			continue
		}
		if !opts.Now.IsZero() && ev.End().Before(opts.Now) {
			continue
		}
		vev := cal.AddEvent(EventUID(ev.ID()))
		vev.SetDtStampTime(stamp)
		vev.SetStartAt(ev.Start())
		vev.SetEndAt(ev.End())
		vev.SetSummary(summary(ev))
		vev.SetStatus(ical.ObjectStatusConfirmed)
		if d := description(ev); d != "" {
			vev.SetDescription(d)
		}
		if ref := ev.PostRef(); ref != nil {
			vev.SetURL(ref.JumpURL())
		}
		n++
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, fmt.Errorf("error serializing calendar: %w", err)
	}
	appLog.Debug("calendar exported", "events", n, "bytes", buf.Len())
	return buf.Bytes(), nil
}

func summary(ev *scheduling.Event) string {
	if ev.Name() == "" {
		return fmt.Sprintf("Event #%d", ev.ID())
	}
	return ev.Name()
}

func description(ev *scheduling.Event) string {
	var parts []string
	if ev.Description() != "" {
		parts = append(parts, ev.Description())
	}
	if brackets := ev.Brackets(); len(brackets) > 0 {
		ranges := make([]string, 0, len(brackets))
		for _, b := range brackets {
			ranges = append(ranges, b.Range())
		}
		parts = append(parts, "Shifts: "+strings.Join(ranges, ", "))
	}
	for _, el := range ev.Elements(scheduling.ElementNote) {
		parts = append(parts, el.Title+": "+el.Value)
	}
	for _, el := range ev.Elements(scheduling.ElementLink) {
		parts = append(parts, el.Title+": "+el.Value)
	}
	return strings.Join(parts, "\n")
}
