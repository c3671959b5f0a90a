package scheduling

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"venuebot/internal/db/models"
	appLog "venuebot/internal/log"
)

// system is the guild-wide context shared by the manager and its events.
type system struct {
	guildID string
	store   Store
	poster  Poster
	roster  *Roster
	loc     *time.Location
	lockout time.Duration
	now     func() time.Time
}

// lockedOut is true iff start - lockout < now.
func (s *system) lockedOut(start time.Time) bool {
	if start.IsZero() {
		return false
	}
	return start.Add(-s.lockout).Before(s.now())
}

// Options configures a Manager. Lockout is how long before its start an
// event locks.
type Options struct {
	GuildID             string
	Store               Store
	Poster              Poster
	Roster              *Roster
	Location            *time.Location
	Lockout             time.Duration
	Now                 func() time.Time
	TemplateHorizonDays int
	MaxRecurrence       int
}

// Manager owns the events and templates of one guild.
type Manager struct {
	sys           *system
	channelID     string
	events        arena[*Event]
	templates     arena[*EventTemplate]
	horizon       time.Duration
	maxRecurrence int
	// lockout state seen by the last RefreshPosts
	locked map[int64]bool
}

func NewManager(opts Options) *Manager {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Roster == nil {
		opts.Roster = NewRoster()
	}
	if opts.TemplateHorizonDays <= 0 {
		opts.TemplateHorizonDays = 60
	}
	if opts.MaxRecurrence <= 0 {
		opts.MaxRecurrence = 12
	}
	return &Manager{
		sys: &system{
			guildID: opts.GuildID,
			store:   opts.Store,
			poster:  opts.Poster,
			roster:  opts.Roster,
			loc:     opts.Location,
			lockout: opts.Lockout,
			now:     opts.Now,
		},
		horizon:       time.Duration(opts.TemplateHorizonDays) * 24 * time.Hour,
		maxRecurrence: opts.MaxRecurrence,
		locked:        make(map[int64]bool),
	}
}

// LoadAll replaces the in-memory state with rec. Event rows flagged as
// templates become templates.
func (m *Manager) LoadAll(rec models.EventSystemRecord) {
	m.sys.lockout = time.Duration(rec.EventLockout) * time.Minute
	m.channelID = ""
	if rec.ChannelID != nil {
		m.channelID = formatID(*rec.ChannelID)
	}
	if rec.Timezone != "" {
		if loc, err := time.LoadLocation(rec.Timezone); err == nil {
			m.sys.loc = loc
		} else {
			appLog.Warn("unknown guild timezone, keeping default", "guild", m.sys.guildID, "tz", rec.Timezone)
		}
	}
	m.events = arena[*Event]{}
	m.templates = arena[*EventTemplate]{}
	for _, er := range rec.Events {
		if er.IsTemplate {
			m.templates.put(er.ID, templateFromRecord(er, m.sys.loc))
			continue
		}
		ev := eventFromRecord(er, m.sys)
		m.events.put(er.ID, ev)
		m.locked[er.ID] = ev.LockedOut()
	}
	appLog.Debug("event system loaded", "guild", m.sys.guildID, "events", m.events.len(), "templates", m.templates.len())
}

func (m *Manager) GuildID() string            { return m.sys.guildID }
func (m *Manager) Roster() *Roster            { return m.sys.roster }
func (m *Manager) Location() *time.Location   { return m.sys.loc }
func (m *Manager) Lockout() time.Duration     { return m.sys.lockout }
func (m *Manager) ChannelID() string          { return m.channelID }
func (m *Manager) Now() time.Time             { return m.sys.now().In(m.sys.loc) }
func (m *Manager) IsLockedOut(ev *Event) bool { return m.sys.lockedOut(ev.start) }

func (m *Manager) Template(id int64) (*EventTemplate, bool) { return m.templates.get(id) }

// CheckEditable rejects structural edits to a locked event.
func (m *Manager) CheckEditable(ev *Event) error {
	if m.IsLockedOut(ev) {
		return ErrLockedOut
	}
	return nil
}

func (m *Manager) SetLockout(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return Validationf("the lockout cannot be negative")
	}
	old := m.sys.lockout
	m.sys.lockout = time.Duration(minutes) * time.Minute
	if err := m.save(ctx); err != nil {
		m.sys.lockout = old
		return err
	}
	return nil
}

func (m *Manager) SetChannel(ctx context.Context, channelID string) error {
	old := m.channelID
	m.channelID = channelID
	if err := m.save(ctx); err != nil {
		m.channelID = old
		return err
	}
	return nil
}

// SetTimezone changes the zone events are displayed and entered in.
// Stored instants are unaffected.
func (m *Manager) SetTimezone(ctx context.Context, name string) error {
	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil || name == "" {
		return Validationf("unknown timezone %q", name)
	}
	old := m.sys.loc
	m.sys.loc = loc
	if err := m.save(ctx); err != nil {
		m.sys.loc = old
		return err
	}
	return nil
}

func (m *Manager) save(ctx context.Context) error {
	if err := m.sys.store.UpdateEventSystem(ctx, m.Record()); err != nil {
		return persistence("update event system", err)
	}
	return nil
}

// Record is the persisted settings row. Events are saved individually.
func (m *Manager) Record() models.EventSystemRecord {
	rec := models.EventSystemRecord{
		GuildID:      m.sys.guildID,
		EventLockout: int(m.sys.lockout / time.Minute),
		Timezone:     m.sys.loc.String(),
	}
	if id, ok := parseID(m.channelID); ok {
		rec.ChannelID = &id
	}
	return rec
}

// Events returns the guild's events, dated ones first by start.
func (m *Manager) Events() []*Event {
	out := m.events.all()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HasTimes() != b.HasTimes() {
			return a.HasTimes()
		}
		return a.start.Before(b.start)
	})
	return out
}

func (m *Manager) Event(id int64) (*Event, bool) { return m.events.get(id) }

// EventByPosition finds the event owning an event position, as referenced
// by signup buttons.
func (m *Manager) EventByPosition(eventPositionID int64) (*Event, bool) {
	for _, ev := range m.events.all() {
		if _, ok := ev.positions.get(eventPositionID); ok {
			return ev, true
		}
	}
	return nil, false
}

// Templates returns the templates sorted by name.
func (m *Manager) Templates() []*EventTemplate {
	out := m.templates.all()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CreateEvent persists a blank event and only then attaches it.
func (m *Manager) CreateEvent(ctx context.Context) (*Event, error) {
	id, err := m.sys.store.CreateEvent(ctx, m.sys.guildID)
	if err != nil {
		return nil, persistence("create event", err)
	}
	ev := newEvent(id, m.sys)
	m.events.put(id, ev)
	return ev, nil
}

// RemoveEvent deletes an event after the user confirms. Its post is deleted
// too; a post that is already gone is ignored.
func (m *Manager) RemoveEvent(ctx context.Context, id int64, confirm Confirmer) error {
	ev, ok := m.events.get(id)
	if !ok {
		return invalid(ErrNotFound, "that event no longer exists")
	}
	ok, err := confirm.Confirm(ctx, "Delete "+displayName(ev.name)+"? This removes its shifts and signups.")
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	// the prompt may have outlived the event
	if _, ok := m.events.get(id); !ok {
		return nil
	}
	if ev.post != nil {
		if err := m.sys.poster.Delete(ctx, *ev.post); err != nil && KindOf(err) != KindStaleReference {
			appLog.Warn("could not delete event post", "event", id, "err", err)
		}
	}
	if err := m.sys.store.DeleteEvent(ctx, id); err != nil {
		return persistence("delete event", err)
	}
	m.events.remove(id)
	delete(m.locked, id)
	return nil
}

// SaveTemplate snapshots an event into a new template.
func (m *Manager) SaveTemplate(ctx context.Context, eventID int64, name string) (*EventTemplate, error) {
	ev, ok := m.events.get(eventID)
	if !ok {
		return nil, invalid(ErrNotFound, "that event no longer exists")
	}
	name = strings.TrimSpace(name)
	if len(name) > maxNameLen {
		return nil, Validationf("the template name can be at most %d characters", maxNameLen)
	}
	snap := ev.Snapshot(name)
	base := m.Now()
	if ev.HasTimes() {
		base = ev.Start()
	}
	row, err := m.stamp(ctx, snap, base, true)
	if err != nil {
		return nil, err
	}
	t := templateFromRecord(row.Record(), m.sys.loc)
	m.templates.put(t.ID, t)
	return t, nil
}

func (m *Manager) RemoveTemplate(ctx context.Context, id int64) error {
	if _, ok := m.templates.get(id); !ok {
		return nil
	}
	if err := m.sys.store.DeleteEvent(ctx, id); err != nil {
		return persistence("delete template", err)
	}
	m.templates.remove(id)
	return nil
}

// NewFromTemplate stamps an event dated today.
func (m *Manager) NewFromTemplate(ctx context.Context, templateID int64) (*Event, error) {
	return m.NewFromTemplateOn(ctx, templateID, m.Now())
}

// NewFromTemplateOn stamps an event starting on day's calendar date.
func (m *Manager) NewFromTemplateOn(ctx context.Context, templateID int64, day time.Time) (*Event, error) {
	t, ok := m.templates.get(templateID)
	if !ok {
		return nil, invalid(ErrNotFound, "that template no longer exists")
	}
	ev, err := m.stamp(ctx, t, day.In(m.sys.loc), false)
	if err != nil {
		return nil, err
	}
	m.events.put(ev.id, ev)
	m.locked[ev.id] = ev.LockedOut()
	return ev, nil
}

// stamp creates an event row and fills it from t. A partially copied row is
// deleted again.
func (m *Manager) stamp(ctx context.Context, t *EventTemplate, day time.Time, asTemplate bool) (*Event, error) {
	id, err := m.sys.store.CreateEvent(ctx, m.sys.guildID)
	if err != nil {
		return nil, persistence("create event", err)
	}
	ev := newEvent(id, m.sys)
	ev.isTemplate = asTemplate
	if err := ev.CopyFrom(ctx, t, day); err != nil {
		if derr := m.sys.store.DeleteEvent(ctx, id); derr != nil {
			appLog.Error("rollback of partial event failed", derr, "event", id)
		}
		return nil, err
	}
	return ev, nil
}

// StampRecurring creates one event per occurrence of an RRULE within the
// template horizon, up to the recurrence cap. Events stamped before a
// failure are kept and returned.
func (m *Manager) StampRecurring(ctx context.Context, templateID int64, rule string) ([]*Event, error) {
	t, ok := m.templates.get(templateID)
	if !ok {
		return nil, invalid(ErrNotFound, "that template no longer exists")
	}
	if !t.HasTimes {
		return nil, ErrTimesUnset
	}
	days, err := m.occurrences(t, rule)
	if err != nil {
		return nil, err
	}
	var out []*Event
	for _, day := range days {
		ev, err := m.NewFromTemplateOn(ctx, templateID, day)
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	appLog.Info("stamped recurring events", "guild", m.sys.guildID, "template", templateID, "count", len(out))
	return out, nil
}

// occurrences walks the rule from now through the horizon and returns at
// most one day per calendar date, stopping at the recurrence cap.
func (m *Manager) occurrences(t *EventTemplate, rule string) ([]time.Time, error) {
	rule = strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:")
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, Validationf("invalid recurrence rule: %v", err)
	}
	if r.OrigOptions.Freq > rrule.DAILY {
		return nil, Validationf("events can repeat at most daily")
	}
	now := m.Now().In(m.sys.loc)
	until := now.Add(m.horizon)
	r.DTStart(t.Start.On(now))

	var days []time.Time
	seen := make(map[string]bool)
	next := r.Iterator()
	for len(days) < m.maxRecurrence {
		day, ok := next()
		if !ok || day.After(until) {
			break
		}
		if day.Before(now) {
			continue
		}
		key := day.In(m.sys.loc).Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		days = append(days, day)
	}
	if len(days) == 0 {
		return nil, Validationf("the rule has no occurrences in the next %d days", int(m.horizon.Hours()/24))
	}
	return days, nil
}

// RefreshPosts re-renders posts that are stale or whose lockout state
// changed since the last call. It returns how many posts were refreshed.
func (m *Manager) RefreshPosts(ctx context.Context) (int, error) {
	n := 0
	var firstErr error
	for _, ev := range m.events.all() {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		locked := ev.LockedOut()
		flipped := locked != m.locked[ev.id]
		m.locked[ev.id] = locked
		if ev.post == nil || (!ev.stale && !flipped) {
			continue
		}
		if err := ev.UpdatePostComponents(ctx); err != nil {
			appLog.Warn("post refresh failed", "guild", m.sys.guildID, "event", ev.id, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n++
	}
	return n, firstErr
}

func displayName(name string) string {
	if name == "" {
		return "this event"
	}
	return "**" + name + "**"
}
