package scheduling

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"venuebot/internal/db/models"
)

var errBoom = errors.New("boom")

type fault struct {
	after int
	err   error
}

// fakeStore keeps rows in maps and can fail selected operations.
type fakeStore struct {
	nextID    int64
	events    map[int64]models.EventRecord
	brackets  map[int64]models.ShiftBracketRecord
	positions map[int64]models.EventPositionRecord
	signups   map[int64]models.EventSignupRecord
	system    models.EventSystemRecord
	faults    map[string]*fault
	calls     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:    100,
		events:    make(map[int64]models.EventRecord),
		brackets:  make(map[int64]models.ShiftBracketRecord),
		positions: make(map[int64]models.EventPositionRecord),
		signups:   make(map[int64]models.EventSignupRecord),
		faults:    make(map[string]*fault),
	}
}

// failOn makes op fail after it succeeded after times.
func (f *fakeStore) failOn(op string, after int) { f.faults[op] = &fault{after: after, err: errBoom} }

func (f *fakeStore) check(op string) error {
	f.calls = append(f.calls, op)
	ft, ok := f.faults[op]
	if !ok {
		return nil
	}
	if ft.after > 0 {
		ft.after--
		return nil
	}
	return ft.err
}

func (f *fakeStore) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CreateEvent(_ context.Context, guildID string) (int64, error) {
	if err := f.check("CreateEvent"); err != nil {
		return 0, err
	}
	id := f.id()
	f.events[id] = models.EventRecord{ID: id, GuildID: guildID}
	return id, nil
}

func (f *fakeStore) UpdateEvent(_ context.Context, rec models.EventRecord) error {
	if err := f.check("UpdateEvent"); err != nil {
		return err
	}
	f.events[rec.ID] = rec
	return nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, id int64) error {
	if err := f.check("DeleteEvent"); err != nil {
		return err
	}
	delete(f.events, id)
	for bid, b := range f.brackets {
		if b.EventID == id {
			f.deleteBracket(bid)
		}
	}
	for pid, p := range f.positions {
		if p.EventID == id {
			f.deletePosition(pid)
		}
	}
	return nil
}

func (f *fakeStore) CreateShiftBracket(_ context.Context, eventID int64, start, end time.Time) (int64, error) {
	if err := f.check("CreateShiftBracket"); err != nil {
		return 0, err
	}
	id := f.id()
	f.brackets[id] = models.ShiftBracketRecord{ID: id, EventID: eventID, StartTime: start, EndTime: end}
	return id, nil
}

func (f *fakeStore) UpdateShiftBracket(_ context.Context, rec models.ShiftBracketRecord) error {
	if err := f.check("UpdateShiftBracket"); err != nil {
		return err
	}
	f.brackets[rec.ID] = rec
	return nil
}

func (f *fakeStore) DeleteShiftBracket(_ context.Context, id int64) error {
	if err := f.check("DeleteShiftBracket"); err != nil {
		return err
	}
	f.deleteBracket(id)
	return nil
}

func (f *fakeStore) deleteBracket(id int64) {
	delete(f.brackets, id)
	for sid, s := range f.signups {
		if s.BracketID == id {
			delete(f.signups, sid)
		}
	}
}

func (f *fakeStore) CreateEventPosition(_ context.Context, eventID, positionID int64, quantity int) (int64, error) {
	if err := f.check("CreateEventPosition"); err != nil {
		return 0, err
	}
	id := f.id()
	f.positions[id] = models.EventPositionRecord{ID: id, EventID: eventID, PositionID: positionID, Quantity: quantity}
	return id, nil
}

func (f *fakeStore) UpdateEventPosition(_ context.Context, rec models.EventPositionRecord) error {
	if err := f.check("UpdateEventPosition"); err != nil {
		return err
	}
	rec.Signups = nil
	f.positions[rec.ID] = rec
	return nil
}

func (f *fakeStore) DeleteEventPosition(_ context.Context, id int64) error {
	if err := f.check("DeleteEventPosition"); err != nil {
		return err
	}
	f.deletePosition(id)
	return nil
}

func (f *fakeStore) deletePosition(id int64) {
	delete(f.positions, id)
	for sid, s := range f.signups {
		if s.EventPositionID == id {
			delete(f.signups, sid)
		}
	}
}

func (f *fakeStore) CreateEventSignup(_ context.Context, positionID, staffID, bracketID int64) (int64, error) {
	if err := f.check("CreateEventSignup"); err != nil {
		return 0, err
	}
	id := f.id()
	f.signups[id] = models.EventSignupRecord{ID: id, EventPositionID: positionID, StaffID: staffID, BracketID: bracketID}
	return id, nil
}

func (f *fakeStore) DeleteEventSignup(_ context.Context, id int64) error {
	if err := f.check("DeleteEventSignup"); err != nil {
		return err
	}
	delete(f.signups, id)
	return nil
}

func (f *fakeStore) UpdateEventSystem(_ context.Context, rec models.EventSystemRecord) error {
	if err := f.check("UpdateEventSystem"); err != nil {
		return err
	}
	f.system = rec
	return nil
}

type fakePoster struct {
	next       int
	published  []PostView
	edited     []PostView
	deleted    []MessageRef
	publishErr error
	editErr    error
	deleteErr  error
}

func (p *fakePoster) Publish(_ context.Context, channelID string, view PostView) (MessageRef, error) {
	if p.publishErr != nil {
		return MessageRef{}, p.publishErr
	}
	p.next++
	p.published = append(p.published, view)
	return MessageRef{GuildID: "1", ChannelID: channelID, MessageID: strconv.Itoa(p.next)}, nil
}

func (p *fakePoster) Edit(_ context.Context, _ MessageRef, view PostView) error {
	if p.editErr != nil {
		return p.editErr
	}
	p.edited = append(p.edited, view)
	return nil
}

func (p *fakePoster) Delete(_ context.Context, ref MessageRef) error {
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.deleted = append(p.deleted, ref)
	return nil
}

type chooseFunc func(ctx context.Context, prompt string, options []*ShiftBracket) ([]int64, error)

func (f chooseFunc) ChooseBrackets(ctx context.Context, prompt string, options []*ShiftBracket) ([]int64, error) {
	return f(ctx, prompt, options)
}

// chooseAll picks every offered bracket.
var chooseAll = chooseFunc(func(_ context.Context, _ string, options []*ShiftBracket) ([]int64, error) {
	ids := make([]int64, 0, len(options))
	for _, b := range options {
		ids = append(ids, b.ID)
	}
	return ids, nil
})

type confirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f confirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

const (
	bartender int64 = 1
	security  int64 = 2
)

// testClock is the fixture's notion of now, 2024-03-01 12:00 UTC (a Friday).
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

type fixture struct {
	mgr    *Manager
	store  *fakeStore
	poster *fakePoster
	clock  *testClock
	alice  *StaffMember // bartender
	bob    *StaffMember // bartender, security
	carol  *StaffMember // unqualified
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	roster := NewRoster()
	roster.PutPosition(&Position{ID: bartender, Name: "Bartender"})
	roster.PutPosition(&Position{ID: security, Name: "Security"})
	f := &fixture{
		store:  newFakeStore(),
		poster: &fakePoster{},
		clock:  &testClock{now: at(1, 12, 0)},
		alice:  &StaffMember{ID: 10, UserID: "1010", Name: "Alice", Positions: []int64{bartender}},
		bob:    &StaffMember{ID: 11, UserID: "1111", Name: "Bob", Positions: []int64{bartender, security}},
		carol:  &StaffMember{ID: 12, UserID: "1212", Name: "Carol"},
	}
	roster.PutStaff(f.alice)
	roster.PutStaff(f.bob)
	roster.PutStaff(f.carol)
	f.mgr = NewManager(Options{
		GuildID:  "1",
		Store:    f.store,
		Poster:   f.poster,
		Roster:   roster,
		Location: time.UTC,
		Lockout:  time.Hour,
		Now:      f.clock.Now,
	})
	return f
}

// at is a March 2024 instant in UTC.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

// event creates an event from start to end on March 2nd, ending the next
// day when end is earlier than start.
func (f *fixture) event(t *testing.T, start, end Clock) *Event {
	t.Helper()
	ctx := context.Background()
	ev, err := f.mgr.CreateEvent(ctx)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if err := ev.SetSchedule(ctx, start.On(at(2, 0, 0)), end.On(at(2, 0, 0))); err != nil {
		t.Fatalf("SetSchedule: %v", err)
	}
	return ev
}

func (f *fixture) bracket(t *testing.T, ev *Event, start, end Clock) *ShiftBracket {
	t.Helper()
	b, err := ev.AddShiftBracket(context.Background(), ev.ResolveClock(start), ev.ResolveClock(end))
	if err != nil {
		t.Fatalf("AddShiftBracket(%s, %s): %v", start, end, err)
	}
	return b
}

func (f *fixture) position(t *testing.T, ev *Event, positionID int64, quantity int) *EventPosition {
	t.Helper()
	ep, err := ev.AddPosition(context.Background(), positionID, quantity, "")
	if err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	return ep
}

func clk(h, m int) Clock { return Clock{Hour: h, Minute: m} }
