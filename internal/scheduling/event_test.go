package scheduling

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestEventScheduleRollsEnd(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, clk(20, 0), clk(2, 0))

	if !ev.End().Equal(at(3, 2, 0)) {
		t.Errorf("End() = %v, want next day 02:00", ev.End())
	}
	if got := ev.DurationMinutes(); got != 360 {
		t.Errorf("DurationMinutes() = %d, want 360", got)
	}
	rec := f.store.events[ev.ID()]
	if rec.StartTime == nil || !rec.StartTime.Equal(at(2, 20, 0)) {
		t.Errorf("persisted start = %v", rec.StartTime)
	}
}

func TestEventScheduleRejects(t *testing.T) {
	f := newFixture(t)
	ev, _ := f.mgr.CreateEvent(context.Background())
	ctx := context.Background()

	if err := ev.SetSchedule(ctx, at(2, 20, 0), at(2, 20, 0)); KindOf(err) != KindValidation {
		t.Errorf("equal start and end: err = %v, want validation", err)
	}
	if err := ev.SetSchedule(ctx, at(2, 20, 0), at(4, 2, 0)); KindOf(err) != KindValidation {
		t.Errorf("over a day: err = %v, want validation", err)
	}
	if ev.HasTimes() {
		t.Error("rejected schedule was applied")
	}
}

func TestEventSchedulePersistenceFailureReverts(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, clk(20, 0), clk(2, 0))
	f.store.failOn("UpdateEvent", 0)

	err := ev.SetSchedule(context.Background(), at(2, 18, 0), at(2, 23, 0))
	if KindOf(err) != KindPersistence {
		t.Fatalf("err = %v, want persistence", err)
	}
	if !ev.Start().Equal(at(2, 20, 0)) {
		t.Errorf("Start() = %v, want the previous value", ev.Start())
	}
	if UserMessage(err) != "could not save changes" {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, clk(20, 0), clk(2, 0))
	ctx := context.Background()

	if err := ev.Rename(ctx, "  Friday Night "); err != nil {
		t.Fatal(err)
	}
	if ev.Name() != "Friday Night" {
		t.Errorf("Name() = %q", ev.Name())
	}
	if err := ev.Rename(ctx, "   "); KindOf(err) != KindValidation {
		t.Errorf("blank name: err = %v", err)
	}
	if err := ev.Rename(ctx, strings.Repeat("x", maxNameLen+1)); KindOf(err) != KindValidation {
		t.Errorf("long name: err = %v", err)
	}
	if err := ev.SetImageURL(ctx, "ftp://example.com/a.png"); KindOf(err) != KindValidation {
		t.Errorf("ftp image: err = %v", err)
	}
}

func TestEveningScenario(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, clk(20, 0), clk(2, 0))
	ctx := context.Background()

	f.bracket(t, ev, clk(20, 0), clk(23, 0))
	b := f.bracket(t, ev, clk(23, 0), clk(2, 0))
	if !b.Start.Equal(at(2, 23, 0)) || !b.End.Equal(at(3, 2, 0)) {
		t.Errorf("B dated %v - %v", b.Start, b.End)
	}

	creates := f.store.count("CreateShiftBracket")
	_, err := ev.AddShiftBracket(ctx, ev.ResolveClock(clk(22, 0)), ev.ResolveClock(clk(0, 30)))
	if !errors.Is(err, ErrOverlap) {
		t.Fatalf("C: err = %v, want overlap", err)
	}
	if !strings.Contains(err.Error(), "20:00 - 23:00") {
		t.Errorf("C: error %q does not name the conflicting range", err)
	}
	if f.store.count("CreateShiftBracket") != creates+1 || f.store.count("DeleteShiftBracket") != 1 {
		t.Errorf("C: calls = %v, want create then delete", f.store.calls)
	}
	if len(f.store.brackets) != 2 || len(ev.Brackets()) != 2 {
		t.Errorf("C left %d stored and %d loaded brackets, want 2", len(f.store.brackets), len(ev.Brackets()))
	}

	if got := ev.CoveredMinutes(); got != 360 {
		t.Errorf("CoveredMinutes() = %d, want 360", got)
	}
	if !ev.IsFullyCovered() {
		t.Error("IsFullyCovered() = false, want true")
	}
}

func TestCoverageBoundary(t *testing.T) {
	tests := []struct {
		name    string
		lastEnd Clock
		want    bool
	}{
		{"exact", clk(2, 0), true},
		{"one minute short", clk(1, 59), false},
	}
	for _, tt := range tests {
		f := newFixture(t)
		ev := f.event(t, clk(18, 0), clk(2, 0))
		f.bracket(t, ev, clk(18, 0), clk(22, 0))
		f.bracket(t, ev, clk(22, 0), tt.lastEnd)
		if ev.DurationMinutes() != 480 {
			t.Fatalf("%s: duration = %d", tt.name, ev.DurationMinutes())
		}
		if got := ev.IsFullyCovered(); got != tt.want {
			t.Errorf("%s: IsFullyCovered() = %v (covered %d), want %v", tt.name, got, ev.CoveredMinutes(), tt.want)
		}
	}
}

func TestAddShiftBracketValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	blank, _ := f.mgr.CreateEvent(ctx)
	if _, err := blank.AddShiftBracket(ctx, at(2, 20, 0), at(2, 22, 0)); !errors.Is(err, ErrTimesUnset) {
		t.Errorf("no times: err = %v", err)
	}

	ev := f.event(t, clk(20, 0), clk(2, 0))
	if _, err := ev.AddShiftBracket(ctx, at(2, 18, 0), at(2, 21, 0)); KindOf(err) != KindValidation {
		t.Errorf("outside window: err = %v", err)
	}
	if _, err := ev.AddShiftBracket(ctx, at(2, 22, 0), at(2, 22, 0)); KindOf(err) != KindValidation {
		t.Errorf("zero length: err = %v", err)
	}
	if n := f.store.count("CreateShiftBracket"); n != 0 {
		t.Errorf("invalid brackets reached the store %d times", n)
	}
}

func TestAddShiftBracketRollbackFailure(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, clk(20, 0), clk(2, 0))
	f.bracket(t, ev, clk(20, 0), clk(23, 0))
	f.store.failOn("DeleteShiftBracket", 0)

	_, err := ev.AddShiftBracket(context.Background(), at(2, 21, 0), at(2, 22, 0))
	if KindOf(err) != KindPersistence {
		t.Fatalf("err = %v, want persistence", err)
	}
	if len(ev.Brackets()) != 1 {
		t.Errorf("conflicting bracket was attached")
	}
}

func TestRemoveShiftBracket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))
	a := f.bracket(t, ev, clk(20, 0), clk(23, 0))
	ep := f.position(t, ev, bartender, 1)
	if _, err := ev.Signup(ctx, ep.ID(), f.alice, []int64{a.ID}); err != nil {
		t.Fatal(err)
	}

	if err := ev.RemoveShiftBracket(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if len(ep.Signups()) != 0 || len(f.store.signups) != 0 {
		t.Error("signups of the removed bracket survived")
	}
	if err := ev.RemoveShiftBracket(ctx, a.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if n := f.store.count("DeleteShiftBracket"); n != 1 {
		t.Errorf("DeleteShiftBracket called %d times, want 1", n)
	}
}

func TestRetimeBracket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))
	a := f.bracket(t, ev, clk(20, 0), clk(22, 0))
	f.bracket(t, ev, clk(23, 0), clk(2, 0))

	if err := ev.SetBracketEnd(ctx, a.ID, clk(23, 0)); err != nil {
		t.Fatalf("extend to 23:00: %v", err)
	}
	if !a.End.Equal(at(2, 23, 0)) || !f.store.brackets[a.ID].EndTime.Equal(at(2, 23, 0)) {
		t.Errorf("end = %v", a.End)
	}
	if err := ev.SetBracketEnd(ctx, a.ID, clk(0, 0)); !errors.Is(err, ErrOverlap) {
		t.Errorf("extend past midnight: err = %v, want overlap", err)
	}
	if !a.End.Equal(at(2, 23, 0)) {
		t.Errorf("rejected retime changed the bracket")
	}
}

func TestRetimeBracketBothEnds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))
	a := f.bracket(t, ev, clk(20, 0), clk(21, 0))
	f.bracket(t, ev, clk(0, 0), clk(2, 0))

	if err := ev.RetimeBracket(ctx, a.ID, clk(22, 0), clk(23, 0)); err != nil {
		t.Fatalf("move to 22:00 - 23:00: %v", err)
	}
	if a.Range() != "22:00 - 23:00" || !f.store.brackets[a.ID].StartTime.Equal(at(2, 22, 0)) {
		t.Errorf("bracket = %s", a.Range())
	}
	if n := f.store.count("UpdateShiftBracket"); n != 1 {
		t.Errorf("%d updates, want one", n)
	}

	if err := ev.RetimeBracket(ctx, a.ID, clk(23, 0), clk(1, 0)); !errors.Is(err, ErrOverlap) {
		t.Errorf("overlapping move: err = %v", err)
	}
	if a.Range() != "22:00 - 23:00" {
		t.Errorf("rejected move changed the bracket to %s", a.Range())
	}

	f.store.failOn("UpdateShiftBracket", 0)
	if err := ev.RetimeBracket(ctx, a.ID, clk(21, 0), clk(22, 0)); KindOf(err) != KindPersistence {
		t.Errorf("store failure: err = %v", err)
	}
	if a.Range() != "22:00 - 23:00" {
		t.Errorf("failed write changed the bracket to %s", a.Range())
	}
}

func TestAddPositionEmojiFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))
	f.store.failOn("UpdateEventPosition", 0)

	if _, err := ev.AddPosition(ctx, bartender, 1, "🍸"); KindOf(err) != KindPersistence {
		t.Fatalf("err = %v, want a persistence error", err)
	}
	if len(ev.Positions()) != 0 || len(f.store.positions) != 0 {
		t.Errorf("half-created position kept: %d loaded, %d stored", len(ev.Positions()), len(f.store.positions))
	}
}

func TestHourOptions(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, clk(20, 0), clk(2, 0))
	got, err := ev.HourOptions()
	if err != nil {
		t.Fatal(err)
	}
	want := []int{20, 21, 22, 23, 0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("HourOptions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("HourOptions() = %v, want %v", got, want)
		}
	}
}

func TestPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))

	ep, err := ev.AddPosition(ctx, bartender, 2, "🍸")
	if err != nil {
		t.Fatal(err)
	}
	if ep.Emoji() != "🍸" || f.store.positions[ep.ID()].Emoji == nil {
		t.Error("emoji was not stored")
	}
	if _, err := ev.AddPosition(ctx, bartender, 1, ""); KindOf(err) != KindValidation {
		t.Errorf("duplicate position: err = %v", err)
	}
	if _, err := ev.AddPosition(ctx, 99, 1, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown position: err = %v", err)
	}
	if _, err := ev.AddPosition(ctx, security, 0, ""); KindOf(err) != KindValidation {
		t.Errorf("zero quantity: err = %v", err)
	}
	if err := ev.SetPositionQuantity(ctx, ep.ID(), 3); err != nil || ep.Quantity() != 3 {
		t.Errorf("SetPositionQuantity: %v, quantity %d", err, ep.Quantity())
	}
	if err := ev.RemovePosition(ctx, ep.ID()); err != nil {
		t.Fatal(err)
	}
	if len(ev.Positions()) != 0 || len(f.store.positions) != 0 {
		t.Error("position survived removal")
	}
}

func TestSignupCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))
	a := f.bracket(t, ev, clk(20, 0), clk(23, 0))
	b := f.bracket(t, ev, clk(23, 0), clk(2, 0))
	ep := f.position(t, ev, bartender, 1)

	if ep.IsFull(ev.Brackets()) {
		t.Fatal("empty position reads as full")
	}
	if _, err := ev.Signup(ctx, ep.ID(), f.alice, []int64{a.ID, a.ID}); err != nil {
		t.Fatal(err)
	}
	if len(ep.SignupsByBracket(a.ID)) != 1 {
		t.Errorf("duplicate bracket ids created %d signups", len(ep.SignupsByBracket(a.ID)))
	}
	if _, err := ev.Signup(ctx, ep.ID(), f.bob, []int64{a.ID}); !errors.Is(err, ErrBracketFull) {
		t.Errorf("full bracket: err = %v", err)
	}
	if _, err := ev.Signup(ctx, ep.ID(), f.alice, []int64{a.ID}); KindOf(err) != KindValidation {
		t.Errorf("repeat signup: err = %v", err)
	}
	if _, err := ev.Signup(ctx, ep.ID(), f.carol, []int64{b.ID}); !errors.Is(err, ErrNotQualified) {
		t.Errorf("unqualified: err = %v", err)
	}
	if _, err := ev.Assign(ctx, ep.ID(), f.carol.ID, b.ID); err != nil {
		t.Errorf("Assign skips qualification: %v", err)
	}
	if !ep.IsFull(ev.Brackets()) || !ev.PositionFull(ep.ID()) {
		t.Error("IsFull() = false with every bracket taken")
	}
	if got := ep.AvailableShifts(ev.Brackets()); len(got) != 0 {
		t.Errorf("AvailableShifts() = %v", got)
	}
}

func TestOverfilledPositionStaysFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))
	a := f.bracket(t, ev, clk(20, 0), clk(2, 0))
	ep := f.position(t, ev, bartender, 2)
	ev.Signup(ctx, ep.ID(), f.alice, []int64{a.ID})
	ev.Signup(ctx, ep.ID(), f.bob, []int64{a.ID})

	if err := ep.SetQuantity(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if ep.OpenSlots(a.ID) != 0 || !ep.IsFull(ev.Brackets()) {
		t.Errorf("OpenSlots = %d, IsFull = %v", ep.OpenSlots(a.ID), ep.IsFull(ev.Brackets()))
	}
}

func TestSignupRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, clk(20, 0), clk(2, 0))
	a := f.bracket(t, ev, clk(20, 0), clk(23, 0))
	b := f.bracket(t, ev, clk(23, 0), clk(2, 0))
	ep := f.position(t, ev, bartender, 1)
	f.store.failOn("CreateEventSignup", 1)

	_, err := ev.Signup(context.Background(), ep.ID(), f.alice, []int64{a.ID, b.ID})
	if KindOf(err) != KindPersistence {
		t.Fatalf("err = %v, want persistence", err)
	}
	if len(ep.Signups()) != 0 || len(f.store.signups) != 0 {
		t.Errorf("partial signups left: %d loaded, %d stored", len(ep.Signups()), len(f.store.signups))
	}
}

func TestToggleUserSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))
	a := f.bracket(t, ev, clk(20, 0), clk(23, 0))
	b := f.bracket(t, ev, clk(23, 0), clk(2, 0))
	ep := f.position(t, ev, bartender, 1)
	if _, err := ev.Signup(ctx, ep.ID(), f.bob, []int64{a.ID}); err != nil {
		t.Fatal(err)
	}

	var offered []*ShiftBracket
	chooser := chooseFunc(func(ctx context.Context, prompt string, options []*ShiftBracket) ([]int64, error) {
		offered = options
		return chooseAll(ctx, prompt, options)
	})
	res, err := ev.ToggleUserSignup(ctx, ep.ID(), f.alice, chooser)
	if err != nil {
		t.Fatal(err)
	}
	if len(offered) != 1 || offered[0].ID != b.ID {
		t.Errorf("offered %v, want only the open bracket", offered)
	}
	if len(res.Added) != 1 || res.Removed != 0 {
		t.Errorf("result = %+v", res)
	}

	res, err = ev.ToggleUserSignup(ctx, ep.ID(), f.alice, chooser)
	if err != nil || res.Removed != 1 {
		t.Errorf("sign-off: %+v, %v", res, err)
	}
	if len(ep.SignupsFor(f.alice.ID)) != 0 {
		t.Error("alice still signed up")
	}

	if _, err := ev.ToggleUserSignup(ctx, ep.ID(), f.carol, chooser); !errors.Is(err, ErrNotQualified) {
		t.Errorf("unqualified: err = %v", err)
	}
}

func TestToggleUserSignupCancelled(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, clk(20, 0), clk(2, 0))
	f.bracket(t, ev, clk(20, 0), clk(2, 0))
	ep := f.position(t, ev, bartender, 1)

	dismiss := chooseFunc(func(context.Context, string, []*ShiftBracket) ([]int64, error) { return nil, ErrCancelled })
	if _, err := ev.ToggleUserSignup(context.Background(), ep.ID(), f.alice, dismiss); KindOf(err) != KindCancelled {
		t.Errorf("err = %v, want cancelled", err)
	}
	if f.store.count("CreateEventSignup") != 0 {
		t.Error("a cancelled prompt created signups")
	}
}

func TestToggleUserSignupNoOpenShifts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))
	a := f.bracket(t, ev, clk(20, 0), clk(2, 0))
	ep := f.position(t, ev, bartender, 1)
	ev.Signup(ctx, ep.ID(), f.bob, []int64{a.ID})

	if _, err := ev.ToggleUserSignup(ctx, ep.ID(), f.alice, chooseAll); !errors.Is(err, ErrNoOpenShifts) {
		t.Errorf("err = %v, want no open shifts", err)
	}
}

func TestPostLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))
	a := f.bracket(t, ev, clk(20, 0), clk(2, 0))
	ep := f.position(t, ev, bartender, 1)

	if ev.State() != Draft {
		t.Fatalf("State() = %v", ev.State())
	}
	if err := ev.Post(ctx, "555"); err != nil {
		t.Fatal(err)
	}
	if ev.State() != Posted || len(f.poster.published) != 1 {
		t.Fatalf("State() = %v after posting", ev.State())
	}
	rec := f.store.events[ev.ID()]
	if rec.PostURL == nil || *rec.PostURL != "https://discord.com/channels/1/555/1" {
		t.Errorf("post url = %v", rec.PostURL)
	}

	// a failed refresh leaves the post stale
	f.poster.editErr = errBoom
	if _, err := ev.Signup(ctx, ep.ID(), f.alice, []int64{a.ID}); err != nil {
		t.Fatal(err)
	}
	if ev.State() != PostedStale {
		t.Errorf("State() = %v, want stale", ev.State())
	}

	f.poster.editErr = nil
	if err := ev.UpdatePostComponents(ctx); err != nil || ev.State() != Posted {
		t.Errorf("refresh: %v, state %v", err, ev.State())
	}

	// a deleted message falls back to draft
	f.poster.editErr = StaleReference("message is gone", errBoom)
	if err := ev.UpdatePostComponents(ctx); err != nil {
		t.Fatal(err)
	}
	if ev.State() != Draft || f.store.events[ev.ID()].PostURL != nil {
		t.Errorf("State() = %v, want draft", ev.State())
	}
}

func TestPostRepublishesDeletedMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))
	if err := ev.Post(ctx, "555"); err != nil {
		t.Fatal(err)
	}
	f.poster.editErr = StaleReference("message is gone", errBoom)
	if err := ev.Post(ctx, "555"); err != nil {
		t.Fatal(err)
	}
	if len(f.poster.published) != 2 || ev.PostRef().MessageID != "2" {
		t.Errorf("published %d times, ref %v", len(f.poster.published), ev.PostRef())
	}
}

func TestPostPermissionDenied(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, clk(20, 0), clk(2, 0))
	f.poster.publishErr = PermissionDenied("I cannot post in that channel", errBoom)

	err := ev.Post(context.Background(), "555")
	if KindOf(err) != KindPermission {
		t.Fatalf("err = %v, want permission", err)
	}
	if ev.State() != Draft {
		t.Errorf("State() = %v", ev.State())
	}
}

func TestElements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, clk(20, 0), clk(2, 0))

	if err := ev.AddElement(ctx, ElementLink, Element{Title: "Menu", Value: "https://example.com/menu"}); err != nil {
		t.Fatal(err)
	}
	if err := ev.AddElement(ctx, ElementNote, Element{Title: "Dress code"}); KindOf(err) != KindValidation {
		t.Errorf("empty value: err = %v", err)
	}
	if got := f.store.events[ev.ID()].Elements["link"]; len(got) != 1 || got[0].Title != "Menu" {
		t.Errorf("stored links = %v", got)
	}
	if err := ev.RemoveElement(ctx, ElementLink, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("bad index: err = %v", err)
	}
	if err := ev.RemoveElement(ctx, ElementLink, 0); err != nil || len(ev.Elements(ElementLink)) != 0 {
		t.Errorf("RemoveElement: %v", err)
	}
}
