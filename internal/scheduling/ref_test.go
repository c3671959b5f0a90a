package scheduling

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestJumpURL(t *testing.T) {
	ref := MessageRef{GuildID: "1", ChannelID: "2", MessageID: "3"}
	if got := ref.JumpURL(); got != "https://discord.com/channels/1/2/3" {
		t.Fatalf("JumpURL() = %q", got)
	}
	got, err := ParseJumpURL(ref.JumpURL())
	if err != nil || got != ref {
		t.Errorf("ParseJumpURL = %v, %v", got, err)
	}
	if got, err := ParseJumpURL("https://discordapp.com/channels/1/2/3"); err != nil || got != ref {
		t.Errorf("legacy host: %v, %v", got, err)
	}
	for _, bad := range []string{"", "https://example.com/channels/1/2/3", "https://discord.com/channels/1/2", "https://discord.com/channels/1//3"} {
		if _, err := ParseJumpURL(bad); err == nil {
			t.Errorf("ParseJumpURL(%q) accepted", bad)
		}
	}
}

func TestRefResolve(t *testing.T) {
	r := NewRoster()
	r.PutPosition(&Position{ID: 1, Name: "Bartender"})

	if p, ok := (Ref[*Position]{ID: 1}).Resolve(r.PositionLookup()); !ok || p.Name != "Bartender" {
		t.Errorf("Resolve(1) = %v, %v", p, ok)
	}
	if _, ok := (Ref[*Position]{ID: 2}).Resolve(r.PositionLookup()); ok {
		t.Error("Resolve of a missing id succeeded")
	}
	if _, ok := (Ref[*Position]{}).Resolve(r.PositionLookup()); ok {
		t.Error("zero ref resolved")
	}
}

func TestRoster(t *testing.T) {
	r := NewRoster()
	r.PutPosition(&Position{ID: 2, Name: "Security"})
	r.PutPosition(&Position{ID: 1, Name: "Bartender"})
	r.PutStaff(&StaffMember{ID: 10, UserID: "1010", Name: "Alice", Positions: []int64{1}})

	if ps := r.Positions(); len(ps) != 2 || ps[0].Name != "Bartender" {
		t.Errorf("Positions() = %v", ps)
	}
	if p, ok := r.PositionByName(" security "); !ok || p.ID != 2 {
		t.Errorf("PositionByName = %v, %v", p, ok)
	}
	s, ok := r.StaffByUser("1010")
	if !ok || !s.QualifiedFor(1) || s.QualifiedFor(2) {
		t.Errorf("StaffByUser = %v, %v", s, ok)
	}
	if s.Mention() != "<@1010>" {
		t.Errorf("Mention() = %q", s.Mention())
	}

	r.PutStaff(&StaffMember{ID: 11, UserID: "1111", Name: "Aaron", Positions: []int64{1, 2}})
	q := r.QualifiedStaff(1)
	if len(q) != 2 || q[0].Name != "Aaron" || q[1].Name != "Alice" {
		t.Errorf("QualifiedStaff(1) = %v", q)
	}
	if q := r.QualifiedStaff(2); len(q) != 1 || q[0].ID != 11 {
		t.Errorf("QualifiedStaff(2) = %v", q)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{Validationf("bad %d", 1), KindValidation},
		{ErrCancelled, KindCancelled},
		{context.Canceled, KindCancelled},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), KindCancelled},
		{PermissionDenied("no access", errBoom), KindPermission},
		{StaleReference("gone", errBoom), KindStaleReference},
		{persistence("update event", errBoom), KindPersistence},
		{fmt.Errorf("outer: %w", ErrLockedOut), KindValidation},
		{errBoom, KindUnknown},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	err := invalid(ErrBracketFull, "the %s shift is already full", "20:00 - 23:00")
	if !errors.Is(err, ErrBracketFull) {
		t.Error("errors.Is lost the sentinel")
	}
	if UserMessage(err) != "the 20:00 - 23:00 shift is already full" {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
	if !errors.Is(persistence("x", errBoom), errBoom) {
		t.Error("persistence error does not wrap the cause")
	}
	if UserMessage(errBoom) != "an unexpected error occurred" {
		t.Errorf("UserMessage of a plain error = %q", UserMessage(errBoom))
	}
}
