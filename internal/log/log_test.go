package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	Info("hidden", "k", "v")
	Warn("shown", "guild", "123")
	Error("failed", errors.New("boom"), "event", 7)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown guild=123") {
		t.Fatalf("missing warn line: %q", out)
	}
	if !strings.Contains(out, "[ERROR] failed err=boom event=7") {
		t.Fatalf("missing error line: %q", out)
	}
}

func TestFormatKVsQuotesSpaces(t *testing.T) {
	got := formatKVs("name", "Friday Night", "odd")
	if got != ` name="Friday Night"` {
		t.Fatalf("got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":  LevelDebug,
		" WARN ": LevelWarn,
		"":       LevelInfo,
		"bogus":  LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
