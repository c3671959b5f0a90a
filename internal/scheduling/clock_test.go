package scheduling

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "20:00", want: clk(20, 0)},
		{in: "7:05", want: clk(7, 5)},
		{in: " 23:59 ", want: clk(23, 59)},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "12", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q) = %v, want error", tt.in, got)
			} else if KindOf(err) != KindValidation {
				t.Errorf("ParseClock(%q) error kind = %v, want validation", tt.in, KindOf(err))
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseClock(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestSpanMinutes(t *testing.T) {
	tests := []struct {
		start, end Clock
		want       int
	}{
		{clk(20, 0), clk(23, 0), 180},
		{clk(23, 30), clk(0, 30), 60},
		{clk(22, 0), clk(4, 0), 360},
		{clk(9, 0), clk(9, 0), 0},
	}
	for _, tt := range tests {
		if got := spanMinutes(tt.start, tt.end); got != tt.want {
			t.Errorf("spanMinutes(%s, %s) = %d, want %d", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestRollEnd(t *testing.T) {
	start := at(2, 20, 0)
	tests := []struct {
		name string
		end  time.Time
		want time.Time
	}{
		{"already after", at(3, 2, 0), at(3, 2, 0)},
		{"same day earlier clock", at(2, 2, 0), at(3, 2, 0)},
		{"later clock same day", at(2, 23, 0), at(2, 23, 0)},
		{"equal clock", at(2, 20, 0), at(3, 20, 0)},
	}
	for _, tt := range tests {
		if got := rollEnd(start, tt.end); !got.Equal(tt.want) {
			t.Errorf("%s: rollEnd = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	for minutes, want := range map[int]string{360: "6h", 30: "30m", 90: "1h 30m", 0: "0h"} {
		if got := formatDuration(minutes); got != want {
			t.Errorf("formatDuration(%d) = %q, want %q", minutes, got, want)
		}
	}
}

func TestMinutesSinceAcrossMidnight(t *testing.T) {
	ref := at(2, 23, 0)
	if got := minutesSince(ref, at(3, 0, 30)); got != minutesPerDay+30 {
		t.Errorf("minutesSince = %d, want %d", got, minutesPerDay+30)
	}
	if got := minutesSince(ref, at(1, 23, 0)); got != -60 {
		t.Errorf("minutesSince previous day = %d, want -60", got)
	}
}
