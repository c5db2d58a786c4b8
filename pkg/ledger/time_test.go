package ledger

import (
	"testing"
	"time"
)

func TestParseInstantLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01T12:30:00Z", time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"2026-03-01T14:30:00+02:00", time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"2026-03-01T12:30:00", time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"2026-03-01 12:30:00", time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseInstant(tc.in)
		if err != nil {
			t.Fatalf("ParseInstant(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseInstant(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if got.Location() != time.UTC {
			t.Fatalf("ParseInstant(%q) location = %v, want UTC", tc.in, got.Location())
		}
	}
}

func TestParseInstantRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "  ", "yesterday", "03/01/2026"} {
		if _, err := ParseInstant(in); err == nil {
			t.Fatalf("ParseInstant(%q) succeeded, want error", in)
		}
	}
}
