package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Accepted timestamp layouts. Zoneless layouts exist because legacy clients
// send naive timestamps; those are taken to be UTC, never local time.
var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstant parses a client-supplied timestamp and normalizes it to UTC.
func ParseInstant(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
