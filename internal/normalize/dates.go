package normalize

import (
	"strings"
	"time"
)

// dateLayouts lists the formats bureaus and extractors actually emit.
// Order matters: unambiguous layouts first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"01/2006",
	"Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// ParseDate converts a raw date string into a UTC timestamp. Returns nil if
// no known layout matches — never a guess.
func ParseDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
