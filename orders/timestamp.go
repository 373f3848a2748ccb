package orders

import (
	"strings"
	"time"
)

// timestampLayouts are tried in order. The export writes the first one; the
// rest cover hand-edited or re-saved files.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"01/02/2006",
	"2006/01/02",
}

// ParseTimestamp parses a timestamp in UTC using the layout fallback list.
// It reports false for missing or unparseable values.
func ParseTimestamp(s string) (time.Time, bool) {
	return ParseTimestampIn(s, time.UTC)
}

// ParseTimestampIn is ParseTimestamp with an explicit location for naive values.
func ParseTimestampIn(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isMissing matches the missing-value spellings pandas and friends write,
// in any case.
func isMissing(s string) bool {
	switch strings.ToLower(s) {
	case "", "nat", "nan", "na", "<na>", "<nil>", "null", "none", "n/a":
		return true
	}
	return false
}
