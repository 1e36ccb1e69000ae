package utils

import (
	"strings"
	"time"
)

var dateTokens = map[string]string{
	"yyyy": "2006",
	"yy":   "06",
	"MMMM": "January",
	"MMM":  "Jan",
	"MM":   "01",
	"M":    "1",
	"dd":   "02",
	"d":    "2",
	"EEEE": "Monday",
	"EEE":  "Mon",
	"HH":   "15",
	"hh":   "03",
	"h":    "3",
	"mm":   "04",
	"m":    "4",
	"ss":   "05",
	"s":    "5",
	"a":    "PM",
}

// GoLayout converts a date-fns style pattern such as dd/MM/yyyy HH:mm:ss
// to a Go time layout. Unknown letters are copied through.
func GoLayout(pattern string) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		run := string(runes[i:j])
		if layout, ok := dateTokens[run]; ok {
			b.WriteString(layout)
		} else {
			b.WriteString(run)
		}
		i = j
	}
	return b.String()
}

// FormatInZone formats t in loc using a date-fns style pattern
func FormatInZone(t time.Time, loc *time.Location, pattern string) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(GoLayout(pattern))
}

// UTCOffset renders the zone offset of t as +HH:MM
func UTCOffset(t time.Time) string {
	return t.Format("-07:00")
}
