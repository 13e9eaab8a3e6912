package transform

import (
	"strings"
	"time"
)

// Date layouts tried in order; the first successful parse wins. The US and
// European variants reorder the ambiguous slash forms so "03/04/2024" reads
// as March 4 or April 3 respectively.
var (
	commonDateLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"2006.01.02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2 January 2006",
	}

	usDateLayouts = append([]string{
		"01/02/2006",
		"01-02-2006",
		"01.02.2006",
		"1/2/2006",
	}, commonDateLayouts...)

	europeanDateLayouts = append([]string{
		"02/01/2006",
		"02-01-2006",
		"02.01.2006",
		"2/1/2006",
	}, commonDateLayouts...)

	isoDateLayouts = append(append([]string{}, commonDateLayouts...),
		"01/02/2006",
		"02/01/2006",
	)
)

// reformatDate parses against the ordered layouts and reformats to the
// output layout. Unparsable input is returned unchanged as a string so
// a date is never silently zeroed.
func reformatDate(value any, layouts []string, output string) any {
	s := strings.TrimSpace(stringify(value))
	if s == "" {
		return ""
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(output)
		}
	}
	return s
}

// ParseDate parses a date string against the full ordered layout list.
// Used by validation rules that need the same tolerance as the date
// transformations.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateISO(value any, _ map[string]string, _ Params) any {
	return reformatDate(value, isoDateLayouts, "2006-01-02")
}

func dateUS(value any, _ map[string]string, _ Params) any {
	return reformatDate(value, usDateLayouts, "01/02/2006")
}

func dateEuropean(value any, _ map[string]string, _ Params) any {
	return reformatDate(value, europeanDateLayouts, "02/01/2006")
}
