package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateWindow is how far from the reference date a candidate may lie and
// still be considered plausible as the document's date. Scans of old
// archives are out of scope; OCR misreads producing far-future or far-past
// dates are common.
const dateWindow = 2 * 365 * 24 * time.Hour

var germanMonths = map[string]time.Month{
	"januar": time.January, "februar": time.February, "märz": time.March,
	"april": time.April, "mai": time.May, "juni": time.June,
	"juli": time.July, "august": time.August, "september": time.September,
	"oktober": time.October, "november": time.November, "dezember": time.December,
}

var writtenDatePattern = regexp.MustCompile(`(?i)^(\d{1,2})\.\s?(\pL+)\s(\d{4})$`)

// BestDate selects the most plausible document date from raw candidates.
//
// Each candidate is parsed (2-digit years pivot at 50: below 50 is 2000s,
// otherwise 1900s) and the candidate closest to the reference date wins,
// provided it falls within a 2-year window. Unparseable candidates and
// candidates outside the window are ignored. The boolean is false when no
// candidate qualifies.
func BestDate(candidates []string, reference time.Time) (time.Time, bool) {
	var best time.Time
	bestDistance := dateWindow
	found := false

	for _, raw := range candidates {
		parsed, ok := parseDate(raw)
		if !ok {
			continue
		}
		distance := reference.Sub(parsed)
		if distance < 0 {
			distance = -distance
		}
		if distance <= bestDistance {
			best = parsed
			bestDistance = distance
			found = true
		}
	}
	return best, found
}

// parseDate parses the formats produced by the extractor's date patterns.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)

	for _, layout := range []string{"02.01.2006", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	// DD.MM.YY with pivot-based century normalization.
	if t, err := time.Parse("02.01.06", raw); err == nil {
		year := t.Year() % 100
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
		return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}

	// DD. <German month name> YYYY
	if m := writtenDatePattern.FindStringSubmatch(raw); m != nil {
		month, ok := germanMonths[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if day < 1 || day > 31 {
			return time.Time{}, false
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}
