package prompt

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"travelagent/models"
)

// DateStrategy selects how dates are pulled out of a prompt.
type DateStrategy string

const (
	// DatesPattern matches a fixed set of explicit formats in text order.
	DatesPattern DateStrategy = "pattern"
	// DatesToken scans every token window, keeps future dates, and sorts them.
	DatesToken DateStrategy = "token"
)

func ParseDateStrategy(s string) DateStrategy {
	if strings.EqualFold(strings.TrimSpace(s), string(DatesToken)) {
		return DatesToken
	}
	return DatesPattern
}

const monthNames = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

var (
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})\b`)
	isoDateRe     = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`)
	monthDayRe    = regexp.MustCompile(`(?i)\b(` + monthNames + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	dayMonthRe    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthNames + `)\.?(?:,?\s+(\d{4}))?\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

func monthOf(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0, false
	}
	m, ok := months[name[:3]]
	return m, ok
}

// makeDate rejects impossible calendar dates instead of normalizing them.
func makeDate(year int, month time.Month, day int) (models.Date, bool) {
	if year < 100 {
		year += 2000
	}
	if month < time.January || month > time.December || day < 1 {
		return models.Date{}, false
	}
	d := models.NewDate(year, month, day)
	if d.Day() != day || d.Month() != month {
		return models.Date{}, false
	}
	return d, true
}

type dateMatch struct {
	start, end int
	date       models.Date
}

// explicitDates finds dates in the fixed formats, in text order. Numeric
// dates are read month-first unless the first field cannot be a month.
// Spelled dates without a year take the year that keeps them on or after
// today.
func explicitDates(text string, today models.Date) []dateMatch {
	var found []dateMatch
	add := func(loc []int, d models.Date, ok bool) {
		if ok {
			found = append(found, dateMatch{start: loc[0], end: loc[1], date: d})
		}
	}

	for _, loc := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		y, m, d := atoi(text, loc, 1), atoi(text, loc, 2), atoi(text, loc, 3)
		date, ok := makeDate(y, time.Month(m), d)
		add(loc, date, ok)
	}
	for _, loc := range numericDateRe.FindAllStringSubmatchIndex(text, -1) {
		a, b, y := atoi(text, loc, 1), atoi(text, loc, 2), atoi(text, loc, 3)
		month, day := a, b
		if a > 12 {
			month, day = b, a
		}
		date, ok := makeDate(y, time.Month(month), day)
		add(loc, date, ok)
	}
	for _, loc := range monthDayRe.FindAllStringSubmatchIndex(text, -1) {
		m, ok := monthOf(text[loc[2]:loc[3]])
		if !ok {
			continue
		}
		date, ok := spelled(text, loc, 3, m, atoi(text, loc, 2), today)
		add(loc, date, ok)
	}
	for _, loc := range dayMonthRe.FindAllStringSubmatchIndex(text, -1) {
		m, ok := monthOf(text[loc[4]:loc[5]])
		if !ok {
			continue
		}
		date, ok := spelled(text, loc, 3, m, atoi(text, loc, 1), today)
		add(loc, date, ok)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })
	out := found[:0]
	lastEnd := -1
	for _, m := range found {
		if m.start < lastEnd {
			continue
		}
		out = append(out, m)
		lastEnd = m.end
	}
	return out
}

// spelled builds a date whose year sits in submatch yearGroup, if present.
func spelled(text string, loc []int, yearGroup int, month time.Month, day int, today models.Date) (models.Date, bool) {
	if loc[yearGroup*2] >= 0 {
		return makeDate(atoi(text, loc, yearGroup), month, day)
	}
	d, ok := makeDate(today.Year(), month, day)
	if ok && d.Before(today) {
		d, ok = makeDate(today.Year()+1, month, day)
	}
	return d, ok
}

func atoi(text string, loc []int, group int) int {
	s, e := loc[group*2], loc[group*2+1]
	if s < 0 {
		return 0
	}
	n, _ := strconv.Atoi(text[s:e])
	return n
}

// patternDates is the rigid strategy: explicit formats, text order, no
// filtering. Past dates are left for validation to reject.
func patternDates(text string, today models.Date) []models.Date {
	matches := explicitDates(text, today)
	out := make([]models.Date, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.date)
	}
	return out
}

// tokenDates is the fuzzy strategy: every window of up to four tokens is
// tried as a date on its own. Past dates and years outside 1900-2100 are
// dropped, the rest de-duplicated and sorted ascending.
func tokenDates(text string, today models.Date) []models.Date {
	tokens := strings.Fields(text)
	for i, t := range tokens {
		tokens[i] = strings.Trim(t, `,;:!?()"'`)
	}

	seen := make(map[string]bool)
	var out []models.Date
	for i := 0; i < len(tokens); {
		advanced := false
		for n := min(4, len(tokens)-i); n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			d, ok := parseWindow(window, today)
			if !ok {
				continue
			}
			if d.Year() >= 1900 && d.Year() <= 2100 && !d.Before(today) && !seen[d.String()] {
				seen[d.String()] = true
				out = append(out, d)
			}
			i += n
			advanced = true
			break
		}
		if !advanced {
			i++
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Before(out[b]) })
	return out
}

// parseWindow accepts a window only if a date format covers all of it.
func parseWindow(window string, today models.Date) (models.Date, bool) {
	window = strings.TrimRight(window, ".")
	matches := explicitDates(window, today)
	if len(matches) != 1 || matches[0].start != 0 || matches[0].end != len(window) {
		return models.Date{}, false
	}
	return matches[0].date, true
}
