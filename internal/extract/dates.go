package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4}|\d{2})\b`)
	dayMonthRe    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:day\s+of\s+)?(` + monthPattern + `)\.?,?\s+(\d{4})\b`)
	monthDayRe    = regexp.MustCompile(`(?i)\b(` + monthPattern + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
)

const monthPattern = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

var monthPrefixes = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

type positioned struct {
	value string
	pos   int
}

// findDates returns ISO dates in order of first appearance. Numeric dates are
// read day first, as written in Indian documents.
func findDates(text string) []string {
	var found []positioned
	for _, m := range numericDateRe.FindAllStringSubmatchIndex(text, -1) {
		day, month, year := atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), expandYear(text[m[6]:m[7]])
		if iso, ok := isoDate(year, month, day); ok {
			found = append(found, positioned{iso, m[0]})
		}
	}
	for _, m := range dayMonthRe.FindAllStringSubmatchIndex(text, -1) {
		day, month, year := atoi(text[m[2]:m[3]]), monthNumber(text[m[4]:m[5]]), atoi(text[m[6]:m[7]])
		if iso, ok := isoDate(year, month, day); ok {
			found = append(found, positioned{iso, m[0]})
		}
	}
	for _, m := range monthDayRe.FindAllStringSubmatchIndex(text, -1) {
		month, day, year := monthNumber(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), atoi(text[m[6]:m[7]])
		if iso, ok := isoDate(year, month, day); ok {
			found = append(found, positioned{iso, m[0]})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	out := make([]string, 0, len(found))
	for _, item := range found {
		out = appendUnique(out, item.value)
	}
	return out
}

func isoDate(year, month, day int) (string, bool) {
	if year < 1800 || year > 2200 || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func expandYear(raw string) int {
	year := atoi(raw)
	if len(raw) == 2 {
		if year <= 50 {
			return 2000 + year
		}
		return 1900 + year
	}
	return year
}

func monthNumber(name string) int {
	lower := strings.ToLower(name)
	for i, prefix := range monthPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return i + 1
		}
	}
	return 0
}

func atoi(raw string) int {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
