package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numericDateRe   = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})$`)
	dayMonthYearRe  = regexp.MustCompile(`(?i)^(\d{1,2})(?:st|nd|rd|th)?[\s\-/]*([a-z]+)\.?[\s\-/,]*(\d{4})$`)
	monthDayYearRe  = regexp.MustCompile(`(?i)^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})$`)
	monthYearOnlyRe = regexp.MustCompile(`(?i)^([a-z]+)\.?[\s\-,]*(\d{4})$`)
)

// normalizeDate converts a date token to YYYY-MM-DD, or YYYY-MM when the day is
// absent. Numeric dates are read day-first. Tokens that do not describe a real
// calendar date normalize to "".
func normalizeDate(token string) string {
	token = strings.TrimSpace(token)
	if m := numericDateRe.FindStringSubmatch(token); m != nil {
		return ymd(expandYear(m[3]), atoi(m[2]), atoi(m[1]))
	}
	if m := dayMonthYearRe.FindStringSubmatch(token); m != nil {
		return ymd(atoi(m[3]), monthNumber(m[2]), atoi(m[1]))
	}
	if m := monthDayYearRe.FindStringSubmatch(token); m != nil {
		return ymd(atoi(m[3]), monthNumber(m[1]), atoi(m[2]))
	}
	if m := monthYearOnlyRe.FindStringSubmatch(token); m != nil {
		month := monthNumber(m[1])
		if month == 0 {
			return ""
		}
		return fmt.Sprintf("%04d-%02d", atoi(m[2]), month)
	}
	return ""
}

func ymd(year, month, day int) string {
	if month < 1 || month > 12 || day < 1 {
		return ""
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return ""
	}
	return t.Format("2006-01-02")
}

// expandYear maps two-digit years below 50 to the 2000s.
func expandYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		if y < 50 {
			return 2000 + y
		}
		return 1900 + y
	}
	return y
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func monthNumber(name string) int {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0
	}
	for i, m := range []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"} {
		if strings.HasPrefix(name, m) {
			return i + 1
		}
	}
	return 0
}
