package searchquery

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January, "januar": time.January,
	"feb": time.February, "february": time.February, "februar": time.February,
	"mar": time.March, "march": time.March, "mär": time.March, "maerz": time.March, "märz": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May, "mai": time.May,
	"jun": time.June, "june": time.June, "juni": time.June,
	"jul": time.July, "july": time.July, "juli": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October, "okt": time.October, "oktober": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December, "dez": time.December, "dezember": time.December,
}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday, "montag": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday, "dienstag": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "mittwoch": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday, "donnerstag": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "freitag": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "samstag": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday, "sonntag": time.Sunday,
}

var (
	isoDatePattern    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	dottedDatePattern = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})$`)
	isoWeekPattern    = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)
	kwWeekPattern     = regexp.MustCompile(`^KW(\d{2})$`)
	quarterPattern    = regexp.MustCompile(`^(?:(\d{4})-)?Q([1-4])$`)
	monthNamePattern  = regexp.MustCompile(`(?i)^(?:(\d{4})-)?([a-zäöü]{3,9})$`)
)

// ParseTemporalLiteral parses one recognized temporal literal relative to
// now, returning the calendar date it denotes (time-of-day truncated to
// midnight UTC) and whether parsing succeeded.
func ParseTemporalLiteral(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)

	switch lower {
	case "today", "heute":
		return dateOnly(now), true
	case "tomorrow", "morgen":
		return dateOnly(now.AddDate(0, 0, 1)), true
	}

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC), true
	}

	if m := dottedDatePattern.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC), true
	}

	if m := isoWeekPattern.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		w, _ := strconv.Atoi(m[2])
		return isoWeekStart(y, w), true
	}
	if m := kwWeekPattern.FindStringSubmatch(s); m != nil {
		w, _ := strconv.Atoi(m[1])
		return isoWeekStart(now.Year(), w), true
	}

	if m := quarterPattern.FindStringSubmatch(strings.ToUpper(s)); m != nil {
		y := now.Year()
		if m[1] != "" {
			y, _ = strconv.Atoi(m[1])
		}
		q, _ := strconv.Atoi(m[2])
		return time.Date(y, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC), true
	}

	if m := monthNamePattern.FindStringSubmatch(s); m != nil {
		if mon, ok := monthNames[strings.ToLower(m[2])]; ok {
			y := now.Year()
			if m[1] != "" {
				y, _ = strconv.Atoi(m[1])
			}
			return time.Date(y, mon, 1, 0, 0, 0, 0, time.UTC), true
		}
		if wd, ok := weekdayNames[strings.ToLower(m[2])]; ok && m[1] == "" {
			return nextWeekday(now, wd), true
		}
	}

	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// isoWeekStart returns the Monday of ISO week w in year y.
func isoWeekStart(y, w int) time.Time {
	jan4 := time.Date(y, time.January, 4, 0, 0, 0, 0, time.UTC)
	wd := int(jan4.Weekday())
	if wd == 0 {
		wd = 7
	}
	week1Monday := jan4.AddDate(0, 0, -(wd - 1))
	return week1Monday.AddDate(0, 0, (w-1)*7)
}

// nextWeekday returns the next occurrence of wd strictly after today,
// matching the spec's "resolves to next occurrence" rule for bare weekday
// literals.
func nextWeekday(now time.Time, wd time.Weekday) time.Time {
	today := dateOnly(now)
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

// FormatDue renders a derived due date the way log lines and search
// summaries display it.
func FormatDue(t time.Time) string {
	return strftime.Format("%Y-%m-%d", t)
}
