package closerequest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var units = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
}

var (
	amountUnit = regexp.MustCompile(`(\d+)\s*([a-z]+)`)
	hasDigit   = regexp.MustCompile(`\d`)
)

// ParseDuration parses "1h", "1 hour 30 minutes", "2d 3h 15m" and similar.
// It reports false for unknown units, a zero total, and totals that do not
// fit in a time.Duration.
func ParseDuration(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	matches := amountUnit.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, false
	}

	var total time.Duration
	for _, m := range matches {
		unit, ok := units[m[2]]
		if !ok {
			return 0, false
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n > math.MaxInt64/int64(unit) {
			return 0, false
		}
		part := time.Duration(n) * unit
		if total > math.MaxInt64-part {
			return 0, false
		}
		total += part
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}

// SplitArgs separates a leading duration from the rest of a command's
// arguments. When the first word has no digit, or the collected duration does
// not parse, the whole input is the message.
func SplitArgs(args string) (d time.Duration, message string) {
	args = strings.TrimSpace(args)
	words := strings.Fields(args)
	if len(words) == 0 || !hasDigit.MatchString(words[0]) {
		return 0, args
	}

	timeWords := []string{words[0]}
	var rest []string
	for _, w := range words[1:] {
		if _, unit := units[strings.ToLower(w)]; unit || hasDigit.MatchString(w) {
			timeWords = append(timeWords, w)
		} else {
			rest = append(rest, w)
		}
	}

	d, ok := ParseDuration(strings.Join(timeWords, " "))
	if !ok {
		return 0, args
	}
	return d, strings.Join(rest, " ")
}

// FormatDuration renders d with its two most significant units, e.g.
// "1 hour 30 minutes" or "2 days".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return plural(secs, "second")
	case secs < 3600:
		return pair(secs/60, "minute", secs%60, "second")
	case secs < 86400:
		return pair(secs/3600, "hour", secs%3600/60, "minute")
	default:
		return pair(secs/86400, "day", secs%86400/3600, "hour")
	}
}

func pair(major int64, majorUnit string, minor int64, minorUnit string) string {
	if minor == 0 {
		return plural(major, majorUnit)
	}
	return plural(major, majorUnit) + " " + plural(minor, minorUnit)
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
