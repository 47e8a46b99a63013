package invoice

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// CanonicalLayout is the single string representation used for invoice timestamps.
const CanonicalLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	epochSecondsPattern = regexp.MustCompile(`^\d{10}$`)
	epochMillisPattern  = regexp.MustCompile(`^\d{13}$`)
	spacedDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s`)
	isoLocalPattern     = regexp.MustCompile(
		`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2})(?::(\d{2})(?:\.(\d{1,6}))?)?$`,
	)
	datePrefixPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// ParseTimestamp parses a raw timestamp value. Local-style strings without an
// offset are interpreted as wall-clock time in loc.
func ParseTimestamp(value any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}

	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return fromEpoch(n), true
		}
		if f, err := v.Float64(); err == nil {
			return fromFloat(f)
		}
		return parseTimestampString(v.String(), loc)
	case float64:
		return fromFloat(v)
	case int64:
		return fromEpoch(v), true
	case int:
		return fromEpoch(int64(v)), true
	case string:
		return parseTimestampString(v, loc)
	default:
		return parseTimestampString(Stringify(v), loc)
	}
}

func fromFloat(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	return fromEpoch(int64(f)), true
}

// fromEpoch treats values with 10 digits (sign excluded) as seconds and
// anything else as milliseconds.
func fromEpoch(n int64) time.Time {
	if len(strings.TrimPrefix(strconv.FormatInt(n, 10), "-")) == 10 {
		return time.Unix(n, 0)
	}
	return time.UnixMilli(n)
}

func parseTimestampString(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if epochSecondsPattern.MatchString(s) {
		n, _ := strconv.ParseInt(s, 10, 64)
		return time.Unix(n, 0), true
	}
	if epochMillisPattern.MatchString(s) {
		n, _ := strconv.ParseInt(s, 10, 64)
		return time.UnixMilli(n), true
	}

	if spacedDatePattern.MatchString(s) {
		s = s[:10] + "T" + s[11:]
	}

	if m := isoLocalPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, _ := strconv.Atoi(m[4])
		minute, _ := strconv.Atoi(m[5])
		second := 0
		if m[6] != "" {
			second, _ = strconv.Atoi(m[6])
		}
		millis := 0
		if m[7] != "" {
			frac := (m[7] + "00")[:3]
			millis, _ = strconv.Atoi(frac)
		}
		return time.Date(year, time.Month(month), day, hour, minute, second, millis*int(time.Millisecond), loc), true
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}

	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp renders t in the canonical layout for loc.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(CanonicalLayout)
}

// instant returns the epoch millis of a canonical timestamp.
func instant(canonical string) (int64, bool) {
	if canonical == "" {
		return 0, false
	}
	t, err := time.Parse(CanonicalLayout, canonical)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, canonical)
		if err != nil {
			return 0, false
		}
	}
	return t.UnixMilli(), true
}
