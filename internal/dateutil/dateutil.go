// Package dateutil converts between civil dates and YYYY-MM-DD keys.
//
// A civil date is a (year, month, day) triple with no time of day and no
// zone. Keys are always built from a time.Time's own calendar components
// and parsed back component by component, so a date never shifts across a
// timezone boundary on the way through.
package dateutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// KeyLayout is the time layout equivalent of a date key.
const KeyLayout = "2006-01-02"

var ErrInvalidKey = errors.New("invalid date key")

// ToDateKey formats d as YYYY-MM-DD using d's own year/month/day.
func ToDateKey(d time.Time) string {
	y, m, day := d.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), day)
}

// FromDateKey parses a YYYY-MM-DD key into local midnight of that day.
func FromDateKey(key string) (time.Time, error) {
	return FromDateKeyIn(key, time.Local)
}

// FromDateKeyIn parses key into midnight of that day in loc.
// Out-of-range components (2024-02-30) are rejected rather than normalized.
func FromDateKeyIn(key string, loc *time.Location) (time.Time, error) {
	y, m, d, err := splitKey(key)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if ty, tm, td := t.Date(); ty != y || int(tm) != m || td != d {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return t, nil
}

// MustFromDateKey is FromDateKey for keys known to be well formed.
func MustFromDateKey(key string) time.Time {
	t, err := FromDateKey(key)
	if err != nil {
		panic(err)
	}
	return t
}

// ValidKey reports whether key is a well-formed, existing calendar date.
func ValidKey(key string) bool {
	_, err := FromDateKeyIn(key, time.UTC)
	return err == nil
}

func splitKey(key string) (y, m, d int, err error) {
	parts := strings.Split(strings.TrimSpace(key), "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	nums := [3]int{}
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// civil strips d down to its calendar day at UTC midnight. UTC has no DST,
// so AddDate(0, 0, 1) on the result always lands on the next day.
func civil(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// EnumerateRange returns every day key from the earlier of a and b to the
// later, inclusive. Argument order does not matter.
func EnumerateRange(a, b time.Time) []string {
	start, end := civil(a), civil(b)
	if end.Before(start) {
		start, end = end, start
	}
	n := int(end.Sub(start).Hours()/24) + 1
	out := make([]string, 0, n)
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		out = append(out, ToDateKey(cur))
	}
	return out
}

// EnumerateKeys is EnumerateRange over two date keys.
func EnumerateKeys(a, b string) ([]string, error) {
	ta, err := FromDateKeyIn(a, time.UTC)
	if err != nil {
		return nil, err
	}
	tb, err := FromDateKeyIn(b, time.UTC)
	if err != nil {
		return nil, err
	}
	return EnumerateRange(ta, tb), nil
}

// DaysBetween is the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	d := int(civil(b).Sub(civil(a)).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// AddDays returns the key n days after key (n may be negative).
func AddDays(key string, n int) (string, error) {
	t, err := FromDateKeyIn(key, time.UTC)
	if err != nil {
		return "", err
	}
	return ToDateKey(t.AddDate(0, 0, n)), nil
}

// MinMax orders two date keys. Zero-padded keys compare correctly as strings.
func MinMax(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// YearMonth formats the YYYY-MM key of a month.
func YearMonth(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// MonthBounds returns the first and last day keys of a YYYY-MM month.
func MonthBounds(ym string) (first, last string, err error) {
	t, err := FromDateKeyIn(ym+"-01", time.UTC)
	if err != nil {
		return "", "", err
	}
	return ToDateKey(t), ToDateKey(t.AddDate(0, 1, -1)), nil
}
