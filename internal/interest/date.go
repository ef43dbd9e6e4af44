package interest

import (
	"errors"
	"time"
)

const secondsPerDay = 86_400

var (
	errZeroIndex    = errors.New("index must be positive")
	errBadTimestamp = errors.New("timestamp must be positive")
)

// DateOfUnix truncates a Unix timestamp to its UTC calendar day in yyyymmdd
// form. UTC is used for every day boundary in this package.
func DateOfUnix(ts int64) int {
	t := time.Unix(ts, 0).UTC()
	return t.Year()*10_000 + int(t.Month())*100 + t.Day()
}

// DayStartUnix returns the Unix timestamp of midnight UTC for a yyyymmdd
// date.
func DayStartUnix(date int) int64 {
	y := date / 10_000
	m := time.Month(date / 100 % 100)
	d := date % 100
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

// AddDays shifts a yyyymmdd date by n calendar days.
func AddDays(date, n int) int {
	y := date / 10_000
	m := time.Month(date / 100 % 100)
	d := date % 100
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return t.Year()*10_000 + int(t.Month())*100 + t.Day()
}

// DaysBetween returns the number of whole calendar days from a to b, both
// yyyymmdd. Negative when b is before a.
func DaysBetween(a, b int) int {
	return int((DayStartUnix(b) - DayStartUnix(a)) / secondsPerDay)
}

// ValidDate reports whether a yyyymmdd date names a real calendar day.
func ValidDate(date int) bool {
	y := date / 10_000
	m := time.Month(date / 100 % 100)
	d := date % 100
	if y < 1970 || m < time.January || m > time.December || d < 1 || d > 31 {
		return false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return t.Year() == y && t.Month() == m && t.Day() == d
}
