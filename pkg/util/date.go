package util

import "time"

// marketLoc is the exchange timezone. All session math happens here
// regardless of where the process runs.
var marketLoc = mustLoadLocation("Asia/Shanghai")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// tzdata missing on the host; fall back to the fixed offset.
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// MarketTime converts t to the exchange timezone.
func MarketTime(t time.Time) time.Time {
	return t.In(marketLoc)
}

// MarketNow returns the current time in the exchange timezone.
func MarketNow() time.Time {
	return time.Now().In(marketLoc)
}

// DayKey formats t as the exchange-local calendar day.
func DayKey(t time.Time) string {
	return t.In(marketLoc).Format("2006-01-02")
}

// ParseDay parses a YYYY-MM-DD string in the exchange timezone.
func ParseDay(s string) (time.Time, bool) {
	t, err := time.ParseInLocation("2006-01-02", s, marketLoc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SameTradingDay reports whether two instants fall on the same
// exchange-local calendar day.
func SameTradingDay(a, b time.Time) bool {
	return DayKey(a) == DayKey(b)
}

// SessionMinutes returns how many of the 240 trading minutes have elapsed
// at t. The session runs 09:30-11:30 and 13:00-15:00 exchange time; the
// lunch break does not count.
func SessionMinutes(t time.Time) float64 {
	t = t.In(marketLoc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, marketLoc)
	minOf := func(h, m int) float64 {
		return t.Sub(day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)).Minutes()
	}
	switch {
	case minOf(9, 30) <= 0:
		return 0
	case minOf(11, 30) <= 0:
		return minOf(9, 30)
	case minOf(13, 0) <= 0:
		return 120
	case minOf(15, 0) <= 0:
		return 120 + minOf(13, 0)
	default:
		return 240
	}
}

// SessionProgress returns the fraction of the trading session elapsed at
// t, in [0, 1].
func SessionProgress(t time.Time) float64 {
	return SessionMinutes(t) / 240
}
