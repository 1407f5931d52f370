package models

import "time"

// Quote is a current-session snapshot for one instrument. It is refreshed
// every collection cycle and never persisted on its own.
type Quote struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Price        float64 `json:"current_price"`
	PctChange    float64 `json:"pct_change"`
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Volume       float64 `json:"volume"`
	TurnoverRate float64 `json:"turnover_rate"`
}

// IndexQuote is a market index snapshot (上证指数, 深证成指, 创业板指).
type IndexQuote struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Current   float64 `json:"current"`
	ChangePct float64 `json:"change_pct"`
}

// Bar is one completed trading day. Immutable once fetched.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// BarSeries is an ordered sequence of daily bars, insertion order =
// chronological. It must never include the current, still-forming
// trading day; FilterBefore enforces that at the processing boundary.
type BarSeries []Bar

// FilterBefore returns the bars strictly older than the given day.
// Provider kline APIs may include today's unfinished bar; dropping it here
// keeps the live price from being counted twice in moving averages.
func (s BarSeries) FilterBefore(day time.Time) BarSeries {
	cutoff := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	out := make(BarSeries, 0, len(s))
	for _, b := range s {
		if b.Date.In(day.Location()).Before(cutoff) {
			out = append(out, b)
		}
	}
	return out
}

// Closes returns the close column.
func (s BarSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Opens returns the open column.
func (s BarSeries) Opens() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Open
	}
	return out
}

// Highs returns the high column.
func (s BarSeries) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

// Lows returns the low column.
func (s BarSeries) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

// Volumes returns the volume column.
func (s BarSeries) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// AvgVolume returns the mean volume of the last n bars (all bars if fewer).
func (s BarSeries) AvgVolume(n int) float64 {
	if len(s) == 0 {
		return 0
	}
	start := len(s) - n
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, b := range s[start:] {
		sum += b.Volume
	}
	return sum / float64(len(s)-start)
}
