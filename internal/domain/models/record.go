package models

import "time"

// StockRaw is one instrument as it leaves the collector: live quote,
// completed daily bars and headlines, nothing derived yet.
type StockRaw struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	CurrentPrice float64   `json:"current_price"`
	PctChange    float64   `json:"pct_change"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Volume       float64   `json:"volume"`
	TurnoverRate float64   `json:"turnover_rate"`
	AvgVolume5D  float64   `json:"avg_volume_5d"`
	Bars         BarSeries `json:"bars"`
	News         []string  `json:"news"`
}

// MacroNews carries the two macro headline feeds shown alongside the
// per-instrument rows.
type MacroNews struct {
	Telegraph []string `json:"telegraph"`
	AITech    []string `json:"ai_tech"`
}

// MarketSnapshot is the collector output for one cycle: the global blocks
// plus one StockRaw per portfolio instrument. Failed branches appear as
// their zero defaults, never as missing structure.
type MarketSnapshot struct {
	MarketBreadth string                `json:"market_breadth"`
	Indices       map[string]IndexQuote `json:"indices"`
	MacroNews     MacroNews             `json:"macro_news"`
	Stocks        []StockRaw            `json:"stocks"`
}

// DailyRecord is the persisted unit: one cycle's processed stocks plus the
// raw market context it was derived from. Two adjacent records are the
// tracker's unit of work.
type DailyRecord struct {
	Date    time.Time        `json:"date"`
	Mode    string           `json:"mode"`
	Raw     *MarketSnapshot  `json:"raw"`
	Stocks  []ProcessedStock `json:"stocks"`
	Actions []SignalAction   `json:"actions"`
}
