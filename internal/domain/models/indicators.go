package models

// MACD trend states.
const (
	TrendGoldenCross = "GOLDEN_CROSS"
	TrendDeathCross  = "DEATH_CROSS"
	TrendBullish     = "BULLISH"
	TrendBearish     = "BEARISH"
	TrendUnknown     = "UNKNOWN"
)

// MACD pillar power states.
const (
	PowerSuperStrong = "SUPER_STRONG"
	PowerStrong      = "STRONG"
	PowerWeak        = "WEAK"
	PowerSuperWeak   = "SUPER_WEAK"
	PowerUnknown     = "UNKNOWN"
)

// MACD divergence states.
const (
	DivergenceNone   = "NONE"
	DivergenceBottom = "BOTTOM_DIV"
	DivergenceTop    = "TOP_DIV"
)

// MACD holds dif/dea/histogram plus the derived trend, pillar power and
// divergence readings for the latest step.
type MACD struct {
	DIF        float64 `json:"macd"`
	DEA        float64 `json:"signal_line"`
	Histogram  float64 `json:"histogram"`
	Trend      string  `json:"trend"`
	Power      string  `json:"power"`
	Divergence string  `json:"divergence"`
}

// Bollinger band positions.
const (
	BandAboveUpper = "ABOVE_UPPER"
	BandBelowLower = "BELOW_LOWER"
	BandUpperHalf  = "UPPER_HALF"
	BandLowerHalf  = "LOWER_HALF"
	BandUnknown    = "UNKNOWN"
)

// Bollinger holds the band values and where the last price sits in them.
type Bollinger struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	Bandwidth float64 `json:"bandwidth"`
	Position  string  `json:"position"`
}

// KDJ cross and zone signals.
const (
	CrossNone   = "NONE"
	CrossGolden = "GOLDEN_CROSS"
	CrossDeath  = "DEATH_CROSS"

	KDJNeutral         = "NEUTRAL"
	KDJOversold        = "OVERSOLD"
	KDJOversoldGolden  = "OVERSOLD_GOLDEN"
	KDJOverbought      = "OVERBOUGHT"
	KDJOverboughtDeath = "OVERBOUGHT_DEATH"
	KDJUnknown         = "UNKNOWN"
)

// KDJ holds the stochastic oscillator values and the combined zone/cross
// signal for the latest step.
type KDJ struct {
	K      float64 `json:"k"`
	D      float64 `json:"d"`
	J      float64 `json:"j"`
	Cross  string  `json:"cross"`
	Signal string  `json:"signal"`
}

// ATR volatility buckets, keyed by atr/price ratio.
const (
	VolatilityHigh    = "HIGH_VOLATILE"
	VolatilityLow     = "LOW_VOLATILE"
	VolatilityNormal  = "NORMAL"
	VolatilityUnknown = "UNKNOWN"
)

// ATR holds the Wilder-smoothed average true range and its bucket.
type ATR struct {
	Value      float64 `json:"atr"`
	PctOfPrice float64 `json:"atr_pct"`
	Volatility string  `json:"volatility"`
}

// OBV money-flow trends.
const (
	FlowInflow  = "INFLOW"
	FlowOutflow = "OUTFLOW"
	FlowNeutral = "NEUTRAL"
	FlowUnknown = "UNKNOWN"
)

// OBV holds the on-balance-volume accumulator, its moving average and the
// derived money-flow trend.
type OBV struct {
	Value     float64 `json:"obv"`
	MovingAvg float64 `json:"obv_ma"`
	Trend     string  `json:"trend"`
}

// IndicatorSet is the full derived view for one instrument in one cycle.
// It is owned by the cycle that computed it and rebuilt from scratch on
// the next one.
type IndicatorSet struct {
	MACD      MACD      `json:"macd"`
	RSI       float64   `json:"rsi"`
	Bollinger Bollinger `json:"bollinger"`
	KDJ       KDJ       `json:"kdj"`
	ATR       ATR       `json:"atr"`
	OBV       OBV       `json:"obv"`
}
