package models

// Signal classifies one instrument for one cycle.
type Signal string

const (
	SignalSafe         Signal = "SAFE"
	SignalObserved     Signal = "OBSERVED"
	SignalWatch        Signal = "WATCH"
	SignalWarning      Signal = "WARNING"
	SignalDanger       Signal = "DANGER"
	SignalOverbought   Signal = "OVERBOUGHT"
	SignalLimitUp      Signal = "LIMIT_UP"
	SignalLimitDown    Signal = "LIMIT_DOWN"
	SignalLockedDanger Signal = "LOCKED_DANGER"
	SignalNA           Signal = "N/A"
)

// Confidence tiers attached to a signal. The Chinese labels are part of
// the persisted record contract shared with the downstream reporters.
type Confidence string

const (
	ConfidenceLow    Confidence = "低"
	ConfidenceMedium Confidence = "中"
	ConfidenceHigh   Confidence = "高"
)

// ProcessedStock is one instrument after indicator computation and signal
// classification. Field names mirror the persisted JSON contract.
type ProcessedStock struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	CurrentPrice     float64 `json:"current_price"`
	PctChange        float64 `json:"pct_change"`
	MA20             float64 `json:"ma20"`
	BiasPct          float64 `json:"bias_pct"`
	Volume           float64 `json:"volume"`
	TurnoverRate     float64 `json:"turnover_rate"`
	VolumeRatio      float64 `json:"volume_ratio"`
	VolumeLevel      string  `json:"volume_level"`
	ContinuousShrink bool    `json:"continuous_shrink"`

	Indicators IndicatorSet `json:"indicators"`

	Signal      Signal     `json:"signal"`
	Confidence  Confidence `json:"confidence,omitempty"`
	TechSummary string     `json:"tech_summary,omitempty"`
	Tradeable   *bool      `json:"tradeable,omitempty"`
	SignalNote  string     `json:"signal_note,omitempty"`

	News []string `json:"news"`
}

// SignalAction is the per-instrument slice of a DailyRecord the tracker
// needs: what was claimed yesterday.
type SignalAction struct {
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Signal     Signal     `json:"signal"`
	Confidence Confidence `json:"confidence"`
}
