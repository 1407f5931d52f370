package engine

import "StockSentinel/internal/domain/models"

// flagSet is the feature vocabulary shared between the engine defaults
// and the configured rule overlay.
type flagSet map[string]struct{}

func (f flagSet) add(name string) { f[name] = struct{}{} }

func (f flagSet) has(name string) bool {
	_, ok := f[name]
	return ok
}

func (f flagSet) count(names ...string) int {
	n := 0
	for _, name := range names {
		if f.has(name) {
			n++
		}
	}
	return n
}

// hasAll is vacuously true for an empty condition list.
func (f flagSet) hasAll(names []string) bool {
	for _, name := range names {
		if !f.has(name) {
			return false
		}
	}
	return true
}

// hasAny is vacuously true for an empty condition list.
func (f flagSet) hasAny(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if f.has(name) {
			return true
		}
	}
	return false
}

// buildFlags projects one stock's indicator view onto the flat flag
// vocabulary the rules are written in.
func (e *Engine) buildFlags(s *models.ProcessedStock) flagSet {
	flags := make(flagSet)
	ind := s.Indicators

	switch ind.MACD.Trend {
	case models.TrendBullish, models.TrendGoldenCross:
		flags.add("MACD_BULLISH")
	case models.TrendBearish, models.TrendDeathCross:
		flags.add("MACD_BEARISH")
	}
	if ind.MACD.Trend == models.TrendGoldenCross {
		flags.add("MACD_GOLDEN_CROSS")
	}
	if ind.MACD.Power == models.PowerWeak || ind.MACD.Power == models.PowerSuperWeak {
		flags.add("MACD_WEAK")
	}
	switch ind.MACD.Divergence {
	case models.DivergenceBottom:
		flags.add("MACD_BOTTOM_DIV")
	case models.DivergenceTop:
		flags.add("MACD_TOP_DIV")
	}

	switch ind.OBV.Trend {
	case models.FlowInflow:
		flags.add("OBV_INFLOW")
	case models.FlowOutflow:
		flags.add("OBV_OUTFLOW")
	}

	if s.VolumeRatio < 1.0 {
		flags.add("VOLUME_SHRINK")
	}
	if s.VolumeRatio > e.risk.VolumeRatioHigh {
		flags.add("VOLUME_HIGH")
	}
	if s.ContinuousShrink {
		flags.add("VOLUME_CONTINUOUS_SHRINK")
	}

	rsi := ind.RSI
	rsiCfg := e.risk.Indicators.RSI
	if rsi > rsiCfg.Overbought && ind.Bollinger.Position == models.BandAboveUpper {
		flags.add("RSI_BB_OVERBOUGHT")
	}
	if rsi > rsiCfg.Overbought {
		flags.add("RSI_OVERBOUGHT")
	}
	if rsi < rsiCfg.Oversold {
		flags.add("RSI_OVERSOLD")
	}
	if rsi < 50 {
		flags.add("RSI_WEAK")
	}

	switch ind.Bollinger.Position {
	case models.BandBelowLower:
		flags.add("BB_BELOW_LOWER")
	case models.BandAboveUpper:
		flags.add("BB_ABOVE_UPPER")
	}

	switch ind.KDJ.Signal {
	case models.KDJOversold, models.KDJOversoldGolden:
		flags.add("KDJ_OVERSOLD")
	case models.KDJOverbought, models.KDJOverboughtDeath:
		flags.add("KDJ_OVERBOUGHT")
	}
	if ind.KDJ.Signal == models.KDJOversoldGolden {
		flags.add("KDJ_OVERSOLD_GOLDEN")
	}
	if ind.KDJ.Signal == models.KDJOverboughtDeath {
		flags.add("KDJ_OVERBOUGHT_DEATH")
	}

	switch ind.ATR.Volatility {
	case models.VolatilityHigh:
		flags.add("ATR_HIGH_VOLATILE")
	case models.VolatilityLow:
		flags.add("ATR_LOW_VOLATILE")
	}

	return flags
}
