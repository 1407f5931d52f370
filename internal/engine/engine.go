// Package engine turns raw collector output into classified signals:
// realtime MA stitching, indicator computation, tier classification,
// the declarative rule overlay and the T+1 lock.
package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"StockSentinel/internal/domain/models"
	"StockSentinel/internal/indicator"
	"StockSentinel/pkg/config"
	"StockSentinel/pkg/logger"
	"StockSentinel/pkg/util"
)

// minProgress is the least session fraction at which the volume ratio
// is meaningful. Below it the projection multiplier explodes, so the
// ratio reports 0 (insufficient data).
const minProgress = 0.1

// maxVolumeRatio caps the projected ratio against opening spikes.
const maxVolumeRatio = 10.0

const obvMAPeriod = 10

type Engine struct {
	risk config.Risk
	log  *logger.Logger
	now  func() time.Time
}

func New(risk config.Risk, log *logger.Logger) *Engine {
	return &Engine{risk: risk, log: log, now: util.MarketNow}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// CalculateIndicators derives the full indicator view for one raw stock.
// The live price is stitched onto yesterday's closes so the moving
// average tracks intraday; bars from today are dropped first so the
// price is never counted twice.
func (e *Engine) CalculateIndicators(raw models.StockRaw) models.ProcessedStock {
	out := models.ProcessedStock{
		Code:         raw.Code,
		Name:         raw.Name,
		CurrentPrice: round(raw.CurrentPrice, 2),
		PctChange:    raw.PctChange,
		News:         raw.News,
	}

	now := e.now()
	bars := raw.Bars.FilterBefore(now)
	if raw.CurrentPrice == 0 || len(bars) == 0 {
		e.log.Warn("insufficient data for indicators",
			logger.String("code", raw.Code), logger.Int("bars", len(bars)))
		return out
	}

	pastCloses := bars.Closes()
	fullCloses := append(append([]float64{}, pastCloses...), raw.CurrentPrice)

	window := e.risk.MAWindow
	combined := fullCloses
	if len(fullCloses) > window {
		combined = fullCloses[len(fullCloses)-window:]
	}
	var ma float64
	for _, v := range combined {
		ma += v
	}
	ma /= float64(len(combined))

	out.MA20 = round(ma, 2)
	out.BiasPct = round((raw.CurrentPrice-ma)/ma, 4)

	// Intraday volume normalization: project today's running volume to a
	// full-day estimate before comparing against the 5-day average.
	progress := util.SessionProgress(now)
	var ratio float64
	if progress >= minProgress && raw.AvgVolume5D > 0 {
		ratio = math.Min(raw.Volume/progress/raw.AvgVolume5D, maxVolumeRatio)
	}
	out.VolumeRatio = round(ratio, 2)
	out.Volume = round(raw.Volume/10000, 2)
	out.TurnoverRate = round(raw.TurnoverRate, 2)
	out.VolumeLevel = volumeLevel(ratio)

	vols := bars.Volumes()
	if n := len(vols); n >= 3 {
		out.ContinuousShrink = vols[n-1] < vols[n-2] && vols[n-2] < vols[n-3]
	}

	open := raw.Open
	if open == 0 {
		open = raw.CurrentPrice
	}
	high := raw.High
	if high == 0 {
		high = raw.CurrentPrice
	}
	low := raw.Low
	if low == 0 {
		low = raw.CurrentPrice
	}
	fullOpens := append(bars.Opens(), open)
	fullHighs := append(bars.Highs(), high)
	fullLows := append(bars.Lows(), low)
	fullVols := append(vols, raw.Volume)

	ti := e.risk.Indicators
	out.Indicators = models.IndicatorSet{
		MACD:      indicator.MACD(fullCloses, ti.MACD.FastPeriod, ti.MACD.SlowPeriod, ti.MACD.SignalPeriod, 5),
		RSI:       indicator.RSI(fullCloses, ti.RSI.Period),
		Bollinger: indicator.Bollinger(fullCloses, ti.Bollinger.Window, ti.Bollinger.NumStd),
		KDJ:       indicator.KDJ(fullHighs, fullLows, fullCloses, 9, 3, 3),
		ATR:       indicator.ATR(fullHighs, fullLows, fullCloses, 14),
		OBV:       indicator.OBV(fullCloses, fullOpens, fullVols, obvMAPeriod),
	}
	return out
}

func volumeLevel(ratio float64) string {
	switch {
	case ratio > 1.5:
		return "放量"
	case ratio > 1.0:
		return "平量"
	case ratio > 0.8:
		return "温和缩量"
	case ratio > 0:
		return "极度缩量"
	default:
		return "无"
	}
}

// limitThreshold returns the price-limit guard band for a code. Bands
// sit half a point inside the exchange limit so a stock pinned at the
// board is still caught after rounding.
func limitThreshold(code, name string) float64 {
	if strings.Contains(name, "ST") || strings.Contains(name, "st") {
		return 4.5
	}
	if strings.HasPrefix(code, "300") || strings.HasPrefix(code, "301") || strings.HasPrefix(code, "688") {
		return 19.5
	}
	return 9.5
}

// GenerateSignals classifies every processed stock in place. Holdings
// maps code to buy date for the T+1 lock.
func (e *Engine) GenerateSignals(stocks []models.ProcessedStock, holdings map[string]time.Time) []models.ProcessedStock {
	now := e.now()
	bt := e.risk.BiasThresholds
	results := make([]models.ProcessedStock, 0, len(stocks))

	for _, stock := range stocks {
		if stock.MA20 == 0 {
			stock.Signal = models.SignalNA
			results = append(results, stock)
			continue
		}

		limit := limitThreshold(stock.Code, stock.Name)
		if stock.PctChange >= limit {
			stock.Signal = models.SignalLimitUp
			results = append(results, stock)
			continue
		}
		if stock.PctChange <= -limit {
			stock.Signal = models.SignalLimitDown
			results = append(results, stock)
			continue
		}

		var signal models.Signal
		switch {
		case stock.CurrentPrice > stock.MA20:
			if stock.BiasPct > bt.Overbought {
				signal = models.SignalOverbought
			} else {
				signal = models.SignalSafe
			}
		case stock.BiasPct < bt.Danger:
			signal = models.SignalDanger
		case stock.BiasPct < bt.Warning:
			// Breaking down on heavy volume is the dangerous variant.
			if stock.VolumeRatio > e.risk.VolumeRatioHigh {
				signal = models.SignalDanger
			} else {
				signal = models.SignalWarning
			}
		case stock.BiasPct < bt.Watch:
			signal = models.SignalWatch
		default:
			signal = models.SignalObserved
		}

		flags := e.buildFlags(&stock)
		confidence := e.defaultConfidence(signal, flags)
		signal, confidence = e.applyRules(stock.Name, signal, confidence, flags)

		stock.Signal = signal
		stock.Confidence = confidence
		stock.TechSummary = buildTechSummary(&stock)

		if buyDate, held := holdings[stock.Code]; held {
			if util.SameTradingDay(buyDate, now) {
				f := false
				stock.Tradeable = &f
				stock.SignalNote = fmt.Sprintf("T+1限制：今日(%s)买入无法卖出", util.DayKey(buyDate))
				if stock.Signal == models.SignalDanger {
					stock.Signal = models.SignalLockedDanger
				}
			} else {
				tr := true
				stock.Tradeable = &tr
			}
		}

		results = append(results, stock)
	}
	return results
}

// defaultConfidence sets the starting confidence before the rule
// overlay: risk signals earn High only when several dimensions agree.
func (e *Engine) defaultConfidence(signal models.Signal, flags flagSet) models.Confidence {
	switch signal {
	case models.SignalDanger:
		bearish := flags.count("MACD_BEARISH", "MACD_WEAK", "OBV_OUTFLOW", "RSI_OVERSOLD", "BB_BELOW_LOWER")
		if bearish >= 3 {
			return models.ConfidenceHigh
		}
	case models.SignalOverbought:
		overbought := flags.count("RSI_OVERBOUGHT", "BB_ABOVE_UPPER", "MACD_BEARISH", "MACD_TOP_DIV")
		if overbought >= 2 {
			return models.ConfidenceHigh
		}
	}
	return models.ConfidenceMedium
}

// applyRules runs the configured overlay, first match wins.
func (e *Engine) applyRules(name string, signal models.Signal, confidence models.Confidence, flags flagSet) (models.Signal, models.Confidence) {
	for _, rule := range e.risk.SignalRules {
		if !contains(rule.Triggers, string(signal)) {
			continue
		}
		if !flags.hasAll(rule.ConditionsAll) || !flags.hasAny(rule.ConditionsAny) {
			continue
		}
		if rule.Result != "" {
			signal = models.Signal(rule.Result)
		}
		if rule.Confidence != "" {
			confidence = models.Confidence(rule.Confidence)
		}
		e.log.Debug("signal rule fired",
			logger.String("rule", rule.Name), logger.String("stock", name),
			logger.String("signal", string(signal)), logger.String("confidence", string(confidence)))
		break
	}
	return signal, confidence
}

// BuildActions extracts the per-stock claims the tracker will grade
// tomorrow.
func BuildActions(stocks []models.ProcessedStock) []models.SignalAction {
	out := make([]models.SignalAction, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, models.SignalAction{
			Code:       s.Code,
			Name:       s.Name,
			Signal:     s.Signal,
			Confidence: s.Confidence,
		})
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
