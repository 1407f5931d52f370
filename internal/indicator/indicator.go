// Package indicator holds the pure technical-indicator math. Every
// function takes plain price columns and returns a models struct for the
// latest step; nothing here touches I/O or state.
package indicator

import (
	"math"

	"StockSentinel/internal/domain/models"
)

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// EMA returns the exponential moving average series, seeded with the
// first value.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	mult := 2.0 / float64(period+1)
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*mult + out[i-1]*(1-mult)
	}
	return out
}

// MACD computes dif/dea/histogram with trend, pillar power and
// divergence over the close series. lookback windows the divergence
// comparison. Returns zero values with UNKNOWN readings when the series
// is shorter than slow+signalPeriod.
func MACD(closes []float64, fast, slow, signalPeriod, lookback int) models.MACD {
	if len(closes) < slow+signalPeriod {
		return models.MACD{Trend: models.TrendUnknown, Power: models.PowerUnknown, Divergence: models.DivergenceNone}
	}

	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}
	signalLine := EMA(macdLine[slow-1:], signalPeriod)

	validLen := len(signalLine)
	macdValid := macdLine[len(macdLine)-validLen:]
	histSeq := make([]float64, validLen)
	for i := range signalLine {
		histSeq[i] = macdValid[i] - signalLine[i]
	}

	dif := macdValid[validLen-1]
	dea := signalLine[validLen-1]
	hist := histSeq[validLen-1]
	var prevHist float64
	if validLen > 1 {
		prevHist = histSeq[validLen-2]
	}

	var trend string
	switch {
	case hist > 0 && prevHist <= 0:
		trend = models.TrendGoldenCross
	case hist < 0 && prevHist >= 0:
		trend = models.TrendDeathCross
	case hist > 0:
		trend = models.TrendBullish
	default:
		trend = models.TrendBearish
	}

	var power string
	switch {
	case dif >= dea && dea >= 0:
		power = models.PowerSuperStrong
	case hist > 0:
		power = models.PowerStrong
	case dif <= dea && dea <= 0:
		power = models.PowerSuperWeak
	case hist <= 0:
		power = models.PowerWeak
	default:
		power = models.PowerUnknown
	}

	divergence := models.DivergenceNone
	if len(closes) >= slow+signalPeriod+lookback*2 && validLen > lookback*4 {
		recentCloses := closes[len(closes)-lookback:]
		pastCloses := closes[len(closes)-lookback*3 : len(closes)-lookback]
		recentMACD := macdValid[validLen-lookback:]
		pastMACD := macdValid[validLen-lookback*3 : validLen-lookback]

		switch {
		case minOf(recentCloses) < minOf(pastCloses) && minOf(recentMACD) > minOf(pastMACD):
			divergence = models.DivergenceBottom
		case maxOf(recentCloses) > maxOf(pastCloses) && maxOf(recentMACD) < maxOf(pastMACD):
			divergence = models.DivergenceTop
		}
	}

	return models.MACD{
		DIF:        round(dif, 4),
		DEA:        round(dea, 4),
		Histogram:  round(hist, 4),
		Trend:      trend,
		Power:      power,
		Divergence: divergence,
	}
}

// RSI returns the Wilder-smoothed relative strength index in [0, 100].
// Returns the neutral 50 when the series is shorter than period+1, and
// 100 when there were no losses at all.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0
	}
	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains = append(gains, d)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -d)
		}
	}
	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return round(100-100/(1+rs), 2)
}

// Bollinger computes the bands over the trailing window plus where the
// last close sits relative to them.
func Bollinger(closes []float64, window int, numStd float64) models.Bollinger {
	if len(closes) < window {
		return models.Bollinger{Position: models.BandUnknown}
	}
	recent := closes[len(closes)-window:]
	var middle float64
	for _, v := range recent {
		middle += v
	}
	middle /= float64(window)
	var variance float64
	for _, v := range recent {
		variance += (v - middle) * (v - middle)
	}
	variance /= float64(window)
	std := math.Sqrt(variance)
	upper := middle + numStd*std
	lower := middle - numStd*std
	var bandwidth float64
	if middle > 0 {
		bandwidth = (upper - lower) / middle
	}

	current := closes[len(closes)-1]
	var position string
	switch {
	case current >= upper:
		position = models.BandAboveUpper
	case current <= lower:
		position = models.BandBelowLower
	case current > middle:
		position = models.BandUpperHalf
	default:
		position = models.BandLowerHalf
	}

	return models.Bollinger{
		Upper:     round(upper, 2),
		Middle:    round(middle, 2),
		Lower:     round(lower, 2),
		Bandwidth: round(bandwidth, 4),
		Position:  position,
	}
}

// KDJ computes the stochastic oscillator with the standard 9/3/3
// smoothing, K and D seeded at 50. The combined signal upgrades an
// extreme-zone reading when a cross happens inside the zone.
func KDJ(highs, lows, closes []float64, n, m1, m2 int) models.KDJ {
	if len(closes) < n {
		return models.KDJ{K: 50, D: 50, J: 50, Cross: models.CrossNone, Signal: models.KDJUnknown}
	}

	k, d := 50.0, 50.0
	kSeq := make([]float64, len(closes))
	dSeq := make([]float64, len(closes))
	jSeq := make([]float64, len(closes))
	for i := range closes {
		if i < n-1 {
			kSeq[i], dSeq[i], jSeq[i] = 50, 50, 50
			continue
		}
		hh := maxOf(highs[i-n+1 : i+1])
		ll := minOf(lows[i-n+1 : i+1])
		rsv := 100.0
		if hh != ll {
			rsv = (closes[i] - ll) / (hh - ll) * 100
		}
		k = float64(m1-1)/float64(m1)*k + 1/float64(m1)*rsv
		d = float64(m2-1)/float64(m2)*d + 1/float64(m2)*k
		kSeq[i], dSeq[i], jSeq[i] = k, d, 3*k-2*d
	}

	last := len(closes) - 1
	curK, curD, curJ := kSeq[last], dSeq[last], jSeq[last]

	cross := models.CrossNone
	if last >= 1 {
		prevK, prevD := kSeq[last-1], dSeq[last-1]
		switch {
		case prevK <= prevD && curK > curD:
			cross = models.CrossGolden
		case prevK >= prevD && curK < curD:
			cross = models.CrossDeath
		}
	}

	signal := models.KDJNeutral
	switch {
	case curK < 20 && curD < 20:
		signal = models.KDJOversold
		if cross == models.CrossGolden {
			signal = models.KDJOversoldGolden
		}
	case curK > 80 && curD > 80:
		signal = models.KDJOverbought
		if cross == models.CrossDeath {
			signal = models.KDJOverboughtDeath
		}
	}

	return models.KDJ{
		K:      round(curK, 2),
		D:      round(curD, 2),
		J:      round(curJ, 2),
		Cross:  cross,
		Signal: signal,
	}
}

// ATR computes the Wilder-smoothed average true range and buckets the
// atr/price ratio into a volatility reading.
func ATR(highs, lows, closes []float64, period int) models.ATR {
	if len(closes) < period+1 {
		return models.ATR{Volatility: models.VolatilityUnknown}
	}
	trSeq := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		h, l, pc := highs[i], lows[i], closes[i-1]
		tr := math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
		trSeq = append(trSeq, tr)
	}
	var atr float64
	for i := 0; i < period; i++ {
		atr += trSeq[i]
	}
	atr /= float64(period)
	for i := period; i < len(trSeq); i++ {
		atr = (atr*float64(period-1) + trSeq[i]) / float64(period)
	}

	var atrPct float64
	if cc := closes[len(closes)-1]; cc > 0 {
		atrPct = atr / cc
	}
	var volatility string
	switch {
	case atrPct > 0.08:
		volatility = models.VolatilityHigh
	case atrPct < 0.03:
		volatility = models.VolatilityLow
	default:
		volatility = models.VolatilityNormal
	}

	return models.ATR{
		Value:      round(atr, 2),
		PctOfPrice: round(atrPct, 4),
		Volatility: volatility,
	}
}

// OBV accumulates signed volume by candle direction (close vs open,
// dojis count zero), then compares it to its EMA to read money flow.
func OBV(closes, opens, vols []float64, maPeriod int) models.OBV {
	if len(closes) < maPeriod+1 || len(closes) != len(opens) || len(closes) != len(vols) {
		return models.OBV{Trend: models.FlowUnknown}
	}
	obvSeq := make([]float64, len(closes))
	var cur float64
	for i := range closes {
		switch {
		case closes[i] > opens[i]:
			cur += vols[i]
		case closes[i] < opens[i]:
			cur -= vols[i]
		}
		obvSeq[i] = cur
	}
	ma := EMA(obvSeq, maPeriod)

	current := obvSeq[len(obvSeq)-1]
	maLast := ma[len(ma)-1]
	var trend string
	switch {
	case current > maLast:
		trend = models.FlowInflow
	case current < maLast:
		trend = models.FlowOutflow
	default:
		trend = models.FlowNeutral
	}

	return models.OBV{
		Value:     round(current, 2),
		MovingAvg: round(maLast, 2),
		Trend:     trend,
	}
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
