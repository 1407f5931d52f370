package indicator

import (
	"math"
	"testing"

	"StockSentinel/internal/domain/models"
)

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEMAEmpty(t *testing.T) {
	if got := EMA(nil, 10); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestEMAConstantSeries(t *testing.T) {
	series := constant(30, 7.5)
	out := EMA(series, 12)
	if len(out) != len(series) {
		t.Fatalf("len = %d, want %d", len(out), len(series))
	}
	if out[0] != series[0] {
		t.Fatalf("ema[0] = %v, want seed %v", out[0], series[0])
	}
	for i, v := range out {
		if math.Abs(v-7.5) > 1e-9 {
			t.Fatalf("ema[%d] = %v, want 7.5", i, v)
		}
	}
}

func TestEMARisingSeriesLengthAndSeed(t *testing.T) {
	series := rising(40, 10, 0.5)
	out := EMA(series, 12)
	if len(out) != len(series) {
		t.Fatalf("len = %d, want %d", len(out), len(series))
	}
	if out[0] != series[0] {
		t.Fatalf("ema[0] = %v, want seed %v", out[0], series[0])
	}
}

func TestMACDInsufficientData(t *testing.T) {
	got := MACD(rising(10, 1, 1), 12, 26, 9, 5)
	if got.Trend != models.TrendUnknown {
		t.Fatalf("trend = %q, want UNKNOWN", got.Trend)
	}
	if got.DIF != 0 || got.DEA != 0 {
		t.Fatalf("expected zero values, got %+v", got)
	}
}

func TestMACDUptrend(t *testing.T) {
	got := MACD(rising(60, 10, 0.5), 12, 26, 9, 5)
	if got.Trend != models.TrendBullish {
		t.Fatalf("trend = %q, want BULLISH", got.Trend)
	}
	if got.Power != models.PowerSuperStrong {
		t.Fatalf("power = %q, want SUPER_STRONG", got.Power)
	}
	if got.Histogram <= 0 {
		t.Fatalf("histogram = %v, want > 0", got.Histogram)
	}
}

func TestMACDDowntrend(t *testing.T) {
	got := MACD(rising(60, 100, -0.5), 12, 26, 9, 5)
	if got.Trend != models.TrendBearish {
		t.Fatalf("trend = %q, want BEARISH", got.Trend)
	}
	if got.Power != models.PowerSuperWeak {
		t.Fatalf("power = %q, want SUPER_WEAK", got.Power)
	}
}

func TestRSIInsufficientData(t *testing.T) {
	if got := RSI(rising(10, 1, 1), 14); got != 50.0 {
		t.Fatalf("rsi = %v, want neutral 50", got)
	}
}

func TestRSIAllGains(t *testing.T) {
	if got := RSI(rising(30, 10, 0.2), 14); got != 100.0 {
		t.Fatalf("rsi = %v, want 100 with no losses", got)
	}
}

func TestRSIAllLosses(t *testing.T) {
	if got := RSI(rising(30, 50, -0.2), 14); got != 0.0 {
		t.Fatalf("rsi = %v, want 0 with no gains", got)
	}
}

func TestBollingerInsufficientData(t *testing.T) {
	got := Bollinger(rising(5, 1, 1), 20, 2)
	if got.Position != models.BandUnknown {
		t.Fatalf("position = %q, want UNKNOWN", got.Position)
	}
}

func TestBollingerUpperHalf(t *testing.T) {
	got := Bollinger(rising(20, 1, 1), 20, 2)
	if got.Position != models.BandUpperHalf {
		t.Fatalf("position = %q, want UPPER_HALF", got.Position)
	}
	if got.Middle != 10.5 {
		t.Fatalf("middle = %v, want 10.5", got.Middle)
	}
	if got.Upper <= got.Middle || got.Lower >= got.Middle {
		t.Fatalf("band ordering broken: %+v", got)
	}
}

func TestBollingerFlatSeriesTouchesUpper(t *testing.T) {
	got := Bollinger(constant(25, 10), 20, 2)
	if got.Position != models.BandAboveUpper {
		t.Fatalf("position = %q, want ABOVE_UPPER on zero-width bands", got.Position)
	}
	if got.Bandwidth != 0 {
		t.Fatalf("bandwidth = %v, want 0", got.Bandwidth)
	}
}

func TestKDJInsufficientData(t *testing.T) {
	got := KDJ(rising(5, 1, 1), rising(5, 1, 1), rising(5, 1, 1), 9, 3, 3)
	if got.Signal != models.KDJUnknown || got.K != 50 {
		t.Fatalf("expected neutral defaults, got %+v", got)
	}
}

func TestKDJOverboughtInUptrend(t *testing.T) {
	closes := rising(40, 10, 0.5)
	got := KDJ(closes, closes, closes, 9, 3, 3)
	if got.Signal != models.KDJOverbought {
		t.Fatalf("signal = %q, want OVERBOUGHT", got.Signal)
	}
	if got.Cross != models.CrossNone {
		t.Fatalf("cross = %q, want NONE", got.Cross)
	}
	if got.K <= 80 || got.D <= 80 {
		t.Fatalf("k/d = %v/%v, want both above 80", got.K, got.D)
	}
}

func TestATRInsufficientData(t *testing.T) {
	got := ATR(rising(5, 1, 1), rising(5, 1, 1), rising(5, 1, 1), 14)
	if got.Volatility != models.VolatilityUnknown {
		t.Fatalf("volatility = %q, want UNKNOWN", got.Volatility)
	}
}

func TestATRFlatSeriesIsLowVolatility(t *testing.T) {
	n := 30
	got := ATR(constant(n, 10), constant(n, 10), constant(n, 10), 14)
	if got.Value != 0 {
		t.Fatalf("atr = %v, want 0", got.Value)
	}
	if got.Volatility != models.VolatilityLow {
		t.Fatalf("volatility = %q, want LOW_VOLATILE", got.Volatility)
	}
}

func TestATRWideRangesAreHighVolatility(t *testing.T) {
	n := 30
	got := ATR(constant(n, 20), constant(n, 10), constant(n, 15), 14)
	if got.Volatility != models.VolatilityHigh {
		t.Fatalf("volatility = %q, want HIGH_VOLATILE (pct=%v)", got.Volatility, got.PctOfPrice)
	}
}

func TestOBVMismatchedColumns(t *testing.T) {
	got := OBV(rising(20, 1, 1), rising(19, 1, 1), rising(20, 1, 1), 10)
	if got.Trend != models.FlowUnknown {
		t.Fatalf("trend = %q, want UNKNOWN", got.Trend)
	}
}

func TestOBVSteadyBuyingIsInflow(t *testing.T) {
	n := 20
	closes := rising(n, 11, 0.5)
	opens := rising(n, 10, 0.5)
	vols := constant(n, 1000)
	got := OBV(closes, opens, vols, 10)
	if got.Trend != models.FlowInflow {
		t.Fatalf("trend = %q, want INFLOW", got.Trend)
	}
	if got.Value != float64(n)*1000 {
		t.Fatalf("obv = %v, want %v", got.Value, float64(n)*1000)
	}
}
