package engine

import (
	"math"
	"strings"
	"testing"
	"time"

	"StockSentinel/internal/domain/models"
	"StockSentinel/pkg/config"
	"StockSentinel/pkg/logger"
)

func testRisk() config.Risk {
	r := config.Risk{
		MAWindow:        20,
		VolumeRatioHigh: 1.5,
		BiasThresholds: config.BiasThresholds{
			Watch:      -0.01,
			Warning:    -0.03,
			Danger:     -0.05,
			Overbought: 0.05,
		},
	}
	r.Indicators.MACD.FastPeriod = 12
	r.Indicators.MACD.SlowPeriod = 26
	r.Indicators.MACD.SignalPeriod = 9
	r.Indicators.RSI.Period = 14
	r.Indicators.RSI.Oversold = 30
	r.Indicators.RSI.Overbought = 70
	r.Indicators.Bollinger.Window = 20
	r.Indicators.Bollinger.NumStd = 2
	return r
}

var testNow = time.Date(2025, 6, 10, 15, 30, 0, 0, time.FixedZone("CST", 8*3600))

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	e := New(testRisk(), log)
	e.now = func() time.Time { return testNow }
	return e
}

func history(n int, close float64) models.BarSeries {
	bars := make(models.BarSeries, n)
	for i := range bars {
		bars[i] = models.Bar{
			Date:   testNow.AddDate(0, 0, i-n),
			Open:   close,
			High:   close,
			Low:    close,
			Close:  close,
			Volume: 1000,
		}
	}
	return bars
}

func TestCalculateIndicatorsNoBars(t *testing.T) {
	e := newTestEngine(t)
	got := e.CalculateIndicators(models.StockRaw{Code: "600519", CurrentPrice: 100})
	if got.MA20 != 0 {
		t.Fatalf("ma20 = %v, want 0 without history", got.MA20)
	}
}

func TestCalculateIndicatorsStitchesLivePrice(t *testing.T) {
	e := newTestEngine(t)
	raw := models.StockRaw{
		Code:         "600519",
		CurrentPrice: 20,
		Volume:       5000,
		AvgVolume5D:  1000,
		Bars:         history(40, 10),
	}
	got := e.CalculateIndicators(raw)

	// 19 past closes at 10 plus the live 20: (19*10+20)/20 = 10.5.
	if got.MA20 != 10.5 {
		t.Fatalf("ma20 = %v, want 10.5", got.MA20)
	}
	wantBias := math.Round((20-10.5)/10.5*10000) / 10000
	if got.BiasPct != wantBias {
		t.Fatalf("bias = %v, want %v", got.BiasPct, wantBias)
	}
	// Session is over at 15:30, so no projection: 5000/1000 = 5.
	if got.VolumeRatio != 5 {
		t.Fatalf("volume ratio = %v, want 5", got.VolumeRatio)
	}
	if got.VolumeLevel != "放量" {
		t.Fatalf("volume level = %q", got.VolumeLevel)
	}
}

func TestCalculateIndicatorsDropsTodayBar(t *testing.T) {
	e := newTestEngine(t)
	bars := history(40, 10)
	// A bar stamped today must not leak into the average.
	bars = append(bars, models.Bar{Date: testNow, Close: 1000, Open: 1000, High: 1000, Low: 1000, Volume: 1})
	got := e.CalculateIndicators(models.StockRaw{Code: "600519", CurrentPrice: 20, Bars: bars})
	if got.MA20 != 10.5 {
		t.Fatalf("ma20 = %v, want 10.5 with today's bar dropped", got.MA20)
	}
}

func TestCalculateIndicatorsVolumeRatioCapped(t *testing.T) {
	e := newTestEngine(t)
	raw := models.StockRaw{
		Code: "600519", CurrentPrice: 20,
		Volume: 1e6, AvgVolume5D: 100,
		Bars: history(40, 10),
	}
	if got := e.CalculateIndicators(raw); got.VolumeRatio != 10 {
		t.Fatalf("volume ratio = %v, want cap 10", got.VolumeRatio)
	}
}

func TestCalculateIndicatorsEarlySessionNoRatio(t *testing.T) {
	e := newTestEngine(t)
	e.now = func() time.Time {
		return time.Date(2025, 6, 10, 9, 35, 0, 0, time.FixedZone("CST", 8*3600))
	}
	raw := models.StockRaw{
		Code: "600519", CurrentPrice: 20,
		Volume: 5000, AvgVolume5D: 1000,
		Bars: history(40, 10),
	}
	if got := e.CalculateIndicators(raw); got.VolumeRatio != 0 {
		t.Fatalf("volume ratio = %v, want 0 before enough session elapsed", got.VolumeRatio)
	}
}

func TestCalculateIndicatorsContinuousShrink(t *testing.T) {
	e := newTestEngine(t)
	bars := history(40, 10)
	n := len(bars)
	bars[n-3].Volume = 3000
	bars[n-2].Volume = 2000
	bars[n-1].Volume = 1000
	got := e.CalculateIndicators(models.StockRaw{Code: "600519", CurrentPrice: 20, Bars: bars})
	if !got.ContinuousShrink {
		t.Fatalf("expected continuous shrink with three falling volumes")
	}
}

func stock(price, ma float64, opts ...func(*models.ProcessedStock)) models.ProcessedStock {
	s := models.ProcessedStock{
		Code:         "600000",
		Name:         "浦发银行",
		CurrentPrice: price,
		MA20:         ma,
	}
	if ma != 0 {
		s.BiasPct = (price - ma) / ma
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func onlySignal(t *testing.T, e *Engine, s models.ProcessedStock) models.ProcessedStock {
	t.Helper()
	got := e.GenerateSignals([]models.ProcessedStock{s}, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	return got[0]
}

func TestGenerateSignalsTiers(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		name string
		in   models.ProcessedStock
		want models.Signal
	}{
		{"no ma", stock(10, 0), models.SignalNA},
		{"overbought", stock(10.6, 10), models.SignalOverbought},
		{"safe", stock(10.2, 10), models.SignalSafe},
		{"danger tier", stock(9.4, 10), models.SignalDanger},
		{"warning tier", stock(9.6, 10), models.SignalWarning},
		{"watch tier", stock(9.8, 10), models.SignalWatch},
		{"observed tier", stock(9.95, 10), models.SignalObserved},
	}
	for _, c := range cases {
		if got := onlySignal(t, e, c.in); got.Signal != c.want {
			t.Fatalf("%s: signal = %q, want %q (bias %v)", c.name, got.Signal, c.want, c.in.BiasPct)
		}
	}
}

func TestGenerateSignalsVolumeConfirmation(t *testing.T) {
	e := newTestEngine(t)
	s := stock(9.6, 10, func(s *models.ProcessedStock) { s.VolumeRatio = 2.0 })
	if got := onlySignal(t, e, s); got.Signal != models.SignalDanger {
		t.Fatalf("heavy-volume breakdown = %q, want DANGER", got.Signal)
	}
}

func TestGenerateSignalsLimitBands(t *testing.T) {
	e := newTestEngine(t)

	s := stock(11, 10, func(s *models.ProcessedStock) { s.PctChange = 10 })
	if got := onlySignal(t, e, s); got.Signal != models.SignalLimitUp {
		t.Fatalf("main board +10%% = %q, want LIMIT_UP", got.Signal)
	}

	s = stock(9, 10, func(s *models.ProcessedStock) { s.PctChange = -10 })
	if got := onlySignal(t, e, s); got.Signal != models.SignalLimitDown {
		t.Fatalf("main board -10%% = %q, want LIMIT_DOWN", got.Signal)
	}

	// ChiNext gets the wider 20% band: +10% there is not a limit move.
	s = stock(11, 10, func(s *models.ProcessedStock) {
		s.Code = "300750"
		s.PctChange = 10
	})
	if got := onlySignal(t, e, s); got.Signal == models.SignalLimitUp {
		t.Fatalf("ChiNext +10%% should not read as LIMIT_UP")
	}

	// ST stocks get the tight 5% band.
	s = stock(10.48, 10, func(s *models.ProcessedStock) {
		s.Name = "ST示例"
		s.PctChange = 4.8
	})
	if got := onlySignal(t, e, s); got.Signal != models.SignalLimitUp {
		t.Fatalf("ST +4.8%% = %q, want LIMIT_UP", got.Signal)
	}
}

func TestGenerateSignalsHighConfidenceDanger(t *testing.T) {
	e := newTestEngine(t)
	s := stock(9.4, 10, func(s *models.ProcessedStock) {
		s.Indicators.MACD.Trend = models.TrendBearish
		s.Indicators.MACD.Power = models.PowerSuperWeak
		s.Indicators.OBV.Trend = models.FlowOutflow
		s.Indicators.RSI = 50
		s.Indicators.Bollinger.Position = models.BandUpperHalf
	})
	got := onlySignal(t, e, s)
	if got.Signal != models.SignalDanger || got.Confidence != models.ConfidenceHigh {
		t.Fatalf("signal/confidence = %q/%q, want DANGER/高", got.Signal, got.Confidence)
	}
}

func TestGenerateSignalsRuleOverlayFirstMatchWins(t *testing.T) {
	e := newTestEngine(t)
	e.risk.SignalRules = []config.SignalRule{
		{
			Name:          "bottom-divergence-rescue",
			Triggers:      []string{"DANGER"},
			ConditionsAll: []string{"MACD_BOTTOM_DIV"},
			Result:        "WATCH",
			Confidence:    "低",
		},
		{
			Name:     "never-reached",
			Triggers: []string{"WATCH", "DANGER"},
			Result:   "SAFE",
		},
	}
	s := stock(9.4, 10, func(s *models.ProcessedStock) {
		s.Indicators.MACD.Divergence = models.DivergenceBottom
	})
	got := onlySignal(t, e, s)
	if got.Signal != models.SignalWatch || got.Confidence != models.ConfidenceLow {
		t.Fatalf("signal/confidence = %q/%q, want WATCH/低", got.Signal, got.Confidence)
	}
}

func TestGenerateSignalsRuleConditionsAnyUnmatched(t *testing.T) {
	e := newTestEngine(t)
	e.risk.SignalRules = []config.SignalRule{{
		Name:          "needs-volume",
		Triggers:      []string{"DANGER"},
		ConditionsAny: []string{"VOLUME_HIGH", "OBV_OUTFLOW"},
		Result:        "WATCH",
	}}
	got := onlySignal(t, e, stock(9.4, 10))
	if got.Signal != models.SignalDanger {
		t.Fatalf("signal = %q, rule should not fire without any condition", got.Signal)
	}
}

func TestGenerateSignalsT1Lock(t *testing.T) {
	e := newTestEngine(t)
	holdings := map[string]time.Time{"600000": testNow}

	got := e.GenerateSignals([]models.ProcessedStock{stock(9.4, 10)}, holdings)[0]
	if got.Signal != models.SignalLockedDanger {
		t.Fatalf("signal = %q, want LOCKED_DANGER on buy day", got.Signal)
	}
	if got.Tradeable == nil || *got.Tradeable {
		t.Fatalf("expected tradeable=false on buy day")
	}
	if !strings.Contains(got.SignalNote, "T+1") {
		t.Fatalf("note = %q", got.SignalNote)
	}

	holdings["600000"] = testNow.AddDate(0, 0, -3)
	got = e.GenerateSignals([]models.ProcessedStock{stock(9.4, 10)}, holdings)[0]
	if got.Signal != models.SignalDanger {
		t.Fatalf("signal = %q, want DANGER once T+1 passed", got.Signal)
	}
	if got.Tradeable == nil || !*got.Tradeable {
		t.Fatalf("expected tradeable=true after buy day")
	}
}

func TestTechSummaryContainsAllDimensions(t *testing.T) {
	e := newTestEngine(t)
	s := stock(9.6, 10, func(s *models.ProcessedStock) {
		s.VolumeRatio = 0.5
		s.VolumeLevel = "极度缩量"
		s.ContinuousShrink = true
		s.Indicators.MACD.Trend = models.TrendBearish
		s.Indicators.MACD.Power = models.PowerWeak
		s.Indicators.OBV.Trend = models.FlowOutflow
		s.Indicators.RSI = 25
		s.Indicators.KDJ.Signal = models.KDJOversold
		s.Indicators.ATR.Volatility = models.VolatilityNormal
		s.Indicators.Bollinger.Position = models.BandBelowLower
	})
	got := onlySignal(t, e, s)
	for _, want := range []string{
		"[日线_MACD_空头-弱势_无背驰_0]",
		"[日线_OBV_资金流出_0]",
		"[日线_KDJ_超卖_0]",
		"[日线_RSI_超卖_25_0]",
		"[日线_ATR_正常波动_0]",
		"[日线_布林带_跌破下轨_0]",
		"量比0.5x_连缩",
	} {
		if !strings.Contains(got.TechSummary, want) {
			t.Fatalf("summary missing %q:\n%s", want, got.TechSummary)
		}
	}
}

func TestBuildActions(t *testing.T) {
	e := newTestEngine(t)
	signed := e.GenerateSignals([]models.ProcessedStock{stock(10.2, 10)}, nil)
	actions := BuildActions(signed)
	if len(actions) != 1 || actions[0].Signal != models.SignalSafe {
		t.Fatalf("actions = %+v", actions)
	}
}
