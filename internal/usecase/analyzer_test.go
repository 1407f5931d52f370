package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"StockSentinel/internal/domain/models"
	domrepo "StockSentinel/internal/domain/repository"
	"StockSentinel/internal/engine"
	"StockSentinel/pkg/config"
	"StockSentinel/pkg/logger"
)

type fakeCollector struct {
	snapshot *models.MarketSnapshot
	err      error
	calls    int
}

func (f *fakeCollector) CollectAll(context.Context, []config.Holding) (*models.MarketSnapshot, error) {
	f.calls++
	return f.snapshot, f.err
}

func (f *fakeCollector) BreakerStates() map[string]string {
	return map[string]string{"eastmoney": "closed"}
}

type fakeStore struct {
	mu    sync.Mutex
	saved []*models.DailyRecord
	rng   []*models.DailyRecord
}

func (s *fakeStore) Init(context.Context) error { return nil }
func (s *fakeStore) Save(_ context.Context, rec *models.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, rec)
	return nil
}
func (s *fakeStore) GetLatest(context.Context, string) (*models.DailyRecord, error) {
	if len(s.saved) == 0 {
		return nil, domrepo.ErrNotFound
	}
	return s.saved[len(s.saved)-1], nil
}
func (s *fakeStore) GetRange(context.Context, string, int) ([]*models.DailyRecord, error) {
	return s.rng, nil
}
func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string, string)        {}
func (nopMetrics) RecordBreakerOpen(string, bool)            {}
func (nopMetrics) RecordSignal(string)                       {}
func (nopMetrics) RecordLastPrice(string, float64)           {}
func (nopMetrics) RecordCycleDuration(string, time.Duration) {}
func (nopMetrics) RecordError(string)                        {}

type captivePublisher struct {
	events []*CycleEvent
}

func (p *captivePublisher) PublishCycle(_ context.Context, ev *CycleEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Tracker.RollingDays = 7
	cfg.Risk = config.Risk{
		MAWindow:        20,
		BiasThresholds:  config.BiasThresholds{Watch: -0.01, Warning: -0.03, Danger: -0.05, Overbought: 0.05},
		VolumeRatioHigh: 1.5,
	}
	cfg.Risk.Indicators.MACD.FastPeriod = 12
	cfg.Risk.Indicators.MACD.SlowPeriod = 26
	cfg.Risk.Indicators.MACD.SignalPeriod = 9
	cfg.Risk.Indicators.RSI.Period = 14
	cfg.Risk.Indicators.Bollinger.Window = 20
	cfg.Risk.Indicators.Bollinger.NumStd = 2
	cfg.Portfolio = []config.Holding{{Code: "600519", Name: "贵州茅台"}}
	return cfg
}

func testSnapshot() *models.MarketSnapshot {
	var bars models.BarSeries
	day := time.Now().AddDate(0, 0, -40)
	for i := 0; i < 30; i++ {
		bars = append(bars, models.Bar{
			Date: day.AddDate(0, 0, i), Open: 10, Close: 10, High: 10.2, Low: 9.8, Volume: 1000,
		})
	}
	return &models.MarketSnapshot{
		MarketBreadth: "Up: 1000, Down: 800, Flat: 200",
		Indices:       map[string]models.IndexQuote{"上证指数": {Code: "000001", Current: 3400}},
		Stocks: []models.StockRaw{{
			Code: "600519", Name: "贵州茅台",
			CurrentPrice: 10, Open: 10, High: 10.2, Low: 9.8,
			Volume: 500, AvgVolume5D: 1000, Bars: bars,
		}},
	}
}

func newTestAnalyzer(t *testing.T, col SnapshotCollector, store *fakeStore) *Analyzer {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := testConfig()
	eng := engine.New(cfg.Risk, log)
	return NewAnalyzer(cfg, col, eng, store, nopMetrics{}, log)
}

func TestRunCyclePersistsAndPublishes(t *testing.T) {
	col := &fakeCollector{snapshot: testSnapshot()}
	store := &fakeStore{}
	a := newTestAnalyzer(t, col, store)
	pub := &captivePublisher{}
	a.SetPublisher(pub)

	rec, err := a.RunCycle(context.Background(), ModeClose)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if rec.Mode != ModeClose || len(rec.Stocks) != 1 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Stocks[0].Signal != models.SignalSafe {
		t.Fatalf("signal = %s, want SAFE", rec.Stocks[0].Signal)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d records", len(store.saved))
	}
	if len(pub.events) != 1 || pub.events[0].MarketBreadth != "Up: 1000, Down: 800, Flat: 200" {
		t.Fatalf("published events = %+v", pub.events)
	}
	if len(rec.Actions) != 1 || rec.Actions[0].Code != "600519" {
		t.Fatalf("actions = %+v", rec.Actions)
	}
}

func TestRunCycleCollectError(t *testing.T) {
	col := &fakeCollector{err: fmt.Errorf("collect: empty portfolio")}
	store := &fakeStore{}
	a := newTestAnalyzer(t, col, store)

	if _, err := a.RunCycle(context.Background(), ModeMidday); err == nil {
		t.Fatal("expected error")
	}
	if len(store.saved) != 0 {
		t.Fatalf("saved despite error: %d", len(store.saved))
	}
}

func TestScorecardFromRange(t *testing.T) {
	today := time.Date(2025, 6, 10, 15, 5, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	store := &fakeStore{rng: []*models.DailyRecord{
		{
			Date: yesterday, Mode: ModeClose,
			Actions: []models.SignalAction{
				{Code: "600519", Signal: models.SignalDanger, Confidence: models.ConfidenceHigh},
			},
		},
		{
			Date: today, Mode: ModeClose,
			Raw: &models.MarketSnapshot{
				Stocks: []models.StockRaw{{Code: "600519", PctChange: -2.0}},
			},
			Actions: []models.SignalAction{
				{Code: "600519", Signal: models.SignalSafe, Confidence: models.ConfidenceMedium},
			},
		},
	}}
	a := newTestAnalyzer(t, &fakeCollector{snapshot: testSnapshot()}, store)

	card, err := a.Scorecard(context.Background(), ModeClose)
	if err != nil {
		t.Fatalf("scorecard: %v", err)
	}
	if len(card.YesterdayEvaluation) != 1 || card.YesterdayEvaluation[0].Result != "HIT" {
		t.Fatalf("yesterday eval = %+v", card.YesterdayEvaluation)
	}
	if card.RollingStats.Total != 1 || card.RollingStats.Hits != 1 {
		t.Fatalf("rolling = %+v", card.RollingStats)
	}
}

func TestHoldingsSkipsUndated(t *testing.T) {
	store := &fakeStore{}
	a := newTestAnalyzer(t, &fakeCollector{snapshot: testSnapshot()}, store)
	a.cfg.Portfolio = []config.Holding{
		{Code: "600519", BuyDate: "2025-06-10"},
		{Code: "000001"},
	}

	h := a.holdings()
	if len(h) != 1 {
		t.Fatalf("holdings = %v", h)
	}
	if _, ok := h["600519"]; !ok {
		t.Fatal("dated holding missing")
	}
}
