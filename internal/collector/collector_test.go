package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"StockSentinel/internal/domain/models"
	"StockSentinel/internal/domain/repository"
	"StockSentinel/pkg/config"
	"StockSentinel/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string, string)         {}
func (nopMetrics) RecordBreakerOpen(string, bool)             {}
func (nopMetrics) RecordSignal(string)                        {}
func (nopMetrics) RecordLastPrice(string, float64)            {}
func (nopMetrics) RecordCycleDuration(string, time.Duration)  {}
func (nopMetrics) RecordError(string)                         {}

// fakeSource lets each test script provider behavior per operation.
type fakeSource struct {
	name        string
	spotCalls   atomic.Int64
	singleCalls atomic.Int64
	spot        func() ([]models.Quote, error)
	bars        func(code string) (models.BarSeries, error)
	news        func(code string) ([]string, error)
	single      func(code string) (*models.Quote, error)
	indices     func() ([]models.IndexQuote, error)
	macro       func() (*models.MacroNews, error)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchSpotBatch(ctx context.Context) ([]models.Quote, error) {
	f.spotCalls.Add(1)
	if f.spot == nil {
		return nil, repository.ErrEmpty
	}
	return f.spot()
}

func (f *fakeSource) FetchBars(ctx context.Context, code string, count int) (models.BarSeries, error) {
	if f.bars == nil {
		return nil, repository.ErrEmpty
	}
	return f.bars(code)
}

func (f *fakeSource) FetchNews(ctx context.Context, code string, count int) ([]string, error) {
	if f.news == nil {
		return nil, repository.ErrEmpty
	}
	return f.news(code)
}

func (f *fakeSource) FetchSingleQuote(ctx context.Context, code string) (*models.Quote, error) {
	f.singleCalls.Add(1)
	if f.single == nil {
		return nil, repository.ErrEmpty
	}
	return f.single(code)
}

func (f *fakeSource) FetchIndexQuotes(ctx context.Context) ([]models.IndexQuote, error) {
	if f.indices == nil {
		return nil, repository.ErrUnsupported
	}
	return f.indices()
}

func (f *fakeSource) FetchMacroNews(ctx context.Context, count int) (*models.MacroNews, error) {
	if f.macro == nil {
		return nil, repository.ErrUnsupported
	}
	return f.macro()
}

func testSourcesCfg() config.Sources {
	cfg := config.Sources{
		Priority:       []string{"primary", "secondary"},
		Attempts:       3,
		AttemptTimeout: time.Second,
		BackoffBase:    time.Millisecond,
		BackoffCap:     5 * time.Millisecond,
		Concurrency:    4,
		KlineCount:     60,
		NewsCount:      3,
	}
	cfg.Breaker.FailureThreshold = 3
	cfg.Breaker.RecoveryTimeout = 30 * time.Second
	return cfg
}

func newTestOrchestrator(t *testing.T, sources ...repository.Source) *Orchestrator {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := testSourcesCfg()
	o := NewOrchestrator(sources, NewBreakerSet(cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout), cfg, log, nopMetrics{})
	o.sleep = func(context.Context, time.Duration) error { return nil }
	return o
}

func TestFallbackFirstSourceWins(t *testing.T) {
	primary := &fakeSource{name: "primary", spot: func() ([]models.Quote, error) {
		return []models.Quote{{Code: "600519", Price: 100}}, nil
	}}
	secondary := &fakeSource{name: "secondary"}
	o := newTestOrchestrator(t, primary, secondary)

	got, ok := fetchWithFallback(context.Background(), o, "spot_batch",
		func(ctx context.Context, s repository.Source) ([]models.Quote, error) {
			return s.FetchSpotBatch(ctx)
		})
	if !ok || len(got) != 1 {
		t.Fatalf("ok=%v got=%v", ok, got)
	}
	if secondary.spotCalls.Load() != 0 {
		t.Fatalf("secondary should not be consulted on primary success")
	}
}

func TestFallbackMovesToNextOnFailure(t *testing.T) {
	boom := errors.New("connection reset")
	primary := &fakeSource{name: "primary", spot: func() ([]models.Quote, error) { return nil, boom }}
	secondary := &fakeSource{name: "secondary", spot: func() ([]models.Quote, error) {
		return []models.Quote{{Code: "000001"}}, nil
	}}
	o := newTestOrchestrator(t, primary, secondary)

	got, ok := fetchWithFallback(context.Background(), o, "spot_batch",
		func(ctx context.Context, s repository.Source) ([]models.Quote, error) {
			return s.FetchSpotBatch(ctx)
		})
	if !ok || len(got) != 1 {
		t.Fatalf("expected fallback result, ok=%v", ok)
	}
	// All local attempts burned on the primary, one breaker failure booked.
	if primary.spotCalls.Load() != 3 {
		t.Fatalf("primary attempts = %d, want 3", primary.spotCalls.Load())
	}
	if o.breakers.Get("primary").State() != StateClosed {
		t.Fatalf("one exhausted pass should not open the breaker yet")
	}
}

func TestFallbackEmptyCountsAsTryNext(t *testing.T) {
	primary := &fakeSource{name: "primary", spot: func() ([]models.Quote, error) { return nil, repository.ErrEmpty }}
	secondary := &fakeSource{name: "secondary", spot: func() ([]models.Quote, error) {
		return []models.Quote{{Code: "000001"}}, nil
	}}
	o := newTestOrchestrator(t, primary, secondary)

	_, ok := fetchWithFallback(context.Background(), o, "spot_batch",
		func(ctx context.Context, s repository.Source) ([]models.Quote, error) {
			return s.FetchSpotBatch(ctx)
		})
	if !ok {
		t.Fatalf("expected secondary to serve")
	}
	// Empty is not the provider's fault: single attempt, breaker success.
	if primary.spotCalls.Load() != 1 {
		t.Fatalf("primary attempts = %d, want 1 for empty result", primary.spotCalls.Load())
	}
}

func TestFallbackExhaustedReturnsAbsent(t *testing.T) {
	boom := errors.New("timeout")
	primary := &fakeSource{name: "primary", spot: func() ([]models.Quote, error) { return nil, boom }}
	secondary := &fakeSource{name: "secondary", spot: func() ([]models.Quote, error) { return nil, boom }}
	o := newTestOrchestrator(t, primary, secondary)

	got, ok := fetchWithFallback(context.Background(), o, "spot_batch",
		func(ctx context.Context, s repository.Source) ([]models.Quote, error) {
			return s.FetchSpotBatch(ctx)
		})
	if ok || got != nil {
		t.Fatalf("expected absent result, ok=%v got=%v", ok, got)
	}
}

func TestFallbackSkipsOpenBreaker(t *testing.T) {
	boom := errors.New("refused")
	primary := &fakeSource{name: "primary", spot: func() ([]models.Quote, error) { return nil, boom }}
	secondary := &fakeSource{name: "secondary", spot: func() ([]models.Quote, error) {
		return []models.Quote{{Code: "000001"}}, nil
	}}
	o := newTestOrchestrator(t, primary, secondary)
	call := func(ctx context.Context, s repository.Source) ([]models.Quote, error) {
		return s.FetchSpotBatch(ctx)
	}

	// Three exhausted passes open the primary's breaker.
	for i := 0; i < 3; i++ {
		fetchWithFallback(context.Background(), o, "spot_batch", call)
	}
	if o.breakers.Get("primary").State() != StateOpen {
		t.Fatalf("primary breaker should be open")
	}
	before := primary.spotCalls.Load()
	if _, ok := fetchWithFallback(context.Background(), o, "spot_batch", call); !ok {
		t.Fatalf("secondary should still serve")
	}
	if primary.spotCalls.Load() != before {
		t.Fatalf("open breaker must skip I/O entirely")
	}
}

func collectorBars(n int) models.BarSeries {
	bars := make(models.BarSeries, n)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = models.Bar{Date: day.AddDate(0, 0, i), Close: 10, Open: 10, High: 10, Low: 10, Volume: 500}
	}
	return bars
}

func TestCollectAll(t *testing.T) {
	primary := &fakeSource{
		name: "primary",
		spot: func() ([]models.Quote, error) {
			return []models.Quote{
				{Code: "600519", Name: "贵州茅台", Price: 1500, PctChange: 1.2},
				{Code: "999999", PctChange: -0.5},
			}, nil
		},
		bars: func(code string) (models.BarSeries, error) { return collectorBars(30), nil },
		news: func(code string) ([]string, error) { return []string{"headline"}, nil },
		single: func(code string) (*models.Quote, error) {
			return &models.Quote{Code: code, Name: "单独", Price: 8.8}, nil
		},
		indices: func() ([]models.IndexQuote, error) {
			return []models.IndexQuote{{Code: "000001", Name: "上证指数", Current: 3400, ChangePct: 0.4}}, nil
		},
		macro: func() (*models.MacroNews, error) {
			return &models.MacroNews{Telegraph: []string{"宏观快讯"}}, nil
		},
	}
	o := newTestOrchestrator(t, primary)
	c := New(o, testSourcesCfg(), o.log)

	portfolio := []config.Holding{
		{Code: "600519", Name: "贵州茅台"},
		{Code: "000777", Name: "不在批量里"},
	}
	snap, err := c.CollectAll(context.Background(), portfolio)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if snap.MarketBreadth != "Up: 1, Down: 1, Flat: 0" {
		t.Fatalf("breadth = %q", snap.MarketBreadth)
	}
	if len(snap.Indices) != 1 || snap.Indices["上证指数"].Current != 3400 {
		t.Fatalf("indices = %+v", snap.Indices)
	}
	if len(snap.MacroNews.Telegraph) != 1 {
		t.Fatalf("macro news = %+v", snap.MacroNews)
	}
	if len(snap.Stocks) != 2 {
		t.Fatalf("stocks = %d", len(snap.Stocks))
	}

	first := snap.Stocks[0]
	if first.CurrentPrice != 1500 || len(first.Bars) != 30 || len(first.News) != 1 {
		t.Fatalf("bulk-quoted stock = %+v", first)
	}
	if first.AvgVolume5D != 500 {
		t.Fatalf("avg volume = %v, want 500", first.AvgVolume5D)
	}

	// 000777 was absent from the bulk result, so the single-quote path ran.
	second := snap.Stocks[1]
	if second.CurrentPrice != 8.8 {
		t.Fatalf("fallback-quoted stock = %+v", second)
	}
	if primary.singleCalls.Load() != 1 {
		t.Fatalf("single quote calls = %d, want 1", primary.singleCalls.Load())
	}
}

func TestCollectAllEmptyPortfolio(t *testing.T) {
	o := newTestOrchestrator(t, &fakeSource{name: "primary"})
	c := New(o, testSourcesCfg(), o.log)
	if _, err := c.CollectAll(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty portfolio")
	}
}

func TestCollectAllDegradesWhenAllSourcesFail(t *testing.T) {
	boom := errors.New("down")
	src := &fakeSource{
		name: "primary",
		spot: func() ([]models.Quote, error) { return nil, boom },
		bars: func(string) (models.BarSeries, error) { return nil, boom },
		news: func(string) ([]string, error) { return nil, boom },
		single: func(string) (*models.Quote, error) { return nil, boom },
	}
	o := newTestOrchestrator(t, src)
	c := New(o, testSourcesCfg(), o.log)

	snap, err := c.CollectAll(context.Background(), []config.Holding{{Code: "600519", Name: "贵州茅台"}})
	if err != nil {
		t.Fatalf("partial failure must not abort the cycle: %v", err)
	}
	if snap.MarketBreadth != BreadthUnknown {
		t.Fatalf("breadth = %q, want %q", snap.MarketBreadth, BreadthUnknown)
	}
	s := snap.Stocks[0]
	if s.Code != "600519" || s.CurrentPrice != 0 || s.Bars != nil || s.News != nil {
		t.Fatalf("degraded stock = %+v", s)
	}
}
