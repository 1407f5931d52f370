// Package usecase wires collection, indicator computation, signal
// generation, persistence and tracking into the per-cycle pipeline.
package usecase

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"StockSentinel/internal/domain/models"
	"StockSentinel/internal/domain/repository"
	"StockSentinel/internal/engine"
	"StockSentinel/internal/tracker"
	"StockSentinel/pkg/config"
	"StockSentinel/pkg/logger"
	"StockSentinel/pkg/util"
)

// Cycle modes. Midday runs during the lunch break, close after the
// session ends.
const (
	ModeMidday = "midday"
	ModeClose  = "close"
)

// CycleEvent is the summary emitted to the message bus and the live
// stream after each cycle.
type CycleEvent struct {
	Date          string                `json:"date"`
	Mode          string                `json:"mode"`
	MarketBreadth string                `json:"market_breadth"`
	Indices       map[string]models.IndexQuote `json:"indices,omitempty"`
	Actions       []models.SignalAction `json:"actions"`
}

// Publisher emits cycle events to an external bus.
type Publisher interface {
	PublishCycle(ctx context.Context, event *CycleEvent) error
}

// Broadcaster pushes cycle events to connected stream subscribers.
type Broadcaster interface {
	Broadcast(v interface{})
}

// SnapshotCollector is the collector surface the analyzer needs.
type SnapshotCollector interface {
	CollectAll(ctx context.Context, portfolio []config.Holding) (*models.MarketSnapshot, error)
	BreakerStates() map[string]string
}

// Analyzer runs one full analysis cycle: collect, compute, classify,
// persist, emit.
type Analyzer struct {
	cfg       *config.Config
	collector SnapshotCollector
	engine    *engine.Engine
	store     repository.RecordStore
	metrics   repository.Metrics
	log       *logger.Logger
	publisher Publisher   // optional
	stream    Broadcaster // optional

	sf  singleflight.Group
	now func() time.Time
}

func NewAnalyzer(
	cfg *config.Config,
	col SnapshotCollector,
	eng *engine.Engine,
	store repository.RecordStore,
	metrics repository.Metrics,
	log *logger.Logger,
) *Analyzer {
	return &Analyzer{
		cfg:       cfg,
		collector: col,
		engine:    eng,
		store:     store,
		metrics:   metrics,
		log:       log,
		now:       util.MarketNow,
	}
}

// SetPublisher attaches the optional event bus publisher.
func (a *Analyzer) SetPublisher(p Publisher) { a.publisher = p }

// SetBroadcaster attaches the optional live stream.
func (a *Analyzer) SetBroadcaster(b Broadcaster) { a.stream = b }

// RunCycle executes one analysis cycle. Concurrent triggers for the
// same mode (scheduler firing while a manual run is in flight) share a
// single execution.
func (a *Analyzer) RunCycle(ctx context.Context, mode string) (*models.DailyRecord, error) {
	v, err, shared := a.sf.Do(mode, func() (interface{}, error) {
		return a.runCycle(ctx, mode)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		a.log.Debug("cycle result shared with concurrent trigger", logger.String("mode", mode))
	}
	return v.(*models.DailyRecord), nil
}

func (a *Analyzer) runCycle(ctx context.Context, mode string) (*models.DailyRecord, error) {
	start := time.Now()
	a.log.Info("cycle started",
		logger.String("mode", mode), logger.Int("portfolio", len(a.cfg.Portfolio)))

	snapshot, err := a.collector.CollectAll(ctx, a.cfg.Portfolio)
	if err != nil {
		a.metrics.RecordError("collect")
		return nil, err
	}

	processed := make([]models.ProcessedStock, 0, len(snapshot.Stocks))
	for _, raw := range snapshot.Stocks {
		processed = append(processed, a.engine.CalculateIndicators(raw))
	}
	signals := a.engine.GenerateSignals(processed, a.holdings())

	rec := &models.DailyRecord{
		Date:    a.now(),
		Mode:    mode,
		Raw:     snapshot,
		Stocks:  signals,
		Actions: engine.BuildActions(signals),
	}
	// Persistence failure degrades the cycle, it does not discard it:
	// the record still reaches the bus and the stream.
	if err := a.store.Save(ctx, rec); err != nil {
		a.metrics.RecordError("store")
		a.log.Error("record save failed", logger.String("mode", mode), logger.Error(err))
	}

	for _, s := range signals {
		a.metrics.RecordSignal(string(s.Signal))
		if s.CurrentPrice > 0 {
			a.metrics.RecordLastPrice(s.Code, s.CurrentPrice)
		}
	}
	a.metrics.RecordCycleDuration(mode, time.Since(start))

	event := a.buildEvent(rec)
	if a.publisher != nil {
		if err := a.publisher.PublishCycle(ctx, event); err != nil {
			a.metrics.RecordError("publish")
			a.log.Warn("cycle event publish failed", logger.Error(err))
		}
	}
	if a.stream != nil {
		a.stream.Broadcast(event)
	}

	a.log.Info("cycle finished",
		logger.String("mode", mode),
		logger.String("breadth", snapshot.MarketBreadth),
		logger.Int("stocks", len(signals)),
		logger.Duration("duration_ms", time.Since(start)))
	return rec, nil
}

func (a *Analyzer) buildEvent(rec *models.DailyRecord) *CycleEvent {
	return &CycleEvent{
		Date:          util.DayKey(rec.Date),
		Mode:          rec.Mode,
		MarketBreadth: rec.Raw.MarketBreadth,
		Indices:       rec.Raw.Indices,
		Actions:       rec.Actions,
	}
}

// holdings maps portfolio codes to their buy dates for the T+1 lock.
// Positions without a buy date are not lock candidates.
func (a *Analyzer) holdings() map[string]time.Time {
	out := make(map[string]time.Time, len(a.cfg.Portfolio))
	for _, h := range a.cfg.Portfolio {
		if h.BuyDate == "" {
			continue
		}
		if d, ok := util.ParseDay(h.BuyDate); ok {
			out[h.Code] = d
		}
	}
	return out
}

// Latest serves the most recent persisted record for a mode.
func (a *Analyzer) Latest(ctx context.Context, mode string) (*models.DailyRecord, error) {
	return a.store.GetLatest(ctx, mode)
}

// Range serves the persisted records of the last N days for a mode.
func (a *Analyzer) Range(ctx context.Context, mode string, days int) ([]*models.DailyRecord, error) {
	return a.store.GetRange(ctx, mode, days)
}

// Scorecard grades yesterday's close signals against the latest record
// and aggregates the rolling hit-rate statistics.
func (a *Analyzer) Scorecard(ctx context.Context, mode string) (*tracker.Scorecard, error) {
	days := a.cfg.Tracker.RollingDays
	records, err := a.store.GetRange(ctx, mode, days+1)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	var eval []tracker.Evaluation
	if n := len(records); n >= 2 {
		prev, last := records[n-2], records[n-1]
		if last.Raw != nil {
			eval = tracker.EvaluateYesterday(prev.Actions, last.Raw.Stocks)
		}
	}
	return tracker.BuildScorecard(eval, tracker.CalculateRollingStats(records, days)), nil
}

// BreakerStates exposes the collector's source breaker snapshot for the
// health endpoint.
func (a *Analyzer) BreakerStates() map[string]string {
	return a.collector.BreakerStates()
}

// StoreHealth reports the record store's availability.
func (a *Analyzer) StoreHealth(ctx context.Context) error {
	return a.store.Health(ctx)
}
