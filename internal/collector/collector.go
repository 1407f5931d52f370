// Package collector gathers the per-cycle market snapshot from a chain
// of upstream sources, degrading gracefully as providers fail.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"StockSentinel/internal/domain/models"
	"StockSentinel/internal/domain/repository"
	"StockSentinel/pkg/cache"
	"StockSentinel/pkg/config"
	"StockSentinel/pkg/logger"
)

// BreadthUnknown is the default when no source could serve the spot
// batch.
const BreadthUnknown = "Unknown"

// breakerStateKey is where the breaker snapshot lives in the cache so a
// restart inside a recovery window does not hammer a failing source.
const breakerStateKey = "breaker:snapshot"

type Collector struct {
	orch        *Orchestrator
	cfg         config.Sources
	log         *logger.Logger
	cache       cache.Service // optional, news cache + breaker continuity
	newsTTL     time.Duration
	restoreOnce sync.Once
}

// Option configures optional collector behavior.
type Option func(*Collector)

// WithNewsCache caches per-code headlines so repeated cycles inside the
// TTL skip the upstream news endpoints.
func WithNewsCache(c cache.Service, ttl time.Duration) Option {
	return func(col *Collector) {
		col.cache = c
		col.newsTTL = ttl
	}
}

func New(orch *Orchestrator, cfg config.Sources, log *logger.Logger, opts ...Option) *Collector {
	c := &Collector{orch: orch, cfg: cfg, log: log}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BreakerStates exposes the source breaker snapshot for health checks.
func (c *Collector) BreakerStates() map[string]string {
	return c.orch.BreakerStates()
}

// breadthOf summarizes a full-market spot batch into the up/down/flat
// line the reports lead with.
func breadthOf(quotes []models.Quote) string {
	if len(quotes) == 0 {
		return BreadthUnknown
	}
	var up, down, flat int
	for _, q := range quotes {
		switch {
		case q.PctChange > 0:
			up++
		case q.PctChange < 0:
			down++
		default:
			flat++
		}
	}
	return fmt.Sprintf("Up: %d, Down: %d, Flat: %d", up, down, flat)
}

// CollectAll assembles one cycle's snapshot for the portfolio. The bulk
// spot quote is fetched once and consulted per instrument before any
// single-quote call; global blocks and per-instrument fetches then run
// concurrently under a bounded pool. A failed branch degrades to its
// zero default and never aborts siblings.
func (c *Collector) CollectAll(ctx context.Context, portfolio []config.Holding) (*models.MarketSnapshot, error) {
	if len(portfolio) == 0 {
		return nil, fmt.Errorf("collect: empty portfolio")
	}
	c.restoreBreakers(ctx)
	defer c.persistBreakers(ctx)

	snapshot := &models.MarketSnapshot{
		MarketBreadth: BreadthUnknown,
		Indices:       make(map[string]models.IndexQuote),
		Stocks:        make([]models.StockRaw, len(portfolio)),
	}

	spot, ok := fetchWithFallback(ctx, c.orch, "spot_batch",
		func(ctx context.Context, s repository.Source) ([]models.Quote, error) {
			return s.FetchSpotBatch(ctx)
		})
	spotByCode := make(map[string]models.Quote, len(spot))
	if ok {
		snapshot.MarketBreadth = breadthOf(spot)
		for _, q := range spot {
			spotByCode[q.Code] = q
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	g.Go(func() error {
		if indices, ok := fetchWithFallback(gctx, c.orch, "index_quotes",
			func(ctx context.Context, s repository.Source) ([]models.IndexQuote, error) {
				return s.FetchIndexQuotes(ctx)
			}); ok {
			for _, idx := range indices {
				snapshot.Indices[idx.Name] = idx
			}
		}
		return nil
	})

	g.Go(func() error {
		if macro, ok := fetchWithFallback(gctx, c.orch, "macro_news",
			func(ctx context.Context, s repository.Source) (*models.MacroNews, error) {
				return s.FetchMacroNews(ctx, c.cfg.NewsCount)
			}); ok && macro != nil {
			snapshot.MacroNews = *macro
		}
		return nil
	})

	for i, holding := range portfolio {
		i, holding := i, holding
		g.Go(func() error {
			snapshot.Stocks[i] = c.collectStock(gctx, holding, spotByCode)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// collectStock gathers one instrument. The quote comes from the bulk
// spot result when present; bars and news fetch concurrently.
func (c *Collector) collectStock(ctx context.Context, holding config.Holding, spot map[string]models.Quote) models.StockRaw {
	raw := models.StockRaw{Code: holding.Code, Name: holding.Name}

	quote, found := spot[holding.Code]
	if !found {
		if q, ok := fetchWithFallback(ctx, c.orch, "single_quote",
			func(ctx context.Context, s repository.Source) (*models.Quote, error) {
				return s.FetchSingleQuote(ctx, holding.Code)
			}); ok && q != nil {
			quote, found = *q, true
		}
	}
	if found {
		if quote.Name != "" {
			raw.Name = quote.Name
		}
		raw.CurrentPrice = quote.Price
		raw.PctChange = quote.PctChange
		raw.Open = quote.Open
		raw.High = quote.High
		raw.Low = quote.Low
		raw.Volume = quote.Volume
		raw.TurnoverRate = quote.TurnoverRate
	} else {
		c.log.Warn("no quote for instrument", logger.String("code", holding.Code))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if bars, ok := fetchWithFallback(gctx, c.orch, "bars",
			func(ctx context.Context, s repository.Source) (models.BarSeries, error) {
				return s.FetchBars(ctx, holding.Code, c.cfg.KlineCount)
			}); ok {
			raw.Bars = bars
			raw.AvgVolume5D = bars.AvgVolume(5)
		}
		return nil
	})
	g.Go(func() error {
		raw.News = c.fetchNews(gctx, holding.Code)
		return nil
	})
	_ = g.Wait()

	return raw
}

func (c *Collector) fetchNews(ctx context.Context, code string) []string {
	key := cache.GenerateKey("news", code)
	if c.cache != nil {
		var cached []string
		if err := c.cache.Get(ctx, key, &cached); err == nil && len(cached) > 0 {
			return cached
		}
	}
	news, ok := fetchWithFallback(ctx, c.orch, "news",
		func(ctx context.Context, s repository.Source) ([]string, error) {
			return s.FetchNews(ctx, code, c.cfg.NewsCount)
		})
	if !ok {
		return nil
	}
	if c.cache != nil && len(news) > 0 {
		if err := c.cache.Set(ctx, key, news, c.newsTTL); err != nil {
			c.log.Debug("news cache set failed", logger.String("code", code), logger.Error(err))
		}
	}
	return news
}

// restoreBreakers reloads persisted breaker state on the first cycle
// after a restart.
func (c *Collector) restoreBreakers(ctx context.Context) {
	if c.cache == nil {
		return
	}
	c.restoreOnce.Do(func() {
		var snap map[string]BreakerSnapshot
		if err := c.cache.Get(ctx, breakerStateKey, &snap); err != nil || len(snap) == 0 {
			return
		}
		c.orch.RestoreBreakers(snap)
		c.log.Info("breaker state restored", logger.Int("sources", len(snap)))
	})
}

func (c *Collector) persistBreakers(ctx context.Context) {
	if c.cache == nil {
		return
	}
	snap := c.orch.ExportBreakers()
	if len(snap) == 0 {
		return
	}
	// Past two recovery windows the snapshot is stale by definition.
	ttl := 2 * c.cfg.Breaker.RecoveryTimeout
	if err := c.cache.Set(ctx, breakerStateKey, snap, ttl); err != nil {
		c.log.Debug("breaker snapshot persist failed", logger.Error(err))
	}
}
