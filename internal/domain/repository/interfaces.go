package repository

import (
	"context"
	"errors"
	"time"

	"StockSentinel/internal/domain/models"
)

// ErrEmpty marks a well-formed provider response that carried no data.
// The fallback orchestrator treats it as "try the next source" without
// charging the breaker.
var ErrEmpty = errors.New("source: empty result")

// ErrUnsupported marks an operation a provider does not offer at all
// (e.g. Sina has no kline endpoint). Treated like ErrEmpty by callers.
var ErrUnsupported = errors.New("source: operation not supported")

// ErrNotFound marks a missing record in the store.
var ErrNotFound = errors.New("store: record not found")

// Source is the uniform contract over one upstream market-data provider.
// Every method either returns normalized, non-empty data or an error;
// partial or malformed payloads never cross this boundary.
type Source interface {
	Name() string
	FetchSpotBatch(ctx context.Context) ([]models.Quote, error)
	FetchBars(ctx context.Context, code string, count int) (models.BarSeries, error)
	FetchNews(ctx context.Context, code string, count int) ([]string, error)
	FetchSingleQuote(ctx context.Context, code string) (*models.Quote, error)
	FetchIndexQuotes(ctx context.Context) ([]models.IndexQuote, error)
	FetchMacroNews(ctx context.Context, count int) (*models.MacroNews, error)
}

// RecordStore persists one DailyRecord per (date, mode) and serves them
// back for replay and tracker evaluation.
type RecordStore interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, rec *models.DailyRecord) error
	GetLatest(ctx context.Context, mode string) (*models.DailyRecord, error)
	GetRange(ctx context.Context, mode string, days int) ([]*models.DailyRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics is the observability sink used across the pipeline.
type Metrics interface {
	RecordFetch(source, op, outcome string)
	RecordBreakerOpen(source string, open bool)
	RecordSignal(signal string)
	RecordLastPrice(code string, price float64)
	RecordCycleDuration(mode string, d time.Duration)
	RecordError(kind string)
}
