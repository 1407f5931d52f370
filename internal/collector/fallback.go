package collector

import (
	"context"
	"errors"
	"time"

	"StockSentinel/internal/domain/repository"
	"StockSentinel/pkg/config"
	"StockSentinel/pkg/logger"
)

// Orchestrator walks the source priority list with per-source circuit
// breakers and local retry. It never returns errors to callers; an
// exhausted chain surfaces as an absent result the caller defaults.
type Orchestrator struct {
	sources  []repository.Source
	breakers *BreakerSet
	cfg      config.Sources
	log      *logger.Logger
	metrics  repository.Metrics
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(sources []repository.Source, breakers *BreakerSet, cfg config.Sources, log *logger.Logger, metrics repository.Metrics) *Orchestrator {
	return &Orchestrator{
		sources:  sources,
		breakers: breakers,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BreakerStates exposes the per-source breaker snapshot.
func (o *Orchestrator) BreakerStates() map[string]string {
	return o.breakers.States()
}

// ExportBreakers returns the serializable breaker snapshot.
func (o *Orchestrator) ExportBreakers() map[string]BreakerSnapshot {
	return o.breakers.Export()
}

// RestoreBreakers loads a persisted breaker snapshot.
func (o *Orchestrator) RestoreBreakers(m map[string]BreakerSnapshot) {
	o.breakers.Restore(m)
}

func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := o.cfg.BackoffBase << attempt
	if d > o.cfg.BackoffCap {
		d = o.cfg.BackoffCap
	}
	return d
}

// fetchWithFallback runs one operation across the source chain. Retries
// are local to a source; an empty or unsupported result counts as a
// breaker success but moves on to the next source. The boolean reports
// whether any source produced data.
func fetchWithFallback[T any](ctx context.Context, o *Orchestrator, op string, call func(context.Context, repository.Source) (T, error)) (T, bool) {
	var zero T
	for _, src := range o.sources {
		br := o.breakers.Get(src.Name())
		if !br.Allow() {
			o.metrics.RecordFetch(src.Name(), op, "skipped")
			o.log.Debug("breaker open, skipping source",
				logger.String("source", src.Name()), logger.String("op", op))
			continue
		}

		failed := false
		for attempt := 0; attempt < o.cfg.Attempts; attempt++ {
			if ctx.Err() != nil {
				return zero, false
			}
			actx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
			v, err := call(actx, src)
			cancel()

			if err == nil {
				br.RecordSuccess()
				o.metrics.RecordBreakerOpen(src.Name(), false)
				o.metrics.RecordFetch(src.Name(), op, "ok")
				return v, true
			}
			if errors.Is(err, repository.ErrEmpty) || errors.Is(err, repository.ErrUnsupported) {
				// A well-formed empty answer is not the source's fault,
				// but it cannot satisfy the caller either.
				br.RecordSuccess()
				o.metrics.RecordFetch(src.Name(), op, "empty")
				failed = false
				break
			}

			failed = true
			o.log.Warn("source attempt failed",
				logger.String("source", src.Name()), logger.String("op", op),
				logger.Int("attempt", attempt+1), logger.Error(err))
			if attempt < o.cfg.Attempts-1 {
				if o.sleep(ctx, o.backoff(attempt)) != nil {
					return zero, false
				}
			}
		}

		if failed {
			// One breaker failure per exhausted source, not per attempt.
			br.RecordFailure()
			o.metrics.RecordBreakerOpen(src.Name(), br.State() != StateClosed)
			o.metrics.RecordFetch(src.Name(), op, "failed")
		}
	}
	return zero, false
}
