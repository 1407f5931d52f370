package usecase

import (
	"context"
	"fmt"
	"time"

	"StockSentinel/pkg/logger"
	"StockSentinel/pkg/util"
)

// cycleTimeout bounds one scheduled run; a wedged upstream must not
// block the next cycle.
const cycleTimeout = 10 * time.Minute

// Scheduler fires the midday and close cycles at their configured
// exchange-local times, every day the process is up.
type Scheduler struct {
	analyzer *Analyzer
	log      *logger.Logger

	middayHour, middayMin int
	closeHour, closeMin   int

	now func() time.Time
}

func NewScheduler(analyzer *Analyzer, middayTime, closeTime string, log *logger.Logger) (*Scheduler, error) {
	s := &Scheduler{analyzer: analyzer, log: log, now: util.MarketNow}
	var err error
	if s.middayHour, s.middayMin, err = parseClock(middayTime); err != nil {
		return nil, fmt.Errorf("scheduler midday_time: %w", err)
	}
	if s.closeHour, s.closeMin, err = parseClock(closeTime); err != nil {
		return nil, fmt.Errorf("scheduler close_time: %w", err)
	}
	return s, nil
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// next returns the soonest upcoming trigger at or after now.
func (s *Scheduler) next(now time.Time) (string, time.Time) {
	at := func(h, m int, day time.Time) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
	}
	midday := at(s.middayHour, s.middayMin, now)
	closeAt := at(s.closeHour, s.closeMin, now)

	switch {
	case now.Before(midday):
		return ModeMidday, midday
	case now.Before(closeAt):
		return ModeClose, closeAt
	default:
		tomorrow := now.AddDate(0, 0, 1)
		return ModeMidday, at(s.middayHour, s.middayMin, tomorrow)
	}
}

// Run blocks until ctx is cancelled, firing cycles at their scheduled
// times. A failed cycle is logged and the schedule continues.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		mode, when := s.next(s.now())
		wait := when.Sub(s.now())
		s.log.Info("next cycle scheduled",
			logger.String("mode", mode),
			logger.String("at", when.Format("2006-01-02 15:04")),
			logger.Duration("wait_ms", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		cctx, cancel := context.WithTimeout(ctx, cycleTimeout)
		if _, err := s.analyzer.RunCycle(cctx, mode); err != nil {
			s.log.Error("scheduled cycle failed",
				logger.String("mode", mode), logger.Error(err))
		}
		cancel()
	}
}
