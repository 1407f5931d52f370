package repository

import (
	"context"
	"sort"
	"sync"

	"StockSentinel/internal/domain/models"
	domrepo "StockSentinel/internal/domain/repository"
	"StockSentinel/pkg/util"
)

// MemoryRecordStore keeps records in process memory, keyed by
// (day, mode). It backs the memory storage backend and the tests.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*models.DailyRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*models.DailyRecord)}
}

func key(day, mode string) string { return day + "/" + mode }

func (s *MemoryRecordStore) Init(context.Context) error { return nil }

func (s *MemoryRecordStore) Save(_ context.Context, rec *models.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key(util.DayKey(rec.Date), rec.Mode)] = rec
	return nil
}

func (s *MemoryRecordStore) GetLatest(_ context.Context, mode string) (*models.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.DailyRecord
	for _, rec := range s.records {
		if rec.Mode != mode {
			continue
		}
		if latest == nil || rec.Date.After(latest.Date) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, domrepo.ErrNotFound
	}
	return latest, nil
}

func (s *MemoryRecordStore) GetRange(_ context.Context, mode string, days int) ([]*models.DailyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.DailyRecord
	for _, rec := range s.records {
		if rec.Mode == mode {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > days {
		out = out[len(out)-days:]
	}
	return out, nil
}

func (s *MemoryRecordStore) Health(context.Context) error { return nil }

func (s *MemoryRecordStore) Close() error { return nil }
