package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"StockSentinel/internal/domain/models"
	domrepo "StockSentinel/internal/domain/repository"
	pkgch "StockSentinel/pkg/clickhouse"
	applogger "StockSentinel/pkg/logger"
	"StockSentinel/pkg/util"
)

// CHRecordStore implements RecordStore backed by ClickHouse. Records are
// stored one row per (day, mode) with the full snapshot as a JSON
// payload; the ReplacingMergeTree keeps the latest write for a key, so
// re-running a cycle overwrites that day's record.
type CHRecordStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHRecordStore(ch *pkgch.Client, l *applogger.Logger) *CHRecordStore {
	return &CHRecordStore{db: ch.DB(), l: l}
}

var recordSchema = []string{
	`CREATE DATABASE IF NOT EXISTS sentinel`,
	`CREATE TABLE IF NOT EXISTS sentinel.daily_records (
        day        Date,
        mode       LowCardinality(String),
        payload    String,
        created_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(created_at)
    ORDER BY (mode, day)`,
}

func (s *CHRecordStore) Init(ctx context.Context) error {
	for _, stmt := range recordSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init record schema: %w", err)
		}
	}
	return nil
}

func (s *CHRecordStore) Save(ctx context.Context, rec *models.DailyRecord) error {
	start := time.Now()
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	const q = `INSERT INTO sentinel.daily_records (day, mode, payload) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, rec.Date, rec.Mode, string(payload)); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse save_record error",
				applogger.String("day", util.DayKey(rec.Date)),
				applogger.String("mode", rec.Mode),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("save record: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse save_record ok",
			applogger.String("day", util.DayKey(rec.Date)),
			applogger.String("mode", rec.Mode),
			applogger.Int("bytes", len(payload)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHRecordStore) GetLatest(ctx context.Context, mode string) (*models.DailyRecord, error) {
	const q = `
        SELECT payload
        FROM sentinel.daily_records FINAL
        WHERE mode = ?
        ORDER BY day DESC
        LIMIT 1
    `
	var payload string
	if err := s.db.QueryRowContext(ctx, q, mode).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domrepo.ErrNotFound
		}
		return nil, fmt.Errorf("get latest record: %w", err)
	}
	return unmarshalRecord(payload)
}

func (s *CHRecordStore) GetRange(ctx context.Context, mode string, days int) ([]*models.DailyRecord, error) {
	start := time.Now()
	const q = `
        SELECT payload
        FROM sentinel.daily_records FINAL
        WHERE mode = ? AND day >= today() - ?
        ORDER BY day ASC
    `
	rows, err := s.db.QueryContext(ctx, q, mode, days)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_range query error",
				applogger.String("mode", mode),
				applogger.Int("days", days),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get record range: %w", err)
	}
	defer rows.Close()

	var out []*models.DailyRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := unmarshalRecord(payload)
		if err != nil {
			// A corrupt payload should not poison the whole range.
			if s.l != nil {
				s.l.Warn("skipping unreadable record payload",
					applogger.String("mode", mode),
					applogger.Error(err),
				)
			}
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse get_range ok",
			applogger.String("mode", mode),
			applogger.Int("days", days),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHRecordStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHRecordStore) Close() error {
	return nil // pool is owned by the clickhouse client
}

func unmarshalRecord(payload string) (*models.DailyRecord, error) {
	var rec models.DailyRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}
