// Package tracker scores past signals against what the market actually
// did the next day. Pure functions over persisted records; it never
// fetches anything itself.
package tracker

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"StockSentinel/internal/domain/models"
)

// Outcome of one signal vs the following day's move.
type Outcome string

const (
	OutcomeHit     Outcome = "HIT"
	OutcomeMiss    Outcome = "MISS"
	OutcomeNeutral Outcome = "NEUTRAL"
)

// Evaluation pairs yesterday's claim with today's realized change.
type Evaluation struct {
	Code            string            `json:"code"`
	Name            string            `json:"name"`
	YesterdaySignal models.Signal     `json:"yesterday_signal"`
	Confidence      models.Confidence `json:"confidence"`
	TodayChange     float64           `json:"today_change"`
	Result          Outcome           `json:"result"`
}

// Bucket is a hit counter for one slice of the evaluations.
type Bucket struct {
	Total int     `json:"total"`
	Hits  int     `json:"hits"`
	Rate  float64 `json:"rate"`
}

// RollingStats aggregates scored evaluations over a window of days.
type RollingStats struct {
	PeriodDays   int                `json:"period_days"`
	Total        int                `json:"total"`
	Hits         int                `json:"hits"`
	HitRate      float64            `json:"hit_rate"`
	ByConfidence map[string]*Bucket `json:"by_confidence"`
	BySignal     map[string]*Bucket `json:"by_signal"`
	RiskStats    *Bucket            `json:"risk_stats,omitempty"`
}

// Scorecard is the full self-assessment block attached to a report.
type Scorecard struct {
	YesterdayEvaluation []Evaluation `json:"yesterday_evaluation"`
	RollingStats        *RollingStats `json:"rolling_stats"`
	SummaryText         string       `json:"summary_text"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EvaluateSignal grades one signal against the next day's percent change.
// Administrative signals never score; the rest have asymmetric hit/miss
// bands with a dead zone between them.
func EvaluateSignal(signal models.Signal, nextDayPct float64) Outcome {
	switch signal {
	case models.SignalWatch, models.SignalObserved, models.SignalLimitUp,
		models.SignalLimitDown, models.SignalLockedDanger, models.SignalNA, "HOLD":
		return OutcomeNeutral
	case models.SignalDanger, models.SignalOverbought:
		if nextDayPct < -0.5 {
			return OutcomeHit
		}
		if nextDayPct > 1.0 {
			return OutcomeMiss
		}
		return OutcomeNeutral
	case models.SignalWarning:
		if nextDayPct <= 0 {
			return OutcomeHit
		}
		if nextDayPct > 1.0 {
			return OutcomeMiss
		}
		return OutcomeNeutral
	case models.SignalSafe:
		if nextDayPct > -1.0 {
			return OutcomeHit
		}
		if nextDayPct < -2.0 {
			return OutcomeMiss
		}
		return OutcomeNeutral
	default:
		return OutcomeNeutral
	}
}

// EvaluateYesterday grades every action from yesterday against today's
// raw quotes. Instruments absent from today's snapshot are skipped.
func EvaluateYesterday(yesterdayActions []models.SignalAction, todayStocks []models.StockRaw) []Evaluation {
	todayChange := make(map[string]float64, len(todayStocks))
	for _, s := range todayStocks {
		todayChange[s.Code] = s.PctChange
	}

	out := make([]Evaluation, 0, len(yesterdayActions))
	for _, a := range yesterdayActions {
		change, ok := todayChange[a.Code]
		if !ok {
			continue
		}
		out = append(out, Evaluation{
			Code:            a.Code,
			Name:            a.Name,
			YesterdaySignal: a.Signal,
			Confidence:      a.Confidence,
			TodayChange:     change,
			Result:          EvaluateSignal(a.Signal, change),
		})
	}
	return out
}

// CalculateRollingStats pairs each record's actions with the next
// record's raw quotes and aggregates the scored outcomes. NEUTRAL
// results are filtered out before counting. Records may arrive in any
// order; they are paired chronologically.
func CalculateRollingStats(records []*models.DailyRecord, days int) *RollingStats {
	if len(records) < 2 {
		return emptyStats(days)
	}

	sorted := make([]*models.DailyRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var scored []Evaluation
	for i := 0; i < len(sorted)-1; i++ {
		day, next := sorted[i], sorted[i+1]
		if len(day.Actions) == 0 || next.Raw == nil || len(next.Raw.Stocks) == 0 {
			continue
		}
		for _, e := range EvaluateYesterday(day.Actions, next.Raw.Stocks) {
			if e.Result != OutcomeNeutral {
				scored = append(scored, e)
			}
		}
	}
	if len(scored) == 0 {
		return emptyStats(days)
	}

	stats := &RollingStats{
		PeriodDays:   days,
		Total:        len(scored),
		ByConfidence: make(map[string]*Bucket),
		BySignal:     make(map[string]*Bucket),
	}
	for _, e := range scored {
		if e.Result == OutcomeHit {
			stats.Hits++
		}
		conf := string(e.Confidence)
		if conf == "" {
			conf = "未知"
		}
		bumpBucket(stats.ByConfidence, conf, e.Result)
		bumpBucket(stats.BySignal, string(e.YesterdaySignal), e.Result)
	}
	stats.HitRate = round2(float64(stats.Hits) / float64(stats.Total))
	for _, b := range stats.ByConfidence {
		b.Rate = round2(float64(b.Hits) / float64(b.Total))
	}
	for _, b := range stats.BySignal {
		b.Rate = round2(float64(b.Hits) / float64(b.Total))
	}
	return stats
}

func bumpBucket(m map[string]*Bucket, key string, result Outcome) {
	b, ok := m[key]
	if !ok {
		b = &Bucket{}
		m[key] = b
	}
	b.Total++
	if result == OutcomeHit {
		b.Hits++
	}
}

func emptyStats(days int) *RollingStats {
	return &RollingStats{
		PeriodDays:   days,
		ByConfidence: make(map[string]*Bucket),
		BySignal:     make(map[string]*Bucket),
	}
}

// riskStats aggregates the risk-side signals only. SAFE hits are cheap
// (next day > -1%) and inflate the headline rate; the risk signals are
// what the system is actually judged on.
func riskStats(bySignal map[string]*Bucket) *Bucket {
	risk := &Bucket{}
	for _, sig := range []models.Signal{models.SignalDanger, models.SignalWarning, models.SignalOverbought} {
		if b, ok := bySignal[string(sig)]; ok {
			risk.Total += b.Total
			risk.Hits += b.Hits
		}
	}
	if risk.Total > 0 {
		risk.Rate = round2(float64(risk.Hits) / float64(risk.Total))
	}
	return risk
}

// BuildScorecard assembles the evaluation block plus a one-line human
// summary. The risk-only slice is computed here and attached to the
// rolling stats.
func BuildScorecard(yesterdayEval []Evaluation, rolling *RollingStats) *Scorecard {
	if rolling == nil {
		rolling = emptyStats(0)
	}

	var parts []string
	if rolling.Total > 0 {
		parts = append(parts, fmt.Sprintf("近%d日命中率%d%%(%d/%d)",
			rolling.PeriodDays, int(rolling.HitRate*100), rolling.Hits, rolling.Total))

		risk := riskStats(rolling.BySignal)
		if risk.Total > 0 {
			parts = append(parts, fmt.Sprintf("风险信号%d%%(%d/%d)", int(risk.Rate*100), risk.Hits, risk.Total))
		}
		rolling.RiskStats = risk

		if high, ok := rolling.ByConfidence[string(models.ConfidenceHigh)]; ok && high.Total > 0 {
			parts = append(parts, fmt.Sprintf("高置信度%d%%", int(high.Rate*100)))
		}
	} else {
		parts = append(parts, "历史数据不足，暂无统计")
	}

	return &Scorecard{
		YesterdayEvaluation: yesterdayEval,
		RollingStats:        rolling,
		SummaryText:         strings.Join(parts, " | "),
	}
}
