package tracker

import (
	"strings"
	"testing"
	"time"

	"StockSentinel/internal/domain/models"
)

func TestEvaluateSignalDanger(t *testing.T) {
	cases := []struct {
		pct  float64
		want Outcome
	}{
		{-3.5, OutcomeHit},
		{-0.5, OutcomeNeutral},
		{0.5, OutcomeNeutral},
		{1.0, OutcomeNeutral},
		{2.0, OutcomeMiss},
	}
	for _, c := range cases {
		if got := EvaluateSignal(models.SignalDanger, c.pct); got != c.want {
			t.Fatalf("DANGER at %v = %q, want %q", c.pct, got, c.want)
		}
	}
}

func TestEvaluateSignalWarning(t *testing.T) {
	if got := EvaluateSignal(models.SignalWarning, 0); got != OutcomeHit {
		t.Fatalf("WARNING at 0 = %q, want HIT", got)
	}
	if got := EvaluateSignal(models.SignalWarning, 0.5); got != OutcomeNeutral {
		t.Fatalf("WARNING at 0.5 = %q, want NEUTRAL", got)
	}
	if got := EvaluateSignal(models.SignalWarning, 1.5); got != OutcomeMiss {
		t.Fatalf("WARNING at 1.5 = %q, want MISS", got)
	}
}

func TestEvaluateSignalSafe(t *testing.T) {
	if got := EvaluateSignal(models.SignalSafe, 0.2); got != OutcomeHit {
		t.Fatalf("SAFE at 0.2 = %q, want HIT", got)
	}
	if got := EvaluateSignal(models.SignalSafe, -1.5); got != OutcomeNeutral {
		t.Fatalf("SAFE at -1.5 = %q, want NEUTRAL", got)
	}
	if got := EvaluateSignal(models.SignalSafe, -3); got != OutcomeMiss {
		t.Fatalf("SAFE at -3 = %q, want MISS", got)
	}
}

func TestEvaluateSignalAdministrativeAlwaysNeutral(t *testing.T) {
	for _, sig := range []models.Signal{
		models.SignalWatch, models.SignalObserved, models.SignalLimitUp,
		models.SignalLimitDown, models.SignalLockedDanger, models.SignalNA,
	} {
		if got := EvaluateSignal(sig, -9.9); got != OutcomeNeutral {
			t.Fatalf("%s = %q, want NEUTRAL", sig, got)
		}
	}
}

func TestEvaluateYesterdaySkipsMissingStocks(t *testing.T) {
	actions := []models.SignalAction{
		{Code: "600519", Name: "贵州茅台", Signal: models.SignalDanger, Confidence: models.ConfidenceHigh},
		{Code: "000001", Name: "平安银行", Signal: models.SignalSafe},
	}
	today := []models.StockRaw{{Code: "600519", PctChange: -2.1}}

	got := EvaluateYesterday(actions, today)
	if len(got) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(got))
	}
	if got[0].Code != "600519" || got[0].Result != OutcomeHit {
		t.Fatalf("unexpected evaluation %+v", got[0])
	}
	if got[0].TodayChange != -2.1 {
		t.Fatalf("today change = %v, want -2.1", got[0].TodayChange)
	}
}

func day(offset int) time.Time {
	return time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func record(offset int, actions []models.SignalAction, stocks []models.StockRaw) *models.DailyRecord {
	return &models.DailyRecord{
		Date:    day(offset),
		Mode:    "close",
		Raw:     &models.MarketSnapshot{Stocks: stocks},
		Actions: actions,
	}
}

func TestCalculateRollingStatsTooFewRecords(t *testing.T) {
	stats := CalculateRollingStats([]*models.DailyRecord{record(0, nil, nil)}, 7)
	if stats.Total != 0 || stats.HitRate != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
	if stats.PeriodDays != 7 {
		t.Fatalf("period = %d, want 7", stats.PeriodDays)
	}
}

func TestCalculateRollingStatsPairsAdjacentDays(t *testing.T) {
	// Day 0 claims DANGER (high) and SAFE; day 1 realizes -2% and +0.3%.
	// Day 1 claims WATCH which never scores.
	records := []*models.DailyRecord{
		record(1,
			[]models.SignalAction{{Code: "600519", Signal: models.SignalWatch}},
			[]models.StockRaw{
				{Code: "600519", PctChange: -2.0},
				{Code: "000001", PctChange: 0.3},
			}),
		record(0,
			[]models.SignalAction{
				{Code: "600519", Signal: models.SignalDanger, Confidence: models.ConfidenceHigh},
				{Code: "000001", Signal: models.SignalSafe, Confidence: models.ConfidenceMedium},
			},
			nil),
	}

	stats := CalculateRollingStats(records, 7)
	if stats.Total != 2 || stats.Hits != 2 {
		t.Fatalf("total/hits = %d/%d, want 2/2", stats.Total, stats.Hits)
	}
	if stats.HitRate != 1.0 {
		t.Fatalf("hit rate = %v, want 1.0", stats.HitRate)
	}
	if b := stats.BySignal["DANGER"]; b == nil || b.Hits != 1 {
		t.Fatalf("DANGER bucket = %+v", b)
	}
	if b := stats.ByConfidence["高"]; b == nil || b.Rate != 1.0 {
		t.Fatalf("高 bucket = %+v", b)
	}
}

func TestCalculateRollingStatsFiltersNeutral(t *testing.T) {
	records := []*models.DailyRecord{
		record(0,
			[]models.SignalAction{{Code: "600519", Signal: models.SignalDanger}},
			nil),
		record(1, nil,
			[]models.StockRaw{{Code: "600519", PctChange: 0.2}}),
	}
	stats := CalculateRollingStats(records, 7)
	if stats.Total != 0 {
		t.Fatalf("neutral outcomes should not score, got total=%d", stats.Total)
	}
}

func TestBuildScorecardSummary(t *testing.T) {
	records := []*models.DailyRecord{
		record(0,
			[]models.SignalAction{
				{Code: "600519", Signal: models.SignalDanger, Confidence: models.ConfidenceHigh},
				{Code: "000001", Signal: models.SignalSafe},
			},
			nil),
		record(1, nil,
			[]models.StockRaw{
				{Code: "600519", PctChange: -1.2},
				{Code: "000001", PctChange: 0.5},
			}),
	}
	stats := CalculateRollingStats(records, 7)
	card := BuildScorecard(nil, stats)

	if !strings.Contains(card.SummaryText, "近7日命中率100%(2/2)") {
		t.Fatalf("summary = %q", card.SummaryText)
	}
	if !strings.Contains(card.SummaryText, "风险信号100%(1/1)") {
		t.Fatalf("summary missing risk slice: %q", card.SummaryText)
	}
	if !strings.Contains(card.SummaryText, "高置信度100%") {
		t.Fatalf("summary missing confidence slice: %q", card.SummaryText)
	}
	if stats.RiskStats == nil || stats.RiskStats.Total != 1 {
		t.Fatalf("risk stats = %+v", stats.RiskStats)
	}
}

func TestBuildScorecardEmpty(t *testing.T) {
	card := BuildScorecard(nil, CalculateRollingStats(nil, 7))
	if card.SummaryText != "历史数据不足，暂无统计" {
		t.Fatalf("summary = %q", card.SummaryText)
	}
}
