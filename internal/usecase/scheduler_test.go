package usecase

import (
	"testing"
	"time"
)

func testScheduler(t *testing.T) *Scheduler {
	t.Helper()
	a := newTestAnalyzer(t, &fakeCollector{snapshot: testSnapshot()}, &fakeStore{})
	s, err := NewScheduler(a, "11:35", "15:05", a.log)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	return s
}

func TestSchedulerNext(t *testing.T) {
	s := testScheduler(t)
	loc := time.FixedZone("CST", 8*3600)
	at := func(h, m int) time.Time {
		return time.Date(2025, 6, 10, h, m, 0, 0, loc)
	}

	cases := []struct {
		now      time.Time
		wantMode string
		wantAt   time.Time
	}{
		{at(9, 0), ModeMidday, at(11, 35)},
		{at(11, 35), ModeClose, at(15, 5)},
		{at(12, 0), ModeClose, at(15, 5)},
		{at(16, 0), ModeMidday, at(11, 35).AddDate(0, 0, 1)},
	}
	for _, tc := range cases {
		mode, when := s.next(tc.now)
		if mode != tc.wantMode || !when.Equal(tc.wantAt) {
			t.Fatalf("next(%v) = %s %v, want %s %v", tc.now, mode, when, tc.wantMode, tc.wantAt)
		}
	}
}

func TestSchedulerRejectsBadClock(t *testing.T) {
	a := newTestAnalyzer(t, &fakeCollector{snapshot: testSnapshot()}, &fakeStore{})
	if _, err := NewScheduler(a, "25:99", "15:05", a.log); err == nil {
		t.Fatal("expected error for bad midday_time")
	}
}
