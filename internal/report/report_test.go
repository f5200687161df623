package report

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWindows(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	now := time.Date(2026, 3, 4, 15, 30, 0, 0, loc)
	day := func(m time.Month, d int) time.Time { return time.Date(2026, m, d, 0, 0, 0, 0, loc) }

	want := []Window{
		{"Today", day(3, 4), day(3, 5)},
		{"Yesterday", day(3, 3), day(3, 4)},
		{"Last 7 days", day(2, 26), day(3, 5)},
		{"This month", day(3, 1), day(4, 1)},
		{"Last month", day(2, 1), day(3, 1)},
	}

	got := Windows(now)
	if len(got) != len(want) {
		t.Fatalf("got %d windows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Label != want[i].Label || !got[i].From.Equal(want[i].From) || !got[i].To.Equal(want[i].To) {
			t.Errorf("window %d = %s [%v, %v), want %s [%v, %v)",
				i, got[i].Label, got[i].From, got[i].To, want[i].Label, want[i].From, want[i].To)
		}
	}
}

func TestWindowsJanuary(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
	w := Windows(now)
	if !w[1].From.Equal(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("yesterday from = %v", w[1].From)
	}
	if !w[4].From.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("last month from = %v", w[4].From)
	}
}

type fakeAgg struct {
	calls int
	fail  bool
}

func (f *fakeAgg) AggregateDuration(_ context.Context, from, to time.Time) (int64, error) {
	f.calls++
	if f.fail {
		return 0, errors.New("boom")
	}
	return int64(to.Sub(from).Hours()), nil
}

func TestSummarize(t *testing.T) {
	agg := &fakeAgg{}
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	totals, err := Summarize(context.Background(), agg, now)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if agg.calls != 5 || len(totals) != 5 {
		t.Fatalf("calls=%d totals=%d, want 5", agg.calls, len(totals))
	}
	if totals[0].Seconds != 24 || totals[0].Display != "0h 00m" {
		t.Fatalf("today = %+v", totals[0])
	}

	if _, err := Summarize(context.Background(), &fakeAgg{fail: true}, now); err == nil {
		t.Fatal("expected error")
	}
}

func TestFormatHoursMinutes(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "0h 00m"},
		{59, "0h 00m"},
		{60, "0h 01m"},
		{3725, "1h 02m"},
		{36000 + 45*60, "10h 45m"},
		{-5, "0h 00m"},
	}
	for _, tt := range tests {
		if got := FormatHoursMinutes(tt.secs); got != tt.want {
			t.Errorf("FormatHoursMinutes(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "00:00"},
		{9, "00:09"},
		{600, "10:00"},
		{3725, "62:05"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.secs); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
