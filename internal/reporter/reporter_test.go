package reporter

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"focusguard/internal/categorizer"
	"focusguard/internal/models"
	"focusguard/internal/usage"
)

type fakeSessions struct {
	summary models.SessionSummary
	err     error
	since   time.Time
}

func (f *fakeSessions) GetSessionSummarySince(since time.Time) (models.SessionSummary, error) {
	f.since = since
	return f.summary, f.err
}

// Wednesday
func now() time.Time {
	return time.Date(2024, 3, 13, 15, 0, 0, 0, time.Local)
}

func newAggregator() *usage.Aggregator {
	agg := usage.NewAggregator(categorizer.NewDefault(), 10*time.Second)

	at := func(day, hour, min int) time.Time {
		return time.Date(2024, 3, day, hour, min, 0, 0, time.Local)
	}
	// Today
	agg.Record(usage.Sample{At: at(13, 9, 30), Identity: "code", Delta: 30 * time.Minute, Switched: true})
	agg.Record(usage.Sample{At: at(13, 10, 0), Identity: "youtube.com", Domain: "youtube.com", Delta: 15 * time.Minute, Switched: true})
	agg.Record(usage.Sample{At: at(13, 10, 15), Identity: "code", Delta: 15 * time.Minute, Switched: true})
	// Monday of the same week
	agg.Record(usage.Sample{At: at(11, 14, 0), Identity: "code", Delta: 60 * time.Minute, Switched: true})
	// Previous week
	agg.Record(usage.Sample{At: at(8, 14, 0), Identity: "slack", Delta: 60 * time.Minute, Switched: true})
	return agg
}

func newReporter(sessions SessionSource) *Reporter {
	r := New(newAggregator(), sessions)
	r.SetClock(now)
	return r
}

func TestGenerateDailyReport(t *testing.T) {
	r := newReporter(nil)

	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	if report.TotalSeconds != 3600 {
		t.Errorf("TotalSeconds = %d, want 3600", report.TotalSeconds)
	}
	if len(report.Apps) != 2 {
		t.Fatalf("len(Apps) = %d, want 2", len(report.Apps))
	}

	first := report.Apps[0]
	if first.AppName != "code" || first.TotalSeconds != 2700 || first.Category != "Code" {
		t.Errorf("Apps[0] = %+v", first)
	}
	if first.Switches != 2 {
		t.Errorf("Switches = %d, want 2", first.Switches)
	}
	if math.Abs(first.Percentage-75) > 0.01 {
		t.Errorf("Percentage = %.2f, want 75", first.Percentage)
	}

	second := report.Apps[1]
	if second.Domain != "youtube.com" || second.Category != categorizer.Entertainment {
		t.Errorf("Apps[1] = %+v", second)
	}

	if len(report.Categories) != 2 || report.Categories[0].Category != "Code" {
		t.Fatalf("Categories = %+v", report.Categories)
	}
	if report.Categories[0].Color != "#00d8ff" {
		t.Errorf("Code color = %q", report.Categories[0].Color)
	}

	if len(report.Hourly) != 24 {
		t.Fatalf("len(Hourly) = %d, want 24", len(report.Hourly))
	}
	if report.Hourly[9] != 45 || report.Hourly[10] != 15 {
		t.Errorf("Hourly[9,10] = %v, %v, want 45, 15", report.Hourly[9], report.Hourly[10])
	}
}

func TestGenerateWeeklyReport(t *testing.T) {
	r := newReporter(nil)

	report, err := r.GenerateReport("week")
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	wantStart := time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local)
	if !report.Period.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", report.Period.Start, wantStart)
	}
	if report.TotalSeconds != 7200 {
		t.Errorf("TotalSeconds = %d, want 7200 (previous week excluded)", report.TotalSeconds)
	}
	for _, app := range report.Apps {
		if app.AppName == "slack" {
			t.Error("slack from the previous week included")
		}
	}
}

func TestGenerateMonthlyReport(t *testing.T) {
	r := newReporter(nil)

	report, err := r.GenerateReport("month")
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if report.TotalSeconds != 10800 {
		t.Errorf("TotalSeconds = %d, want 10800", report.TotalSeconds)
	}
	if report.Period.End.Month() != time.April {
		t.Errorf("End = %v, want April 1st", report.Period.End)
	}
}

func TestGenerateReportInvalidPeriod(t *testing.T) {
	r := newReporter(nil)
	if _, err := r.GenerateReport("year"); err == nil {
		t.Error("expected error for invalid period")
	}
}

func TestGenerateReportSessions(t *testing.T) {
	sessions := &fakeSessions{summary: models.SessionSummary{Count: 2, TotalSeconds: 5400, LongestSecs: 3600}}
	r := newReporter(sessions)

	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if report.Sessions.Count != 2 {
		t.Errorf("Sessions.Count = %d, want 2", report.Sessions.Count)
	}
	if !sessions.since.Equal(report.Period.Start) {
		t.Errorf("summary queried since %v, want %v", sessions.since, report.Period.Start)
	}

	text := r.FormatReportText(report)
	if !strings.Contains(text, "Focus Sessions: 2 (total 1h 30m, longest 1h 00m)") {
		t.Errorf("text missing sessions line:\n%s", text)
	}

	sessions.err = errors.New("db closed")
	if _, err := r.GenerateReport("day"); err == nil {
		t.Error("expected session summary error")
	}
}

func TestFormatReportText(t *testing.T) {
	r := newReporter(nil)
	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	text := r.FormatReportText(report)
	for _, want := range []string{
		"Activity Report - day",
		"Total Time: 1.00h (60m)",
		"Application",
		"code",
		"youtube.com",
		"Entertainment",
		"minutes per hour",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestFormatReportTextEmpty(t *testing.T) {
	r := New(usage.NewAggregator(categorizer.NewDefault(), 10*time.Second), nil)
	r.SetClock(now)

	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	text := r.FormatReportText(report)
	if !strings.Contains(text, "No activity recorded for this period.") {
		t.Errorf("unexpected text:\n%s", text)
	}
}

func TestFormatReportJSON(t *testing.T) {
	r := newReporter(nil)
	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	out, err := r.FormatReportJSON(report)
	if err != nil {
		t.Fatalf("FormatReportJSON() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"period", "apps", "categories", "hourly_minutes", "sessions", "total_seconds"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing %q", key)
		}
	}
}
