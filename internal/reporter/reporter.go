package reporter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"

	"focusguard/internal/models"
	"focusguard/internal/usage"
	"focusguard/pkg/utils"
)

// UsageSource provides the usage store.
type UsageSource interface {
	UsageRange(start, end string) map[string]usage.DayRecord
	CategoryColor(category string) string
}

// SessionSource provides finished focus sessions.
type SessionSource interface {
	GetSessionSummarySince(since time.Time) (models.SessionSummary, error)
}

// Reporter handles report generation
type Reporter struct {
	usage    UsageSource
	sessions SessionSource
	now      func() time.Time
}

// New creates a new reporter. sessions may be nil.
func New(source UsageSource, sessions SessionSource) *Reporter {
	return &Reporter{
		usage:    source,
		sessions: sessions,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (r *Reporter) SetClock(now func() time.Time) {
	r.now = now
}

// GenerateReport generates a report for the specified period
func (r *Reporter) GenerateReport(periodType string) (*models.Report, error) {
	period, err := r.getPeriod(periodType)
	if err != nil {
		return nil, err
	}

	lastDay := period.End.AddDate(0, 0, -1)
	days := r.usage.UsageRange(usage.DateKey(period.Start), usage.DateKey(lastDay))

	apps := make(map[string]*models.AppSummary)
	appMs := make(map[string]int64)
	categoryMs := make(map[string]int64)
	hourlyMs := make([]int64, 24)
	var totalMs int64

	// Walk days in order so the newest category wins.
	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		day := days[date]
		for identity, app := range day.Apps {
			summary, ok := apps[identity]
			if !ok {
				summary = &models.AppSummary{AppName: identity}
				apps[identity] = summary
			}
			summary.Category = app.Category
			if app.Domain != "" {
				summary.Domain = app.Domain
			}
			summary.Switches += len(app.Timestamps)
			appMs[identity] += app.TimeMs
			categoryMs[app.Category] += app.TimeMs
			totalMs += app.TimeMs
		}
		for hour := range day.Hours {
			h, ok := parseHour(hour)
			if !ok {
				continue
			}
			hourlyMs[h] += day.HourTotal(hour)
		}
	}

	summaries := make([]models.AppSummary, 0, len(apps))
	for identity, summary := range apps {
		ms := appMs[identity]
		summary.TotalSeconds = ms / 1000
		summary.TotalMinutes = float64(ms) / 60000.0
		summary.TotalHours = float64(ms) / 3600000.0
		if totalMs > 0 {
			summary.Percentage = float64(ms) / float64(totalMs) * 100.0
		}
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalSeconds != summaries[j].TotalSeconds {
			return summaries[i].TotalSeconds > summaries[j].TotalSeconds
		}
		return summaries[i].AppName < summaries[j].AppName
	})

	categories := make([]models.CategorySummary, 0, len(categoryMs))
	for name, ms := range categoryMs {
		c := models.CategorySummary{
			Category:     name,
			Color:        r.usage.CategoryColor(name),
			TotalSeconds: ms / 1000,
		}
		if totalMs > 0 {
			c.Percentage = float64(ms) / float64(totalMs) * 100.0
		}
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].TotalSeconds != categories[j].TotalSeconds {
			return categories[i].TotalSeconds > categories[j].TotalSeconds
		}
		return categories[i].Category < categories[j].Category
	})

	hourly := make([]float64, 24)
	for h, ms := range hourlyMs {
		hourly[h] = float64(ms) / 60000.0
	}

	report := &models.Report{
		Period:       *period,
		Apps:         summaries,
		Categories:   categories,
		Hourly:       hourly,
		TotalSeconds: totalMs / 1000,
		TotalMinutes: float64(totalMs) / 60000.0,
		TotalHours:   float64(totalMs) / 3600000.0,
		GeneratedAt:  r.now(),
	}

	if r.sessions != nil {
		summary, err := r.sessions.GetSessionSummarySince(period.Start)
		if err != nil {
			return nil, fmt.Errorf("failed to get session summary: %w", err)
		}
		report.Sessions = summary
	}

	return report, nil
}

// getPeriod calculates the time range for the report
func (r *Reporter) getPeriod(periodType string) (*models.ReportPeriod, error) {
	now := r.now()
	var start, end time.Time

	switch periodType {
	case "day", "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 0, 1)

	case "week":
		// Start of week (Monday)
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(weekday - 1))
		end = start.AddDate(0, 0, 7)

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)

	default:
		return nil, fmt.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

func parseHour(key string) (int, bool) {
	h, err := strconv.Atoi(strings.TrimSuffix(key, ":00"))
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// FormatReportText formats the report as human-readable text
func (r *Reporter) FormatReportText(report *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Activity Report - %s\n", report.Period.Type)
	fmt.Fprintf(&b, "Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Total Time: %.2fh (%.0fm)\n", report.TotalHours, report.TotalMinutes)
	if report.Sessions.Count > 0 {
		fmt.Fprintf(&b, "Focus Sessions: %d (total %s, longest %s)\n",
			report.Sessions.Count,
			utils.FormatDuration(time.Duration(report.Sessions.TotalSeconds)*time.Second),
			utils.FormatDuration(time.Duration(report.Sessions.LongestSecs)*time.Second))
	}
	b.WriteString("\n")

	if len(report.Apps) == 0 {
		b.WriteString("No activity recorded for this period.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-30s %-15s %10s %10s %10s\n", "Application", "Category", "Hours", "Minutes", "Percent")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, app := range report.Apps {
		fmt.Fprintf(&b, "%-30s %-15s %10.2f %10.0f %9.1f%%\n",
			utils.Truncate(app.AppName, 30),
			utils.Truncate(app.Category, 15),
			app.TotalHours,
			app.TotalMinutes,
			app.Percentage)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%-30s %10s %10s\n", "Category", "Time", "Percent")
	b.WriteString(strings.Repeat("-", 52) + "\n")
	for _, c := range report.Categories {
		fmt.Fprintf(&b, "%-30s %10s %9.1f%%\n",
			utils.Truncate(c.Category, 30),
			utils.FormatRoundedUnit(c.TotalSeconds),
			c.Percentage)
	}

	if chart := hourlyChart(report.Hourly); chart != "" {
		b.WriteString("\n")
		b.WriteString(chart)
		b.WriteString("\n")
	}

	return b.String()
}

func hourlyChart(hourly []float64) string {
	empty := true
	for _, v := range hourly {
		if v > 0 {
			empty = false
			break
		}
	}
	if empty {
		return ""
	}
	return asciigraph.Plot(hourly,
		asciigraph.Height(8),
		asciigraph.Width(48),
		asciigraph.Caption("minutes per hour (00-23)"),
	)
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}
