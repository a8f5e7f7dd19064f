package models

import "time"

type AppSummary struct {
	AppName      string  `json:"app_name"`
	Category     string  `json:"category"`
	Domain       string  `json:"domain,omitempty"`
	TotalSeconds int64   `json:"total_seconds"`
	TotalMinutes float64 `json:"total_minutes"`
	TotalHours   float64 `json:"total_hours"`
	Switches     int     `json:"switches"` // number of separate stretches of use
	Percentage   float64 `json:"percentage,omitempty"`
}

type CategorySummary struct {
	Category     string  `json:"category"`
	Color        string  `json:"color"`
	TotalSeconds int64   `json:"total_seconds"`
	Percentage   float64 `json:"percentage,omitempty"`
}

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

type Report struct {
	Period       ReportPeriod      `json:"period"`
	Apps         []AppSummary      `json:"apps"`
	Categories   []CategorySummary `json:"categories"`
	Hourly       []float64         `json:"hourly_minutes"` // minutes per clock hour, 24 entries
	Sessions     SessionSummary    `json:"sessions"`
	TotalSeconds int64             `json:"total_seconds"`
	TotalMinutes float64           `json:"total_minutes"`
	TotalHours   float64           `json:"total_hours"`
	GeneratedAt  time.Time         `json:"generated_at"`
}
