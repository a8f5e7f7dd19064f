// Package usage holds the per-day usage time-series and the aggregator that
// writes sampled intervals into it.
package usage

import (
	"fmt"
	"time"
)

// Key layouts for the date and hour buckets.
const (
	DateLayout = "2006-01-02"

	// MaxHourMs is one hour of wall time. Hour buckets above it indicate a
	// sampling bug.
	MaxHourMs int64 = 3_600_000
)

// Timestamp is one contiguous stretch of use.
type Timestamp struct {
	Start      time.Time `json:"start"`
	DurationMs int64     `json:"duration"`
}

// End returns the implied end of the stretch.
func (t Timestamp) End() time.Time {
	return t.Start.Add(time.Duration(t.DurationMs) * time.Millisecond)
}

// AppUsage is the accumulated use of one app identity in a day or hour.
type AppUsage struct {
	TimeMs      int64       `json:"time"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Domain      string      `json:"domain,omitempty"`
	Timestamps  []Timestamp `json:"timestamps"`
}

// DayRecord holds one calendar day of usage.
type DayRecord struct {
	Apps  map[string]AppUsage            `json:"apps"`
	Hours map[string]map[string]AppUsage `json:"hours"`
}

// Store maps YYYY-MM-DD date keys to day records.
type Store map[string]*DayRecord

// DateKey returns the date bucket key for t.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// HourKey returns the "HH:00" bucket key for t.
func HourKey(t time.Time) string {
	return fmt.Sprintf("%02d:00", t.Hour())
}

func newDayRecord() *DayRecord {
	return &DayRecord{
		Apps:  make(map[string]AppUsage),
		Hours: make(map[string]map[string]AppUsage),
	}
}

// HourTotal returns the attributed time across all apps in an hour bucket.
func (d *DayRecord) HourTotal(hour string) int64 {
	var total int64
	for _, app := range d.Hours[hour] {
		total += app.TimeMs
	}
	return total
}

// TotalMs returns the attributed time across all apps in the day.
func (d *DayRecord) TotalMs() int64 {
	var total int64
	for _, app := range d.Apps {
		total += app.TimeMs
	}
	return total
}

func (d *DayRecord) clone() DayRecord {
	out := DayRecord{
		Apps:  make(map[string]AppUsage, len(d.Apps)),
		Hours: make(map[string]map[string]AppUsage, len(d.Hours)),
	}
	for id, app := range d.Apps {
		out.Apps[id] = app.clone()
	}
	for hour, apps := range d.Hours {
		bucket := make(map[string]AppUsage, len(apps))
		for id, app := range apps {
			bucket[id] = app.clone()
		}
		out.Hours[hour] = bucket
	}
	return out
}

func (a AppUsage) clone() AppUsage {
	a.Timestamps = append([]Timestamp(nil), a.Timestamps...)
	return a
}

// ensure fills in maps that a decoded record may lack.
func (d *DayRecord) ensure() {
	if d.Apps == nil {
		d.Apps = make(map[string]AppUsage)
	}
	if d.Hours == nil {
		d.Hours = make(map[string]map[string]AppUsage)
	}
}
