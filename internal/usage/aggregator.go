package usage

import (
	"sync"
	"time"

	"focusguard/internal/logger"
)

// Classifier resolves categories and their colors.
type Classifier interface {
	Categorize(identity string) string
	Color(category string) string
}

// Sample is one attributed interval ending at At.
type Sample struct {
	At          time.Time
	Identity    string
	Delta       time.Duration
	Description string
	Domain      string
	Switched    bool // the identity became foreground at the start of the interval
}

// Aggregator owns the usage store. All methods are safe for concurrent use;
// the lock is never held across I/O.
type Aggregator struct {
	mu         sync.Mutex
	store      Store
	classifier Classifier
	continuity time.Duration
	dirty      bool
}

// NewAggregator creates an aggregator over an empty store.
func NewAggregator(classifier Classifier, continuity time.Duration) *Aggregator {
	return &Aggregator{
		store:      make(Store),
		classifier: classifier,
		continuity: continuity,
	}
}

// Record attributes the interval [At-Delta, At] to s.Identity. Intervals
// that cross an hour or day boundary are split so every bucket only holds
// time from its own hour.
func (a *Aggregator) Record(s Sample) {
	if s.Delta <= 0 || s.Identity == "" {
		return
	}

	category := a.classifier.Categorize(s.Identity)

	a.mu.Lock()
	defer a.mu.Unlock()

	start := s.At.Add(-s.Delta)
	switched := s.Switched
	for start.Before(s.At) {
		end := s.At
		boundary := nextHour(start)
		if boundary.Before(end) {
			end = boundary
		}

		a.record(DateKey(start), HourKey(start), s.Identity, start, end.Sub(start),
			category, s.Description, s.Domain, switched)

		switched = false
		start = end
	}
	a.dirty = true
}

// record applies one delta to the day and hour buckets of dateKey/hourKey.
func (a *Aggregator) record(dateKey, hourKey, identity string, start time.Time, delta time.Duration,
	category, description, domain string, switched bool) {
	day, ok := a.store[dateKey]
	if !ok {
		day = newDayRecord()
		a.store[dateKey] = day
	}
	day.ensure()

	deltaMs := delta.Milliseconds()

	day.Apps[identity] = a.apply(day.Apps[identity], start, deltaMs, category, description, domain, switched)

	bucket, ok := day.Hours[hourKey]
	if !ok {
		bucket = make(map[string]AppUsage)
		day.Hours[hourKey] = bucket
	}
	bucket[identity] = a.apply(bucket[identity], start, deltaMs, category, description, domain, switched)

	if total := day.HourTotal(hourKey); total > MaxHourMs {
		logger.Warn("hour bucket exceeds wall-clock maximum",
			"date", dateKey, "hour", hourKey, "app", identity, "time_ms", total)
	}
}

func (a *Aggregator) apply(entry AppUsage, start time.Time, deltaMs int64,
	category, description, domain string, switched bool) AppUsage {
	entry.TimeMs += deltaMs
	entry.Category = category
	if description != "" {
		entry.Description = description
	}
	if domain != "" {
		entry.Domain = domain
	}

	n := len(entry.Timestamps)
	if !switched && n > 0 && a.contiguous(entry.Timestamps[n-1], start) {
		entry.Timestamps[n-1].DurationMs += deltaMs
		return entry
	}
	entry.Timestamps = append(entry.Timestamps, Timestamp{Start: start, DurationMs: deltaMs})
	return entry
}

func (a *Aggregator) contiguous(last Timestamp, start time.Time) bool {
	gap := start.Sub(last.End())
	if gap < 0 {
		gap = -gap
	}
	return gap <= a.continuity
}

// nextHour returns the start of the wall-clock hour after t in t's zone.
func nextHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location()).Add(time.Hour)
}
