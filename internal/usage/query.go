package usage

import (
	"sort"
)

// AppSummary is one row of a category breakdown.
type AppSummary struct {
	Identity    string `json:"identity"`
	Domain      string `json:"domain,omitempty"`
	Description string `json:"description,omitempty"`
	TimeMs      int64  `json:"time"`
}

// CategoryGroup is the apps of one category within a day.
type CategoryGroup struct {
	Category string       `json:"category"`
	Color    string       `json:"color"`
	TimeMs   int64        `json:"time"`
	Apps     []AppSummary `json:"apps"`
}

// UsageForDate returns a copy of the record for date with categories
// refreshed from the current rules.
func (a *Aggregator) UsageForDate(date string) (DayRecord, bool) {
	a.mu.Lock()
	day, ok := a.store[date]
	var out DayRecord
	if ok {
		out = day.clone()
	}
	a.mu.Unlock()

	if !ok {
		return DayRecord{}, false
	}
	a.refresh(&out)
	return out, true
}

// UsageRange returns copies of all records with start <= date <= end.
func (a *Aggregator) UsageRange(start, end string) map[string]DayRecord {
	a.mu.Lock()
	out := make(map[string]DayRecord)
	for date, day := range a.store {
		if date >= start && date <= end {
			out[date] = day.clone()
		}
	}
	a.mu.Unlock()

	for date, day := range out {
		a.refresh(&day)
		out[date] = day
	}
	return out
}

// Dates returns the recorded dates in ascending order.
func (a *Aggregator) Dates() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	dates := make([]string, 0, len(a.store))
	for date := range a.store {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// CategoryBreakdown groups the apps of date by category. Apps sharing a
// domain are merged. Groups and apps are sorted by time, largest first.
func (a *Aggregator) CategoryBreakdown(date string) []CategoryGroup {
	day, ok := a.UsageForDate(date)
	if !ok {
		return []CategoryGroup{}
	}

	groups := make(map[string]*CategoryGroup)
	merged := make(map[string]map[string]*AppSummary)

	for identity, app := range day.Apps {
		group, ok := groups[app.Category]
		if !ok {
			group = &CategoryGroup{Category: app.Category, Color: a.classifier.Color(app.Category)}
			groups[app.Category] = group
			merged[app.Category] = make(map[string]*AppSummary)
		}
		group.TimeMs += app.TimeMs

		key := app.Domain
		if key == "" {
			key = identity
		}
		summary, ok := merged[app.Category][key]
		if !ok {
			summary = &AppSummary{Identity: key, Domain: app.Domain, Description: app.Description}
			merged[app.Category][key] = summary
		}
		summary.TimeMs += app.TimeMs
	}

	out := make([]CategoryGroup, 0, len(groups))
	for name, group := range groups {
		for _, summary := range merged[name] {
			group.Apps = append(group.Apps, *summary)
		}
		sort.Slice(group.Apps, func(i, j int) bool {
			if group.Apps[i].TimeMs != group.Apps[j].TimeMs {
				return group.Apps[i].TimeMs > group.Apps[j].TimeMs
			}
			return group.Apps[i].Identity < group.Apps[j].Identity
		})
		out = append(out, *group)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeMs != out[j].TimeMs {
			return out[i].TimeMs > out[j].TimeMs
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CategoryTotals returns the attributed milliseconds per category for date.
func (a *Aggregator) CategoryTotals(date string) map[string]int64 {
	totals := make(map[string]int64)
	day, ok := a.UsageForDate(date)
	if !ok {
		return totals
	}
	for _, app := range day.Apps {
		totals[app.Category] += app.TimeMs
	}
	return totals
}

// CategoryColor returns the display color of category.
func (a *Aggregator) CategoryColor(category string) string {
	return a.classifier.Color(category)
}

// refresh recomputes categories so mapping changes apply to history.
func (a *Aggregator) refresh(day *DayRecord) {
	cache := make(map[string]string)
	categorize := func(identity string) string {
		if cat, ok := cache[identity]; ok {
			return cat
		}
		cat := a.classifier.Categorize(identity)
		cache[identity] = cat
		return cat
	}

	for identity, app := range day.Apps {
		app.Category = categorize(identity)
		day.Apps[identity] = app
	}
	for _, bucket := range day.Hours {
		for identity, app := range bucket {
			app.Category = categorize(identity)
			bucket[identity] = app
		}
	}
}
