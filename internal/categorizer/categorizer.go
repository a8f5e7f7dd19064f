// Package categorizer maps app, window and domain identities to productivity
// categories using user overrides, app rules and keyword rules.
package categorizer

import (
	"maps"
	"strings"
	"sync"
)

// Categorizer resolves identities against a rule-set and an override map.
// It is safe for concurrent use.
type Categorizer struct {
	mu        sync.RWMutex
	rules     RuleSet
	overrides map[string]string
}

// New creates a Categorizer. A nil overrides map is treated as empty.
func New(rules RuleSet, overrides map[string]string) (*Categorizer, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	c := &Categorizer{
		rules:     rules.normalized(),
		overrides: make(map[string]string, len(overrides)),
	}
	maps.Copy(c.overrides, overrides)
	return c, nil
}

// NewDefault creates a Categorizer with the built-in rules and no overrides.
func NewDefault() *Categorizer {
	c, _ := New(DefaultRules(), nil)
	return c
}

// Categorize returns the category for identity. The lookup order is exact
// override, app substring, keyword substring, then Miscellaneous.
func (c *Categorizer) Categorize(identity string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if cat, ok := c.overrides[identity]; ok {
		return cat
	}

	lower := strings.ToLower(identity)
	if lower == "" {
		return Miscellaneous
	}

	for _, cat := range c.rules.Categories {
		for _, app := range cat.Apps {
			if strings.Contains(lower, app) {
				return cat.Name
			}
		}
	}

	for _, cat := range c.rules.Categories {
		for _, keyword := range cat.Keywords {
			if strings.Contains(lower, keyword) {
				return cat.Name
			}
		}
	}

	return Miscellaneous
}

// Color returns the display color of a category, or DefaultColor.
func (c *Categorizer) Color(category string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, cat := range c.rules.Categories {
		if cat.Name == category && cat.Color != "" {
			return cat.Color
		}
	}
	return DefaultColor
}

// Names returns the known category names, Miscellaneous last.
func (c *Categorizer) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rules.Names()
}

// Rules returns a copy of the active rule-set.
func (c *Categorizer) Rules() RuleSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rules.normalized()
}

// SetRules replaces the rule-set.
func (c *Categorizer) SetRules(rules RuleSet) error {
	if err := rules.Validate(); err != nil {
		return err
	}
	normalized := rules.normalized()

	c.mu.Lock()
	c.rules = normalized
	c.mu.Unlock()
	return nil
}

// Overrides returns a copy of the override map.
func (c *Categorizer) Overrides() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.overrides)
}

// SetOverride maps identity to category. An empty category removes the override.
func (c *Categorizer) SetOverride(identity, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if category == "" {
		delete(c.overrides, identity)
		return
	}
	c.overrides[identity] = category
}

// ReplaceOverrides swaps in a complete override map.
func (c *Categorizer) ReplaceOverrides(overrides map[string]string) {
	next := make(map[string]string, len(overrides))
	maps.Copy(next, overrides)

	c.mu.Lock()
	c.overrides = next
	c.mu.Unlock()
}
