package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"focusguard/internal/logger"
)

// Persistence keys used with the blob store.
const (
	RulesKey     = "category-overrides"
	OverridesKey = "custom-category-map"
)

// Store is the key/blob persistence contract. Load returns nil, nil for a
// missing key.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}

// File is the on-disk YAML layout of a rules file.
type File struct {
	Categories []Category        `yaml:"categories"`
	Overrides  map[string]string `yaml:"overrides,omitempty"`
}

// LoadFile reads a YAML rules file. A file without categories keeps the
// built-in rules.
func LoadFile(path string) (RuleSet, map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return RuleSet{}, nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	rules := RuleSet{Categories: f.Categories}
	if len(rules.Categories) == 0 {
		rules = DefaultRules()
	}
	if err := rules.Validate(); err != nil {
		return RuleSet{}, nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rules, f.Overrides, nil
}

// ApplyFile loads path into c.
func (c *Categorizer) ApplyFile(path string) error {
	rules, overrides, err := LoadFile(path)
	if err != nil {
		return err
	}
	if err := c.SetRules(rules); err != nil {
		return err
	}
	if overrides != nil {
		c.ReplaceOverrides(overrides)
	}
	return nil
}

// Watch reloads the rules file whenever it changes until ctx is cancelled.
// onReload, if set, runs after every successful reload.
func (c *Categorizer) Watch(ctx context.Context, path string, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go c.watchLoop(ctx, watcher, path, onReload)
	return nil
}

func (c *Categorizer) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, onReload func()) {
	const debounceInterval = 100 * time.Millisecond

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		if err := watcher.Close(); err != nil {
			logger.Error("failed to close watcher", "error", err)
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				if err := c.ApplyFile(path); err != nil {
					logger.Warn("rules reload failed, keeping previous rules", "path", path, "error", err)
					return
				}
				logger.Info("category rules reloaded", "path", path)
				if onReload != nil {
					onReload()
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("rules watcher error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}

// Restore loads rule-set edits and the override map from store. Missing
// keys leave the current values in place; corrupt blobs are reported.
func (c *Categorizer) Restore(ctx context.Context, store Store) error {
	blob, err := store.Load(ctx, RulesKey)
	if err != nil {
		return fmt.Errorf("failed to load category rules: %w", err)
	}
	if blob != nil {
		var rules RuleSet
		if err := json.Unmarshal(blob, &rules); err != nil {
			return fmt.Errorf("failed to decode category rules: %w", err)
		}
		if len(rules.Categories) > 0 {
			if err := c.SetRules(rules); err != nil {
				return err
			}
		}
	}

	blob, err = store.Load(ctx, OverridesKey)
	if err != nil {
		return fmt.Errorf("failed to load category overrides: %w", err)
	}
	if blob != nil {
		var overrides map[string]string
		if err := json.Unmarshal(blob, &overrides); err != nil {
			return fmt.Errorf("failed to decode category overrides: %w", err)
		}
		c.ReplaceOverrides(overrides)
	}
	return nil
}

// Persist saves the rule-set and the override map to store.
func (c *Categorizer) Persist(ctx context.Context, store Store) error {
	rules, err := json.Marshal(c.Rules())
	if err != nil {
		return fmt.Errorf("failed to encode category rules: %w", err)
	}
	if err := store.Save(ctx, RulesKey, rules); err != nil {
		return fmt.Errorf("failed to save category rules: %w", err)
	}

	overrides, err := json.Marshal(c.Overrides())
	if err != nil {
		return fmt.Errorf("failed to encode category overrides: %w", err)
	}
	if err := store.Save(ctx, OverridesKey, overrides); err != nil {
		return fmt.Errorf("failed to save category overrides: %w", err)
	}
	return nil
}
