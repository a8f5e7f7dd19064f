package usage

import (
	"context"
	"encoding/json"
	"fmt"

	"focusguard/internal/logger"
)

// DataKey is the persistence key of the usage store.
const DataKey = "usage-data"

// Gateway is the key/blob persistence contract. Load returns nil, nil for a
// missing key.
type Gateway interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}

// Restore replaces the store with the persisted one. A missing, unreadable
// or corrupt blob leaves an empty store; the cause is returned for logging.
func (a *Aggregator) Restore(ctx context.Context, gw Gateway) error {
	blob, err := gw.Load(ctx, DataKey)
	if err != nil {
		a.reset()
		return fmt.Errorf("failed to load usage data: %w", err)
	}
	if blob == nil {
		a.reset()
		return nil
	}

	var store Store
	if err := json.Unmarshal(blob, &store); err != nil {
		a.reset()
		return fmt.Errorf("failed to decode usage data: %w", err)
	}
	for date, day := range store {
		if day == nil {
			delete(store, date)
			continue
		}
		day.ensure()
	}

	a.mu.Lock()
	a.store = store
	a.dirty = false
	a.mu.Unlock()
	logger.Debug("usage data restored", "days", len(store))
	return nil
}

// Flush writes the store through gw. Encoding the store and clearing the
// dirty flag happen in one critical section, so changes made while the save
// is in flight keep the store dirty. A failed save also keeps it dirty so
// the next flush retries.
func (a *Aggregator) Flush(ctx context.Context, gw Gateway, force bool) error {
	a.mu.Lock()
	if !a.dirty && !force {
		a.mu.Unlock()
		return nil
	}
	blob, err := json.Marshal(a.store)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("failed to encode usage data: %w", err)
	}
	a.dirty = false
	a.mu.Unlock()

	if err := gw.Save(ctx, DataKey, blob); err != nil {
		a.mu.Lock()
		a.dirty = true
		a.mu.Unlock()
		return fmt.Errorf("failed to save usage data: %w", err)
	}
	return nil
}

// Clear drops all usage data.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	a.store = make(Store)
	a.dirty = true
	a.mu.Unlock()
}

func (a *Aggregator) reset() {
	a.mu.Lock()
	a.store = make(Store)
	a.dirty = false
	a.mu.Unlock()
}
