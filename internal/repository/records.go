package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Records reads and writes JSON-shaped values on top of a KeyValueStore.
type Records struct {
	store  KeyValueStore
	logger *logrus.Logger
}

func NewRecords(store KeyValueStore, logger *logrus.Logger) *Records {
	if logger == nil {
		logger = logrus.New()
	}
	return &Records{store: store, logger: logger}
}

// Decode loads key into dest. It reports found == false when the key is absent
// and wraps ErrCorruptPersistedState when the stored text is not valid JSON for dest.
func (r *Records) Decode(ctx context.Context, key string, dest any) (found bool, err error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return true, fmt.Errorf("%w: %s: %v", ErrCorruptPersistedState, key, err)
	}
	return true, nil
}

// Load is Decode with corrupt state recovered: dest is reset by the caller-supplied
// reset func and the problem is logged. Only substrate failures are returned.
func (r *Records) Load(ctx context.Context, key string, dest any, reset func()) (found bool, err error) {
	found, err = r.Decode(ctx, key, dest)
	if err == nil {
		return found, nil
	}
	if errors.Is(err, ErrCorruptPersistedState) {
		r.logger.WithField("key", key).Warnf("discarding unreadable record: %v", err)
		if reset != nil {
			reset()
		}
		return false, nil
	}
	return false, err
}

// Save serializes value as JSON under key.
func (r *Records) Save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (r *Records) Remove(ctx context.Context, key string) error {
	if err := r.store.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
