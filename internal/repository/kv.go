package repository

import (
	"context"
	"errors"
)

// ErrCorruptPersistedState marks a stored record that no longer decodes.
// Callers recover by substituting the record's default value.
var ErrCorruptPersistedState = errors.New("corrupt persisted state")

// KeyValueStore is the persistence substrate shared by every service.
// Values are serialized text; a missing key reports ok == false.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Logical record keys.
const (
	KeyAccounts = "accounts"
	KeySession  = "session"
	KeyProgress = "progress"
	KeyCatalog  = "catalog"
)

// DefaultNamespace prefixes every physical key.
const DefaultNamespace = "hyperlearn_"

type namespaced struct {
	inner  KeyValueStore
	prefix string
}

// WithNamespace scopes every key of inner under prefix.
func WithNamespace(inner KeyValueStore, prefix string) KeyValueStore {
	if prefix == "" {
		return inner
	}
	return &namespaced{inner: inner, prefix: prefix}
}

func (n *namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.prefix+key)
}
