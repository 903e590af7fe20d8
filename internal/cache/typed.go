package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"threat-cache/internal/common/errors"
)

// Get is the typed form of Manager.Get. Values promoted from the shared tier
// arrive as raw JSON and are decoded into T; a value that cannot be turned
// into T counts as absent.
func Get[T any](ctx context.Context, m *Manager, key string) (T, bool) {
	value, ok := m.Get(ctx, key)
	if !ok {
		var zero T
		return zero, false
	}
	typed, err := As[T](value)
	if err != nil {
		var zero T
		return zero, false
	}
	return typed, true
}

// GetOrSet is the typed form of Manager.GetOrSet.
func GetOrSet[T any](ctx context.Context, m *Manager, key string, fetcher func(ctx context.Context) (T, error), opts Options) (T, error) {
	value, err := m.GetOrSet(ctx, key, func(ctx context.Context) (any, error) {
		return fetcher(ctx)
	}, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](value)
}

// As converts a cached value into T.
func As[T any](value any) (T, error) {
	var zero T

	if typed, ok := value.(T); ok {
		return typed, nil
	}

	var raw []byte
	switch v := value.(type) {
	case json.RawMessage:
		raw = v
	case nil:
		return zero, errors.SerializationError("cached value is nil", nil)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return zero, errors.SerializationError(fmt.Sprintf("cannot convert %T", value), err)
		}
		raw = data
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, errors.SerializationError(fmt.Sprintf("cannot decode cached value into %T", zero), err)
	}
	return out, nil
}
