package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Store is durable key/value persistence for session fields.
type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Del removes the keys; missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
	Close() error
}
