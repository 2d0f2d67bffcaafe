// Package storage holds the key/value backends the history and profile stores persist through.
// Every stored value is an opaque JSON document addressed by a key such as "workout_history".
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrKeyNotFound = errors.New("key not found")

//go:generate mockgen -source=$GOFILE -destination=../history/backend_mocks_test.go -package=history_test

// Backend is the get/set/delete primitive the stores depend on.
// Set must only return once the value is durable for the given implementation.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CloseBackend closes the backend if it holds resources.
func CloseBackend(b Backend) error {
	if closer, ok := b.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close storage backend: %w", err)
		}
	}
	return nil
}
