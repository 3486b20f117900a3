// Package kvstore provides the ephemeral key-value store used for OTP codes
// and revoked token ids. Expiry is enforced by the backend.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("kvstore: key not found")

type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	// DeleteIfEqual atomically removes key when its value equals value and
	// reports whether it did. An absent key returns ErrNotFound.
	DeleteIfEqual(ctx context.Context, key, value string) (bool, error)
	Ping(ctx context.Context) error
}
