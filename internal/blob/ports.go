// Package blob defines the durable key-value store the ledger persists into.
package blob

import (
	"context"
	"errors"
	"strings"
)

// Store holds opaque values under short fixed keys.
type Store interface {
	// Get returns the value stored under key. ok is false when the key does
	// not exist.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
}

var ErrInvalidKey = errors.New("invalid blob key")

// ValidateKey rejects keys that cannot be used as table keys or file names.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > 128 {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
