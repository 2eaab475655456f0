package driver

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound returned by KeyValueDB.Get when the key is absent or expired
var ErrKeyNotFound = errors.New("kv: key not found")

// KeyValueDB define a key-value storage interface
//
// a zero expiration means the value never expires
type KeyValueDB interface {
	Set(ctx context.Context, key string, value string) error
	SetEX(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

func expiresAt(now time.Time, expiration time.Duration) int64 {
	if expiration <= 0 {
		return 0
	}
	return now.Add(expiration).UnixNano() / int64(time.Millisecond)
}

func expired(deadline int64, now time.Time) bool {
	return deadline > 0 && deadline <= now.UnixNano()/int64(time.Millisecond)
}
