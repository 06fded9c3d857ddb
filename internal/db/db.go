// Package db declares the key-value storage contracts behind the user and session repositories.
package db

import (
	"context"
	"time"
)

// Store is everything the Redis-protocol backend offers. Repositories
// depend on the narrow interfaces below, never on Store itself.
type Store interface {
	Pinger
	RecordReader
	SessionStore
	ScriptRunner
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RecordReader reads hash records. All writes to records go through scripts.
type RecordReader interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// Scan returns each key matching pattern exactly once.
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// SessionStore holds opaque values that expire on their own.
type SessionStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// ScriptRunner executes server-side scripts. A script runs atomically
// against the keys it touches, which is how multi-field conditional
// updates avoid check-then-write races.
type ScriptRunner interface {
	Run(ctx context.Context, script *Script, keys []string, args ...string) (int64, error)
	RunMulti(ctx context.Context, script *Script, calls []ScriptCall) ([]int64, error)
}
