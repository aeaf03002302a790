package storage

import (
	"context"
	"time"
)

// KVEngine defines the interface for embedded key-value storage.
//
// Implementation requirements:
// - Thread-safe: concurrent reads/writes must be safe
// - Durable: data must survive process restarts (except the memory engine)
// - Atomic batches: a Batch is applied entirely or not at all, and GetMulti
//   never observes half of a Batch
type KVEngine interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if key doesn't exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// GetMulti retrieves several keys from one consistent view.
	// Missing keys yield a nil entry at the same position.
	GetMulti(ctx context.Context, keys [][]byte) ([][]byte, error)

	// Set stores a key-value pair.
	Set(ctx context.Context, key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Batch applies all mutations in one transaction.
	Batch(ctx context.Context, mutations []Mutation) error

	// Scan iterates over keys with a given prefix.
	// Callback returns false to stop iteration.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// Stats returns storage statistics (size, keys count, etc.).
	Stats(ctx context.Context) (*KVStats, error)

	// Close gracefully shuts down the KV engine.
	Close() error
}

// Mutation is a single write within a Batch.
type Mutation struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// SetOp returns a Mutation that stores value under key.
func SetOp(key, value []byte) Mutation {
	return Mutation{Key: key, Value: value}
}

// DeleteOp returns a Mutation that removes key.
func DeleteOp(key []byte) Mutation {
	return Mutation{Key: key, Delete: true}
}

func (m Mutation) op() string {
	if m.Delete {
		return "delete"
	}
	return "set"
}

// KVStats contains storage engine statistics.
type KVStats struct {
	// TotalKeys is the approximate number of keys.
	TotalKeys uint64

	// TotalSize is the total disk usage in bytes.
	TotalSize uint64

	// LSMSize is the LSM tree size (for Badger).
	LSMSize uint64

	// ValueLogSize is the value log size (for Badger).
	ValueLogSize uint64

	// LastGCTime is the last GC run timestamp (Unix milliseconds).
	LastGCTime int64
}

// Engine names accepted by KVConfig.Engine.
const (
	EngineBadger = "badger"
	EngineMemory = "memory"
)

// KVConfig configures an embedded KV engine.
type KVConfig struct {
	// Engine specifies the KV engine type ("badger", "memory").
	// Default: "badger"
	Engine string

	// Dir is the storage directory.
	Dir string

	// Badger-specific configuration
	Badger BadgerConfig
}

// BadgerConfig tunes the badger engine.
//
// The session store holds a handful of small keys written a few times per
// run, so the defaults favour a tiny footprint and crash safety.
type BadgerConfig struct {
	// GCInterval runs value log GC in the background. Zero disables it;
	// a short-lived CLI process compacts on Close instead.
	GCInterval time.Duration

	// GCOnClose runs a bounded value log GC before closing.
	GCOnClose bool

	// GCThreshold is the discard ratio a value log file needs before
	// badger rewrites it (0.0-1.0).
	GCThreshold float64

	CacheSize        int64
	ValueLogFileSize int64
	MemTableSize     int64

	// SyncWrites fsyncs every commit so a login survives a crash right
	// after it.
	SyncWrites bool
}

// DefaultKVConfig returns a badger configuration rooted at dir.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Engine: EngineBadger,
		Dir:    dir,
		Badger: DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the tuning used by the CLI.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCOnClose:        true,
		GCThreshold:      0.5,
		CacheSize:        1 << 20,
		ValueLogFileSize: 16 << 20,
		MemTableSize:     4 << 20,
		SyncWrites:       true,
	}
}
