package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrKeyNotFound is returned by Get for an absent key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("kv engine closed")

	// ErrStoreLocked is returned when another process has the data
	// directory open.
	ErrStoreLocked = errors.New("session store is in use by another process")
)

// BadgerEngine is the durable KVEngine. It owns the directory lock for as
// long as it is open, so one data directory serves one process at a time.
type BadgerEngine struct {
	db     *badger.DB
	dir    string
	cfg    BadgerConfig
	logger *slog.Logger

	closed     atomic.Bool
	closeOnce  sync.Once
	closeErr   error
	lastGCTime atomic.Int64 // Unix milliseconds

	// gcStop is nil when no background GC runs.
	gcStop chan struct{}
	gcDone chan struct{}
}

// NewBadgerEngine opens (creating if needed) the badger database in cfg.Dir.
func NewBadgerEngine(cfg KVConfig, logger *slog.Logger) (*BadgerEngine, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	bc := cfg.Badger

	opts := badger.DefaultOptions(cfg.Dir).
		WithLogger(badgerLogger{logger}).
		WithBlockCacheSize(bc.CacheSize).
		WithValueLogFileSize(bc.ValueLogFileSize).
		WithMemTableSize(bc.MemTableSize).
		WithSyncWrites(bc.SyncWrites).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		if isLockError(err) {
			return nil, fmt.Errorf("badger: %s: %w", cfg.Dir, ErrStoreLocked)
		}
		return nil, fmt.Errorf("badger: open %s: %w", cfg.Dir, err)
	}

	e := &BadgerEngine{db: db, dir: cfg.Dir, cfg: bc, logger: logger}
	if bc.GCInterval > 0 {
		e.gcStop = make(chan struct{})
		e.gcDone = make(chan struct{})
		go e.gcLoop(bc.GCInterval)
	}

	logger.Debug("badger engine opened",
		"dir", cfg.Dir,
		"sync_writes", bc.SyncWrites,
		"gc_interval", bc.GCInterval)
	return e, nil
}

// isLockError reports whether err is badger refusing a directory another
// process holds. Badger does not export a sentinel for it.
func isLockError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "acquire directory lock")
}

func (e *BadgerEngine) check(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (e *BadgerEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	vals, err := e.GetMulti(ctx, [][]byte{key})
	if err != nil {
		return nil, err
	}
	if vals[0] == nil {
		return nil, ErrKeyNotFound
	}
	return vals[0], nil
}

// GetMulti reads keys in one transaction. Absent keys yield nil entries.
func (e *BadgerEngine) GetMulti(ctx context.Context, keys [][]byte) ([][]byte, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}

	values := make([][]byte, len(keys))
	err := e.db.View(func(txn *badger.Txn) error {
		for i, key := range keys {
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				continue
			case err != nil:
				return err
			}
			// An empty stored value must still read as present.
			if values[i], err = item.ValueCopy([]byte{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Set stores value under key.
func (e *BadgerEngine) Set(ctx context.Context, key, value []byte) error {
	return e.Batch(ctx, []Mutation{SetOp(key, value)})
}

// Delete removes key. Deleting an absent key is not an error.
func (e *BadgerEngine) Delete(ctx context.Context, key []byte) error {
	return e.Batch(ctx, []Mutation{DeleteOp(key)})
}

// Batch applies mutations in one transaction: all of them or none.
func (e *BadgerEngine) Batch(ctx context.Context, mutations []Mutation) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	return e.db.Update(func(txn *badger.Txn) error {
		for _, m := range mutations {
			var err error
			if m.Delete {
				err = txn.Delete(m.Key)
			} else {
				err = txn.Set(m.Key, m.Value)
			}
			if err != nil {
				return fmt.Errorf("badger: %s %q: %w", m.op(), m.Key, err)
			}
		}
		return nil
	})
}

// Scan calls fn for each key with prefix, in key order, until fn returns
// false.
func (e *BadgerEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.KeyCopy(nil), value) {
				return nil
			}
		}
		return nil
	})
}

// GC rewrites value log files until badger reports nothing left to reclaim.
func (e *BadgerEngine) GC(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	return e.gc(ctx)
}

func (e *BadgerEngine) gc(ctx context.Context) error {
	for ctx.Err() == nil {
		err := e.db.RunValueLogGC(e.cfg.GCThreshold)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			return fmt.Errorf("badger: gc: %w", err)
		}
	}
	e.lastGCTime.Store(time.Now().UnixMilli())
	return ctx.Err()
}

// Stats reports disk usage and the number of keys.
func (e *BadgerEngine) Stats(ctx context.Context) (*KVStats, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}

	var keys uint64
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lsm, vlog := e.db.Size()
	return &KVStats{
		TotalKeys:    keys,
		TotalSize:    uint64(lsm + vlog),
		LSMSize:      uint64(lsm),
		ValueLogSize: uint64(vlog),
		LastGCTime:   e.lastGCTime.Load(),
	}, nil
}

// Close stops background GC, optionally compacts, and releases the
// directory lock. It is safe to call more than once.
func (e *BadgerEngine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.gcStop != nil {
			close(e.gcStop)
			<-e.gcDone
		}
		if e.cfg.GCOnClose {
			ctx, cancel := context.WithTimeout(context.Background(), closeGCBudget)
			if err := e.gc(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				e.logger.Warn("badger gc on close failed", "error", err)
			}
			cancel()
		}
		if err := e.db.Close(); err != nil {
			e.closeErr = fmt.Errorf("badger: close: %w", err)
			return
		}
		e.logger.Debug("badger engine closed", "dir", e.dir)
	})
	return e.closeErr
}

// closeGCBudget bounds the compaction done on Close so exiting stays quick.
const closeGCBudget = 500 * time.Millisecond

// RegisterMetrics exports the on-disk size of the store. It returns e for
// chaining.
func (e *BadgerEngine) RegisterMetrics(reg prometheus.Registerer) *BadgerEngine {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			if e.closed.Load() {
				return 0
			}
			return float64(pick(e.db.Size()))
		}
	}
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "feedauth",
			Subsystem: "badger",
			Name:      "lsm_size_bytes",
			Help:      "Size of the session store LSM tree in bytes.",
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "feedauth",
			Subsystem: "badger",
			Name:      "value_log_size_bytes",
			Help:      "Size of the session store value log in bytes.",
		}, size(func(_, vlog int64) int64 { return vlog })),
	)
	return e
}

func (e *BadgerEngine) gcLoop(interval time.Duration) {
	defer close(e.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := e.gc(context.Background()); err != nil {
				e.logger.Error("badger background gc failed", "error", err)
			}
		case <-e.gcStop:
			return
		}
	}
}

// badgerLogger routes badger's logging into slog. Badger narrates routine
// work at info, so only warnings and errors keep their level.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
