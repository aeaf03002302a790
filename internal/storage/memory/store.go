package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/yndnr/feedauth-go/internal/storage"
)

// Store is a mutex-guarded map implementing storage.KVEngine.
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	v, ok := s.data[string(key)]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

// GetMulti retrieves several keys under one read lock.
func (s *Store) GetMulti(ctx context.Context, keys [][]byte) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := s.data[string(k)]; ok {
			out[i] = bytes.Clone(v)
		}
	}
	return out, nil
}

// Set stores a key-value pair.
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	return s.Batch(ctx, []storage.Mutation{storage.SetOp(key, value)})
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	return s.Batch(ctx, []storage.Mutation{storage.DeleteOp(key)})
}

// Batch applies all mutations under one write lock.
func (s *Store) Batch(ctx context.Context, mutations []storage.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	for _, m := range mutations {
		if m.Delete {
			delete(s.data, string(m.Key))
			continue
		}
		s.data[string(m.Key)] = bytes.Clone(m.Value)
	}
	return nil
}

// Scan iterates over keys with a given prefix in key order.
func (s *Store) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return storage.ErrClosed
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = bytes.Clone(s.data[k])
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if !fn([]byte(k), values[i]) {
			break
		}
	}
	return nil
}

// Stats returns the key count and approximate byte size.
func (s *Store) Stats(ctx context.Context) (*storage.KVStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var size uint64
	for k, v := range s.data {
		size += uint64(len(k) + len(v))
	}
	return &storage.KVStats{
		TotalKeys: uint64(len(s.data)),
		TotalSize: size,
	}, nil
}

// Close marks the store closed. Further calls fail with storage.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ storage.KVEngine = (*Store)(nil)
