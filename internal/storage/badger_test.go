package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/feedauth-go/internal/core/domain"
)

func newTestBadger(t *testing.T, dir string) *BadgerEngine {
	t.Helper()
	engine, err := NewBadgerEngine(DefaultKVConfig(dir), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewBadgerEngine() error = %v", err)
	}
	return engine
}

func TestBadgerEngine_RequiresDir(t *testing.T) {
	if _, err := NewBadgerEngine(KVConfig{}, nil); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestBadgerEngine_BasicOperations(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		if err := engine.Set(ctx, []byte("k"), []byte("v")); err != nil {
			t.Fatal(err)
		}
		got, err := engine.Get(ctx, []byte("k"))
		if err != nil || string(got) != "v" {
			t.Errorf("Get() = %q, %v", got, err)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		if _, err := engine.Get(ctx, []byte("missing")); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Get() error = %v, want ErrKeyNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = engine.Set(ctx, []byte("d"), []byte("v"))
		if err := engine.Delete(ctx, []byte("d")); err != nil {
			t.Fatal(err)
		}
		if _, err := engine.Get(ctx, []byte("d")); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Get() after delete error = %v", err)
		}
		if err := engine.Delete(ctx, []byte("never-set")); err != nil {
			t.Errorf("Delete() of missing key error = %v", err)
		}
	})

	t.Run("Scan", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_ = engine.Set(ctx, []byte(fmt.Sprintf("scan/%d", i)), []byte("x"))
		}
		_ = engine.Set(ctx, []byte("other"), []byte("x"))

		var keys []string
		err := engine.Scan(ctx, []byte("scan/"), func(k, _ []byte) bool {
			keys = append(keys, string(k))
			return true
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 3 || keys[0] != "scan/0" || keys[2] != "scan/2" {
			t.Errorf("Scan() keys = %v", keys)
		}

		count := 0
		_ = engine.Scan(ctx, []byte("scan/"), func(_, _ []byte) bool {
			count++
			return false
		})
		if count != 1 {
			t.Errorf("Scan() should stop after callback returns false, got %d", count)
		}
	})
}

func TestBadgerEngine_BatchIsAtomic(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()
	ctx := context.Background()

	keys := [][]byte{[]byte("t"), []byte("u"), []byte("e")}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	partial := make(chan string, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			vals, err := engine.GetMulti(ctx, keys)
			if err != nil {
				continue
			}
			present := 0
			for _, v := range vals {
				if v != nil {
					present++
				}
			}
			if present != 0 && present != len(keys) {
				select {
				case partial <- fmt.Sprintf("%q", vals):
				default:
				}
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		v := []byte(fmt.Sprint(i))
		if err := engine.Batch(ctx, []Mutation{SetOp(keys[0], v), SetOp(keys[1], v), SetOp(keys[2], v)}); err != nil {
			t.Fatal(err)
		}
		if err := engine.Batch(ctx, []Mutation{DeleteOp(keys[0]), DeleteOp(keys[1]), DeleteOp(keys[2])}); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()

	select {
	case got := <-partial:
		t.Fatalf("reader observed a partial batch: %s", got)
	default:
	}
}

func TestBadgerEngine_BatchCancelled(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := engine.Batch(ctx, []Mutation{SetOp([]byte("k"), []byte("v"))}); !errors.Is(err, context.Canceled) {
		t.Errorf("Batch() error = %v, want context.Canceled", err)
	}
}

func TestBadgerEngine_SessionSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	exp := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	engine := newTestBadger(t, dir)
	st, err := NewSessionStore(engine, "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Save(ctx, &domain.Session{Token: "tok", UserID: "u1", ExpiresAt: exp}); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}

	engine = newTestBadger(t, dir)
	defer engine.Close()
	st, _ = NewSessionStore(engine, "http://localhost:8080")

	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Token != "tok" || got.UserID != "u1" || !got.ExpiresAt.Equal(exp) {
		t.Errorf("Load() = %+v", got)
	}
}

func TestBadgerEngine_StatsAndGC(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()
	ctx := context.Background()

	if err := engine.GC(ctx); err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.LastGCTime == 0 {
		t.Error("LastGCTime should be set after GC")
	}
}

func TestBadgerEngine_RegisterMetrics(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	defer engine.Close()

	reg := prometheus.NewRegistry()
	engine.RegisterMetrics(reg)

	n, err := testutil.GatherAndCount(reg, "feedauth_badger_lsm_size_bytes", "feedauth_badger_value_log_size_bytes")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("gathered %d metrics, want 2", n)
	}
}

func TestBadgerEngine_ClosedEngine(t *testing.T) {
	engine := newTestBadger(t, t.TempDir())
	ctx := context.Background()

	if err := engine.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := engine.Get(ctx, []byte("k")); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
	if err := engine.Set(ctx, []byte("k"), []byte("v")); !errors.Is(err, ErrClosed) {
		t.Errorf("Set() after Close error = %v, want ErrClosed", err)
	}
	if _, err := engine.Stats(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Stats() after Close error = %v, want ErrClosed", err)
	}
}

func TestBadgerEngine_DirectoryLocked(t *testing.T) {
	dir := t.TempDir()
	engine := newTestBadger(t, dir)
	defer engine.Close()

	_, err := NewBadgerEngine(DefaultKVConfig(dir), nil)
	if !errors.Is(err, ErrStoreLocked) {
		t.Fatalf("second open error = %v, want ErrStoreLocked", err)
	}
}

func TestBadgerEngine_BackgroundGC(t *testing.T) {
	cfg := DefaultKVConfig(t.TempDir())
	cfg.Badger.GCInterval = 10 * time.Millisecond
	cfg.Badger.GCOnClose = false

	engine, err := NewBadgerEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := engine.Stats(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if stats.LastGCTime != 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("background GC never ran")
}
