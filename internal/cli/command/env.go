package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/feedauth-go/internal/cli/config"
	"github.com/yndnr/feedauth-go/internal/cli/connection"
	"github.com/yndnr/feedauth-go/internal/core/session"
	"github.com/yndnr/feedauth-go/internal/infra/tlsroots"
	"github.com/yndnr/feedauth-go/internal/storage"
	"github.com/yndnr/feedauth-go/internal/storage/memory"
	"github.com/yndnr/feedauth-go/internal/telemetry/logger"
	"github.com/yndnr/feedauth-go/internal/telemetry/metric"
	"github.com/yndnr/feedauth-go/pkg/crypto/adaptive"
)

// sealerInfo is the HKDF info string for the token-sealing key.
const sealerInfo = "feedauth session token v1"

// Env is everything a session command needs, built once per invocation.
type Env struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metric.Registry
	KV      storage.KVEngine
	Store   *storage.SessionStore
	Manager *session.Manager

	// Badger is set when the store is on disk.
	Badger *storage.BadgerEngine
}

// Close stops the manager and closes the store. The session stays stored.
func (e *Env) Close() error {
	var errs []error
	if e.Manager != nil {
		errs = append(errs, e.Manager.Close())
	}
	if e.KV != nil {
		errs = append(errs, e.KV.Close())
	}
	return errors.Join(errs...)
}

// loadConfig loads config using the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	flags := ParseGlobalFlags(c)
	return config.Load(flags.Config, flags.Overrides())
}

// envFrom returns the Env for this invocation, building and restoring it on
// first use.
func envFrom(c *cli.Context) (*Env, error) {
	if env, ok := c.App.Metadata[envMetadataKey].(*Env); ok {
		return env, nil
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	env, err := NewEnv(c.Context, cfg, c.App.ErrWriter)
	if err != nil {
		return nil, err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[envMetadataKey] = env
	return env, nil
}

func closeEnv(c *cli.Context) error {
	env, ok := c.App.Metadata[envMetadataKey].(*Env)
	if !ok {
		return nil
	}
	delete(c.App.Metadata, envMetadataKey)
	return env.Close()
}

// NewEnv wires the session manager from cfg and restores the stored session.
// Logs go to logOut.
func NewEnv(ctx context.Context, cfg *config.Config, logOut io.Writer) (*Env, error) {
	if logOut == nil {
		logOut = os.Stderr
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOut,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)

	env := &Env{
		Config:  cfg,
		Logger:  log,
		Metrics: metric.NewRegistry(),
	}

	if err := env.openStore(); err != nil {
		env.Close()
		return nil, err
	}

	tlsConfig, err := tlsroots.ClientConfig(cfg.Server.TLS())
	if err != nil {
		env.Close()
		return nil, err
	}
	httpClient := connection.NewHTTPClient(connection.Config{
		Server:    cfg.Server.URL,
		Timeout:   cfg.Server.Timeout,
		RateLimit: cfg.Server.RateLimit,
		Burst:     cfg.Server.Burst,
		TLS:       tlsConfig,
	})
	env.Manager, err = session.NewManager(
		connection.NewAuthClient(httpClient, log),
		env.Store,
		session.WithLogger(log),
		session.WithMetrics(env.Metrics),
		session.WithDefaultTTL(cfg.Session.DefaultTTL),
	)
	if err != nil {
		env.Close()
		return nil, err
	}

	if err := env.Manager.Restore(ctx); err != nil {
		env.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return env, nil
}

func (e *Env) openStore() error {
	cfg := e.Config
	switch cfg.Store.Engine {
	case storage.EngineMemory:
		e.KV = memory.New()
	default:
		if err := os.MkdirAll(cfg.Store.Dir, 0o700); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		engine, err := storage.NewBadgerEngine(storage.DefaultKVConfig(cfg.Store.Dir), e.Logger.Slog())
		if errors.Is(err, storage.ErrStoreLocked) {
			return fmt.Errorf("%w (is a feedauth-cli repl running? use --ephemeral or another store.dir)", err)
		}
		if err != nil {
			return err
		}
		e.KV = engine
		e.Badger = engine.RegisterMetrics(e.Metrics.Registerer())
	}

	var opts []storage.SessionStoreOption
	opts = append(opts, storage.WithStoreLogger(e.Logger.Slog()))
	if cfg.Store.EncryptionKey != "" {
		sealer, err := adaptive.NewSealer(adaptive.DeriveKey(cfg.Store.EncryptionKey, sealerInfo))
		if err != nil {
			return err
		}
		opts = append(opts, storage.WithSealer(sealer))
	}

	store, err := storage.NewSessionStore(e.KV, connection.NormalizeServer(cfg.Server.URL), opts...)
	if err != nil {
		return err
	}
	e.Store = store
	return nil
}
