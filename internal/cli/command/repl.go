package command

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/feedauth-go/internal/cli/config"
	"github.com/yndnr/feedauth-go/internal/cli/output"
	"github.com/yndnr/feedauth-go/internal/cli/repl"
	"github.com/yndnr/feedauth-go/internal/infra/confloader"
	"github.com/yndnr/feedauth-go/internal/infra/shutdown"
	"github.com/yndnr/feedauth-go/internal/telemetry/logger"
	"github.com/yndnr/feedauth-go/internal/telemetry/metric"
)

const shutdownTimeout = 5 * time.Second

// REPLCommand returns the interactive mode command.
func REPLCommand() *cli.Command {
	return &cli.Command{
		Name:    "repl",
		Aliases: []string{"shell"},
		Usage:   "Interactive mode: the session expires while you watch",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "History file (default ~/.feedauth/history)",
			},
		},
		Action: replAction,
	}
}

func replAction(c *cli.Context) error {
	env, err := envFrom(c)
	if err != nil {
		return err
	}
	flags := ParseGlobalFlags(c)

	ctx, stop := shutdown.NotifyContext(c.Context)
	defer stop()
	h := shutdown.NewHandler(shutdownTimeout, env.Logger)

	historyFile := c.String("history-file")
	if historyFile == "" {
		historyFile = repl.DefaultHistoryFile(config.Home())
	}
	hist := repl.NewHistory(historyFile, repl.DefaultHistorySize)
	if err := hist.Load(); err != nil {
		env.Logger.Warn("failed to load history", "file", historyFile, "error", err)
	}
	h.OnClose("history", hist.Save)

	if addr := env.Config.Metrics.Address; addr != "" {
		srv, err := serveMetrics(addr, env)
		if err != nil {
			return err
		}
		h.OnShutdown("metrics server", srv.Shutdown)
	}

	if w := watchLogLevel(flags, env.Logger); w != nil {
		h.OnClose("config watcher", w.Stop)
	}

	r := repl.New(env.Manager, repl.Config{
		In:         c.App.Reader,
		Out:        c.App.Writer,
		Formatter:  output.NewFormatter(flags.Output),
		History:    hist,
		ReadSecret: secretReader(c.App.Reader, c.App.Writer),
		Logger:     env.Logger,
		Server:     env.Store.Origin(),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		fmt.Fprintln(c.App.Writer)
	}
	return errors.Join(runErr, h.Shutdown())
}

// serveMetrics exposes the registry on addr until the returned server is
// shut down. The server's Addr is the bound address.
func serveMetrics(addr string, env *Env) (*http.Server, error) {
	if err := env.Metrics.Registerer().Register(metric.NewSessionCollector(env.Manager.Remaining)); err != nil {
		return nil, fmt.Errorf("register session collector: %w", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", env.Metrics.Handler())
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.Logger.Error("metrics server stopped", "error", err)
		}
	}()
	env.Logger.Info("serving metrics", "address", srv.Addr)
	return srv, nil
}

// watchLogLevel reloads log.level whenever the config file changes. It
// returns nil when there is no file to watch.
func watchLogLevel(flags *GlobalFlags, log logger.Logger) *confloader.Watcher {
	path := flags.Config
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.Slog()))
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return nil
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil
	}

	overrides := flags.Overrides()
	w.OnChange(func(string) {
		cfg, err := config.Load(path, overrides)
		if err != nil {
			log.Warn("ignoring invalid config change", "file", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w
}
