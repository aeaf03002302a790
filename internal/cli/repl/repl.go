package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yndnr/feedauth-go/internal/cli/output"
	"github.com/yndnr/feedauth-go/internal/core/domain"
	"github.com/yndnr/feedauth-go/internal/core/form"
	"github.com/yndnr/feedauth-go/internal/core/session"
	"github.com/yndnr/feedauth-go/internal/telemetry/logger"
)

// Config configures a REPL.
type Config struct {
	In         io.Reader
	Out        io.Writer
	Formatter  output.Formatter
	History    *History
	ReadSecret SecretReader
	Logger     logger.Logger
	// Server is shown by status.
	Server string
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	session   Session
	server    string
	prompter  *Prompter
	formatter output.Formatter
	completer *Completer
	history   *History
	logger    logger.Logger

	outMu sync.Mutex
	out   io.Writer

	// loggingOut is set while the logout command runs so the observer can
	// tell a user logout from an expiry.
	loggingOut atomic.Bool
	lastState  atomic.Int32
}

// New creates a REPL driving s.
func New(s Session, cfg Config) *REPL {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Formatter == nil {
		cfg.Formatter = output.NewFormatter(output.FormatTable)
	}
	if cfg.History == nil {
		cfg.History = NewHistory("", DefaultHistorySize)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	r := &REPL{
		session:   s,
		server:    cfg.Server,
		formatter: cfg.Formatter,
		completer: NewCompleter(),
		history:   cfg.History,
		logger:    cfg.Logger,
		out:       cfg.Out,
	}
	r.prompter = NewPrompter(cfg.In, &lockedWriter{r: r}, cfg.ReadSecret)
	r.lastState.Store(int32(s.View().State))
	return r
}

// Run reads and executes commands until exit, end of input or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	cancel := r.session.Subscribe(r.observe)
	defer cancel()

	r.printf("FeedAuth interactive mode. Type 'help' for commands.\n")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := r.prompter.ReadLine(r.prompt())
		if errors.Is(err, io.EOF) {
			r.printf("\n")
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		quit, err := r.Execute(ctx, line)
		if err != nil {
			r.showError(err)
		}
		if quit {
			return nil
		}
	}
}

// Execute runs one command line. It reports whether the REPL should stop.
func (r *REPL) Execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "exit", "quit":
		return true, nil
	case "help", "?":
		r.help(args)
		return false, nil
	case "login":
		return false, r.login(ctx)
	case "signup":
		return false, r.signup(ctx)
	case "logout":
		return false, r.logout(ctx)
	case "status":
		return false, r.status()
	case "dismiss":
		r.session.DismissError()
		r.printf("Dismissed.\n")
		return false, nil
	case "history":
		for i, e := range r.history.Entries() {
			r.printf("%4d  %s\n", i+1, e)
		}
		return false, nil
	}

	if matches := r.completer.Complete(cmd); len(matches) > 0 {
		return false, fmt.Errorf("unknown command %q, did you mean: %s", cmd, strings.Join(matches, ", "))
	}
	return false, fmt.Errorf("unknown command %q, type 'help' for a list", cmd)
}

func (r *REPL) login(ctx context.Context) error {
	if view := r.session.View(); view.IsAuth {
		r.printf("Already logged in as %s. Log out first.\n", view.UserID)
		return nil
	}

	f := form.NewLoginForm()
	if err := r.prompter.Fill(ctx, f); err != nil {
		return r.inputErr(err)
	}
	if err := r.session.LoginForm(ctx, f); err != nil {
		return err
	}

	view := r.session.View()
	r.printf("Logged in as %s until %s.\n", view.UserID, view.ExpiresAt.Local().Format("15:04:05"))
	return nil
}

func (r *REPL) signup(ctx context.Context) error {
	f := form.NewSignupForm()
	if err := r.prompter.Fill(ctx, f); err != nil {
		return r.inputErr(err)
	}
	res, err := r.session.Signup(ctx, f)
	if err != nil {
		return err
	}
	r.printf("Account created. Continue at %s: type 'login' to sign in.\n", res.Redirect)
	return nil
}

func (r *REPL) logout(ctx context.Context) error {
	r.loggingOut.Store(true)
	defer r.loggingOut.Store(false)

	if err := r.session.Logout(ctx); err != nil {
		return err
	}
	r.printf("Logged out.\n")
	return nil
}

func (r *REPL) status() error {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	return r.formatter.Format(r.out, StatusOf(r.session, r.server))
}

func (r *REPL) inputErr(err error) error {
	if errors.Is(err, io.EOF) {
		r.printf("\n")
		return domain.ErrFormInvalid.WithDetails("input ended")
	}
	return err
}

// observe runs on every session transition, possibly on the expiry timer's
// goroutine.
func (r *REPL) observe(view session.ViewState) {
	prev := session.State(r.lastState.Swap(int32(view.State)))
	if prev == session.StateAuthenticated && view.State == session.StateAnonymous && !r.loggingOut.Load() {
		r.printf("\nSession expired. Type 'login' to sign in again.\n")
		r.logger.Debug("session expiry reported to user")
	}
}

func (r *REPL) showError(err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		r.printf("%s: %s\n", ErrorTitle, ErrorText(err))
		if r.session.View().Error != nil {
			r.printf("(type 'dismiss' to clear)\n")
		}
		return
	}
	r.printf("Error: %v\n", err)
}

func (r *REPL) prompt() string {
	view := r.session.View()
	var b strings.Builder
	b.WriteString("feedauth")
	if view.IsAuth {
		b.WriteString("(" + view.UserID + ")")
	}
	if view.Error != nil {
		b.WriteString("!")
	}
	b.WriteString("> ")
	return b.String()
}

func (r *REPL) help(args []string) {
	names := r.completer.Commands()
	if len(args) > 0 {
		names = r.completer.Complete(args[0])
	}
	for _, name := range names {
		r.printf("  %-8s %s\n", name, commandHelp[name])
	}
}

func (r *REPL) printf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// lockedWriter serialises prompter output with asynchronous notices.
type lockedWriter struct {
	r *REPL
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.r.outMu.Lock()
	defer w.r.outMu.Unlock()
	return w.r.out.Write(p)
}
