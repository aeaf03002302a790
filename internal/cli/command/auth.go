package command

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/yndnr/feedauth-go/internal/cli/output"
	"github.com/yndnr/feedauth-go/internal/cli/repl"
	"github.com/yndnr/feedauth-go/internal/core/domain"
	"github.com/yndnr/feedauth-go/internal/core/form"
	"github.com/yndnr/feedauth-go/internal/storage"
)

func formFlags(withName bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "email",
			Aliases: []string{"e"},
			Usage:   "E-mail address",
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Password (prompted without echo when omitted)",
			EnvVars: []string{"FEEDAUTH_PASSWORD"},
		},
		&cli.BoolFlag{
			Name:  "no-input",
			Usage: "Fail instead of prompting for missing or invalid fields",
		},
	}
	if withName {
		flags = append(flags, &cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "Display name",
		})
	}
	return flags
}

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Log in and store the session",
		Flags:  formFlags(false),
		Action: loginAction,
	}
}

// SignupCommand returns the signup command.
func SignupCommand() *cli.Command {
	return &cli.Command{
		Name:   "signup",
		Usage:  "Create an account",
		Flags:  formFlags(true),
		Action: signupAction,
	}
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "End the session and clear it from the store",
		Action: logoutAction,
	}
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the stored session",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "List every server with a stored session",
			},
		},
		Action: statusAction,
	}
}

func loginAction(c *cli.Context) error {
	env, err := envFrom(c)
	if err != nil {
		return err
	}
	mgr := env.Manager

	if view := mgr.View(); view.IsAuth {
		return cli.Exit(fmt.Sprintf("already logged in as %s; run logout first", view.UserID), ExitError)
	}

	f := form.NewLoginForm()
	if err := fillForm(c, f); err != nil {
		return sessionError(err)
	}

	err = withSpinner(c, "Logging in", func() error {
		return mgr.LoginForm(c.Context, f)
	})
	if err != nil {
		return sessionError(err)
	}

	printMessage(c, "Logged in as %s.", mgr.View().UserID)
	return printResult(c, repl.StatusOf(mgr, env.Store.Origin()))
}

func signupAction(c *cli.Context) error {
	env, err := envFrom(c)
	if err != nil {
		return err
	}

	f := form.NewSignupForm()
	if err := fillForm(c, f); err != nil {
		return sessionError(err)
	}

	var redirect string
	err = withSpinner(c, "Creating account", func() error {
		res, err := env.Manager.Signup(c.Context, f)
		if err == nil {
			redirect = res.Redirect
		}
		return err
	})
	if err != nil {
		return sessionError(err)
	}

	if ParseGlobalFlags(c).Output.IsStructured() {
		return printResult(c, map[string]any{"created": true, "redirect": redirect})
	}
	printMessage(c, "Account created. Run 'feedauth-cli login' to sign in.")
	return nil
}

func logoutAction(c *cli.Context) error {
	env, err := envFrom(c)
	if err != nil {
		return err
	}
	if err := env.Manager.Logout(c.Context); err != nil {
		return sessionError(err)
	}

	if ParseGlobalFlags(c).Output.IsStructured() {
		return printResult(c, repl.StatusOf(env.Manager, env.Store.Origin()))
	}
	printMessage(c, "Logged out.")
	return nil
}

// storedOrigin is one row of status --all.
type storedOrigin struct {
	Origin  string `json:"origin"`
	Current bool   `json:"current"`
}

func statusAction(c *cli.Context) error {
	env, err := envFrom(c)
	if err != nil {
		return err
	}
	if c.Bool("all") {
		origins, err := storage.Origins(c.Context, env.KV)
		if err != nil {
			return sessionError(err)
		}
		rows := make([]storedOrigin, 0, len(origins))
		for _, o := range origins {
			rows = append(rows, storedOrigin{Origin: o, Current: o == env.Store.Origin()})
		}
		return printResult(c, rows)
	}
	return printResult(c, repl.StatusOf(env.Manager, env.Store.Origin()))
}

// fillForm applies the field flags to f and prompts for whatever is still
// invalid, unless --no-input is set.
func fillForm(c *cli.Context, f *form.Form) error {
	for _, name := range f.Names() {
		if !c.IsSet(name) {
			continue
		}
		if err := f.UpdateField(name, c.String(name)); err != nil {
			return err
		}
		if err := f.BlurField(name); err != nil {
			return err
		}
	}
	if f.IsValid() {
		return nil
	}

	if c.Bool("no-input") {
		var problems []string
		for _, fld := range f.Snapshot().Fields() {
			if !fld.Valid() {
				problems = append(problems, fld.Name()+": "+repl.FieldHint(fld.Name()))
			}
		}
		return domain.ErrFormInvalid.WithDetails(strings.Join(problems, " "))
	}

	p := repl.NewPrompter(c.App.Reader, c.App.ErrWriter, secretReader(c.App.Reader, c.App.ErrWriter))
	if err := p.Fill(c.Context, f); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrFormInvalid.WithDetails("input ended")
		}
		return err
	}
	return nil
}

// secretReader reads without echo when in is a terminal.
func secretReader(in io.Reader, out io.Writer) repl.SecretReader {
	file, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return nil
	}
	return func() (string, error) {
		b, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
}

// withSpinner runs fn, animating a spinner on a terminal stderr.
func withSpinner(c *cli.Context, message string, fn func() error) error {
	if ParseGlobalFlags(c).Output.IsStructured() || !isTerminal(c.App.ErrWriter) {
		return fn()
	}
	s := output.NewSpinner(c.App.ErrWriter, message)
	s.Start()
	err := fn()
	s.Stop()
	return err
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
