package command

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/feedauth-go/internal/cli/output"
	"github.com/yndnr/feedauth-go/internal/infra/buildinfo"
)

const envMetadataKey = "env"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "feedauth-cli",
		Usage:                "Log in to a FeedAuth server and keep the session",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			LoginCommand(),
			SignupCommand(),
			LogoutCommand(),
			StatusCommand(),
			REPLCommand(),
			VersionCommand(),
			ConfigCommand(),
		},
		Before: func(c *cli.Context) error {
			if _, err := output.ParseFormat(c.String("output")); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			return closeEnv(c)
		},
		// Exit codes are applied by main so tests never call os.Exit.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file (default ~/.feedauth/cli.yaml)",
			EnvVars: []string{"FEEDAUTH_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Auth server URL, overrides server.url (env FEEDAUTH_SERVER_URL)",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Session store directory, overrides store.dir",
		},
		&cli.BoolFlag{
			Name:  "ephemeral",
			Usage: "Keep the session in memory only",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log at debug level",
		},
	}
}

// GlobalFlags holds the parsed global flags.
type GlobalFlags struct {
	Config    string
	Server    string
	DataDir   string
	Ephemeral bool
	Output    output.Format
	Verbose   bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		format = output.FormatTable
	}
	return &GlobalFlags{
		Config:    c.String("config"),
		Server:    c.String("server"),
		DataDir:   c.String("data-dir"),
		Ephemeral: c.Bool("ephemeral"),
		Output:    format,
		Verbose:   c.Bool("verbose"),
	}
}

// Overrides returns the config keys set by flags.
func (g *GlobalFlags) Overrides() map[string]any {
	o := make(map[string]any)
	if g.Server != "" {
		o["server.url"] = g.Server
	}
	if g.DataDir != "" {
		o["store.dir"] = g.DataDir
	}
	if g.Ephemeral {
		o["store.engine"] = "memory"
	}
	if g.Verbose {
		o["log.level"] = "debug"
	}
	return o
}

// printResult writes data with the selected formatter.
func printResult(c *cli.Context, data any) error {
	f := output.NewFormatter(ParseGlobalFlags(c).Output)
	return f.Format(c.App.Writer, data)
}

// printMessage writes a line for humans. Structured output stays clean.
func printMessage(c *cli.Context, format string, args ...any) {
	if ParseGlobalFlags(c).Output.IsStructured() {
		return
	}
	fmt.Fprintf(c.App.Writer, format+"\n", args...)
}

// PrintError prints err to w. Exit errors already carry their user-facing
// text and are printed as is.
func PrintError(w io.Writer, err error) {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(w, msg)
		}
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
