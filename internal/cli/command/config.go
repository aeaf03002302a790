package command

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/feedauth-go/internal/cli/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or create the CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration (secrets redacted)",
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration",
				Action: configValidate,
			},
			{
				Name:   "path",
				Usage:  "Print the config file path",
				Action: configPath,
			},
			{
				Name:  "init",
				Usage: "Write a config file with the defaults",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
		},
	}
}

func configFilePath(c *cli.Context) string {
	if p := ParseGlobalFlags(c).Config; p != "" {
		return p
	}
	return config.DefaultConfigPath()
}

func configShow(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return printResult(c, cfg.Redacted().Map())
}

func configValidate(c *cli.Context) error {
	if _, err := loadConfig(c); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), ExitError)
	}
	printMessage(c, "Configuration OK.")
	return nil
}

func configPath(c *cli.Context) error {
	fmt.Fprintln(c.App.Writer, configFilePath(c))
	return nil
}

func configInit(c *cli.Context) error {
	path := configFilePath(c)
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return cli.Exit(fmt.Sprintf("%s already exists; use --force to overwrite", path), ExitError)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := config.Save(config.Default(), path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	printMessage(c, "Wrote %s.", path)
	return nil
}
