package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// NewRoot assembles the notifsnd command tree. Without a subcommand it
// runs the daemon.
func NewRoot(version string) *cli.Command {
	flags := &Flags{}
	root := &cli.Command{
		Name:      "notifsnd",
		Usage:     "Track which apps make notification sounds you have not configured yet",
		UsageText: "notifsnd [global options] [command [command options]]",
		Version:   version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to the YAML or JSON config file",
				Sources:     cli.EnvVars("NOTIFSND_CONFIG"),
				Value:       "./config.yaml",
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level for subcommands (debug, info, warn, error)",
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
		},
	}

	serve := NewServeCmd(flags)
	root = serve.Register(root)
	root = NewPendingCmd(flags).Register(root)
	root = NewSeenCmd(flags).Register(root)
	root = NewHistoryCmd(flags).Register(root)
	root = NewTestCmd(flags).Register(root)
	root = NewStatusCmd(flags).Register(root)
	root = NewOnboardingCmd(flags).Register(root)
	root = NewInjectCmd(flags).Register(root)

	root.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'notifsnd --help' for usage", c.Args().First())
		}
		return serve.Run(ctx, c)
	}
	return root
}
