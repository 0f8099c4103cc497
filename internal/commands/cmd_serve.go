package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"notifsnd/internal/app"
)

type ServeCmd struct {
	flags *Flags
}

func NewServeCmd(flags *Flags) *ServeCmd { return &ServeCmd{flags: flags} }

func (cmd *ServeCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the daemon",
		UsageText: "notifsnd serve",
		Description: `Listens on the enabled sources, records audible notifications and serves
the Telegram bot. This is the default when no subcommand is given.`,
		Action: cmd.Run,
	})
	return root
}

func (cmd *ServeCmd) Run(ctx context.Context, _ *cli.Command) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cmd.flags.ConfigPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return err
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}
	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	return a.Err()
}
