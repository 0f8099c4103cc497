package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"notifsnd/internal/app"
)

type TestCmd struct {
	flags *Flags
}

func NewTestCmd(flags *Flags) *TestCmd { return &TestCmd{flags: flags} }

func (cmd *TestCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "test",
		Usage: "Run a self-test notification through the pipeline",
		Description: `Injects a notification from notifsnd itself carrying the configured test
title and text. It is recorded like any other audible notification.`,
		Action: cmd.run,
	})
	return root
}

func (cmd *TestCmd) run(ctx context.Context, c *cli.Command) error {
	return cmd.flags.withCore(ctx, func(ctx context.Context, core *app.Core) error {
		res, err := core.Monitor.Process(ctx, core.SelfTest(time.Now()))
		if err != nil {
			return fmt.Errorf("self-test: %w", err)
		}
		_, _ = fmt.Fprintf(c.Root().Writer, "%s %s new_pending=%t\n", res.Outcome, res.Key, res.NewPending)
		return nil
	})
}
