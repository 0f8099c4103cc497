package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"notifsnd/internal/app"
)

type OnboardingCmd struct {
	flags *Flags

	reset    bool
	complete bool
}

func NewOnboardingCmd(flags *Flags) *OnboardingCmd { return &OnboardingCmd{flags: flags} }

func (cmd *OnboardingCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "onboarding",
		Usage:     "Show or change whether the bot's welcome has been completed",
		UsageText: "notifsnd onboarding [--reset|--complete]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reset", Usage: "show the welcome again on the next /start", Destination: &cmd.reset},
			&cli.BoolFlag{Name: "complete", Usage: "mark the welcome as done", Destination: &cmd.complete},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *OnboardingCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.reset && cmd.complete {
		return fmt.Errorf("--reset and --complete are mutually exclusive")
	}
	return cmd.flags.withCore(ctx, func(ctx context.Context, core *app.Core) error {
		switch {
		case cmd.reset:
			if err := core.Onboarding.Reset(ctx); err != nil {
				return err
			}
		case cmd.complete:
			if err := core.Onboarding.Complete(ctx); err != nil {
				return err
			}
		}
		done, err := core.Onboarding.Completed(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(c.Root().Writer, "onboarding completed: %t\n", done)
		return nil
	})
}
