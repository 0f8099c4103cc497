package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"notifsnd/internal/app"
	"notifsnd/internal/classify"
)

type InjectCmd struct {
	flags *Flags

	file string
}

func NewInjectCmd(flags *Flags) *InjectCmd { return &InjectCmd{flags: flags} }

func (cmd *InjectCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "inject",
		Usage:     "Feed notification events through the pipeline",
		UsageText: "notifsnd inject --json FILE|-",
		Description: `Reads one or more JSON events, for example

  {"packageId":"com.whatsapp","channelId":"group_chats","hasExplicitSound":true}

and processes each one as if a source had delivered it. Use - for stdin.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "json", Usage: "event file, or - for stdin", Required: true, Destination: &cmd.file},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *InjectCmd) run(ctx context.Context, c *cli.Command) error {
	var in io.Reader = c.Root().Reader
	if in == nil {
		in = os.Stdin
	}
	if cmd.file != "-" {
		f, err := os.Open(cmd.file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	return cmd.flags.withCore(ctx, func(ctx context.Context, core *app.Core) error {
		dec := json.NewDecoder(in)
		dec.DisallowUnknownFields()
		out := c.Root().Writer
		for n := 1; ; n++ {
			var ev classify.Event
			if err := dec.Decode(&ev); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("event %d: %w", n, err)
			}
			if ev.PackageID == "" {
				return fmt.Errorf("event %d: packageId is required", n)
			}
			res, err := core.Monitor.Process(ctx, ev)
			if err != nil {
				return fmt.Errorf("event %d: %w", n, err)
			}
			_, _ = fmt.Fprintf(out, "%s %s new_pending=%t\n", res.Outcome, res.Key, res.NewPending)
		}
	})
}
