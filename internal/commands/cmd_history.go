package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"notifsnd/internal/app"
	"notifsnd/internal/classify"
	"notifsnd/internal/labels"
)

type HistoryCmd struct {
	flags *Flags

	clear      bool
	jsonOutput bool
}

func NewHistoryCmd(flags *Flags) *HistoryCmd { return &HistoryCmd{flags: flags} }

func (cmd *HistoryCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "history",
		Usage:     "Show the most recent audible notifications",
		UsageText: "notifsnd history [--clear] [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "delete the history", Destination: &cmd.clear},
			&cli.BoolFlag{Name: "json", Usage: "print the raw entries as JSON", Destination: &cmd.jsonOutput},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *HistoryCmd) run(ctx context.Context, c *cli.Command) error {
	return cmd.flags.withCore(ctx, func(ctx context.Context, core *app.Core) error {
		out := c.Root().Writer
		if cmd.clear {
			if err := core.History.Clear(ctx); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			_, _ = fmt.Fprintln(out, "history cleared")
			return nil
		}
		entries, err := core.History.Entries(ctx)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if cmd.jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			_, _ = fmt.Fprintln(out, "no notifications recorded")
			return nil
		}
		now := time.Now()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "#\tAPP\tKEY\tWHEN")
		for i, e := range entries {
			key := classify.BuildKey(e.PackageName, e.ChannelID, nil)
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, core.Labels.Resolve(ctx, e.PackageName), key, labels.RelativeTime(now, e.Timestamp))
		}
		return w.Flush()
	})
}
