package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"notifsnd/internal/app"
)

type StatusCmd struct {
	flags *Flags

	jsonOutput bool
}

func NewStatusCmd(flags *Flags) *StatusCmd { return &StatusCmd{flags: flags} }

func (cmd *StatusCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show list sizes, the last notification and the service state",
		UsageText: "notifsnd status [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &cmd.jsonOutput},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	return cmd.flags.withCore(ctx, func(ctx context.Context, core *app.Core) error {
		col := core.Collector()
		if core.Config.Systemd.Notify {
			col.Unit = core.Config.Systemd.Unit
		}
		r := col.Collect(ctx)
		out := c.Root().Writer
		if cmd.jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "store\t%s\n", r.Store)
		_, _ = fmt.Fprintf(w, "pending\t%d\n", r.Pending)
		_, _ = fmt.Fprintf(w, "seen\t%d\n", r.Seen)
		_, _ = fmt.Fprintf(w, "history\t%d\n", r.History)
		if r.LastEvent != nil {
			_, _ = fmt.Fprintf(w, "last event\t%s at %s\n", r.LastEvent.PackageName, r.LastEvent.Time().Format("2006-01-02 15:04:05"))
		}
		if r.Unit != nil {
			_, _ = fmt.Fprintf(w, "unit\t%s: %s\n", r.Unit.Unit, r.Unit.Summary())
		}
		for _, e := range r.Errors {
			_, _ = fmt.Fprintf(w, "error\t%s\n", e)
		}
		return w.Flush()
	})
}
