package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"notifsnd/internal/app"
	"notifsnd/internal/tracker"
)

// ListCmd manages one of the two tracked lists.
type ListCmd struct {
	flags *Flags
	state tracker.State

	move bool
}

func NewPendingCmd(flags *Flags) *ListCmd { return &ListCmd{flags: flags, state: tracker.Pending} }

func NewSeenCmd(flags *Flags) *ListCmd { return &ListCmd{flags: flags, state: tracker.Seen} }

func (cmd *ListCmd) name() string {
	if cmd.state == tracker.Pending {
		return "pending"
	}
	return "seen"
}

func (cmd *ListCmd) Register(root *cli.Command) *cli.Command {
	name := cmd.name()
	var (
		usage     string
		flip      *cli.Command
		moveUsage string
	)
	if cmd.state == tracker.Pending {
		usage = "Apps whose sound is not configured yet"
		moveUsage = "move the keys to seen instead of deleting them"
		flip = &cli.Command{
			Name:      "seen",
			Usage:     "Mark KEY as seen",
			ArgsUsage: "KEY",
			Action:    cmd.keyAction(func(ctx context.Context, c *app.Core, k string) error { return c.Tracker.MarkSeen(ctx, k) }),
		}
	} else {
		usage = "Apps already handled"
		moveUsage = "move the keys back to pending instead of deleting them"
		flip = &cli.Command{
			Name:      "new",
			Usage:     "Move KEY back to pending",
			ArgsUsage: "KEY",
			Action:    cmd.keyAction(func(ctx context.Context, c *app.Core, k string) error { return c.Tracker.MarkAsNew(ctx, k) }),
		}
	}

	root.Commands = append(root.Commands, &cli.Command{
		Name:      name,
		Usage:     usage,
		UsageText: "notifsnd " + name + " [list|" + flip.Name + " KEY|remove KEY|clear [--move]]",
		Action:    cmd.list,
		Commands: []*cli.Command{
			{Name: "list", Usage: "List the keys with their labels", Action: cmd.list},
			flip,
			{
				Name:      "remove",
				Usage:     "Forget KEY entirely",
				ArgsUsage: "KEY",
				Action:    cmd.keyAction(func(ctx context.Context, c *app.Core, k string) error { return c.Tracker.Remove(ctx, k) }),
			},
			{
				Name:  "clear",
				Usage: "Empty the list",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "move", Usage: moveUsage, Destination: &cmd.move},
				},
				Action: cmd.clear,
			},
		},
	})
	return root
}

func (cmd *ListCmd) list(ctx context.Context, c *cli.Command) error {
	return cmd.flags.withCore(ctx, func(ctx context.Context, core *app.Core) error {
		var keys []string
		var err error
		if cmd.state == tracker.Pending {
			keys, err = core.Tracker.Pending(ctx)
		} else {
			keys, err = core.Tracker.Seen(ctx)
		}
		if err != nil {
			return fmt.Errorf("list %s: %w", cmd.name(), err)
		}
		out := c.Root().Writer
		if len(keys) == 0 {
			_, _ = fmt.Fprintf(out, "no %s apps\n", cmd.name())
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "KEY\tLABEL")
		for _, k := range keys {
			label := strings.ReplaceAll(core.Labels.LabelWithChannel(ctx, k), "\n", " ")
			_, _ = fmt.Fprintf(w, "%s\t%s\n", k, label)
		}
		return w.Flush()
	})
}

func (cmd *ListCmd) keyAction(fn func(ctx context.Context, core *app.Core, key string) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		key := strings.TrimSpace(c.Args().First())
		if key == "" {
			return fmt.Errorf("missing KEY")
		}
		return cmd.flags.withCore(ctx, func(ctx context.Context, core *app.Core) error {
			if err := fn(ctx, core, key); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.Root().Writer, "%s: %s\n", c.Name, key)
			return nil
		})
	}
}

func (cmd *ListCmd) clear(ctx context.Context, c *cli.Command) error {
	mode := tracker.ClearDelete
	if cmd.move {
		mode = tracker.ClearMove
	}
	return cmd.flags.withCore(ctx, func(ctx context.Context, core *app.Core) error {
		var n int
		var err error
		if cmd.state == tracker.Pending {
			n, err = core.Tracker.ClearAllPending(ctx, mode)
		} else {
			n, err = core.Tracker.ClearAllSeen(ctx, mode)
		}
		if err != nil {
			return fmt.Errorf("clear %s: %w", cmd.name(), err)
		}
		_, _ = fmt.Fprintf(c.Root().Writer, "cleared %d %s apps (%s)\n", n, cmd.name(), mode)
		return nil
	})
}
