// Package commands holds the notifsnd subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"notifsnd/internal/app"
	"notifsnd/internal/config"
	"notifsnd/internal/tracker"
	logx "notifsnd/pkg/logx"
)

// Actor is recorded in the audit log for changes made from the CLI.
const Actor = "cli"

type Flags struct {
	ConfigPath string
	LogLevel   string
}

// LoadConfig reads the config file. A missing file yields the defaults so
// the list commands work before any config exists.
func (f *Flags) LoadConfig() (*config.Config, error) {
	b, err := os.ReadFile(f.ConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		b = []byte("{}")
	} else if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Decode(f.ConfigPath, b)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withCore opens the store for one command and closes it afterwards.
func (f *Flags) withCore(ctx context.Context, fn func(ctx context.Context, core *app.Core) error) error {
	cfg, err := f.LoadConfig()
	if err != nil {
		return err
	}
	core, err := app.NewCore(cfg, logx.NewConsole(f.LogLevel))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer core.Close()
	return fn(tracker.WithActor(ctx, Actor), core)
}
