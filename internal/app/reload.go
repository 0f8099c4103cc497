package app

import (
	"context"
	"slices"
	"strings"

	"notifsnd/internal/config"
	logx "notifsnd/pkg/logx"
)

// restartOnly lists config sections that are read once at startup.
var restartOnly = []string{"storage", "sources", "identity"}

func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// keep only the newest of a burst
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(prev, cfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range sections {
		if slices.Contains(restartOnly, s) {
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}
	if prev != nil && prev.Telegram.Token != cfg.Telegram.Token {
		a.log.Warn("telegram token changed; restart required for it to take effect")
	}

	a.logs.SetTelegramTarget(logChat(cfg), cfg.Logging.Telegram.ThreadID)
	a.logs.Apply(mapLogConfig(cfg))

	a.core.Filter.Store(mapFilter(cfg))

	if err := a.digest.Apply(mapDigest(cfg)); err != nil {
		a.log.Warn("invalid digest config; keeping previous schedule", logx.Err(err))
	}
	if a.bot != nil {
		a.bot.SetOwners(cfg.Telegram.OwnerUserIDs)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
