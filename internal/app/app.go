// Package app wires the daemon: sources feed the pipeline, the pipeline
// writes the store, and the bot and digest read it back.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notifsnd/internal/bot"
	"notifsnd/internal/config"
	"notifsnd/internal/digest"
	"notifsnd/internal/runtime/supervisor"
	"notifsnd/internal/source"
	"notifsnd/internal/source/dbus"
	"notifsnd/internal/source/httpingest"
	"notifsnd/internal/status"
	kit "notifsnd/internal/transport"
	"notifsnd/internal/transport/telegram"
	logx "notifsnd/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	core *Core
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter *telegram.Adapter // nil without a bot token
	bot     *bot.Bot
	digest  *digest.Service
	sources []source.Source
	status  *status.Collector

	updates chan kit.Update
	started time.Time
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	var ad *telegram.Adapter
	var sender kit.Adapter
	if cfg.Telegram.Enabled() {
		bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
		ad, err = telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: config.DurationOr(cfg.Telegram.PollTimeout, 10*time.Second),
		}, bootLog)
		if err != nil {
			return nil, err
		}
		sender = ad
	}

	// Bootstrap with Telegram logging off so Apply does not warn before the
	// target chat is set.
	logCfg := mapLogConfig(cfg)
	boot := logCfg
	boot.Telegram.Enabled = false
	logSvc, log := logx.New(boot, sender)
	logSvc.SetTelegramTarget(logChat(cfg), cfg.Logging.Telegram.ThreadID)
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	core, err := NewCore(cfg, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", cfg.Storage.Driver))

	a := &App{
		cfgm:    cfgm,
		core:    core,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		updates: make(chan kit.Update, 256),
		started: time.Now(),
	}

	if cfg.Sources.DBus.Enabled {
		a.sources = append(a.sources, dbus.New(dbus.Config{Bus: cfg.Sources.DBus.Bus}, log.With(logx.String("comp", "dbus"))))
	}
	if cfg.Sources.HTTP.Enabled {
		hc, err := mapHTTPConfig(cfg)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		a.sources = append(a.sources, httpingest.New(hc, func(ctx context.Context) any {
			return a.status.Collect(ctx)
		}, log.With(logx.String("comp", "http"))))
	}
	if len(a.sources) == 0 {
		log.Warn("no notification source enabled; only injected events are processed")
	}

	if ad != nil {
		a.bot = bot.New(bot.Config{
			Owners:   cfg.Telegram.OwnerUserIDs,
			LogChat:  logChat(cfg),
			SelfTest: core.SelfTest(time.Time{}),
		}, bot.Deps{
			Adapter:    ad,
			Tracker:    core.Tracker,
			History:    core.History,
			Labels:     core.Labels,
			Onboarding: core.Onboarding,
			Injector:   core.Monitor,
			Status:     func(ctx context.Context) status.Report { return a.status.Collect(ctx) },
			Bus:        core.Bus,
		}, log.With(logx.String("comp", "bot")))
	}

	var ds digest.Sender
	if a.bot != nil {
		ds = a.bot
	}
	a.digest = digest.New(mapDigest(cfg), core.Tracker, func(ctx context.Context, key string) string {
		return strings.ReplaceAll(core.Labels.LabelWithChannel(ctx, key), "\n", " ")
	}, ds, log.With(logx.String("comp", "digest")))

	a.status = core.Collector()
	a.status.Pipeline = core.Monitor.Stats
	a.status.DigestNext = a.digest.Next
	a.status.Started = a.started
	if cfg.Systemd.Notify {
		a.status.Unit = cfg.Systemd.Unit
	}
	for _, s := range a.sources {
		a.status.Sources = append(a.status.Sources, s)
	}
	return a, nil
}

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapHTTPConfig(cfg); err != nil {
			return err
		}
		_, err := mapStorageConfig(cfg)
		return err
	})

	mon := a.core.Monitor
	a.sup.Go("pipeline", mon.Run)

	for _, src := range a.sources {
		a.sup.GoRestart("source."+src.Name(), func(c context.Context) error {
			return src.Run(c, mon)
		},
			supervisor.WithRestartBackoff(time.Second, time.Minute),
			supervisor.WithStopOnCleanExit(false),
		)
	}

	if a.adapter != nil {
		if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
			return err
		}
		a.sup.Go("bot", func(c context.Context) error { return a.bot.Run(c, a.updates) })
	}

	if err := a.digest.Start(a.sup.Context()); err != nil {
		a.log.Warn("digest not started", logx.Err(err))
	}

	if a.core.Bus != nil {
		events, unsub := a.core.Bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	if a.core.Config.Systemd.Notify {
		a.notifyReady()
		a.sup.Go0("systemd.watchdog", a.watchdog)
	}

	a.log.Info("app started", logx.Int("sources", len(a.sources)), logx.Bool("telegram", a.adapter != nil))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.core.Config.Systemd.Notify {
		a.notifyStopping()
	}
	a.sup.Cancel()

	// step bounds one shutdown phase so a stuck component can't stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("digest", 2*time.Second, func(c context.Context) error { a.digest.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error {
		if a.adapter == nil {
			return nil
		}
		return a.adapter.Stop(c)
	})
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.core.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) close() error {
	err := a.core.Close()
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}
