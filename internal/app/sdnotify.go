package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "notifsnd/pkg/logx"
)

func (a *App) notifyReady() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	switch {
	case err != nil:
		a.log.Warn("sd_notify READY failed", logx.Err(err))
	case !sent:
		a.log.Debug("sd_notify socket not set; not running under systemd")
	default:
		a.log.Info("systemd notified ready")
	}
}

func (a *App) notifyStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// watchdog pings systemd at half the configured WatchdogSec. It returns at
// once when the unit has no watchdog.
func (a *App) watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		a.log.Warn("watchdog config unreadable", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				a.log.Debug("watchdog ping failed", logx.Err(err))
			}
		}
	}
}
