package config

import (
	"reflect"
	"sort"
	"strings"

	logx "notifsnd/pkg/logx"
)

// SummarizeConfigChange lists changed sections and returns log fields that
// describe them. Tokens are only reported as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var changed []string
	var attrs []logx.Field

	if !reflect.DeepEqual(oldCfg.Identity, newCfg.Identity) {
		changed = append(changed, "identity")
		attrs = append(attrs, logx.String("identity.self_id", newCfg.Identity.SelfID))
	}
	if !reflect.DeepEqual(oldCfg.Filter, newCfg.Filter) {
		changed = append(changed, "filter")
		attrs = append(attrs,
			logx.Int("filter.ignore_packages", len(newCfg.Filter.IgnorePackages)),
			logx.Int("filter.ignore_phrases", len(newCfg.Filter.IgnorePhrases)),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		oldCfg.Telegram.GroupLog != newCfg.Telegram.GroupLog ||
		oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", newCfg.Telegram.Enabled()),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
		)
	}
	if oldCfg.Sources != newCfg.Sources {
		changed = append(changed, "sources")
		attrs = append(attrs,
			logx.Bool("sources.dbus", newCfg.Sources.DBus.Enabled),
			logx.Bool("sources.http", newCfg.Sources.HTTP.Enabled),
			logx.Bool("sources.http.token_set", newCfg.Sources.HTTP.Token != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Labels, newCfg.Labels) {
		changed = append(changed, "labels")
		attrs = append(attrs, logx.Int("labels.apps", len(newCfg.Labels.Apps)))
	}
	if oldCfg.Digest != newCfg.Digest {
		changed = append(changed, "digest")
		attrs = append(attrs,
			logx.Bool("digest.enabled", newCfg.Digest.Enabled),
			logx.String("digest.schedule", newCfg.Digest.Schedule),
		)
	}
	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
	}

	sort.Strings(changed)
	return changed, attrs
}
