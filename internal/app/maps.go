package app

import (
	"strconv"
	"strings"

	"notifsnd/internal/classify"
	"notifsnd/internal/config"
	"notifsnd/internal/digest"
	"notifsnd/internal/labels"
	"notifsnd/internal/source/httpingest"
	"notifsnd/internal/storage"
	logx "notifsnd/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	if busy <= 0 {
		busy = config.DefaultBusyTimeout
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
	}, nil
}

func mapFilter(cfg *config.Config) *classify.Filter {
	return classify.NewFilter(classify.FilterOptions{
		SelfID:        cfg.Identity.SelfID,
		TestTitle:     cfg.Identity.TestTitle,
		TestText:      cfg.Identity.TestText,
		ExtraPackages: cfg.Filter.IgnorePackages,
		ExtraPhrases:  cfg.Filter.IgnorePhrases,
	})
}

func mapLabels(cfg *config.Config) labels.Config {
	return labels.Config{
		Apps:         cfg.Labels.Apps,
		DesktopDirs:  cfg.Labels.DesktopDirs,
		RetainedDirs: cfg.Labels.RetainedDirs,
	}
}

func mapDigest(cfg *config.Config) digest.Config {
	return digest.Config{
		Enabled:  cfg.Digest.Enabled,
		Schedule: cfg.Digest.Schedule,
		Timezone: cfg.Digest.Timezone,
	}
}

func mapHTTPConfig(cfg *config.Config) (httpingest.Config, error) {
	h := cfg.Sources.HTTP
	rt, err := config.ParseDurationField("sources.http.read_timeout", h.ReadTimeout)
	if err != nil {
		return httpingest.Config{}, err
	}
	return httpingest.Config{
		Addr:          h.Addr,
		Token:         h.Token,
		AllowInsecure: h.AllowInsecure,
		RatePerSec:    h.RatePerSec,
		Burst:         h.Burst,
		ReadTimeout:   rt,
		Pprof:         h.Pprof,
	}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// logChat parses telegram.group_log; 0 means unset or malformed.
func logChat(cfg *config.Config) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(cfg.Telegram.GroupLog), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
