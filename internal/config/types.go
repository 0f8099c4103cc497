package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"notifsnd/internal/digest"
)

type Config struct {
	Identity IdentityConfig `json:"identity"`
	Filter   FilterConfig   `json:"filter"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram"`
	Sources  SourcesConfig  `json:"sources"`
	Labels   LabelsConfig   `json:"labels"`
	Digest   DigestConfig   `json:"digest"`
	Systemd  SystemdConfig  `json:"systemd"`
}

// IdentityConfig names this process as a notification source, plus the
// title/text pair its self-test notification carries.
type IdentityConfig struct {
	SelfID    string `json:"self_id,omitempty"`
	TestTitle string `json:"test_title,omitempty"`
	TestText  string `json:"test_text,omitempty"`
}

// FilterConfig extends the built-in ignore lists; it never replaces them.
type FilterConfig struct {
	IgnorePackages []string `json:"ignore_packages,omitempty"`
	IgnorePhrases  []string `json:"ignore_phrases,omitempty"`
}

// StorageConfig selects the persistent store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./notifsnd.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TelegramConfig enables the bot when Token is set.
type TelegramConfig struct {
	Token        string  `json:"token,omitempty"`
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// GroupLog is the chat id that receives forwarded logs and the digest
	// when no owner chat is known.
	GroupLog    string `json:"group_log,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

func (t TelegramConfig) Enabled() bool { return strings.TrimSpace(t.Token) != "" }

type SourcesConfig struct {
	DBus DBusSourceConfig `json:"dbus"`
	HTTP HTTPSourceConfig `json:"http"`
}

type DBusSourceConfig struct {
	Enabled bool   `json:"enabled"`
	Bus     string `json:"bus,omitempty"` // session (default) or system
}

type HTTPSourceConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
	// AllowInsecure permits a non-loopback addr without a token.
	AllowInsecure bool    `json:"allow_insecure,omitempty"`
	Pprof         bool    `json:"pprof,omitempty"`
	RatePerSec    float64 `json:"rate_per_sec,omitempty"`
	Burst         int     `json:"burst,omitempty"`
	ReadTimeout   string  `json:"read_timeout,omitempty"`
}

// LabelsConfig feeds the label resolver. Apps is a direct id -> name table;
// the directories are scanned for .desktop entries.
type LabelsConfig struct {
	Apps         map[string]string `json:"apps,omitempty"`
	DesktopDirs  []string          `json:"desktop_dirs,omitempty"`
	RetainedDirs []string          `json:"retained_dirs,omitempty"`
}

type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// SystemdConfig enables sd_notify readiness and the watchdog. Unit names
// the service whose state /status reports.
type SystemdConfig struct {
	Notify bool   `json:"notify"`
	Unit   string `json:"unit,omitempty"`
}

const (
	DefaultSelfID      = "notifsnd"
	DefaultTestTitle   = "Test"
	DefaultTestText    = "Test-Benachrichtigung"
	DefaultStorePath   = "./notifsnd_store"
	DefaultHTTPAddr    = "127.0.0.1:8787"
	DefaultDigestSpec  = "0 0 9 * * *"
	DefaultBusyTimeout = 5 * time.Second
	DefaultUnit        = "notifsnd.service"
)

// ApplyDefaults fills zero values in place.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Identity.SelfID) == "" {
		c.Identity.SelfID = DefaultSelfID
	}
	if c.Identity.TestTitle == "" {
		c.Identity.TestTitle = DefaultTestTitle
	}
	if c.Identity.TestText == "" {
		c.Identity.TestText = DefaultTestText
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "file"
	}
	if strings.TrimSpace(c.Storage.Path) == "" && !strings.EqualFold(c.Storage.Driver, "memory") {
		c.Storage.Path = DefaultStorePath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Sources.DBus.Bus == "" {
		c.Sources.DBus.Bus = "session"
	}
	if c.Sources.HTTP.Addr == "" {
		c.Sources.HTTP.Addr = DefaultHTTPAddr
	}
	if c.Sources.HTTP.RatePerSec <= 0 {
		c.Sources.HTTP.RatePerSec = 20
	}
	if c.Sources.HTTP.Burst <= 0 {
		c.Sources.HTTP.Burst = 40
	}
	if c.Systemd.Unit == "" {
		c.Systemd.Unit = DefaultUnit
	}
	if c.Digest.Schedule == "" {
		c.Digest.Schedule = DefaultDigestSpec
	}
}

var ErrInvalid = errors.New("invalid config")

// Validate checks fields that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "memory", "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("sources.http.read_timeout", c.Sources.HTTP.ReadTimeout); err != nil {
		errs = append(errs, err)
	}
	switch c.Sources.DBus.Bus {
	case "", "session", "system":
	default:
		errs = append(errs, fmt.Errorf("sources.dbus.bus: must be session or system, got %q", c.Sources.DBus.Bus))
	}
	if c.Digest.Enabled {
		if _, _, err := digest.ParseSchedule(c.Digest.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("digest.schedule: %w", err))
		}
		if tz := strings.TrimSpace(c.Digest.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				errs = append(errs, fmt.Errorf("digest.timezone: %w", err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
