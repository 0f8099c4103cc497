package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
identity:
  self_id: notifsnd
filter:
  ignore_packages: [org.example.daemon]
storage:
  driver: sqlite
  path: ./state.db
  busy_timeout: 2s
sources:
  http:
    enabled: true
    addr: 127.0.0.1:9000
labels:
  apps:
    org.mozilla.firefox: Firefox
digest:
  enabled: true
  schedule: "@daily"
`

func TestDecodeYAMLAppliesDefaults(t *testing.T) {
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, []string{"org.example.daemon"}, cfg.Filter.IgnorePackages)
	assert.Equal(t, "Firefox", cfg.Labels.Apps["org.mozilla.firefox"])
	assert.Equal(t, DefaultTestTitle, cfg.Identity.TestTitle)
	assert.Equal(t, DefaultTestText, cfg.Identity.TestText)
	assert.Equal(t, "session", cfg.Sources.DBus.Bus)
	assert.Equal(t, 2*time.Second, DurationOr(cfg.Storage.BusyTimeout, DefaultBusyTimeout))
	assert.False(t, cfg.Telegram.Enabled())
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode("config.json", []byte(`{"storage":{"driver":"file"},"plugins":{}}`))
	require.Error(t, err)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode("config.json", []byte(`{} {}`))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{Driver: "redis", BusyTimeout: "soon"},
		Digest:  DigestConfig{Enabled: true, Schedule: "not a schedule"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "storage.driver")
	assert.Contains(t, err.Error(), "storage.busy_timeout")
	assert.Contains(t, err.Error(), "digest.schedule")
}

func TestMemoryDriverHasNoDefaultPath(t *testing.T) {
	cfg, err := Decode("c.json", []byte(`{"storage":{"driver":"memory"}}`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Storage.Path)
}

func TestSummarizeConfigChangeHidesTokens(t *testing.T) {
	a := &Config{Telegram: TelegramConfig{Token: "old"}}
	b := &Config{Telegram: TelegramConfig{Token: "new"}, Digest: DigestConfig{Enabled: true}}

	changed, attrs := SummarizeConfigChange(a, b)
	assert.Equal(t, []string{"digest", "telegram"}, changed)
	assert.NotEmpty(t, attrs)
}

func TestReloadPublishesOnlyOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"storage":{"driver":"memory"}}`), 0o600))

	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)

	assert.False(t, m.reload(context.Background()), "unchanged content must not publish")

	require.NoError(t, os.WriteFile(path, []byte(`{"storage":{"driver":"memory"},"digest":{"enabled":true}}`), 0o600))
	assert.True(t, m.reload(context.Background()))

	select {
	case cfg := <-ch:
		assert.True(t, cfg.Digest.Enabled)
	default:
		t.Fatalf("expected published config")
	}
	m.Unsubscribe(ch)
}

func TestReloadHonoursValidator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("storage: {driver: memory}\n"), 0o600))

	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	m.SetValidator(func(context.Context, *Config) error { return errors.New("nope") })

	require.NoError(t, os.WriteFile(path, []byte("storage: {driver: memory}\nsystemd: {notify: true}\n"), 0o600))
	assert.False(t, m.reload(context.Background()))
	assert.False(t, m.Get().Systemd.Notify)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("NOTIFSND_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("NOTIFSND_STORAGE_DRIVER", "memory")

	cfg, err := Decode("c.yaml", []byte("storage: {driver: sqlite, path: x.db}\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "x.db", cfg.Storage.Path)
}
