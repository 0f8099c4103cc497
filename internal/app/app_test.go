package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifsnd/internal/classify"
	"notifsnd/internal/config"
	"notifsnd/internal/digest"
	"notifsnd/internal/monitor"
	logx "notifsnd/pkg/logx"
)

func memoryConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Decode("config.yaml", []byte("storage:\n  driver: memory\n"+extra))
	require.NoError(t, err)
	return cfg
}

func TestMapStorageConfig(t *testing.T) {
	cfg := memoryConfig(t, "")
	sc, err := mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "memory", sc.Driver)
	assert.Equal(t, config.DefaultBusyTimeout, sc.BusyTimeout)

	cfg.Storage.Driver = " SQLite "
	cfg.Storage.BusyTimeout = "2s"
	sc, err = mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, 2*time.Second, sc.BusyTimeout)

	cfg.Storage.BusyTimeout = "soon"
	_, err = mapStorageConfig(cfg)
	assert.Error(t, err)
}

func TestLogChat(t *testing.T) {
	cfg := memoryConfig(t, "")
	assert.Zero(t, logChat(cfg))
	cfg.Telegram.GroupLog = " -100123 "
	assert.Equal(t, int64(-100123), logChat(cfg))
	cfg.Telegram.GroupLog = "chat"
	assert.Zero(t, logChat(cfg))
}

func TestMapHTTPConfig(t *testing.T) {
	cfg := memoryConfig(t, "sources:\n  http:\n    enabled: true\n    token: s3cret\n    read_timeout: 3s\n")
	hc, err := mapHTTPConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultHTTPAddr, hc.Addr)
	assert.Equal(t, "s3cret", hc.Token)
	assert.Equal(t, 3*time.Second, hc.ReadTimeout)
}

func TestCoreSelfTestBecomesPending(t *testing.T) {
	ctx := context.Background()
	core, err := NewCore(memoryConfig(t, ""), logx.Nop())
	require.NoError(t, err)
	defer core.Close()

	res, err := core.Monitor.Process(ctx, core.SelfTest(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, monitor.Recorded, res.Outcome)
	assert.True(t, res.NewPending)

	pending, err := core.Tracker.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notifsnd:selftest"}, pending)

	rep := core.Collector().Collect(ctx)
	assert.Equal(t, 1, rep.Pending)
	assert.Equal(t, 1, rep.History)
	assert.Equal(t, "memory", rep.Store)
}

func TestApplyConfigSwapsFilter(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t, "")
	core, err := NewCore(cfg, logx.Nop())
	require.NoError(t, err)
	defer core.Close()

	logs, log := logx.New(logx.Config{}, nil)
	defer logs.Close()
	a := &App{
		core:   core,
		log:    log,
		logs:   logs,
		digest: digest.New(mapDigest(cfg), core.Tracker, nil, nil, logx.Nop()),
	}

	_, err = core.Monitor.Process(ctx, classify.Event{PackageID: "com.noisy", HasExplicitSound: true, Timestamp: 1})
	require.NoError(t, err)

	next := memoryConfig(t, "filter:\n  ignore_packages: [com.noisy]\n")
	a.applyConfig(cfg, next)

	pending, err := core.Tracker.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	res, err := core.Monitor.Process(ctx, classify.Event{PackageID: "com.noisy", HasExplicitSound: true, Timestamp: 2})
	require.NoError(t, err)
	assert.Equal(t, monitor.Ignored, res.Outcome)
}
