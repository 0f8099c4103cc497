package app

import (
	"errors"
	"time"

	"notifsnd/internal/classify"
	"notifsnd/internal/config"
	"notifsnd/internal/eventbus"
	"notifsnd/internal/history"
	"notifsnd/internal/labels"
	"notifsnd/internal/monitor"
	"notifsnd/internal/onboarding"
	"notifsnd/internal/status"
	"notifsnd/internal/storage"
	"notifsnd/internal/tracker"
	logx "notifsnd/pkg/logx"
)

// Core is the state layer shared by the daemon and the CLI subcommands:
// the store plus everything that reads or writes it.
type Core struct {
	Config *config.Config
	Log    logx.Logger
	Bus    eventbus.Bus
	Store  storage.Store

	Filter     *monitor.FilterHolder
	Tracker    *tracker.Tracker
	History    *history.Log
	Labels     *labels.Resolver
	Onboarding *onboarding.Gate
	Monitor    *monitor.Monitor
}

// NewCore opens the configured store and wires the pipeline on top of it.
func NewCore(cfg *config.Config, log logx.Logger) (*Core, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	return newCoreWithStore(cfg, st, log), nil
}

func newCoreWithStore(cfg *config.Config, st storage.Store, log logx.Logger) *Core {
	bus := eventbus.New()
	filter := monitor.NewFilterHolder(mapFilter(cfg))
	tr := tracker.New(st, filter,
		tracker.WithBus(bus),
		tracker.WithLogger(log.With(logx.String("comp", "tracker"))))
	hist := history.New(st,
		history.WithBus(bus),
		history.WithLogger(log.With(logx.String("comp", "history"))))
	return &Core{
		Config:     cfg,
		Log:        log,
		Bus:        bus,
		Store:      st,
		Filter:     filter,
		Tracker:    tr,
		History:    hist,
		Labels:     labels.New(mapLabels(cfg), log.With(logx.String("comp", "labels"))),
		Onboarding: onboarding.New(st),
		Monitor:    monitor.New(filter, hist, tr, monitor.WithLogger(log.With(logx.String("comp", "pipeline")))),
	}
}

// SelfTest returns the notification /test and the test subcommand inject.
func (c *Core) SelfTest(now time.Time) classify.Event {
	id := c.Config.Identity
	return classify.Event{
		PackageID:        id.SelfID,
		Title:            id.TestTitle,
		Text:             id.TestText,
		ChannelID:        classify.Ptr("selftest"),
		HasExplicitSound: true,
		Timestamp:        now.UnixMilli(),
	}
}

// Collector returns a status collector over the core's state. The daemon
// adds sources and pipeline counters on top.
func (c *Core) Collector() *status.Collector {
	return &status.Collector{
		Lists:   c.Tracker,
		History: c.History,
		Store:   c.Config.Storage.Driver,
		Log:     c.Log.With(logx.String("comp", "status")),
	}
}

func (c *Core) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
