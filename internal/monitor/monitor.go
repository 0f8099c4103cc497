// Package monitor runs every inbound notification through the pipeline:
// filter, sound heuristic, key, history, tracker. Events are handled one at
// a time in arrival order.
package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"notifsnd/internal/classify"
	logx "notifsnd/pkg/logx"
)

// Recorder is the history side of the pipeline.
type Recorder interface {
	Append(ctx context.Context, pkg string, channelID *string, ts int64) error
}

// KeyTracker is the membership side of the pipeline.
type KeyTracker interface {
	OnEvent(ctx context.Context, key string) (bool, error)
}

type Outcome int

const (
	Ignored Outcome = iota
	Silent
	Recorded
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Silent:
		return "silent"
	case Recorded:
		return "recorded"
	default:
		return "unknown"
	}
}

// Result describes what happened to one event.
type Result struct {
	Key     string
	Outcome Outcome
	// NewPending is set when the key entered the pending list.
	NewPending bool
}

// Stats are process-lifetime counters.
type Stats struct {
	Received   uint64
	Ignored    uint64
	Silent     uint64
	Recorded   uint64
	NewPending uint64
	Errors     uint64
}

type Monitor struct {
	filter  *FilterHolder
	history Recorder
	tracker KeyTracker
	log     logx.Logger
	now     func() time.Time

	in chan classify.Event

	received, ignored, silent, recorded, newPending, errs atomic.Uint64
}

type Option func(*Monitor)

func WithLogger(l logx.Logger) Option { return func(m *Monitor) { m.log = l } }

// WithQueue sets the inbound buffer size. Default 256.
func WithQueue(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.in = make(chan classify.Event, n)
		}
	}
}

func New(filter *FilterHolder, h Recorder, tr KeyTracker, opts ...Option) *Monitor {
	m := &Monitor{
		filter:  filter,
		history: h,
		tracker: tr,
		log:     logx.Nop(),
		now:     time.Now,
		in:      make(chan classify.Event, 256),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Submit queues ev for Run. It blocks while the queue is full.
func (m *Monitor) Submit(ctx context.Context, ev classify.Event) error {
	select {
	case m.in <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes submitted events until ctx is done. Per-event failures are
// logged and never stop the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("pipeline started", logx.Int("queue", cap(m.in)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-m.in:
			_, _ = m.Process(ctx, ev)
		}
	}
}

// Process runs the pipeline for a single event synchronously. It is used by
// Run and by callers that inject events directly.
func (m *Monitor) Process(ctx context.Context, ev classify.Event) (Result, error) {
	m.received.Add(1)
	if m.filter.ShouldIgnore(ev.PackageID, ev.Title, ev.Text) {
		m.ignored.Add(1)
		m.log.Trace("event ignored", logx.String("pkg", ev.PackageID))
		return Result{Outcome: Ignored}, nil
	}
	if !classify.IsAudible(&ev) {
		m.silent.Add(1)
		m.log.Trace("silent event skipped", logx.String("pkg", ev.PackageID))
		return Result{Outcome: Silent}, nil
	}

	key := ev.Key()
	res := Result{Key: key, Outcome: Recorded}
	ts := ev.Timestamp
	if ts <= 0 {
		ts = m.now().UnixMilli()
	}

	ch := ev.ChannelID
	if ch == nil {
		ch = ev.Category
	}
	if ch != nil && *ch == "" {
		ch = nil
	}
	var errs []error
	if err := m.history.Append(ctx, ev.PackageID, ch, ts); err != nil {
		errs = append(errs, err)
		m.log.Warn("history append failed", logx.String("pkg", ev.PackageID), logx.Err(err))
	}
	added, err := m.tracker.OnEvent(ctx, key)
	if err != nil {
		errs = append(errs, err)
		m.log.Warn("tracker update failed", logx.String("key", key), logx.Err(err))
	}
	res.NewPending = added

	m.recorded.Add(1)
	if added {
		m.newPending.Add(1)
		m.log.Info("new pending key", logx.String("key", key))
	} else {
		m.log.Debug("event recorded", logx.String("key", key))
	}
	if len(errs) > 0 {
		m.errs.Add(1)
		return res, errors.Join(errs...)
	}
	return res, nil
}

func (m *Monitor) Stats() Stats {
	return Stats{
		Received:   m.received.Load(),
		Ignored:    m.ignored.Load(),
		Silent:     m.silent.Load(),
		Recorded:   m.recorded.Load(),
		NewPending: m.newPending.Load(),
		Errors:     m.errs.Load(),
	}
}

// Filter exposes the live filter holder.
func (m *Monitor) Filter() *FilterHolder { return m.filter }
