// Package digest sends a periodic reminder listing the pending keys.
package digest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "notifsnd/pkg/logx"
	"notifsnd/pkg/tgui"
)

type Config struct {
	Enabled  bool
	Schedule string
	Timezone string
}

// Lister returns the pending keys, sorted.
type Lister interface {
	Pending(ctx context.Context) ([]string, error)
}

// Sender delivers a rendered digest. A nil Sender logs the digest instead.
type Sender interface {
	SendDigest(ctx context.Context, msg tgui.Message) error
}

// LabelFunc renders a key for display.
type LabelFunc func(ctx context.Context, key string) string

type Service struct {
	list  Lister
	label LabelFunc
	send  Sender
	log   logx.Logger

	mu    sync.Mutex
	cfg   Config
	c     *cron.Cron
	entry cron.EntryID
	ctx   context.Context

	statMu  sync.Mutex
	lastRun time.Time
	lastN   int
	lastErr error
}

func New(cfg Config, list Lister, label LabelFunc, send Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if label == nil {
		label = func(_ context.Context, key string) string { return key }
	}
	return &Service{cfg: cfg, list: list, label: label, send: send, log: log}
}

// Start begins triggering. Runs use ctx; cancel it or call Stop to end.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	return s.restartLocked()
}

// Apply swaps the config and reschedules when the schedule or timezone changed.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg
	s.cfg = cfg
	if s.ctx == nil || prev == cfg {
		return nil
	}
	return s.restartLocked()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("digest stopped")
}

func (s *Service) restartLocked() error {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	if !s.cfg.Enabled {
		return nil
	}
	_, sched, err := ParseSchedule(s.cfg.Schedule)
	if err != nil {
		return err
	}
	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("digest timezone: %w", err)
		}
		loc = l
	}
	s.c = cron.New(cron.WithParser(Parser), cron.WithLocation(loc))
	ctx := s.ctx
	s.entry = s.c.Schedule(sched, cron.FuncJob(func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("digest failed", logx.Err(err))
		}
	}))
	s.c.Start()
	s.log.Info("digest scheduled", logx.String("schedule", s.cfg.Schedule), logx.String("tz", loc.String()), logx.Time("next", s.c.Entry(s.entry).Next))
	return nil
}

// Next reports the next scheduled run, or the zero time when disabled.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entry).Next
}

// Compose renders the digest. n is zero when nothing is pending.
func (s *Service) Compose(ctx context.Context) (msg tgui.Message, n int, err error) {
	keys, err := s.list.Pending(ctx)
	if err != nil {
		return tgui.Message{}, 0, err
	}
	if len(keys) == 0 {
		return tgui.Message{}, 0, nil
	}
	b := tgui.New().Title("🔔", fmt.Sprintf("%d pending", len(keys)))
	for _, k := range keys {
		b.Line("• " + strings.ReplaceAll(s.label(ctx, k), "\n", " "))
	}
	b.Blank().Line("Configure their sounds, then mark them seen with /pending.")
	return b.Build(), len(keys), nil
}

// RunOnce composes and sends the digest now. It sends nothing when the
// pending list is empty and returns how many keys were listed.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	msg, n, err := s.Compose(ctx)
	s.statMu.Lock()
	s.lastRun, s.lastN, s.lastErr = time.Now(), n, err
	s.statMu.Unlock()
	if err != nil || n == 0 {
		return n, err
	}
	if s.send == nil {
		s.log.Info("pending digest", logx.Int("count", n), logx.String("text", msg.Text))
		return n, nil
	}
	if err := s.send.SendDigest(ctx, msg); err != nil {
		s.statMu.Lock()
		s.lastErr = err
		s.statMu.Unlock()
		return n, fmt.Errorf("send digest: %w", err)
	}
	s.log.Info("digest sent", logx.Int("count", n))
	return n, nil
}

// Last reports the most recent run.
func (s *Service) Last() (at time.Time, n int, err error) {
	s.statMu.Lock()
	defer s.statMu.Unlock()
	return s.lastRun, s.lastN, s.lastErr
}
