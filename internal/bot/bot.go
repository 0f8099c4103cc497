// Package bot is the Telegram user interface: pending and seen lists,
// recent history, status and the self-test.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"notifsnd/internal/classify"
	"notifsnd/internal/eventbus"
	"notifsnd/internal/history"
	"notifsnd/internal/monitor"
	"notifsnd/internal/status"
	"notifsnd/internal/tracker"
	kit "notifsnd/internal/transport"
	logx "notifsnd/pkg/logx"
	"notifsnd/pkg/tgui"
)

type Tracker interface {
	MarkSeen(ctx context.Context, key string) error
	MarkAsNew(ctx context.Context, key string) error
	Remove(ctx context.Context, key string) error
	ClearAllPending(ctx context.Context, mode tracker.ClearMode) (int, error)
	ClearAllSeen(ctx context.Context, mode tracker.ClearMode) (int, error)
	Pending(ctx context.Context) ([]string, error)
	Seen(ctx context.Context) ([]string, error)
	State(ctx context.Context, key string) (tracker.State, error)
}

type History interface {
	Entries(ctx context.Context) ([]history.Entry, error)
}

type Labeler interface {
	Resolve(ctx context.Context, pkg string) string
	LabelWithChannel(ctx context.Context, key string) string
}

type Onboarding interface {
	Completed(ctx context.Context) (bool, error)
	Complete(ctx context.Context) error
}

// Injector runs an event through the pipeline synchronously.
type Injector interface {
	Process(ctx context.Context, ev classify.Event) (monitor.Result, error)
}

type Config struct {
	Owners []int64
	// LogChat receives the digest when no owner is configured.
	LogChat int64
	// SelfTest is the event /test injects.
	SelfTest classify.Event
}

type Deps struct {
	Adapter    kit.Adapter
	Tracker    Tracker
	History    History
	Labels     Labeler
	Onboarding Onboarding
	Injector   Injector
	Status     func(ctx context.Context) status.Report
	Bus        eventbus.Bus
}

type viewKind int

const (
	viewPending viewKind = iota
	viewSeen
	viewHistory
)

// maxLiveViews bounds how many sent lists are kept fresh on state changes.
const maxLiveViews = 16

type Bot struct {
	cfg    Config
	d      Deps
	log    logx.Logger
	router *Router
	tokens *tgui.TokenStore
	now    func() time.Time

	viewMu sync.Mutex
	views  map[kit.MessageRef]viewKind
	order  []kit.MessageRef
}

func New(cfg Config, d Deps, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{
		cfg:    cfg,
		d:      d,
		log:    log,
		router: NewRouter(d.Adapter, cfg.Owners, log),
		tokens: tgui.NewTokenStore(time.Hour),
		now:    time.Now,
		views:  map[kit.MessageRef]viewKind{},
	}
	b.register()
	return b
}

func (b *Bot) Router() *Router { return b.router }

// SetOwners applies a reloaded owner list.
func (b *Bot) SetOwners(owners []int64) {
	b.router.SetOwners(owners)
}

func (b *Bot) register() {
	r := b.router
	cmd := func(name, desc string, h HandlerFunc) {
		r.Handle(Command{Name: name, Description: desc, Timeout: 20 * time.Second, Handle: h})
	}
	cmd("start", "Overview and onboarding", b.cmdStart)
	cmd("pending", "Apps whose sound is not configured yet", b.cmdPending)
	cmd("seen", "Apps already handled", b.cmdSeen)
	cmd("history", "Recently notified apps", b.cmdHistory)
	cmd("status", "Listener and store status", b.cmdStatus)
	cmd("test", "Send a test notification through the pipeline", b.cmdTest)
	cmd("done", "Finish onboarding", b.cmdDone)

	cb := func(scope, action string, h HandlerFunc) {
		r.HandleCallback(CallbackRoute{Scope: scope, Action: action, Timeout: 20 * time.Second, Handle: h})
	}
	cb("p", "seen", b.cbKey(viewPending, "mark_seen", b.d.Tracker.MarkSeen))
	cb("p", "rm", b.cbKey(viewPending, "remove", b.d.Tracker.Remove))
	cb("p", "clear", b.cbClear(viewPending, b.d.Tracker.ClearAllPending))
	cb("s", "new", b.cbKey(viewSeen, "mark_new", b.d.Tracker.MarkAsNew))
	cb("s", "rm", b.cbKey(viewSeen, "remove", b.d.Tracker.Remove))
	cb("s", "clear", b.cbClear(viewSeen, b.d.Tracker.ClearAllSeen))
	cb("h", "open", b.cbHistoryOpen)
	cb("v", "show", b.cbShow)
	cb("o", "done", func(ctx context.Context, req *Request) error {
		if err := b.d.Onboarding.Complete(ctx); err != nil {
			return err
		}
		return b.renderHome(ctx, req).Edit(ctx, b.d.Adapter, req.Ref())
	})
}

// Run publishes the command menu, keeps sent lists fresh and dispatches
// updates until ctx is done.
func (b *Bot) Run(ctx context.Context, updates <-chan kit.Update) error {
	if up, ok := b.d.Adapter.(kit.CommandMenuUpdater); ok {
		mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := up.UpdateMenuCommands(mctx, b.router.Menu()); err != nil {
			b.log.Warn("menu update failed", logx.Err(err))
		}
		cancel()
	}
	if b.d.Bus != nil {
		events, unsub := b.d.Bus.Subscribe(64)
		defer unsub()
		go b.refreshLoop(ctx, events)
	}
	return b.router.Run(ctx, updates, 2)
}

func actorCtx(ctx context.Context, req *Request) context.Context {
	return tracker.WithActor(ctx, "telegram:"+strconv.FormatInt(req.FromID, 10))
}

func (b *Bot) reply(ctx context.Context, req *Request, m tgui.Message) (kit.MessageRef, error) {
	return m.Send(ctx, b.d.Adapter, req.Chat)
}

func (b *Bot) cmdStart(ctx context.Context, req *Request) error {
	done, err := b.d.Onboarding.Completed(ctx)
	if err != nil {
		return err
	}
	if !done {
		_, err = b.reply(ctx, req, renderOnboarding())
		return err
	}
	_, err = b.reply(ctx, req, b.renderHome(ctx, req))
	return err
}

func (b *Bot) cmdDone(ctx context.Context, req *Request) error {
	if err := b.d.Onboarding.Complete(ctx); err != nil {
		return err
	}
	_, err := b.reply(ctx, req, b.renderHome(ctx, req))
	return err
}

func (b *Bot) cmdPending(ctx context.Context, req *Request) error {
	return b.sendView(ctx, req, viewPending)
}
func (b *Bot) cmdSeen(ctx context.Context, req *Request) error { return b.sendView(ctx, req, viewSeen) }
func (b *Bot) cmdHistory(ctx context.Context, req *Request) error {
	return b.sendView(ctx, req, viewHistory)
}

func (b *Bot) sendView(ctx context.Context, req *Request, v viewKind) error {
	m, err := b.render(ctx, v)
	if err != nil {
		return err
	}
	ref, err := b.reply(ctx, req, m)
	if err != nil {
		return err
	}
	b.track(ref, v)
	return nil
}

func (b *Bot) cmdStatus(ctx context.Context, req *Request) error {
	if b.d.Status == nil {
		return errors.New("status unavailable")
	}
	_, err := b.reply(ctx, req, renderStatus(b.d.Status(ctx), b.now()))
	return err
}

func (b *Bot) cmdTest(ctx context.Context, req *Request) error {
	ev := b.cfg.SelfTest
	ev.Timestamp = b.now().UnixMilli()
	res, err := b.d.Injector.Process(ctx, ev)
	if err != nil {
		return err
	}
	msg := tgui.New().Title("🧪", "Test notification").KV("result", res.Outcome.String())
	if res.Key != "" {
		msg.KV("key", res.Key)
	}
	if res.NewPending {
		msg.Line("It is now on the /pending list.")
	}
	_, err = b.reply(ctx, req, msg.Build())
	return err
}

// cbKey applies a single-key tracker action and refreshes the list.
func (b *Bot) cbKey(v viewKind, action string, fn func(ctx context.Context, key string) error) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		key, ok := b.resolveKey(req.Payload)
		if !ok {
			return b.editView(ctx, req, v)
		}
		if err := fn(actorCtx(ctx, req), key); err != nil {
			return err
		}
		req.Logger.Info("list action", logx.String("action", action), logx.String("key", key))
		return b.editView(ctx, req, v)
	}
}

func (b *Bot) cbClear(v viewKind, fn func(ctx context.Context, mode tracker.ClearMode) (int, error)) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		mode, ok := tracker.ParseClearMode(req.Payload)
		if !ok {
			return b.editView(ctx, req, v)
		}
		n, err := fn(actorCtx(ctx, req), mode)
		if err != nil {
			return err
		}
		req.Logger.Info("list cleared", logx.String("mode", mode.String()), logx.Int("count", n))
		return b.editView(ctx, req, v)
	}
}

// cbHistoryOpen marks the history entry's key seen when it is pending.
func (b *Bot) cbHistoryOpen(ctx context.Context, req *Request) error {
	idx, err := strconv.Atoi(req.Payload)
	if err != nil {
		return b.editView(ctx, req, viewHistory)
	}
	entries, err := b.d.History.Entries(ctx)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(entries) {
		return b.editView(ctx, req, viewHistory)
	}
	e := entries[idx]
	key := classify.BuildKey(e.PackageName, e.ChannelID, nil)
	st, err := b.d.Tracker.State(ctx, key)
	if err != nil {
		return err
	}
	if st == tracker.Pending {
		if err := b.d.Tracker.MarkSeen(actorCtx(ctx, req), key); err != nil {
			return err
		}
		req.Logger.Info("history entry opened", logx.String("key", key))
	}
	return b.editView(ctx, req, viewHistory)
}

func (b *Bot) cbShow(ctx context.Context, req *Request) error {
	switch req.Payload {
	case "pending":
		return b.editView(ctx, req, viewPending)
	case "seen":
		return b.editView(ctx, req, viewSeen)
	case "history":
		return b.editView(ctx, req, viewHistory)
	default:
		return b.renderHome(ctx, req).Edit(ctx, b.d.Adapter, req.Ref())
	}
}

func (b *Bot) editView(ctx context.Context, req *Request, v viewKind) error {
	m, err := b.render(ctx, v)
	if err != nil {
		return err
	}
	if err := m.Edit(ctx, b.d.Adapter, req.Ref()); err != nil {
		return err
	}
	b.track(req.Ref(), v)
	return nil
}

// keyPayload returns key itself when it fits in callback data, else a token.
func (b *Bot) keyPayload(scope, action, key string) string {
	if !strings.HasPrefix(key, "~") {
		if _, err := tgui.Data(scope, action, key); err == nil {
			return key
		}
	}
	return b.tokens.Put(key)
}

func (b *Bot) resolveKey(payload string) (string, bool) {
	if strings.HasPrefix(payload, "~") {
		return b.tokens.Get(payload)
	}
	return payload, payload != ""
}

// SendDigest delivers a digest to every owner, or to the log chat when no
// owner is configured. It implements digest.Sender.
func (b *Bot) SendDigest(ctx context.Context, m tgui.Message) error {
	var targets []kit.ChatTarget
	for _, id := range b.router.Owners() {
		targets = append(targets, kit.ChatTarget{ChatID: id})
	}
	if len(targets) == 0 && b.cfg.LogChat != 0 {
		targets = append(targets, kit.ChatTarget{ChatID: b.cfg.LogChat})
	}
	if len(targets) == 0 {
		return errors.New("no digest recipient configured")
	}
	var errs []error
	for _, t := range targets {
		if _, err := m.Send(ctx, b.d.Adapter, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
