package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"notifsnd/internal/classify"
	"notifsnd/internal/labels"
	"notifsnd/internal/status"
	"notifsnd/internal/tracker"
	"notifsnd/pkg/tgui"
)

const btnLabelRunes = 28

func cbData(scope, action, payload string) string {
	d, err := tgui.Data(scope, action, payload)
	if err != nil {
		return scope + ":" + action
	}
	return d
}

func oneLine(s string) string { return strings.ReplaceAll(s, "\n", " ") }

func menuRow(kb *tgui.Inline) {
	kb.Row(tgui.Btn("« Menu", cbData("v", "show", "home")))
}

func renderOnboarding() tgui.Message {
	kb := tgui.NewInline().Row(tgui.Btn("✅ Got it", cbData("o", "done", "")))
	return tgui.New().
		Title("👋", "Welcome").
		Line("I watch incoming notifications and collect every app and channel that plays a sound you have not configured yet.").
		Blank().
		Line("1. New noisy apps show up in /pending.").
		Line("2. Configure their sound on your device, then mark them seen.").
		Line("3. /history shows the last apps that notified; /test sends a test notification.").
		Blank().
		Line("Send /done or press the button when you are ready.").
		Inline(kb).
		Build()
}

func (b *Bot) renderHome(ctx context.Context, req *Request) tgui.Message {
	pending, perr := b.d.Tracker.Pending(ctx)
	seen, serr := b.d.Tracker.Seen(ctx)
	mb := tgui.New().Title("🔔", "notifsnd")
	if perr != nil || serr != nil {
		mb.Line("Lists are unavailable right now.")
	} else {
		mb.KV("pending", strconv.Itoa(len(pending))).KV("seen", strconv.Itoa(len(seen)))
	}
	kb := tgui.NewInline().
		Row(
			tgui.Btn(fmt.Sprintf("🆕 Pending (%d)", len(pending)), cbData("v", "show", "pending")),
			tgui.Btn(fmt.Sprintf("👀 Seen (%d)", len(seen)), cbData("v", "show", "seen")),
		).
		Row(tgui.Btn("🕘 History", cbData("v", "show", "history")))
	return mb.Inline(kb).Build()
}

func (b *Bot) render(ctx context.Context, v viewKind) (tgui.Message, error) {
	switch v {
	case viewPending:
		keys, err := b.d.Tracker.Pending(ctx)
		if err != nil {
			return tgui.Message{}, err
		}
		return b.renderList(ctx, keys, listSpec{
			emoji: "🆕", title: "Pending", scope: "p",
			empty: "Nothing pending. Every app that made a sound is handled.",
			hint:  "These made a sound but are not configured yet.",
			act:   "seen", actIcon: "✅",
			allBtn: "✅ All seen",
		}), nil
	case viewSeen:
		keys, err := b.d.Tracker.Seen(ctx)
		if err != nil {
			return tgui.Message{}, err
		}
		return b.renderList(ctx, keys, listSpec{
			emoji: "👀", title: "Seen", scope: "s",
			empty: "No handled apps yet.",
			hint:  "Already handled. Move one back to pending if its sound needs another look.",
			act:   "new", actIcon: "↩️",
			allBtn: "↩️ All to pending",
		}), nil
	default:
		return b.renderHistory(ctx)
	}
}

type listSpec struct {
	emoji, title, scope string
	empty, hint         string
	act, actIcon        string
	allBtn              string
}

func (b *Bot) renderList(ctx context.Context, keys []string, s listSpec) tgui.Message {
	mb := tgui.New().Title(s.emoji, fmt.Sprintf("%s (%d)", s.title, len(keys)))
	kb := tgui.NewInline()
	if len(keys) == 0 {
		mb.Line(s.empty)
		menuRow(kb)
		return mb.Inline(kb).Build()
	}
	mb.Line(s.hint).Blank()
	for i, k := range keys {
		label := oneLine(b.d.Labels.LabelWithChannel(ctx, k))
		n := strconv.Itoa(i + 1)
		mb.HTML(tgui.Esc(n+". ") + tgui.B(label) + tgui.Esc(" ") + tgui.Code(k))
		kb.Row(
			tgui.Btn(s.actIcon+" "+n+". "+tgui.TruncRunes(label, btnLabelRunes), cbData(s.scope, s.act, b.keyPayload(s.scope, s.act, k))),
			tgui.Btn("🗑 "+n, cbData(s.scope, "rm", b.keyPayload(s.scope, "rm", k))),
		)
	}
	kb.Row(
		tgui.Btn(s.allBtn, cbData(s.scope, "clear", tracker.ClearMove.String())),
		tgui.Btn("🗑 Delete all", cbData(s.scope, "clear", tracker.ClearDelete.String())),
	)
	menuRow(kb)
	return mb.Inline(kb).Build()
}

func (b *Bot) renderHistory(ctx context.Context) (tgui.Message, error) {
	entries, err := b.d.History.Entries(ctx)
	if err != nil {
		return tgui.Message{}, err
	}
	mb := tgui.New().Title("🕘", "Recent notifications")
	kb := tgui.NewInline()
	if len(entries) == 0 {
		mb.Line("Nothing recorded yet.")
		menuRow(kb)
		return mb.Inline(kb).Build(), nil
	}
	now := b.now()
	var btns []tgui.Button
	for i, e := range entries {
		key := classify.BuildKey(e.PackageName, e.ChannelID, nil)
		label := oneLine(b.d.Labels.LabelWithChannel(ctx, key))
		st, err := b.d.Tracker.State(ctx, key)
		state := ""
		if err == nil && st == tracker.Pending {
			state = " · pending"
		}
		n := strconv.Itoa(i + 1)
		mb.HTML(tgui.Esc(n+". ") + tgui.B(label) + tgui.Esc(" · "+labels.RelativeTime(now, e.Timestamp)+state))
		btns = append(btns, tgui.Btn("Open "+n, cbData("h", "open", strconv.Itoa(i))))
	}
	mb.Blank().Line("Opening an entry marks it seen when it is pending.")
	kb.Row(btns...)
	menuRow(kb)
	return mb.Inline(kb).Build(), nil
}

func renderStatus(r status.Report, now time.Time) tgui.Message {
	mb := tgui.New().Title("📊", "Status")
	listening := "no"
	if r.Listening() {
		listening = "yes"
	}
	mb.KV("listening", listening)
	for _, s := range r.Sources {
		st := "not authorized"
		if s.Authorized {
			st = "authorized"
		}
		mb.KV("source "+s.Name, st)
	}
	mb.KV("pending", strconv.Itoa(r.Pending)).
		KV("seen", strconv.Itoa(r.Seen)).
		KV("store", r.Store)
	if r.LastEvent != nil {
		mb.KV("last event", r.LastEvent.PackageName+" ("+labels.RelativeTime(now, r.LastEvent.Timestamp)+")")
	}
	if p := r.Pipeline; p != nil {
		mb.KV("events", fmt.Sprintf("%d received, %d recorded, %d ignored, %d silent, %d errors", p.Received, p.Recorded, p.Ignored, p.Silent, p.Errors))
	}
	if r.DigestNext != nil {
		mb.KV("next digest", r.DigestNext.Format("2006-01-02 15:04 MST"))
	}
	if r.Unit != nil {
		mb.KV("unit", r.Unit.Unit+": "+r.Unit.Summary())
	}
	if r.Uptime != "" {
		mb.KV("uptime", r.Uptime)
	}
	for _, e := range r.Errors {
		mb.Line("⚠️ " + e)
	}
	return mb.Build()
}
