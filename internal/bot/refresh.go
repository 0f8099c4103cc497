package bot

import (
	"context"
	"strings"
	"time"

	"notifsnd/internal/eventbus"
	kit "notifsnd/internal/transport"
	logx "notifsnd/pkg/logx"
)

const refreshDebounce = 700 * time.Millisecond

// track remembers a sent list so state changes can re-render it. The oldest
// view is forgotten once maxLiveViews are tracked.
func (b *Bot) track(ref kit.MessageRef, v viewKind) {
	if ref.MessageID == 0 {
		return
	}
	b.viewMu.Lock()
	defer b.viewMu.Unlock()
	if _, ok := b.views[ref]; !ok {
		b.order = append(b.order, ref)
	}
	b.views[ref] = v
	for len(b.order) > maxLiveViews {
		delete(b.views, b.order[0])
		b.order = b.order[1:]
	}
}

func (b *Bot) forget(ref kit.MessageRef) {
	b.viewMu.Lock()
	defer b.viewMu.Unlock()
	delete(b.views, ref)
	for i, r := range b.order {
		if r == ref {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Bot) snapshotViews() map[kit.MessageRef]viewKind {
	b.viewMu.Lock()
	defer b.viewMu.Unlock()
	out := make(map[kit.MessageRef]viewKind, len(b.views))
	for k, v := range b.views {
		out[k] = v
	}
	return out
}

// refreshLoop coalesces bursts of bus events into one re-render.
func (b *Bot) refreshLoop(ctx context.Context, events <-chan eventbus.Event) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Type != eventbus.NewNotification && e.Type != eventbus.StateChanged {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(refreshDebounce)
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			b.refreshViews(ctx)
		}
	}
}

func (b *Bot) refreshViews(ctx context.Context) {
	for ref, v := range b.snapshotViews() {
		m, err := b.render(ctx, v)
		if err != nil {
			b.log.Warn("view render failed", logx.Err(err))
			return
		}
		if err := m.Edit(ctx, b.d.Adapter, ref); err != nil {
			if isGone(err) {
				b.forget(ref)
				continue
			}
			b.log.Debug("view refresh failed", logx.Int64("chat_id", ref.ChatID), logx.Int("msg_id", ref.MessageID), logx.Err(err))
		}
	}
}

func isGone(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "message to edit not found") || strings.Contains(s, "message can't be edited") || strings.Contains(s, "chat not found")
}
