package tracker

import (
	"context"
	"slices"

	"notifsnd/internal/storage"
	logx "notifsnd/pkg/logx"
)

type actorKey struct{}

// WithActor tags ctx with who is acting, e.g. "cli" or "telegram:42".
// User actions carrying an actor are written to the audit log.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor set by WithActor.
func ActorFrom(ctx context.Context) (string, bool) {
	a, ok := ctx.Value(actorKey{}).(string)
	return a, ok && a != ""
}

func (t *Tracker) audit(ctx context.Context, action, key string, count int, err error) {
	actor, ok := ActorFrom(ctx)
	if !ok {
		return
	}
	e := storage.AuditEntry{Actor: actor, Action: action, Key: key, Count: count}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := t.store.AppendAudit(context.WithoutCancel(ctx), e); aerr != nil {
		t.log.Warn("audit append failed", logx.String("action", action), logx.Err(aerr))
	}
}

func sortKeys(keys []string) { slices.Sort(keys) }
