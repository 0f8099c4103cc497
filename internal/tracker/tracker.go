// Package tracker owns the Unseen/Pending/Seen membership of identity keys.
//
// Both persisted sets are loaded into one map[key]State inside a single store
// transaction and written back together, so a key can never end up in both.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notifsnd/internal/eventbus"
	"notifsnd/internal/storage"
	logx "notifsnd/pkg/logx"
)

var ErrEmptyKey = errors.New("tracker: empty key")

// KeyFilter reports keys whose package must never be listed.
type KeyFilter interface {
	IgnoresKey(key string) bool
}

type Tracker struct {
	store  storage.Store
	filter KeyFilter
	bus    eventbus.Bus
	log    logx.Logger
}

type Option func(*Tracker)

func WithBus(b eventbus.Bus) Option { return func(t *Tracker) { t.bus = b } }

func WithLogger(l logx.Logger) Option { return func(t *Tracker) { t.log = l } }

func New(store storage.Store, filter KeyFilter, opts ...Option) *Tracker {
	t := &Tracker{store: store, filter: filter, log: logx.Nop()}
	for _, o := range opts {
		o(t)
	}
	return t
}

type states map[string]State

// load reads both sets. A key found in both is healed to Seen; an unreadable
// set is treated as empty. dirty reports whether saving would change storage.
func (t *Tracker) load(tx storage.Tx) (m states, dirty bool, err error) {
	m = states{}
	pending, err := t.readSet(tx, storage.FieldPending)
	if err != nil {
		return nil, false, err
	}
	seen, err := t.readSet(tx, storage.FieldSeen)
	if err != nil {
		return nil, false, err
	}
	for k := range pending {
		m[k] = Pending
	}
	for k := range seen {
		if m[k] == Pending {
			dirty = true
		}
		m[k] = Seen
	}
	return m, dirty, nil
}

func (t *Tracker) readSet(tx storage.Tx, field string) (map[string]struct{}, error) {
	b, ok, err := tx.Get(field)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]struct{}{}, nil
	}
	set, err := storage.DecodeStringSet(b)
	if err != nil {
		t.log.Warn("stored key set unreadable; treating as empty", logx.String("field", field), logx.Err(err))
		return map[string]struct{}{}, nil
	}
	return set, nil
}

func (m states) save(tx storage.Tx) error {
	pending := map[string]struct{}{}
	seen := map[string]struct{}{}
	for k, s := range m {
		switch s {
		case Pending:
			pending[k] = struct{}{}
		case Seen:
			seen[k] = struct{}{}
		}
	}
	if err := storage.PutStringSet(tx, storage.FieldPending, pending); err != nil {
		return err
	}
	return storage.PutStringSet(tx, storage.FieldSeen, seen)
}

// mutate runs fn over the loaded map in one transaction and saves only when
// fn or healing changed something.
func (t *Tracker) mutate(ctx context.Context, fn func(m states) bool) error {
	return t.store.Update(ctx, func(tx storage.Tx) error {
		m, dirty, err := t.load(tx)
		if err != nil {
			return err
		}
		if fn(m) || dirty {
			return m.save(tx)
		}
		return nil
	})
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}

// OnEvent moves an Unseen key to Pending and reports whether it did. Pending
// and Seen keys are left alone.
func (t *Tracker) OnEvent(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	added := false
	err := t.mutate(ctx, func(m states) bool {
		if _, known := m[key]; known {
			return false
		}
		m[key] = Pending
		added = true
		return true
	})
	if err != nil {
		return false, fmt.Errorf("tracker on event: %w", err)
	}
	if added {
		t.publish(key, "pending")
	}
	return added, nil
}

// MarkSeen moves key to Seen from any state.
func (t *Tracker) MarkSeen(ctx context.Context, key string) error {
	return t.set(ctx, key, Seen, "mark_seen")
}

// MarkAsNew moves key to Pending from any state.
func (t *Tracker) MarkAsNew(ctx context.Context, key string) error {
	return t.set(ctx, key, Pending, "mark_new")
}

// Remove forgets key entirely.
func (t *Tracker) Remove(ctx context.Context, key string) error {
	return t.set(ctx, key, Unseen, "remove")
}

func (t *Tracker) set(ctx context.Context, key string, to State, action string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := t.mutate(ctx, func(m states) bool {
		from, known := m[key]
		if to == Unseen {
			delete(m, key)
			return known
		}
		m[key] = to
		return from != to || !known
	})
	t.audit(ctx, action, key, 1, err)
	if err != nil {
		return fmt.Errorf("tracker %s: %w", action, err)
	}
	t.publish(key, action)
	return nil
}

// ClearAllPending empties Pending. ClearMove marks every member Seen.
// It returns the number of keys affected.
func (t *Tracker) ClearAllPending(ctx context.Context, mode ClearMode) (int, error) {
	return t.clear(ctx, Pending, Seen, mode, "clear_pending_"+mode.String())
}

// ClearAllSeen empties Seen. ClearMove marks every member as new again.
func (t *Tracker) ClearAllSeen(ctx context.Context, mode ClearMode) (int, error) {
	return t.clear(ctx, Seen, Pending, mode, "clear_seen_"+mode.String())
}

func (t *Tracker) clear(ctx context.Context, from, moveTo State, mode ClearMode, action string) (int, error) {
	n := 0
	err := t.mutate(ctx, func(m states) bool {
		for k, s := range m {
			if s != from {
				continue
			}
			if mode == ClearMove {
				m[k] = moveTo
			} else {
				delete(m, k)
			}
			n++
		}
		return n > 0
	})
	t.audit(ctx, action, "", n, err)
	if err != nil {
		return 0, fmt.Errorf("tracker %s: %w", action, err)
	}
	if n > 0 {
		t.publish("", action)
	}
	return n, nil
}

// Pending lists pending keys, sorted.
func (t *Tracker) Pending(ctx context.Context) ([]string, error) { return t.list(ctx, Pending) }

// Seen lists seen keys, sorted.
func (t *Tracker) Seen(ctx context.Context) ([]string, error) { return t.list(ctx, Seen) }

// list drops keys of ignored packages and persists the healed sets when it
// dropped any.
func (t *Tracker) list(ctx context.Context, want State) ([]string, error) {
	var out []string
	err := t.mutate(ctx, func(m states) bool {
		out = out[:0]
		healed := false
		for k, s := range m {
			if t.filter != nil && t.filter.IgnoresKey(k) {
				delete(m, k)
				healed = true
				continue
			}
			if s == want {
				out = append(out, k)
			}
		}
		if healed {
			t.log.Info("dropped ignored keys from stored lists")
		}
		return healed
	})
	if err != nil {
		return nil, fmt.Errorf("tracker list %s: %w", want, err)
	}
	sortKeys(out)
	return out, nil
}

// State returns the membership of key.
func (t *Tracker) State(ctx context.Context, key string) (State, error) {
	var st State
	err := t.store.Update(ctx, func(tx storage.Tx) error {
		m, _, err := t.load(tx)
		if err != nil {
			return err
		}
		st = m[key]
		return nil
	})
	return st, err
}

func (t *Tracker) publish(key, action string) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(eventbus.Event{Type: eventbus.StateChanged, Data: eventbus.StateData{Key: key, Action: action}})
}
