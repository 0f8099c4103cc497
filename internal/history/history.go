// Package history keeps the short "recently notified" list: newest first,
// at most MaxEntries long, one entry per package.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notifsnd/internal/eventbus"
	"notifsnd/internal/storage"
	logx "notifsnd/pkg/logx"
)

const MaxEntries = 5

type Entry struct {
	PackageName string  `json:"packageName"`
	Timestamp   int64   `json:"timestamp"`
	ChannelID   *string `json:"channelId,omitempty"`
}

func (e Entry) Time() time.Time { return time.UnixMilli(e.Timestamp) }

// Prepend puts e in front of prev and keeps up to MaxEntries-1 older entries
// from other packages, in their original order.
func Prepend(prev []Entry, e Entry) []Entry {
	out := make([]Entry, 0, MaxEntries)
	out = append(out, e)
	for _, old := range prev {
		if len(out) == MaxEntries {
			break
		}
		if old.PackageName == e.PackageName {
			continue
		}
		out = append(out, old)
	}
	return out
}

type Log struct {
	store storage.Store
	bus   eventbus.Bus
	log   logx.Logger
}

type Option func(*Log)

func WithBus(b eventbus.Bus) Option { return func(l *Log) { l.bus = b } }

func WithLogger(lg logx.Logger) Option { return func(l *Log) { l.log = lg } }

func New(store storage.Store, opts ...Option) *Log {
	l := &Log{store: store, log: logx.Nop()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// decode never fails: unreadable history is an empty history.
func (l *Log) decode(b []byte, ok bool) []Entry {
	if !ok || len(b) == 0 {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		l.log.Warn("stored history unreadable; starting empty", logx.Err(err))
		return nil
	}
	return entries
}

// Append records a notification and then publishes NEW_NOTIFICATION.
// channelID is the effective channel (channel id, else category).
func (l *Log) Append(ctx context.Context, pkg string, channelID *string, ts int64) error {
	err := l.store.Update(ctx, func(tx storage.Tx) error {
		b, ok, err := tx.Get(storage.FieldHistory)
		if err != nil {
			return err
		}
		next := Prepend(l.decode(b, ok), Entry{PackageName: pkg, Timestamp: ts, ChannelID: channelID})
		out, err := json.Marshal(next)
		if err != nil {
			return err
		}
		return tx.Put(storage.FieldHistory, out)
	})
	if err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	if l.bus != nil {
		l.bus.Publish(eventbus.Event{Type: eventbus.NewNotification})
	}
	return nil
}

// Entries returns the stored history, newest first.
func (l *Log) Entries(ctx context.Context) ([]Entry, error) {
	b, ok, err := l.store.Get(ctx, storage.FieldHistory)
	if err != nil {
		return nil, fmt.Errorf("history read: %w", err)
	}
	return l.decode(b, ok), nil
}

// Clear empties the history.
func (l *Log) Clear(ctx context.Context) error {
	return l.store.Update(ctx, func(tx storage.Tx) error {
		return tx.Put(storage.FieldHistory, []byte("[]"))
	})
}
