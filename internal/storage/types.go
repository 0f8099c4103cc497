package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed        = errors.New("storage closed")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Persisted field names.
const (
	FieldSeen       = "seen_apps"
	FieldPending    = "pending_apps"
	FieldHistory    = "notification_history"
	FieldOnboarding = "onboarding_completed"
)

type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means 5s
}

// Tx is the view of the store inside Update. Reads observe the
// transaction's own earlier writes.
type Tx interface {
	Get(field string) (value []byte, ok bool, err error)
	Put(field string, value []byte) error
	Delete(field string) error
}

type Store interface {
	Get(ctx context.Context, field string) (value []byte, ok bool, err error)
	// Update runs fn in a transaction. Writes are committed only when fn
	// returns nil. Updates are serialized against each other.
	Update(ctx context.Context, fn func(tx Tx) error) error

	AppendAudit(ctx context.Context, e AuditEntry) error
	// Audit returns up to limit entries, newest first.
	Audit(ctx context.Context, limit int) ([]AuditEntry, error)

	Close() error
}

// AuditEntry records a user action against the tracker or history.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Key    string    `json:"key,omitempty"`
	Count  int       `json:"count,omitempty"`
	Error  string    `json:"error,omitempty"`
}
