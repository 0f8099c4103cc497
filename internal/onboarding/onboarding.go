// Package onboarding keeps the one-shot "intro shown" flag.
package onboarding

import (
	"context"
	"encoding/json"
	"fmt"

	"notifsnd/internal/storage"
)

type Gate struct {
	store storage.Store
}

func New(store storage.Store) *Gate { return &Gate{store: store} }

// Completed reports whether the user finished onboarding. A missing or
// malformed flag reads as false.
func (g *Gate) Completed(ctx context.Context) (bool, error) {
	b, ok, err := g.store.Get(ctx, storage.FieldOnboarding)
	if err != nil {
		return false, fmt.Errorf("onboarding read: %w", err)
	}
	var done bool
	if ok && json.Unmarshal(b, &done) != nil {
		return false, nil
	}
	return done, nil
}

func (g *Gate) Complete(ctx context.Context) error { return g.set(ctx, true) }

// Reset makes the next /start show the intro again.
func (g *Gate) Reset(ctx context.Context) error { return g.set(ctx, false) }

func (g *Gate) set(ctx context.Context, v bool) error {
	err := g.store.Update(ctx, func(tx storage.Tx) error {
		return storage.PutBool(tx, storage.FieldOnboarding, v)
	})
	if err != nil {
		return fmt.Errorf("onboarding write: %w", err)
	}
	return nil
}
