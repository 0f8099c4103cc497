package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "notifsnd/pkg/logx"
)

func drivers(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"file": func(t *testing.T) Store {
			s, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state")}, logx.Nop())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "state.db")}, logx.Nop())
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreConformance(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })

			_, ok, err := s.Get(ctx, FieldSeen)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Update(ctx, func(tx Tx) error {
				if err := PutStringSet(tx, FieldPending, map[string]struct{}{"b": {}, "a": {}}); err != nil {
					return err
				}
				// reads inside the transaction see its own writes
				set, err := GetStringSet(tx, FieldPending)
				if err != nil {
					return err
				}
				assert.Len(t, set, 2)
				return PutBool(tx, FieldOnboarding, true)
			}))

			v, ok, err := s.Get(ctx, FieldPending)
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `["a","b"]`, string(v))

			boom := errors.New("boom")
			err = s.Update(ctx, func(tx Tx) error {
				require.NoError(t, tx.Put(FieldPending, []byte(`["c"]`)))
				require.NoError(t, tx.Delete(FieldOnboarding))
				return boom
			})
			require.ErrorIs(t, err, boom)

			v, _, err = s.Get(ctx, FieldPending)
			require.NoError(t, err)
			assert.JSONEq(t, `["a","b"]`, string(v), "failed update must not commit")

			require.NoError(t, s.Update(ctx, func(tx Tx) error {
				on, err := GetBool(tx, FieldOnboarding)
				assert.True(t, on)
				if err != nil {
					return err
				}
				return tx.Delete(FieldOnboarding)
			}))
			_, ok, err = s.Get(ctx, FieldOnboarding)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreAudit(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })

			require.NoError(t, s.AppendAudit(ctx, AuditEntry{Actor: "cli", Action: "mark_seen", Key: "com.a"}))
			require.NoError(t, s.AppendAudit(ctx, AuditEntry{Actor: "cli", Action: "clear_pending", Count: 3}))

			got, err := s.Audit(ctx, 10)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "clear_pending", got[0].Action)
			assert.Equal(t, 3, got[0].Count)
			assert.Equal(t, "com.a", got[1].Key)
			assert.False(t, got[1].At.IsZero())

			got, err = s.Audit(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			require.NoError(t, s.Close())
			err := s.Update(context.Background(), func(Tx) error { return nil })
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestFileStoreSurvivesReopenAndCompaction(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	cfg := Config{Driver: "file", Path: path}

	s, err := Open(cfg, logx.Nop())
	require.NoError(t, err)
	for i := 0; i < compactAfter+5; i++ {
		n := i
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return PutBool(tx, FieldOnboarding, n%2 == 0)
		}))
	}
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		return PutStringSet(tx, FieldSeen, map[string]struct{}{"com.x:chat": {}})
	}))
	require.NoError(t, s.Close())

	s, err = Open(cfg, logx.Nop())
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, FieldSeen)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["com.x:chat"]`, string(v))

	v, _, err = s.Get(ctx, FieldOnboarding)
	require.NoError(t, err)
	assert.Equal(t, "true", string(v)) // last write was i = compactAfter+4, even
}

func TestFileStoreSharedBetweenHandles(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state")}
	a, err := Open(cfg, logx.Nop())
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(cfg, logx.Nop())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Update(ctx, func(tx Tx) error { return tx.Put(FieldHistory, []byte(`[]`)) }))
	v, ok, err := b.Get(ctx, FieldHistory)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", string(v))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
