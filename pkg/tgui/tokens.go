package tgui

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// TokenStore keeps long callback payloads server side and hands out short
// tokens that fit in callback_data. Tokens never contain ':'.
type TokenStore struct {
	mu  sync.Mutex
	ttl time.Duration
	max int
	m   map[string]tokenEntry
	now func() time.Time
}

type tokenEntry struct {
	v   string
	exp time.Time
}

// NewTokenStore returns a store with the given TTL (15m when <= 0) holding
// at most 5000 live tokens.
func NewTokenStore(ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenStore{ttl: ttl, max: 5000, m: map[string]tokenEntry{}, now: time.Now}
}

func (s *TokenStore) Put(v string) string {
	var buf [6]byte
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	for {
		_, _ = rand.Read(buf[:])
		tok := "~" + base64.RawURLEncoding.EncodeToString(buf[:])
		if _, exists := s.m[tok]; exists {
			continue
		}
		s.m[tok] = tokenEntry{v: v, exp: now.Add(s.ttl)}
		return tok
	}
}

func (s *TokenStore) Get(tok string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[tok]
	if !ok {
		return "", false
	}
	if s.now().After(e.exp) {
		delete(s.m, tok)
		return "", false
	}
	return e.v, true
}

func (s *TokenStore) sweepLocked(now time.Time) {
	for k, e := range s.m {
		if now.After(e.exp) {
			delete(s.m, k)
		}
	}
	// still over capacity: evict arbitrary entries
	for k := range s.m {
		if len(s.m) < s.max {
			break
		}
		delete(s.m, k)
	}
}
