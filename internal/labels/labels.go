// Package labels turns package ids into human-readable names.
package labels

import (
	"context"
	"sync"
	"time"

	"notifsnd/internal/classify"
	logx "notifsnd/pkg/logx"
)

// Strategy is one way of finding a label. Lookup reports false when it has
// no answer; errors are the strategy's own business.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, pkg string) (string, bool)
}

type Config struct {
	Apps         map[string]string
	DesktopDirs  []string
	RetainedDirs []string
	// CacheTTL bounds how stale a directory scan may be. Zero means one minute.
	CacheTTL time.Duration
}

// Resolver tries its strategies in order and falls back to
// FormatPackageName, so Resolve never fails.
type Resolver struct {
	strategies []Strategy
	retained   *retained
	log        logx.Logger
}

// New builds the standard chain: configured names, installed desktop
// entries, every profile's entries, then retained names.
func New(cfg Config, log logx.Logger) *Resolver {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	dirs := cfg.DesktopDirs
	if len(dirs) == 0 {
		dirs = DefaultDesktopDirs()
	}
	ret := &retained{cat: newCatalog(dirPatterns(cfg.RetainedDirs), true, ttl), memo: map[string]string{}}
	r := NewWithStrategies(log,
		staticStrategy(cfg.Apps),
		&catalogStrategy{name: "installed", cat: newCatalog(dirPatterns(dirs), false, ttl)},
		&catalogStrategy{name: "profiles", cat: newCatalog(profilePatterns, true, ttl)},
		ret,
	)
	r.retained = ret
	return r
}

// NewWithStrategies wires a custom chain without the retained memo.
func NewWithStrategies(log logx.Logger, s ...Strategy) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{strategies: s, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, pkg string) string {
	for _, s := range r.strategies {
		if ctx.Err() != nil {
			break
		}
		if name, ok := s.Lookup(ctx, pkg); ok && name != "" {
			if r.retained != nil && s != Strategy(r.retained) {
				r.retained.remember(pkg, name)
			}
			r.log.Trace("label resolved", logx.String("pkg", pkg), logx.String("via", s.Name()))
			return name
		}
	}
	return FormatPackageName(pkg)
}

// LabelWithChannel renders an identity key as "App" or "App\n(Channel)".
func (r *Resolver) LabelWithChannel(ctx context.Context, key string) string {
	pkg, ch := classify.SplitKey(key)
	app := r.Resolve(ctx, pkg)
	if ch == "" {
		return app
	}
	if c, ok := FormatChannelID(ch); ok {
		return app + "\n(" + c + ")"
	}
	return app
}

type staticStrategy map[string]string

func (staticStrategy) Name() string { return "config" }

func (s staticStrategy) Lookup(_ context.Context, pkg string) (string, bool) {
	n, ok := s[pkg]
	return n, ok
}

type catalogStrategy struct {
	name string
	cat  *catalog
}

func (c *catalogStrategy) Name() string { return c.name }

func (c *catalogStrategy) Lookup(_ context.Context, pkg string) (string, bool) {
	return c.cat.lookup(pkg)
}

// retained answers for apps that are no longer installed: names seen earlier
// in this process, then desktop files kept in the retained directories.
type retained struct {
	cat *catalog

	mu   sync.RWMutex
	memo map[string]string
}

func (r *retained) Name() string { return "retained" }

func (r *retained) remember(pkg, name string) {
	r.mu.Lock()
	r.memo[pkg] = name
	r.mu.Unlock()
}

func (r *retained) Lookup(_ context.Context, pkg string) (string, bool) {
	r.mu.RLock()
	n, ok := r.memo[pkg]
	r.mu.RUnlock()
	if ok {
		return n, true
	}
	if len(r.cat.patterns) == 0 {
		return "", false
	}
	return r.cat.lookup(pkg)
}
