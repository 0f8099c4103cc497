// Package status gathers the daemon's state for /status, GET /v1/status and
// the status subcommand.
package status

import (
	"context"
	"time"

	"notifsnd/internal/history"
	"notifsnd/internal/monitor"
	"notifsnd/internal/unitstatus"
	logx "notifsnd/pkg/logx"
)

type SourceState struct {
	Name       string `json:"name"`
	Authorized bool   `json:"authorized"`
}

type Report struct {
	Pending    int                `json:"pending"`
	Seen       int                `json:"seen"`
	History    int                `json:"history"`
	LastEvent  *history.Entry     `json:"lastEvent,omitempty"`
	Sources    []SourceState      `json:"sources"`
	Pipeline   *monitor.Stats     `json:"pipeline,omitempty"`
	DigestNext *time.Time         `json:"digestNext,omitempty"`
	Unit       *unitstatus.Status `json:"unit,omitempty"`
	Store      string             `json:"store"`
	Uptime     string             `json:"uptime,omitempty"`
	Errors     []string           `json:"errors,omitempty"`
}

// Lists is the read side of the tracker.
type Lists interface {
	Pending(ctx context.Context) ([]string, error)
	Seen(ctx context.Context) ([]string, error)
}

type Entries interface {
	Entries(ctx context.Context) ([]history.Entry, error)
}

// AuthorizedSource is the part of source.Source a report needs.
type AuthorizedSource interface {
	Name() string
	Authorized() bool
}

// Collector builds a Report. Optional fields may be left nil; the CLI runs
// without sources or a pipeline.
type Collector struct {
	Lists   Lists
	History Entries
	Store   string

	Sources    []AuthorizedSource
	Pipeline   func() monitor.Stats
	DigestNext func() time.Time
	// Unit names the systemd unit to report; empty skips the lookup.
	Unit    string
	Started time.Time

	Log logx.Logger
}

func (c *Collector) Collect(ctx context.Context) Report {
	r := Report{Store: c.Store, Sources: []SourceState{}}
	fail := func(what string, err error) {
		r.Errors = append(r.Errors, what+": "+err.Error())
		c.Log.Debug("status field unavailable", logx.String("field", what), logx.Err(err))
	}

	if c.Lists != nil {
		if p, err := c.Lists.Pending(ctx); err != nil {
			fail("pending", err)
		} else {
			r.Pending = len(p)
		}
		if s, err := c.Lists.Seen(ctx); err != nil {
			fail("seen", err)
		} else {
			r.Seen = len(s)
		}
	}
	if c.History != nil {
		if h, err := c.History.Entries(ctx); err != nil {
			fail("history", err)
		} else {
			r.History = len(h)
			if len(h) > 0 {
				r.LastEvent = &h[0]
			}
		}
	}
	for _, s := range c.Sources {
		r.Sources = append(r.Sources, SourceState{Name: s.Name(), Authorized: s.Authorized()})
	}
	if c.Pipeline != nil {
		st := c.Pipeline()
		r.Pipeline = &st
	}
	if c.DigestNext != nil {
		if n := c.DigestNext(); !n.IsZero() {
			r.DigestNext = &n
		}
	}
	if c.Unit != "" {
		lctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		u, err := unitstatus.Lookup(lctx, c.Unit)
		cancel()
		if err != nil {
			fail("unit", err)
		} else {
			r.Unit = &u
		}
	}
	if !c.Started.IsZero() {
		r.Uptime = time.Since(c.Started).Round(time.Second).String()
	}
	return r
}

// Listening reports whether at least one source is authorized.
func (r Report) Listening() bool {
	for _, s := range r.Sources {
		if s.Authorized {
			return true
		}
	}
	return false
}
