// Package unitstatus reads the systemd state of the daemon's own unit for
// status reports.
package unitstatus

import (
	"strings"
	"time"
)

// Status is the subset of unit properties shown to the user.
type Status struct {
	Unit        string
	Active      string // active, inactive, failed, ...
	SubState    string // running, dead, ...
	LoadState   string // loaded, not-found, ...
	Description string
	ActiveSince time.Time
}

// Summary renders "active (running) since 2006-01-02 15:04".
func (s Status) Summary() string {
	if s.LoadState == "not-found" {
		return "not installed"
	}
	out := s.Active
	if s.SubState != "" {
		out += " (" + s.SubState + ")"
	}
	if !s.ActiveSince.IsZero() && s.Active == "active" {
		out += " since " + s.ActiveSince.Format("2006-01-02 15:04")
	}
	return strings.TrimSpace(out)
}

func normalizeUnit(unit string) string {
	unit = strings.TrimSpace(unit)
	if unit != "" && !strings.Contains(unit, ".") {
		unit += ".service"
	}
	return unit
}

// parseTimestamp reads a systemd microsecond timestamp property.
func parseTimestamp(props map[string]any, key string) time.Time {
	if ts, ok := props[key].(uint64); ok && ts > 0 {
		return time.Unix(int64(ts/1_000_000), 0)
	}
	return time.Time{}
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func isNoSuchUnitErr(err error) bool {
	if err == nil {
		return false
	}
	es := err.Error()
	return strings.Contains(es, "NoSuchUnit") || strings.Contains(es, "not-found")
}
