package unitstatus

import (
	"errors"
	"testing"
	"time"
)

func TestSummary(t *testing.T) {
	since := time.Date(2026, 3, 1, 8, 30, 0, 0, time.Local)
	cases := []struct {
		st   Status
		want string
	}{
		{Status{Active: "active", SubState: "running", LoadState: "loaded", ActiveSince: since}, "active (running) since 2026-03-01 08:30"},
		{Status{Active: "failed", SubState: "failed", LoadState: "loaded", ActiveSince: since}, "failed (failed)"},
		{Status{LoadState: "not-found"}, "not installed"},
	}
	for _, c := range cases {
		if got := c.st.Summary(); got != c.want {
			t.Errorf("Summary() = %q, want %q", got, c.want)
		}
	}
}

func TestNormalizeUnit(t *testing.T) {
	if got := normalizeUnit(" notifsnd "); got != "notifsnd.service" {
		t.Fatalf("got %q", got)
	}
	if got := normalizeUnit("notifsnd.timer"); got != "notifsnd.timer" {
		t.Fatalf("got %q", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	props := map[string]any{"ActiveEnterTimestamp": uint64(1_700_000_000_000_000), "Bad": "x"}
	if got := parseTimestamp(props, "ActiveEnterTimestamp"); got.Unix() != 1_700_000_000 {
		t.Fatalf("got %v", got)
	}
	if !parseTimestamp(props, "Bad").IsZero() {
		t.Fatal("expected zero time")
	}
}

func TestIsNoSuchUnitErr(t *testing.T) {
	if !isNoSuchUnitErr(errors.New("org.freedesktop.systemd1.NoSuchUnit: Unit x not loaded")) {
		t.Fatal("expected match")
	}
	if isNoSuchUnitErr(nil) || isNoSuchUnitErr(errors.New("timeout")) {
		t.Fatal("unexpected match")
	}
}
