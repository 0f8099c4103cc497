package tgui

import (
	"strings"
	"testing"
	"time"
)

func TestDataRoundTrip(t *testing.T) {
	d, err := Data("p", "seen", "~abc")
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	scope, action, payload, ok := ParseData(d)
	if !ok || scope != "p" || action != "seen" || payload != "~abc" {
		t.Fatalf("ParseData(%q) = %q %q %q %v", d, scope, action, payload, ok)
	}
}

func TestDataRejectsOversizedPayload(t *testing.T) {
	if _, err := Data("p", "seen", strings.Repeat("x", 80)); err != ErrCallbackDataTooLong {
		t.Fatalf("expected ErrCallbackDataTooLong, got %v", err)
	}
}

func TestParseDataKeepsColonsInPayload(t *testing.T) {
	_, _, payload, ok := ParseData("p:rm:com.whatsapp:chat")
	if !ok || payload != "com.whatsapp:chat" {
		t.Fatalf("payload = %q ok=%v", payload, ok)
	}
	if _, _, _, ok := ParseData("nope"); ok {
		t.Fatalf("expected malformed data to fail")
	}
}

func TestTokenStoreExpiry(t *testing.T) {
	s := NewTokenStore(time.Minute)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	tok := s.Put("com.example:channel")
	if strings.Contains(tok, ":") {
		t.Fatalf("token contains ':' %q", tok)
	}
	if v, ok := s.Get(tok); !ok || v != "com.example:channel" {
		t.Fatalf("Get = %q %v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := s.Get(tok); ok {
		t.Fatalf("expected token to expire")
	}
}

func TestBuilderEscapes(t *testing.T) {
	m := New().Title("", "A & B").Line("<x>").Build()
	if m.Text != "<b>A &amp; B</b>\n&lt;x&gt;" {
		t.Fatalf("text = %q", m.Text)
	}
	if m.Opt.ParseMode != "HTML" || m.Opt.ReplyMarkupAdapter != nil {
		t.Fatalf("unexpected options %+v", m.Opt)
	}
}

func TestTruncRunes(t *testing.T) {
	if got := TruncRunes("héllo", 2); got != "hé…" {
		t.Fatalf("got %q", got)
	}
	if got := TruncRunes("hi", 5); got != "hi" {
		t.Fatalf("got %q", got)
	}
}
