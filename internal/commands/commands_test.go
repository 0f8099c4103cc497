package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness runs commands against a file store in a temp dir, so state
// persists between invocations like it does between real CLI runs.
type harness struct {
	t   *testing.T
	cfg string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	body := "storage:\n  driver: file\n  path: " + filepath.Join(dir, "store") + "\nlabels:\n  desktop_dirs: [" + filepath.Join(dir, "apps") + "]\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))
	return &harness{t: t, cfg: cfg}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	root := NewRoot("test")
	var out bytes.Buffer
	root.Writer = &out
	root.ErrWriter = &out
	root.Reader = strings.NewReader(stdin)
	err := root.Run(context.Background(), append([]string{"notifsnd", "--config", h.cfg}, args...))
	return out.String(), err
}

func (h *harness) mustRun(stdin string, args ...string) string {
	h.t.Helper()
	out, err := h.run(stdin, args...)
	require.NoError(h.t, err, out)
	return out
}

const events = `{"packageId":"com.whatsapp","channelId":"group_chats","hasExplicitSound":true,"timestamp":1000}
{"packageId":"org.example.notes","hasExplicitSound":false,"hasDefaultSound":false,"timestamp":2000}
{"packageId":"com.android.systemui","hasExplicitSound":true,"timestamp":3000}
{"packageId":"org.example.mail","channelId":"inbox","hasDefaultSound":true,"timestamp":4000}
`

func TestInjectAndListPending(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(events, "inject", "--json", "-")
	assert.Equal(t, []string{
		"recorded com.whatsapp:group_chats new_pending=true",
		"silent  new_pending=false",
		"ignored  new_pending=false",
		"recorded org.example.mail:inbox new_pending=true",
	}, strings.Split(strings.TrimSpace(out), "\n"))

	list := h.mustRun("", "pending")
	assert.Contains(t, list, "com.whatsapp:group_chats")
	assert.Contains(t, list, "WhatsApp (Group Chats)")
	assert.Contains(t, list, "org.example.mail:inbox")
	assert.NotContains(t, list, "systemui")
}

func TestInjectRejectsUnknownFields(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(`{"packageId":"a","bogus":1}`, "inject", "--json", "-")
	assert.Error(t, err)

	_, err = h.run(`{"title":"no package"}`, "inject", "--json", "-")
	assert.ErrorContains(t, err, "packageId")
}

func TestInjectFromFile(t *testing.T) {
	h := newHarness(t)
	file := filepath.Join(t.TempDir(), "ev.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"packageId":"com.chat","hasExplicitSound":true}`), 0o600))
	out := h.mustRun("", "inject", "--json", file)
	assert.Contains(t, out, "recorded com.chat new_pending=true")
}

func TestPendingSeenLifecycle(t *testing.T) {
	h := newHarness(t)
	h.mustRun(events, "inject", "--json", "-")

	h.mustRun("", "pending", "seen", "com.whatsapp:group_chats")
	assert.NotContains(t, h.mustRun("", "pending", "list"), "com.whatsapp")
	assert.Contains(t, h.mustRun("", "seen"), "com.whatsapp:group_chats")

	h.mustRun("", "seen", "new", "com.whatsapp:group_chats")
	assert.Contains(t, h.mustRun("", "pending"), "com.whatsapp:group_chats")

	out := h.mustRun("", "pending", "clear", "--move")
	assert.Contains(t, out, "cleared 2 pending apps (move)")
	assert.Contains(t, h.mustRun("", "pending"), "no pending apps")

	h.mustRun("", "seen", "remove", "org.example.mail:inbox")
	seen := h.mustRun("", "seen")
	assert.NotContains(t, seen, "org.example.mail")

	out = h.mustRun("", "seen", "clear")
	assert.Contains(t, out, "cleared 1 seen apps (delete)")

	// a re-delivered event is pending again once forgotten
	out = h.mustRun(`{"packageId":"com.whatsapp","channelId":"group_chats","hasExplicitSound":true}`, "inject", "--json", "-")
	assert.Contains(t, out, "new_pending=true")
}

func TestKeyActionsNeedKey(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "pending", "seen")
	assert.ErrorContains(t, err, "missing KEY")
}

func TestHistoryAndClear(t *testing.T) {
	h := newHarness(t)
	h.mustRun(events, "inject", "--json", "-")

	out := h.mustRun("", "history")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "org.example.mail:inbox")
	assert.Contains(t, lines[2], "com.whatsapp:group_chats")

	assert.Contains(t, h.mustRun("", "history", "--json"), `"packageName": "org.example.mail"`)

	h.mustRun("", "history", "--clear")
	assert.Contains(t, h.mustRun("", "history"), "no notifications recorded")
}

func TestSelfTestCommand(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("", "test")
	assert.Equal(t, "recorded notifsnd:selftest new_pending=true\n", out)
	out = h.mustRun("", "test")
	assert.Equal(t, "recorded notifsnd:selftest new_pending=false\n", out)
}

func TestOnboardingFlags(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.mustRun("", "onboarding"), "completed: false")
	assert.Contains(t, h.mustRun("", "onboarding", "--complete"), "completed: true")
	assert.Contains(t, h.mustRun("", "onboarding"), "completed: true")
	assert.Contains(t, h.mustRun("", "onboarding", "--reset"), "completed: false")

	_, err := h.run("", "onboarding", "--reset", "--complete")
	assert.Error(t, err)
}

func TestStatusJSON(t *testing.T) {
	h := newHarness(t)
	h.mustRun(events, "inject", "--json", "-")
	out := h.mustRun("", "status", "--json")
	assert.Contains(t, out, `"pending": 2`)
	assert.Contains(t, out, `"store": "file"`)

	text := h.mustRun("", "status")
	assert.Contains(t, text, "history")
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "bogus")
	assert.ErrorContains(t, err, "unknown command")
}

func TestMissingConfigUsesDefaults(t *testing.T) {
	f := &Flags{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")}
	cfg, err := f.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Storage.Driver)
}
