package dbus

import (
	"testing"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notifyBody(app, summary, body string, hints map[string]godbus.Variant) []any {
	return []any{app, uint32(0), "", summary, body, []string{}, hints, int32(-1)}
}

func TestEventFromNotify(t *testing.T) {
	now := time.UnixMilli(1234)

	cases := []struct {
		name     string
		body     []any
		pkg      string
		category string
		explicit bool
		def      bool
	}{
		{
			name: "desktop entry wins over app name",
			body: notifyBody("Firefox", "t", "b", map[string]godbus.Variant{
				"desktop-entry": godbus.MakeVariant("org.mozilla.firefox"),
			}),
			pkg: "org.mozilla.firefox", def: true,
		},
		{
			name: "sound name with category",
			body: notifyBody("mail", "t", "b", map[string]godbus.Variant{
				"category":   godbus.MakeVariant("email.arrived"),
				"sound-name": godbus.MakeVariant("message-new-email"),
			}),
			pkg: "mail", category: "email.arrived", explicit: true, def: true,
		},
		{
			name: "suppressed",
			body: notifyBody("chat", "t", "b", map[string]godbus.Variant{
				"sound-file":     godbus.MakeVariant("/tmp/ding.ogg"),
				"suppress-sound": godbus.MakeVariant(true),
			}),
			pkg: "chat",
		},
		{
			name: "low urgency",
			body: notifyBody("updates", "t", "b", map[string]godbus.Variant{
				"urgency": godbus.MakeVariant(byte(0)),
			}),
			pkg: "updates",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ev, ok := EventFromNotify(c.body, now)
			require.True(t, ok)
			assert.Equal(t, c.pkg, ev.PackageID)
			if c.category == "" {
				assert.Nil(t, ev.Category)
			} else {
				require.NotNil(t, ev.Category)
				assert.Equal(t, c.category, *ev.Category)
			}
			assert.Nil(t, ev.ChannelID)
			assert.Equal(t, c.explicit, ev.HasExplicitSound)
			assert.Equal(t, c.def, ev.HasDefaultSoundFlag)
			assert.EqualValues(t, 1234, ev.Timestamp)
			assert.Equal(t, "t", ev.Title)
		})
	}
}

func TestEventFromNotifyRejectsMalformed(t *testing.T) {
	now := time.Now()
	_, ok := EventFromNotify([]any{"app"}, now)
	assert.False(t, ok)
	_, ok = EventFromNotify(notifyBody("", "t", "b", map[string]godbus.Variant{}), now)
	assert.False(t, ok)
	_, ok = EventFromNotify([]any{1, uint32(0), "", "s", "b", []string{}, map[string]godbus.Variant{}, int32(0)}, now)
	assert.False(t, ok)
}

func TestIsNotify(t *testing.T) {
	m := &godbus.Message{
		Type: godbus.TypeMethodCall,
		Headers: map[godbus.HeaderField]godbus.Variant{
			godbus.FieldInterface: godbus.MakeVariant(notifyIface),
			godbus.FieldMember:    godbus.MakeVariant(notifyMember),
		},
	}
	assert.True(t, isNotify(m))
	m.Headers[godbus.FieldMember] = godbus.MakeVariant("CloseNotification")
	assert.False(t, isNotify(m))
	assert.False(t, isNotify(nil))
}
