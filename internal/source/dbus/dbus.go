// Package dbus observes org.freedesktop.Notifications.Notify calls on the
// session (or system) bus as a monitor.
package dbus

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"notifsnd/internal/classify"
	"notifsnd/internal/source"
	logx "notifsnd/pkg/logx"
)

const (
	notifyIface  = "org.freedesktop.Notifications"
	notifyMember = "Notify"
	matchRule    = "type='method_call',interface='org.freedesktop.Notifications',member='Notify'"
)

type Config struct {
	// Bus is "session" or "system".
	Bus string
}

type Source struct {
	cfg        Config
	log        logx.Logger
	authorized atomic.Bool
	now        func() time.Time
}

func New(cfg Config, log logx.Logger) *Source {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Source{cfg: cfg, log: log, now: time.Now}
}

func (s *Source) Name() string { return "dbus" }

func (s *Source) Authorized() bool { return s.authorized.Load() }

func (s *Source) connect() (*godbus.Conn, error) {
	if s.cfg.Bus == "system" {
		return godbus.ConnectSystemBus()
	}
	return godbus.ConnectSessionBus()
}

// Run becomes a bus monitor and forwards every Notify call. It returns when
// ctx is done or the connection drops; the caller restarts it.
func (s *Source) Run(ctx context.Context, sink source.Sink) error {
	defer s.authorized.Store(false)

	conn, err := s.connect()
	if err != nil {
		return fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	call := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.Monitoring.BecomeMonitor", 0, []string{matchRule}, uint32(0))
	if call.Err != nil {
		return fmt.Errorf("dbus become monitor: %w", call.Err)
	}
	s.authorized.Store(true)
	s.log.Info("listening for notifications", logx.String("bus", s.cfg.Bus))

	msgs := make(chan *godbus.Message, 64)
	conn.Eavesdrop(msgs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return fmt.Errorf("dbus: connection closed")
			}
			if !isNotify(m) {
				continue
			}
			ev, ok := EventFromNotify(m.Body, s.now())
			if !ok {
				s.log.Debug("malformed Notify call dropped", logx.Int("args", len(m.Body)))
				continue
			}
			if err := sink.Submit(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func isNotify(m *godbus.Message) bool {
	if m == nil || m.Type != godbus.TypeMethodCall {
		return false
	}
	iface, _ := m.Headers[godbus.FieldInterface].Value().(string)
	member, _ := m.Headers[godbus.FieldMember].Value().(string)
	return iface == notifyIface && member == notifyMember
}

// EventFromNotify maps the Notify arguments
// (app_name, replaces_id, app_icon, summary, body, actions, hints, expire_timeout)
// to an Event.
//
// The package id is the desktop-entry hint when present, else app_name.
// The category hint becomes the event category. An explicit sound is a
// sound-file or sound-name hint. Servers play their default sound unless
// suppress-sound is set or urgency is low.
func EventFromNotify(body []any, now time.Time) (classify.Event, bool) {
	if len(body) < 7 {
		return classify.Event{}, false
	}
	app, ok1 := body[0].(string)
	summary, ok2 := body[3].(string)
	text, ok3 := body[4].(string)
	hints, ok4 := body[6].(map[string]godbus.Variant)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return classify.Event{}, false
	}

	pkg := strings.TrimSpace(hintString(hints, "desktop-entry"))
	if pkg == "" {
		pkg = strings.TrimSpace(app)
	}
	if pkg == "" {
		return classify.Event{}, false
	}

	suppress, _ := hints["suppress-sound"].Value().(bool)
	explicit := hintString(hints, "sound-file") != "" || hintString(hints, "sound-name") != ""
	urgency, hasUrgency := hints["urgency"].Value().(byte)

	return classify.Event{
		PackageID:           pkg,
		Title:               summary,
		Text:                text,
		Category:            classify.Ptr(hintString(hints, "category")),
		HasExplicitSound:    explicit && !suppress,
		HasDefaultSoundFlag: !suppress && (!hasUrgency || urgency > 0),
		Timestamp:           now.UnixMilli(),
	}, true
}

func hintString(h map[string]godbus.Variant, k string) string {
	v, ok := h[k]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}
