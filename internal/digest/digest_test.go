package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "notifsnd/pkg/logx"
	"notifsnd/pkg/tgui"
)

type staticList struct {
	keys []string
	err  error
}

func (l staticList) Pending(context.Context) ([]string, error) { return l.keys, l.err }

type captureSender struct {
	msgs []tgui.Message
	err  error
}

func (c *captureSender) SendDigest(_ context.Context, m tgui.Message) error {
	c.msgs = append(c.msgs, m)
	return c.err
}

func TestParseSchedule(t *testing.T) {
	from := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		spec string
		next time.Time
	}{
		{"0 9 * * *", "0 9 * * *", time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)},
		{"09:30", "0 30 9 * * *", time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)},
		{"cron:@daily", "@daily", time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)},
		{"6h", "@every 6h0m0s", from.Add(6 * time.Hour)},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			spec, sched, err := ParseSchedule(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.spec, spec)
			assert.Equal(t, c.next, sched.Next(from))
		})
	}

	for _, bad := range []string{"", "soon", "25:00", "30s", "not a schedule"} {
		_, _, err := ParseSchedule(bad)
		assert.Error(t, err, bad)
	}
}

func TestRunOnceSendsPendingList(t *testing.T) {
	ctx := context.Background()
	send := &captureSender{}
	label := func(_ context.Context, k string) string { return strings.ToUpper(k) + "\n(Chan)" }
	s := New(Config{}, staticList{keys: []string{"com.a", "com.b:x"}}, label, send, logx.Nop())

	n, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, send.msgs, 1)
	txt := send.msgs[0].Text
	assert.Contains(t, txt, "2 pending")
	assert.Contains(t, txt, "• COM.A (Chan)")
	assert.Contains(t, txt, "• COM.B:X (Chan)")
	assert.Equal(t, "HTML", send.msgs[0].Opt.ParseMode)

	at, last, lerr := s.Last()
	assert.False(t, at.IsZero())
	assert.Equal(t, 2, last)
	assert.NoError(t, lerr)
}

func TestRunOnceSkipsEmpty(t *testing.T) {
	send := &captureSender{}
	s := New(Config{}, staticList{}, nil, send, logx.Nop())
	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, send.msgs)
}

func TestRunOnceErrors(t *testing.T) {
	s := New(Config{}, staticList{err: errors.New("store down")}, nil, &captureSender{}, logx.Nop())
	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)

	s = New(Config{}, staticList{keys: []string{"a"}}, nil, &captureSender{err: errors.New("403")}, logx.Nop())
	_, err = s.RunOnce(context.Background())
	assert.ErrorContains(t, err, "send digest")
	_, _, lerr := s.Last()
	assert.Error(t, lerr)
}

func TestNilSenderLogs(t *testing.T) {
	s := New(Config{}, staticList{keys: []string{"a"}}, nil, nil, logx.Nop())
	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStartApplyStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(Config{Enabled: true, Schedule: "0 9 * * *", Timezone: "UTC"}, staticList{}, nil, nil, logx.Nop())

	require.NoError(t, s.Start(ctx))
	next := s.Next()
	require.False(t, next.IsZero())
	assert.Equal(t, 9, next.In(time.UTC).Hour())

	require.NoError(t, s.Apply(Config{Enabled: true, Schedule: "10:15", Timezone: "UTC"}))
	next = s.Next()
	assert.Equal(t, 10, next.In(time.UTC).Hour())
	assert.Equal(t, 15, next.In(time.UTC).Minute())

	require.NoError(t, s.Apply(Config{Enabled: false}))
	assert.True(t, s.Next().IsZero())

	assert.Error(t, s.Apply(Config{Enabled: true, Schedule: "bogus"}))
	s.Stop(context.Background())
}
