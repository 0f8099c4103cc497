package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifsnd/internal/classify"
	"notifsnd/internal/eventbus"
	"notifsnd/internal/history"
	"notifsnd/internal/storage"
	"notifsnd/internal/tracker"
)

type rig struct {
	mon  *Monitor
	tr   *tracker.Tracker
	hist *history.Log
	bus  eventbus.Bus
}

func newRig(t *testing.T) rig {
	t.Helper()
	st := storage.NewMemory()
	bus := eventbus.New()
	holder := NewFilterHolder(classify.NewFilter(classify.FilterOptions{
		SelfID: "notifsnd", TestTitle: "Test", TestText: "Test-Benachrichtigung",
	}))
	tr := tracker.New(st, holder, tracker.WithBus(bus))
	h := history.New(st, history.WithBus(bus))
	return rig{mon: New(holder, h, tr), tr: tr, hist: h, bus: bus}
}

func TestNewAudibleEventBecomesPending(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	events, unsub := r.bus.Subscribe(8)
	defer unsub()

	res, err := r.mon.Process(ctx, classify.Event{
		PackageID:        "com.new.app",
		Title:            "Sale",
		Text:             "50% off",
		ChannelID:        classify.Ptr("promo"),
		HasExplicitSound: true,
		Timestamp:        1000,
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Key: "com.new.app:promo", Outcome: Recorded, NewPending: true}, res)

	pending, err := r.tr.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.new.app:promo"}, pending)

	entries, err := r.hist.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "com.new.app", entries[0].PackageName)
	assert.Equal(t, "promo", *entries[0].ChannelID)
	assert.EqualValues(t, 1000, entries[0].Timestamp)

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Contains(t, types, eventbus.NewNotification)
	assert.Contains(t, types, eventbus.StateChanged)
}

func TestSeenKeyIsNotReinserted(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	ev := classify.Event{PackageID: "com.new.app", ChannelID: classify.Ptr("promo"), HasExplicitSound: true, Timestamp: 1}

	_, err := r.mon.Process(ctx, ev)
	require.NoError(t, err)
	require.NoError(t, r.tr.MarkSeen(ctx, "com.new.app:promo"))

	ev.Timestamp = 2
	res, err := r.mon.Process(ctx, ev)
	require.NoError(t, err)
	assert.False(t, res.NewPending)

	pending, err := r.tr.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	seen, err := r.tr.Seen(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.new.app:promo"}, seen)
}

func TestFilteredAndSilentEventsLeaveNoTrace(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)

	cases := []struct {
		name string
		ev   classify.Event
		want Outcome
	}{
		{"own identity", classify.Event{PackageID: "notifsnd", Title: "hi", HasExplicitSound: true}, Ignored},
		{"platform", classify.Event{PackageID: "com.android.systemui", HasExplicitSound: true}, Ignored},
		{"chrome phrase", classify.Event{PackageID: "com.rec", Title: "Screen recording", HasExplicitSound: true}, Ignored},
		{"no sound no channel", classify.Event{PackageID: "com.quiet", Category: classify.Ptr("msg")}, Silent},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := r.mon.Process(ctx, c.ev)
			require.NoError(t, err)
			assert.Equal(t, c.want, res.Outcome)
		})
	}

	pending, err := r.tr.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	entries, err := r.hist.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	st := r.mon.Stats()
	assert.EqualValues(t, 4, st.Received)
	assert.EqualValues(t, 3, st.Ignored)
	assert.EqualValues(t, 1, st.Silent)
}

func TestSelfTestEventIsRecorded(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	res, err := r.mon.Process(ctx, classify.Event{
		PackageID: "notifsnd", Title: "Test", Text: "Test-Benachrichtigung",
		ChannelID: classify.Ptr("selftest"), Timestamp: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "notifsnd:selftest", res.Key)
	assert.True(t, res.NewPending)
}

func TestCategoryIsEffectiveChannelInHistory(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	res, err := r.mon.Process(ctx, classify.Event{
		PackageID: "com.mail", Category: classify.Ptr("email"), HasDefaultSoundFlag: true, Timestamp: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, "com.mail:email", res.Key)

	entries, err := r.hist.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ChannelID)
	assert.Equal(t, "email", *entries[0].ChannelID)
}

func TestMissingTimestampUsesClock(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	r.mon.now = func() time.Time { return time.UnixMilli(424242) }

	_, err := r.mon.Process(ctx, classify.Event{PackageID: "com.a", HasExplicitSound: true})
	require.NoError(t, err)
	entries, err := r.hist.Entries(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 424242, entries[0].Timestamp)
}

func TestFilterSwapAppliesToListing(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	_, err := r.mon.Process(ctx, classify.Event{PackageID: "com.noisy", HasExplicitSound: true})
	require.NoError(t, err)

	r.mon.Filter().Store(classify.NewFilter(classify.FilterOptions{SelfID: "notifsnd", ExtraPackages: []string{"com.noisy"}}))

	res, err := r.mon.Process(ctx, classify.Event{PackageID: "com.noisy", HasExplicitSound: true})
	require.NoError(t, err)
	assert.Equal(t, Ignored, res.Outcome)

	pending, err := r.tr.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

type failingRecorder struct{}

func (failingRecorder) Append(context.Context, string, *string, int64) error {
	return errors.New("disk full")
}

func TestHistoryFailureDoesNotBlockTracker(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	m := New(r.mon.Filter(), failingRecorder{}, r.tr)

	res, err := m.Process(ctx, classify.Event{PackageID: "com.a", HasExplicitSound: true})
	require.Error(t, err)
	assert.True(t, res.NewPending)
	assert.EqualValues(t, 1, m.Stats().Errors)
}

func TestRunDrainsSubmittedEvents(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.mon.Run(ctx)
	}()

	for i, pkg := range []string{"com.a", "com.b", "com.c"} {
		require.NoError(t, r.mon.Submit(ctx, classify.Event{PackageID: pkg, HasExplicitSound: true, Timestamp: int64(i + 1)}))
	}
	require.Eventually(t, func() bool { return r.mon.Stats().Recorded == 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	entries, err := r.hist.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "com.c", entries[0].PackageName)
}
