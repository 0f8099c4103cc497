package httpingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifsnd/internal/classify"
	logx "notifsnd/pkg/logx"
)

type recordSink struct {
	mu  sync.Mutex
	evs []classify.Event
	err error
}

func (s *recordSink) Submit(_ context.Context, ev classify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.evs = append(s.evs, ev)
	return nil
}

func post(t *testing.T, h http.Handler, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPostEvent(t *testing.T) {
	sink := &recordSink{}
	h := New(Config{}, nil, logx.Nop()).Handler(sink)

	rec := post(t, h, `{"packageId":"com.new.app","title":"t","text":"x","channelId":"promo","hasExplicitSound":true,"timestamp":42}`, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "com.new.app:promo", resp["key"])

	require.Len(t, sink.evs, 1)
	ev := sink.evs[0]
	assert.Equal(t, "com.new.app", ev.PackageID)
	assert.True(t, ev.HasExplicitSound)
	assert.EqualValues(t, 42, ev.Timestamp)
}

func TestPostEventValidation(t *testing.T) {
	sink := &recordSink{}
	h := New(Config{}, nil, logx.Nop()).Handler(sink)

	cases := map[string]string{
		"not json":      `{`,
		"unknown field": `{"packageId":"a","bogus":1}`,
		"missing pkg":   `{"title":"t"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, post(t, h, body, "").Code)
		})
	}
	assert.Empty(t, sink.evs)
}

func TestPostEventFillsTimestamp(t *testing.T) {
	sink := &recordSink{}
	h := New(Config{}, nil, logx.Nop()).Handler(sink)
	require.Equal(t, http.StatusAccepted, post(t, h, `{"packageId":"a"}`, "").Code)
	assert.Positive(t, sink.evs[0].Timestamp)
}

func TestBearerToken(t *testing.T) {
	sink := &recordSink{}
	h := New(Config{Token: "s3cret"}, nil, logx.Nop()).Handler(sink)

	assert.Equal(t, http.StatusUnauthorized, post(t, h, `{"packageId":"a"}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, post(t, h, `{"packageId":"a"}`, "wrong").Code)
	assert.Equal(t, http.StatusAccepted, post(t, h, `{"packageId":"a"}`, "s3cret").Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	sink := &recordSink{}
	h := New(Config{RatePerSec: 0.001, Burst: 2}, nil, logx.Nop()).Handler(sink)

	assert.Equal(t, http.StatusAccepted, post(t, h, `{"packageId":"a"}`, "").Code)
	assert.Equal(t, http.StatusAccepted, post(t, h, `{"packageId":"b"}`, "").Code)
	rec := post(t, h, `{"packageId":"c"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestSinkFailure(t *testing.T) {
	sink := &recordSink{err: errors.New("closed")}
	h := New(Config{}, nil, logx.Nop()).Handler(sink)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, h, `{"packageId":"a"}`, "").Code)
}

func TestStatus(t *testing.T) {
	status := func(context.Context) any { return map[string]int{"pending": 3} }
	h := New(Config{}, status, logx.Nop()).Handler(&recordSink{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":3}`, rec.Body.String())
}

func TestRunRefusesPublicBindWithoutToken(t *testing.T) {
	s := New(Config{Addr: "0.0.0.0:0"}, nil, logx.Nop())
	err := s.Run(context.Background(), &recordSink{})
	require.Error(t, err)
	assert.False(t, s.Authorized())
}

func TestIsLoopbackAddr(t *testing.T) {
	assert.True(t, isLoopbackAddr("127.0.0.1:80"))
	assert.True(t, isLoopbackAddr("localhost:80"))
	assert.True(t, isLoopbackAddr("[::1]:80"))
	assert.False(t, isLoopbackAddr(":80"))
	assert.False(t, isLoopbackAddr("10.0.0.1:80"))
	assert.False(t, isLoopbackAddr("nope"))
}
