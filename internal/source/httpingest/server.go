// Package httpingest accepts notification events over HTTP, typically
// forwarded from a phone.
package httpingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"notifsnd/internal/classify"
	"notifsnd/internal/source"
	logx "notifsnd/pkg/logx"
)

// Config controls the ingest server.
//
// Security:
//   - Prefer binding to localhost (default).
//   - A non-loopback address requires Token unless AllowInsecure is set.
type Config struct {
	Addr          string
	Token         string
	AllowInsecure bool
	RatePerSec    float64
	Burst         int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	// Pprof mounts net/http/pprof under /debug/pprof/ behind the same token.
	Pprof bool
}

const maxBody = 64 << 10

// StatusFunc renders the payload of GET /v1/status.
type StatusFunc func(ctx context.Context) any

type Server struct {
	cfg     Config
	log     logx.Logger
	status  StatusFunc
	limiter *rate.Limiter

	listening atomic.Bool
}

func New(cfg Config, status StatusFunc, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RatePerSec) * 2
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Server{
		cfg:     cfg,
		log:     log,
		status:  status,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}
}

func (s *Server) Name() string { return "http" }

// Authorized reports whether the listener is bound.
func (s *Server) Authorized() bool { return s.listening.Load() }

// Handler builds the routes. It is separate from Run so tests can drive it
// through httptest.
func (s *Server) Handler(sink source.Sink) http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(s.cfg.Token, h) }

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /v1/events", wrap(s.handleEvent(sink)))
	mux.HandleFunc("GET /v1/status", wrap(func(w http.ResponseWriter, r *http.Request) {
		var body any = map[string]string{}
		if s.status != nil {
			body = s.status(r.Context())
		}
		writeJSON(w, http.StatusOK, body)
	}))

	if s.cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", wrap(hpprof.Index))
		mux.HandleFunc("/debug/pprof/cmdline", wrap(hpprof.Cmdline))
		mux.HandleFunc("/debug/pprof/profile", wrap(hpprof.Profile))
		mux.HandleFunc("/debug/pprof/symbol", wrap(hpprof.Symbol))
		mux.HandleFunc("/debug/pprof/trace", wrap(hpprof.Trace))
	}
	return mux
}

func (s *Server) handleEvent(sink source.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errBody("rate limited"))
			return
		}
		var ev classify.Event
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&ev); err != nil {
			writeJSON(w, http.StatusBadRequest, errBody("invalid event: "+err.Error()))
			return
		}
		if strings.TrimSpace(ev.PackageID) == "" {
			writeJSON(w, http.StatusBadRequest, errBody("packageId is required"))
			return
		}
		if ev.Timestamp <= 0 {
			ev.Timestamp = time.Now().UnixMilli()
		}
		if err := sink.Submit(r.Context(), ev); err != nil {
			s.log.Warn("event not queued", logx.String("pkg", ev.PackageID), logx.Err(err))
			writeJSON(w, http.StatusServiceUnavailable, errBody("pipeline unavailable"))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "key": ev.Key()})
	}
}

// Run listens and serves until ctx is done.
func (s *Server) Run(ctx context.Context, sink source.Sink) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if !s.cfg.AllowInsecure && s.cfg.Token == "" && !isLoopbackAddr(addr) {
		return fmt.Errorf("http ingest refused to start: non-loopback addr %q requires a token", addr)
	}
	if s.cfg.AllowInsecure && s.cfg.Token == "" && !isLoopbackAddr(addr) {
		s.log.Warn("http ingest running without token on non-loopback addr (insecure)", logx.String("addr", addr))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http ingest listen: %w", err)
	}
	srv := &http.Server{
		Handler:      s.Handler(sink),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.listening.Store(true)
	defer s.listening.Store(false)

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("http ingest started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", s.cfg.Token != ""), logx.Bool("pprof", s.cfg.Pprof))
	err = srv.Serve(ln)
	if ctx.Err() != nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		const p = "Bearer "
		ah := r.Header.Get("Authorization")
		if strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, errBody("unauthorized"))
	}
}

func errBody(msg string) map[string]string { return map[string]string{"error": msg} }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
