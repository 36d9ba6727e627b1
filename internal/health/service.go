// Package health serves the liveness endpoint that keeps hosted deployments
// awake, plus Prometheus metrics and systemd readiness notifications.
package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rtsup "gagbot/internal/runtime/supervisor"
	logx "gagbot/pkg/logx"
)

const (
	DefaultAddr = ":8080"
	AliveText   = "Bot is alive!"
)

type Config struct {
	Enabled bool
	Addr    string
	Metrics bool
	Systemd bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Check reports an unhealthy component; nil means healthy.
type Check func() error

type Service struct {
	mu    sync.Mutex
	log   logx.Logger
	cfg   Config
	check Check

	ln       net.Listener
	srv      *http.Server
	sup      *rtsup.Supervisor
	ready    chan struct{}
	readyErr error
}

type Option func(*Service)

func WithCheck(c Check) Option { return func(s *Service) { s.check = c } }

func New(cfg Config, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{cfg: cfg, log: log.With(logx.String("comp", "health"))}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the HTTP routes without starting a listener.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	alive := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(AliveText))
	}
	// every other path answers as alive
	r.Get("/", alive)
	r.Head("/", alive)
	r.Get("/*", alive)
	r.Head("/*", alive)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if s.check != nil {
			if err := s.check(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(err.Error()))
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})

	if s.cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

// Start binds the listener and serves in the background. It returns once the
// first bind attempt finished so callers see port conflicts immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.sup != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return nil
	}
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		rtsup.WithCancelOnError(false),
	)
	s.ready = make(chan struct{})
	sup, ready := s.sup, s.ready
	s.mu.Unlock()

	var once sync.Once
	sup.GoRestart("http.serve", func(c context.Context) error {
		return s.serveOnce(c, func(err error) {
			once.Do(func() {
				s.mu.Lock()
				s.readyErr = err
				s.mu.Unlock()
				close(ready)
			})
		})
	},
		rtsup.WithPublishFirstError(true),
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
	)

	if s.cfg.Systemd {
		sup.Go0("systemd.watchdog", func(c context.Context) { RunWatchdog(c, s.log) })
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	err := s.readyErr
	s.mu.Unlock()
	return err
}

// Addr is the bound listener address, empty when not serving.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup, srv := s.sup, s.srv
	s.sup, s.srv, s.ln = nil, nil, nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	sup.Cancel()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
		}
	}
	err := sup.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("health stop timed out", logx.Err(err))
		return nil
	}
	s.log.Info("health stopped")
	return nil
}

func (s *Service) serveOnce(ctx context.Context, bound func(error)) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error("health listen failed", logx.String("addr", addr), logx.Err(err))
		bound(err)
		if ctx.Err() != nil {
			return context.Canceled
		}
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	s.mu.Lock()
	s.ln, s.srv = ln, srv
	s.mu.Unlock()
	bound(nil)

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("health started", logx.String("addr", ln.Addr().String()), logx.Bool("metrics", s.cfg.Metrics))
	err = srv.Serve(ln)
	if ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("health server exited unexpectedly")
	}
	return err
}
