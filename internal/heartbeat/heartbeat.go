// Package heartbeat posts a status message to the chat on a cron schedule.
package heartbeat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	kit "gagbot/internal/transport"
	logx "gagbot/pkg/logx"
)

const Kind = "heartbeat"

type Sink interface {
	Deliver(ctx context.Context, n kit.Notification) error
}

type Config struct {
	Schedule string // standard 5-field cron
	Location *time.Location
	Target   kit.ChatTarget
	Timeout  time.Duration
}

type Service struct {
	mu     sync.Mutex
	cfg    Config
	sink   Sink
	render func() string
	log    logx.Logger

	c      *cron.Cron
	runCtx context.Context
	cancel context.CancelFunc
}

// New builds the service; render produces the HTML body of each post.
func New(cfg Config, sink Sink, render func() string, log logx.Logger) (*Service, error) {
	if sink == nil || render == nil {
		return nil, errors.New("heartbeat needs a sink and a renderer")
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, sink: sink, render: render, log: log.With(logx.String("comp", "heartbeat"))}, nil
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithLocation(s.cfg.Location))
	// Schedule was validated in New.
	_, _ = s.c.AddFunc(s.cfg.Schedule, func() { _ = s.Fire(s.runCtx) })
	s.c.Start()
	s.log.Info("heartbeat started", logx.String("schedule", s.cfg.Schedule), logx.String("tz", s.cfg.Location.String()))
}

// Stop waits for a running post to finish, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	done := c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	cancel()
}

// Next is the next scheduled run, zero when stopped.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Fire posts one heartbeat now.
func (s *Service) Fire(ctx context.Context) error {
	text := strings.TrimSpace(s.render())
	if text == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	err := s.sink.Deliver(ctx, kit.Notification{
		Kind:    Kind,
		Target:  s.cfg.Target,
		Text:    text,
		Options: &kit.SendOptions{ParseMode: kit.ParseModeHTML, DisablePreview: true},
	})
	if err != nil {
		s.log.Warn("heartbeat failed", logx.Err(err))
		return err
	}
	s.log.Debug("heartbeat sent")
	return nil
}
