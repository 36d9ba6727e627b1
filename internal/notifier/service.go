package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gagbot/internal/eventbus"
	"gagbot/internal/metrics"
	"gagbot/internal/storage"
	kit "gagbot/internal/transport"
	logx "gagbot/pkg/logx"
)

var (
	// ErrDelivery wraps the last send error once every attempt failed.
	ErrDelivery = errors.New("notification delivery failed")
	ErrNoSender = errors.New("notifier has no sender")
	ErrEmpty    = errors.New("empty notification")
)

const historyMax = 50

// Service is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	log    logx.Logger
	sender Sender
	bus    eventbus.Bus
	store  storage.Store

	hmu     sync.Mutex
	history []HistoryItem
}

// New builds the service. bus and store may be nil.
func New(cfg Config, sender Sender, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log, bus: bus, store: store}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	// burst = rate per sec, so short spikes don't block too hard
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Deliver sends n and waits for the outcome. A nil error means the
// transport accepted the message.
func (s *Service) Deliver(ctx context.Context, n kit.Notification) error {
	if strings.TrimSpace(n.Text) == "" {
		return ErrEmpty
	}
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	snd := s.sender
	s.mu.Unlock()
	if snd == nil {
		return ErrNoSender
	}

	start := time.Now()
	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++
		if attempt > 1 {
			metrics.DeliveryRetriesTotal.Inc()
		}
		if err := lim.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, err := snd.SendText(callCtx, n.Target, n.Text, n.Options)
		cancel()
		if err == nil {
			s.sent(n, attempt, time.Since(start))
			return nil
		}
		lastErr = err
		s.log.Debug("notify send failed", logx.Err(err), logx.String("kind", n.Kind), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts || ctx.Err() != nil {
			break
		}
		if !sleepCtx(ctx, retryDelay(cfg, attempt)) {
			lastErr = ctx.Err()
			break
		}
	}

	err := fmt.Errorf("%w: %w", ErrDelivery, lastErr)
	s.failed(n, attempt, time.Since(start), err)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) sent(n kit.Notification, attempts int, took time.Duration) {
	metrics.DeliveriesTotal.WithLabelValues(kindLabel(n), "ok").Inc()
	s.appendHistory(n)
	now := time.Now()
	s.publish(eventbus.TypeNotifySent, NotificationEvent{Kind: n.Kind, ChatID: n.Target.ChatID, ThreadID: n.Target.ThreadID, Attempts: attempts, At: now})
	s.audit(n, "delivered", took, "")
	s.log.Debug("notification delivered", logx.String("kind", n.Kind), logx.Int("attempts", attempts), logx.Duration("took", took))
}

func (s *Service) failed(n kit.Notification, attempts int, took time.Duration, err error) {
	metrics.DeliveriesTotal.WithLabelValues(kindLabel(n), "failed").Inc()
	now := time.Now()
	s.publish(eventbus.TypeNotifyFailed, NotificationEvent{Kind: n.Kind, ChatID: n.Target.ChatID, ThreadID: n.Target.ThreadID, Attempts: attempts, At: now, Error: err.Error()})
	s.audit(n, "failed", took, err.Error())
	s.log.Warn("notification failed", logx.String("kind", n.Kind), logx.Int("attempts", attempts), logx.Err(err))
}

func kindLabel(n kit.Notification) string {
	if n.Kind == "" {
		return "other"
	}
	return n.Kind
}

func (s *Service) publish(typ string, ev NotificationEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
}

// audit is best-effort; a slow store must not hold up the monitor loop.
func (s *Service) audit(n kit.Notification, action string, took time.Duration, errText string) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	err := s.store.AppendAudit(ctx, storage.AuditEntry{
		ChatID:    n.Target.ChatID,
		ThreadID:  n.Target.ThreadID,
		Component: "notifier",
		Action:    action,
		Target:    n.Kind,
		Error:     errText,
		TookMS:    took.Milliseconds(),
	})
	if err != nil {
		s.log.Debug("audit append failed", logx.Err(err))
	}
}

// Last returns the most recent successful delivery of the given kind.
func (s *Service) Last(kind string) (HistoryItem, bool) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Kind == kind {
			return s.history[i], true
		}
	}
	return HistoryItem{}, false
}

func (s *Service) appendHistory(n kit.Notification) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Kind: n.Kind, Text: n.Text})
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
	s.hmu.Unlock()
}

// retryDelay is the wait before attempt+1: base * 2^(attempt-1), capped,
// with 0.7..1.3 jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	return min(d, cfg.RetryMaxDelay)
}
