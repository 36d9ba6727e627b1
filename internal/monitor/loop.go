// Package monitor runs the poll cycle: fetch the feed, filter it by the
// preference set, deliver changes and pace the next fetch by the quota the
// feed reports.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gagbot/internal/eventbus"
	"gagbot/internal/fetcher"
	"gagbot/internal/metrics"
	"gagbot/internal/ratectl"
	"gagbot/internal/stock"
	kit "gagbot/internal/transport"
	logx "gagbot/pkg/logx"
	"gagbot/pkg/tgui"
)

// Notification kinds sent by the loop.
const (
	KindStock = "stock"
	KindQuota = "quota"
)

type Fetcher interface {
	Fetch(ctx context.Context) fetcher.Outcome
}

// Sink delivers one message and reports whether the transport accepted it.
type Sink interface {
	Deliver(ctx context.Context, n kit.Notification) error
}

type Preferences interface {
	Names() []string
}

type Config struct {
	Target   kit.ChatTarget
	Location *time.Location
}

// PollState is owned by the goroutine running the loop.
type PollState struct {
	LastDelivered     stock.Snapshot
	Interval          time.Duration
	LowQuotaAlertSent bool
}

// Stats is a read-only view for /status.
type Stats struct {
	Cycles         uint64
	LastFetchAt    time.Time
	LastStatus     string
	LastError      string
	LastSignal     ratectl.Signal
	Band           ratectl.Band
	Interval       time.Duration
	NextFetchAt    time.Time
	Deliveries     uint64
	LastDeliveryAt time.Time
}

type Loop struct {
	fetch Fetcher
	sink  Sink
	prefs Preferences
	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	state PollState

	mu    sync.Mutex
	stats Stats
}

type Option func(*Loop)

func WithLogger(log logx.Logger) Option { return func(l *Loop) { l.log = log } }

func WithBus(b eventbus.Bus) Option { return func(l *Loop) { l.bus = b } }

func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSleeper replaces the interruptible timer between cycles.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) {
		if fn != nil {
			l.sleep = fn
		}
	}
}

func New(f Fetcher, sink Sink, prefs Preferences, cfg Config, opts ...Option) *Loop {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	l := &Loop{
		fetch: f,
		sink:  sink,
		prefs: prefs,
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepCtx,
		state: PollState{Interval: ratectl.IntervalNormal},
	}
	for _, o := range opts {
		o(l)
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	return l
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run cycles until ctx is cancelled and returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("stock monitor started", logx.Int64("chat_id", l.cfg.Target.ChatID))
	defer l.log.Info("stock monitor stopped")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := l.Step(ctx)
		l.mu.Lock()
		l.stats.NextFetchAt = l.now().Add(d)
		l.mu.Unlock()
		if err := l.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// Step runs one cycle and returns how long to sleep before the next.
func (l *Loop) Step(ctx context.Context) time.Duration {
	l.log.Debug("checking stock")
	out := l.fetch.Fetch(ctx)
	l.recordFetch(out)
	if ctx.Err() != nil {
		return 0
	}

	switch out.Status {
	case fetcher.StatusRateLimited:
		l.publish(eventbus.TypeRateLimited, out.RetryAfter)
		return out.RetryAfter
	case fetcher.StatusTransient:
		l.publish(eventbus.TypeFetchFailed, errString(out.Err))
	case fetcher.StatusOK:
		l.deliverChange(ctx, out.Snapshot)
	}

	return l.adjust(ctx, out.Signal)
}

func (l *Loop) deliverChange(ctx context.Context, snap stock.Snapshot) {
	filtered := stock.Filter(snap, l.prefs.Names())
	if filtered.IsEmpty() || !stock.HasChanged(l.state.LastDelivered, filtered) {
		l.publish(eventbus.TypeStockIdle, filtered.Count())
		l.log.Debug("no relevant stock change", logx.Int("entries", filtered.Count()))
		return
	}
	metrics.StockChangesTotal.Inc()

	err := l.sink.Deliver(ctx, kit.Notification{
		Kind:     KindStock,
		Priority: 5,
		Target:   l.cfg.Target,
		Text:     stock.RenderHTML(filtered, l.now(), l.cfg.Location),
		Options:  &kit.SendOptions{ParseMode: kit.ParseModeHTML, DisablePreview: true},
	})
	if err != nil {
		// keep the baseline so the change is offered again next cycle
		l.log.Error("stock notification failed", logx.Err(err))
		return
	}
	l.state.LastDelivered = filtered

	l.mu.Lock()
	l.stats.Deliveries++
	l.stats.LastDeliveryAt = l.now()
	l.mu.Unlock()
	l.publish(eventbus.TypeStockChanged, filtered.Count())
	l.log.Info("stock change delivered", logx.Int("entries", filtered.Count()))
}

func (l *Loop) adjust(ctx context.Context, sig ratectl.Signal) time.Duration {
	d := ratectl.Decide(sig, l.state.LowQuotaAlertSent)
	if d.Interval != l.state.Interval {
		l.log.Info("poll interval changed",
			logx.Duration("from", l.state.Interval),
			logx.Duration("to", d.Interval),
			logx.String("band", string(d.Band)),
		)
	}
	l.state.Interval = d.Interval
	metrics.PollInterval.Set(d.Interval.Seconds())

	switch {
	case d.Alert:
		metrics.LowQuotaAlertsTotal.Inc()
		l.publish(eventbus.TypeLowQuota, sig.PerCaller.String()+"/"+sig.Global.String())
		err := l.sink.Deliver(ctx, kit.Notification{
			Kind:     KindQuota,
			Priority: 7,
			Target:   l.cfg.Target,
			Text:     lowQuotaText(sig),
			Options:  &kit.SendOptions{ParseMode: kit.ParseModeHTML, DisablePreview: true},
		})
		if err != nil {
			// flag stays clear; the alert fires again next cycle
			l.log.Error("low quota alert failed", logx.Err(err))
		} else {
			l.state.LowQuotaAlertSent = true
		}
	default:
		l.state.LowQuotaAlertSent = d.AlertSent
	}

	l.mu.Lock()
	l.stats.Interval = d.Interval
	l.stats.Band = d.Band
	l.mu.Unlock()
	return d.Interval
}

func lowQuotaText(sig ratectl.Signal) string {
	return "⚠️ " + tgui.B("Warning:").String() + " API rate limit near!\n" +
		fmt.Sprintf("IP: %s, Global: %s", sig.PerCaller, sig.Global)
}

func (l *Loop) recordFetch(out fetcher.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.Cycles++
	l.stats.LastFetchAt = l.now()
	l.stats.LastStatus = out.Status.String()
	l.stats.LastError = errString(out.Err)
	l.stats.LastSignal = out.Signal
}

func (l *Loop) publish(typ string, data any) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(eventbus.Event{Type: typ, Time: l.now(), Data: data})
}

// Stats is safe to call from any goroutine.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.stats
	if st.Interval == 0 {
		st.Interval = ratectl.IntervalNormal
	}
	return st
}

// State returns the poll state. Only call it from the goroutine that runs
// the loop, or after Run returned.
func (l *Loop) State() PollState { return l.state }

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
