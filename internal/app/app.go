// Package app wires the stock monitor, the chat transport and the
// supporting services together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gagbot/internal/bot"
	"gagbot/internal/config"
	"gagbot/internal/eventbus"
	"gagbot/internal/fetcher"
	"gagbot/internal/health"
	"gagbot/internal/heartbeat"
	"gagbot/internal/metrics"
	"gagbot/internal/monitor"
	"gagbot/internal/notifier"
	"gagbot/internal/prefs"
	rtsup "gagbot/internal/runtime/supervisor"
	"gagbot/internal/storage"
	kit "gagbot/internal/transport"
	telegram "gagbot/internal/transport/telegram/adapter"
	"gagbot/internal/transport/telegram/router"
	logx "gagbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter kit.Adapter
	notif   *notifier.Service
	prefs   *prefs.Store
	fetch   *fetcher.Client
	loop    *monitor.Loop
	router  *router.Router
	bot     *bot.Bot
	health  *health.Service
	beat    *heartbeat.Service

	started time.Time
	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg), ad)
	appLog := log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	var store storage.Store
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if enabled {
		if store, err = storage.Open(sc, log.With(logx.String("comp", "storage"))); err != nil {
			return nil, err
		}
		appLog.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	bus := eventbus.New()

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus, store)

	fopts, err := mapFetcherOptions(cfg, log.With(logx.String("comp", "fetcher")))
	if err != nil {
		return nil, err
	}
	fetch := fetcher.New(fopts...)

	target := kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID}
	pstore := prefs.New(nil)
	loop := monitor.New(fetch, notif, pstore, monitor.Config{Target: target, Location: loc},
		monitor.WithLogger(log.With(logx.String("comp", "monitor"))),
		monitor.WithBus(bus),
	)

	rt := router.New(log, ad)
	b := bot.New(bot.Deps{
		Prefs:     pstore,
		Stats:     loop,
		History:   notif,
		FeedState: fetch.BreakerState,
		Location:  loc,
		Store:     store,
		Bus:       bus,
		Log:       log,
		Help:      rt.HelpText,
	})
	rt.SetRegistry(b.Commands(), b.Callbacks())

	a := &App{
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		notif:   notif,
		prefs:   pstore,
		fetch:   fetch,
		loop:    loop,
		router:  rt,
		bot:     b,
		started: time.Now(),
		updates: make(chan kit.Update, 256),
	}

	a.health = health.New(mapHealthConfig(cfg), log, health.WithCheck(func() error {
		return monitorCheck(loop.Stats(), a.started, time.Now())
	}))

	if cfg.Heartbeat.Enabled {
		beat, err := heartbeat.New(heartbeat.Config{
			Schedule: cfg.HeartbeatSchedule(),
			Location: loc,
			Target:   target,
		}, notif, b.StatusText, log)
		if err != nil {
			return nil, fmt.Errorf("heartbeat.schedule: %w", err)
		}
		a.beat = beat
	}
	return a, nil
}

// Done is closed when the app supervisor context is cancelled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	metrics.TrackedItems.Set(float64(a.prefs.Len()))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("telegram.menu.update", func(c context.Context) {
		if err := a.router.PublishMenu(c); err != nil {
			a.log.Warn("menu update failed", logx.Err(err))
		}
	})
	a.sup.Go("stock.monitor", a.loop.Run)

	if err := a.health.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	if a.beat != nil {
		a.beat.Start(a.sup.Context())
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	health.NotifyReady(a.log)
	a.log.Info("app started",
		logx.Int64("chat_id", a.cfgm.Get().Telegram.ChatID),
		logx.String("endpoint", a.fetch.Endpoint()),
	)
	return nil
}

// applyConfig pushes the sections that can change at runtime.
func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.logs.Apply(mapLogConfig(next))

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}

	if restart := config.RequiresRestart(sections); len(restart) > 0 {
		a.log.Warn("restart required for config changes to take effect", logx.Strings("sections", restart))
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Time: time.Now(), Data: sections})

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	health.NotifyStopping(a.log)
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("heartbeat", time.Second, func(c context.Context) error {
		if a.beat != nil {
			a.beat.Stop(c)
		}
		return nil
	})
	step("health", time.Second, a.health.Stop)
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
