// Package bot implements the chat commands: the preference menu and its
// toggle callback, the preference list, status and start.
package bot

import (
	"context"
	"time"

	"gagbot/internal/eventbus"
	"gagbot/internal/metrics"
	"gagbot/internal/monitor"
	"gagbot/internal/notifier"
	"gagbot/internal/prefs"
	"gagbot/internal/storage"
	"gagbot/internal/transport/telegram/router"
	logx "gagbot/pkg/logx"
)

// Callback namespace and action of the preference toggle buttons.
const (
	CallbackNamespace = "pref"
	CallbackToggle    = "toggle"
)

// StatsSource is the monitor loop's read-only view.
type StatsSource interface {
	Stats() monitor.Stats
}

// DeliveryLog exposes recent successful deliveries.
type DeliveryLog interface {
	Last(kind string) (notifier.HistoryItem, bool)
}

type Deps struct {
	Prefs    *prefs.Store
	Stats    StatsSource // optional
	History  DeliveryLog // optional
	Location *time.Location
	Store    storage.Store // optional audit trail
	Bus      eventbus.Bus  // optional
	Log      logx.Logger

	// Help renders the command list for /start.
	Help func() string
	// FeedState reports the fetch circuit breaker state for /status.
	FeedState func() string
	Now       func() time.Time
}

// PrefsToggled is the event payload published after a toggle.
type PrefsToggled struct {
	Name    string
	Outcome string
	By      int64
	Total   int
}

type Bot struct {
	d       Deps
	log     logx.Logger
	started time.Time
}

func New(d Deps) *Bot {
	if d.Prefs == nil {
		d.Prefs = prefs.New(nil)
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Bot{d: d, log: d.Log.With(logx.String("comp", "bot")), started: d.Now()}
}

func (b *Bot) Commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: "Welcome and command list", Handle: b.handleStart},
		{Name: "notify", Description: "Choose items to get notified for", Handle: b.handleNotify},
		{Name: "notifylist", Description: "Show your selected items", Handle: b.handleNotifyList},
		{Name: "status", Description: "Bot status and tracked items", Handle: b.handleStatus},
		{Name: "last", Description: "Repeat the last stock post", Handle: b.handleLast},
	}
}

func (b *Bot) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Namespace: CallbackNamespace, Action: CallbackToggle, Handle: b.handleToggle},
	}
}

func (b *Bot) audit(req *router.Request, action, target string) {
	if b.d.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	err := b.d.Store.AppendAudit(ctx, storage.AuditEntry{
		At:            b.d.Now(),
		ActorID:       req.FromID,
		ActorUsername: req.FromUsername,
		ChatID:        req.Chat.ChatID,
		ThreadID:      req.Chat.ThreadID,
		Component:     "prefs",
		Action:        action,
		Target:        target,
	})
	if err != nil {
		b.log.Debug("audit append failed", logx.Err(err))
	}
}

func (b *Bot) toggled(req *router.Request, name string, out prefs.Outcome) {
	total := b.d.Prefs.Len()
	metrics.TrackedItems.Set(float64(total))
	b.audit(req, out.String(), name)
	if b.d.Bus != nil {
		b.d.Bus.Publish(eventbus.Event{
			Type: eventbus.TypePrefsToggled,
			Time: b.d.Now(),
			Data: PrefsToggled{Name: name, Outcome: out.String(), By: req.FromID, Total: total},
		})
	}
	req.Logger.Info("preference toggled", logx.String("item", name), logx.String("outcome", out.String()), logx.Int("tracked", total))
}
