package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"gagbot/internal/monitor"
	"gagbot/internal/prefs"
	"gagbot/internal/stock"
	kit "gagbot/internal/transport"
	"gagbot/internal/transport/telegram/router"
	logx "gagbot/pkg/logx"
	"gagbot/pkg/tgui"
)

const (
	notifyPrompt = "🔔 Select items to get notified for (tap to toggle):"
	emptyList    = "📭 You haven't selected any items."
	noStockPost  = "📭 No stock update has been posted yet."
)

func htmlOpts() *kit.SendOptions {
	return &kit.SendOptions{ParseMode: kit.ParseModeHTML, DisablePreview: true}
}

// NotifyMenu is the /notify message: one toggle button per catalog item.
func NotifyMenu() (tgui.Message, error) {
	btns := make([]tele.Btn, 0, len(stock.Catalog))
	for _, it := range stock.Catalog {
		data, err := tgui.Data(CallbackNamespace, CallbackToggle, it.Name)
		if err != nil {
			return tgui.Message{}, fmt.Errorf("catalog item %q: %w", it.Name, err)
		}
		btns = append(btns, tgui.Btn(it.Emoji+" "+it.Name, data))
	}
	return tgui.New().
		Line(notifyPrompt).
		Inline(tgui.NewInline().Column(btns)).
		Build(), nil
}

// ToggleText is the confirmation that replaces the menu after a tap.
func ToggleText(name string, out prefs.Outcome) string {
	if out == prefs.Removed {
		return "❌ Removed " + tgui.B(name).String() + " from your list."
	}
	return "✅ Added " + tgui.B(name).String() + " to your list."
}

// ListText renders the selected items, sorted.
func ListText(names []string) string {
	if len(names) == 0 {
		return emptyList
	}
	b := tgui.New().RawLine(tgui.B("Your Selected Items:"))
	for _, n := range names {
		b.Line(stock.Label(n))
	}
	return b.Build().Text
}

// StatusText renders /status; the heartbeat posts the same text.
func (b *Bot) StatusText() string {
	now := b.d.Now()
	loc := b.d.Location
	items := b.d.Prefs.List()

	tb := tgui.New().
		Title("✅", "Bot is Alive!").
		RawLine(tgui.JoinH(" ", tgui.H("🕒 Time ("+tgui.Esc(loc.String()).String()+"):"), tgui.Code(now.In(loc).Format(stock.TimeLayout)))).
		RawLine(tgui.JoinH(" ", tgui.H("⏱️ Uptime:"), tgui.Code(now.Sub(b.started).Round(time.Second).String()))).
		Line(fmt.Sprintf("🔔 Tracking %d item(s).", len(items)))

	if b.d.Stats != nil {
		st := b.d.Stats.Stats()
		tb.RawLine(tgui.JoinH(" ", tgui.H("🔄 Poll interval:"), tgui.Code(st.Interval.String())))
		last := "never"
		if !st.LastFetchAt.IsZero() {
			last = st.LastFetchAt.In(loc).Format(stock.TimeLayout)
			if st.LastStatus != "" {
				last += " (" + st.LastStatus + ")"
			}
		}
		tb.RawLine(tgui.JoinH(" ", tgui.H("📡 Last check:"), tgui.Code(last)))
	}
	if b.d.FeedState != nil {
		tb.RawLine(tgui.JoinH(" ", tgui.H("🔌 Feed circuit:"), tgui.Code(b.d.FeedState())))
	}

	if len(items) > 0 {
		tb.Blank().Title("📦", "Items:")
		for _, n := range items {
			tb.Line(stock.Label(n))
		}
	}
	return tb.Build().Text
}

func (b *Bot) handleStart(ctx context.Context, req *router.Request) error {
	tb := tgui.New().
		Title("🌱", "Grow a Garden Stock Bot").
		Line("I watch the shop and post here when the items you track are in stock.").
		Line("Use /notify to pick items.")
	if b.d.Help != nil {
		tb.Blank().RawLine(tgui.H(b.d.Help()))
	}
	_, err := tb.Build().Send(ctx, req.Adapter, req.Chat)
	return err
}

func (b *Bot) handleNotify(ctx context.Context, req *router.Request) error {
	msg, err := NotifyMenu()
	if err != nil {
		return err
	}
	_, err = msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (b *Bot) handleToggle(ctx context.Context, req *router.Request, payload string) error {
	name := payload
	if strings.TrimSpace(name) == "" || !stock.InCatalog(name) {
		req.Logger.Debug("toggle for unknown item ignored", logx.String("item", name))
		return req.Answer(ctx, "")
	}
	_ = req.Answer(ctx, "")
	out := b.d.Prefs.Toggle(name)
	b.toggled(req, name, out)
	return tgui.Message{Text: ToggleText(name, out), Opt: htmlOpts()}.Edit(ctx, req.Adapter, req.MessageRef())
}

func (b *Bot) handleNotifyList(ctx context.Context, req *router.Request) error {
	_, err := tgui.Message{Text: ListText(b.d.Prefs.List()), Opt: htmlOpts()}.Send(ctx, req.Adapter, req.Chat)
	return err
}

// LastText is the /last reply: the most recent stock post, or a notice.
func (b *Bot) LastText() string {
	if b.d.History == nil {
		return noStockPost
	}
	item, ok := b.d.History.Last(monitor.KindStock)
	if !ok {
		return noStockPost
	}
	return tgui.New().
		RawLine(tgui.JoinH(" ", tgui.H("📨 Posted"), tgui.Code(item.At.In(b.d.Location).Format(stock.TimeLayout)))).
		Blank().
		RawLine(tgui.H(item.Text)).
		Build().Text
}

func (b *Bot) handleLast(ctx context.Context, req *router.Request) error {
	_, err := tgui.Message{Text: b.LastText(), Opt: htmlOpts()}.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (b *Bot) handleStatus(ctx context.Context, req *router.Request) error {
	_, err := tgui.Message{Text: b.StatusText(), Opt: htmlOpts()}.Send(ctx, req.Adapter, req.Chat)
	return err
}
