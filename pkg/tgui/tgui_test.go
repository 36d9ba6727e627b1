package tgui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	kit "gagbot/internal/transport"
)

func TestDataRoundTrip(t *testing.T) {
	d, err := Data("pref", "toggle", "Grape:Seed")
	require.NoError(t, err)
	assert.Equal(t, "pref:toggle:Grape:Seed", d)

	ns, act, payload, ok := ParseData(d)
	require.True(t, ok)
	assert.Equal(t, "pref", ns)
	assert.Equal(t, "toggle", act)
	assert.Equal(t, "Grape:Seed", payload)
}

func TestDataLimits(t *testing.T) {
	_, err := Data("pref", "toggle", strings.Repeat("x", 60))
	assert.ErrorIs(t, err, ErrCallbackDataTooLong)

	for _, bad := range []string{"", "Carrot", ":toggle", "pref:"} {
		_, _, _, ok := ParseData(bad)
		assert.False(t, ok, bad)
	}
}

func TestBuilderEscapesAndSetsOptions(t *testing.T) {
	msg := New().
		Title("🔔", "A & B").
		Line("x < y").
		KV("Interval", "30s").
		RawLine(Code("raw")).
		Build()

	assert.Equal(t, "🔔 <b>A &amp; B</b>\nx &lt; y\n<b>Interval</b>: 30s\n<code>raw</code>", msg.Text)
	assert.Equal(t, kit.ParseModeHTML, msg.Opt.ParseMode)
	assert.True(t, msg.Opt.DisablePreview)
	assert.Nil(t, msg.Opt.ReplyMarkupAdapter)
}

func TestBuilderTrimsBlankEdges(t *testing.T) {
	msg := New().Blank().Line("body").Blank().Build()
	assert.Equal(t, "body", msg.Text)
}

func TestInlineColumn(t *testing.T) {
	kb := NewInline().Column([]tele.Btn{Btn("🥕 Carrot", "pref:toggle:Carrot"), Btn("🍓 Strawberry", "pref:toggle:Strawberry")})
	assert.Equal(t, 2, kb.Rows())

	msg := New().Line("pick").Inline(kb).Build()
	rm, ok := msg.Opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	require.True(t, ok)
	require.Len(t, rm.InlineKeyboard, 2)
	assert.Equal(t, "pref:toggle:Strawberry", rm.InlineKeyboard[1][0].Data)
}

func TestJoinHSkipsBlank(t *testing.T) {
	assert.Equal(t, H("<b>a</b> - b"), JoinH(" - ", B("a"), H("  "), Esc("b")))
}
