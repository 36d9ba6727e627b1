package router

import (
	"strings"

	"gagbot/pkg/tgui"
)

// HelpText lists the visible commands in HTML.
func (m *Router) HelpText() string {
	b := tgui.New().Title("📚", "Commands").Blank()
	for _, c := range m.Commands() {
		if c.Hidden {
			continue
		}
		line := tgui.Code("/" + c.Name)
		if d := strings.TrimSpace(c.Description); d != "" {
			line = tgui.JoinH(" - ", line, tgui.Esc(d))
		}
		b.RawLine(tgui.H("• ") + line)
	}
	return b.Build().Text
}
