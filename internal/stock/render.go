package stock

import (
	"strconv"
	"strings"
	"time"

	"gagbot/pkg/tgui"
)

// TimeLayout is the 12-hour timestamp used in chat messages.
const TimeLayout = "2006-01-02 03:04:05 PM"

// RenderHTML formats a filtered snapshot as a Telegram HTML message. Sections
// appear in rendering order, each with an upper-cased bold title.
func RenderHTML(s Snapshot, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	b.WriteString("🕒 " + tgui.B("New Stock Detected!").String() + "\n")
	b.WriteString("🗓️ Date & Time: " + tgui.Code(now.In(loc).Format(TimeLayout)).String() + "\n")

	parts := make([]string, 0, len(Sections))
	for _, sec := range Sections {
		entries := s[sec]
		if len(entries) == 0 {
			continue
		}
		lines := make([]string, 0, len(entries)+1)
		lines = append(lines, tgui.B(strings.ToUpper(sec.Title())).String())
		for _, e := range entries {
			lines = append(lines, Emoji(e.DisplayName)+" "+tgui.Esc(e.DisplayName).String()+" x"+strconv.Itoa(e.Quantity))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	if len(parts) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(parts, "\n\n"))
	}
	return b.String()
}
