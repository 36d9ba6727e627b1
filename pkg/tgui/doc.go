// Package tgui holds small Telegram UI helpers:
//   - inline keyboard builders
//   - callback data helpers ("namespace:action:payload")
//   - an HTML-safe message builder (ParseMode=HTML, previews off)
package tgui
