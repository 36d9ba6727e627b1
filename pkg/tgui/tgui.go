package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline builds an inline keyboard row by row.
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends one row of buttons.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Column appends every button on its own row.
func (i *Inline) Column(btns []tele.Btn) *Inline {
	for _, b := range btns {
		i.Row(b)
	}
	return i
}

func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Rows reports how many rows were added.
func (i *Inline) Rows() int { return len(i.rows) }

// Btn creates a callback button; data is used verbatim (see Data).
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}
