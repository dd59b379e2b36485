// Package keyboard builds inline keyboards from plain button
// descriptions, keeping telebot markup plumbing out of handlers.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes one inline button: label, callback unique and
// callback payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// InlineButtons builds a keyboard with one button per row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineBtn{b})
	}
	return InlineButtonsRows(rows...)
}

// InlineButtonsRows builds a keyboard with explicit row layout.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}
