// Package handlers wires Telegram updates to the flow engine and the
// admin panel, and renders their responses back through the bot.
package handlers

import (
	tele "gopkg.in/telebot.v4"

	"github.com/promokod/promobot/bot/flow"
	"github.com/promokod/promobot/core/telegram/helpers"
	"github.com/promokod/promobot/core/telegram/keyboard"
)

// markupFor translates response controls into an inline keyboard.
func markupFor(resp flow.Response) *tele.ReplyMarkup {
	if len(resp.Controls) == 0 {
		return nil
	}
	buttons := make([]keyboard.InlineBtn, 0, len(resp.Controls))
	for _, ctl := range resp.Controls {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   ctl.Label,
			Unique: ctl.Action,
			Data:   ctl.Payload,
			URL:    ctl.URL,
		})
	}
	rows := resp.Rows
	if rows <= 0 {
		rows = 1
	}
	return keyboard.InlineButtonsNPerRow(buttons, rows)
}

func renderText(resp flow.Response) string {
	if resp.Notice != "" && resp.Text != "" {
		return resp.Notice + "\n\n" + resp.Text
	}
	if resp.Notice != "" {
		return resp.Notice
	}
	return resp.Text
}

// send delivers the response as a fresh message.
func send(c tele.Context, resp flow.Response) error {
	if resp.Empty() {
		return nil
	}
	markup := markupFor(resp)
	if markup == nil {
		return helpers.SendText(c, renderText(resp))
	}
	return helpers.SendKeyboard(c, renderText(resp), markup)
}

// edit replaces the message the pressed button was attached to,
// falling back to a fresh message when editing is impossible.
func edit(c tele.Context, resp flow.Response) error {
	if resp.Empty() {
		return nil
	}
	return helpers.EditOrSendText(c, renderText(resp), markupFor(resp))
}
