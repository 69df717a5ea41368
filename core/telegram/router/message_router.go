package router

import (
	"time"

	tg "github.com/promokod/promobot/core/telegram"
	"github.com/promokod/promobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the minimal interface required from a conversation dispatcher.
// Free text is handed to it whenever the sending user has a step in progress.
type Conversation interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds handlers for free-text routing: conversation steps first,
// then command lookup, then the registry fallback.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if conv != nil && conv.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "conversation", start, "", "", func() error {
				return conv.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
