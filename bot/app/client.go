package app

import (
	"errors"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

// ErrNotStarted is returned for bot API calls made before the runtime
// handed over the client.
var ErrNotStarted = errors.New("app: telegram client not started")

// telegramClient is a late-bound view of the bot client. It is created
// during bootstrap so that the checker and broadcaster can hold a
// stable reference, and bound to the real bot when the runtime starts.
type telegramClient struct {
	bot atomic.Pointer[tele.Bot]
}

func (c *telegramClient) bind(b *tele.Bot) {
	c.bot.Store(b)
}

func (c *telegramClient) ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error) {
	b := c.bot.Load()
	if b == nil {
		return nil, ErrNotStarted
	}
	return b.ChatMemberOf(chat, user)
}

func (c *telegramClient) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	b := c.bot.Load()
	if b == nil {
		return nil, ErrNotStarted
	}
	return b.Send(to, what, opts...)
}
