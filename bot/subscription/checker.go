// Package subscription adapts the Telegram chat-member API to the
// membership check the flow engine consults.
package subscription

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// memberAPI is the slice of the telebot client the checker needs.
type memberAPI interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// Checker answers channel membership through the bot API.
type Checker struct {
	api memberAPI
}

// New builds a Checker over a telebot bot (or anything exposing
// ChatMemberOf).
func New(api memberAPI) *Checker {
	return &Checker{api: api}
}

// Member reports whether the user currently belongs to the channel.
// channelID is the channel's @username or numeric chat id. The bot API
// call itself has no context plumbing, so the call runs in a goroutine
// and the context bounds the wait.
func (c *Checker) Member(ctx context.Context, userID int64, channelID string) (bool, error) {
	type result struct {
		member *tele.ChatMember
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		m, err := c.api.ChatMemberOf(chatRecipient(channelID), &tele.User{ID: userID})
		ch <- result{member: m, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return false, fmt.Errorf("chat member of %s: %w", channelID, res.err)
		}
		return joined(res.member.Role), nil
	}
}

// chatRecipient addresses a chat by @username or numeric id string.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// joined maps a member role to "counts as subscribed".
func joined(role tele.MemberStatus) bool {
	switch role {
	case tele.Left, tele.Kicked:
		return false
	}
	return true
}
