package handlers

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/promokod/promobot/bot/admin"
	"github.com/promokod/promobot/bot/flow"
	"github.com/promokod/promobot/core/telegram/callbacks"
	"github.com/promokod/promobot/core/telegram/helpers"
)

// registrar records first contact with users; *users.Service satisfies it.
type registrar interface {
	Register(ctx context.Context, telegramID int64, fullName string) error
}

// Handlers owns every command, callback, and text handler of the bot.
type Handlers struct {
	engine   *flow.Engine
	panel    *admin.Panel
	users    registrar
	adminIDs map[int64]struct{}

	unknownInput string
}

// Options collects the handler dependencies.
type Options struct {
	Engine       *flow.Engine
	Panel        *admin.Panel
	Users        registrar
	AdminIDs     []int64
	UnknownInput string
}

// New builds the handler set.
func New(opts Options) *Handlers {
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	unknown := opts.UnknownInput
	if unknown == "" {
		unknown = "Use /start to begin"
	}
	return &Handlers{
		engine:       opts.Engine,
		panel:        opts.Panel,
		users:        opts.Users,
		adminIDs:     admins,
		unknownInput: unknown,
	}
}

func (h *Handlers) isAdmin(userID int64) bool {
	_, ok := h.adminIDs[userID]
	return ok
}

func fullName(u *tele.User) string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// Start handles /start: register the user and restart the flow.
func (h *Handlers) Start(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)
	if h.users != nil {
		// Registration failures must not block the conversation.
		_ = h.users.Register(ctx, sender.ID, fullName(sender))
	}

	resp, err := h.engine.HandleEvent(ctx, flow.Event{
		UserID: sender.ID,
		Kind:   flow.KindCommand,
		Action: flow.CommandStart,
	})
	if err != nil {
		return err
	}
	return send(c, resp)
}

// Help handles /help.
func (h *Handlers) Help(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	resp, err := h.engine.HandleEvent(ctx, flow.Event{
		UserID: c.Sender().ID,
		Kind:   flow.KindCommand,
		Action: flow.CommandHelp,
	})
	if err != nil {
		return err
	}
	return send(c, resp)
}

// Admin handles /admin. Access is enforced by the admin-only command
// middleware; this only renders the panel.
func (h *Handlers) Admin(c tele.Context) error {
	return send(c, h.panel.Open(c.Sender().ID))
}

// flowCallback builds a callback handler that forwards the action (and
// the callback payload) to the engine and edits the message in place.
func (h *Handlers) flowCallback(action string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := helpers.BuildContext(c)
		resp, err := h.engine.HandleEvent(ctx, flow.Event{
			UserID:  c.Sender().ID,
			Kind:    flow.KindButton,
			Action:  action,
			Payload: callbacks.CallbackPayload(c),
		})
		if err != nil {
			return err
		}
		return edit(c, resp)
	}
}

// adminCallback guards a panel action against non-admin senders.
func (h *Handlers) adminCallback(fn func(c tele.Context) flow.Response) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !h.isAdmin(c.Sender().ID) {
			return c.Respond(&tele.CallbackResponse{Text: "Not allowed"})
		}
		return edit(c, fn(c))
	}
}

// InProgress reports whether the sender's next text message belongs to
// an active dialogue (ID entry or admin broadcast input).
func (h *Handlers) InProgress(userID int64) bool {
	if h.isAdmin(userID) && h.panel.InProgress(userID) {
		return true
	}
	return h.engine.InProgress(userID)
}

// HandleText routes captured free text to the open dialogue.
func (h *Handlers) HandleText(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	userID := c.Sender().ID

	if h.isAdmin(userID) && h.panel.InProgress(userID) {
		return send(c, h.panel.HandleText(userID, c.Text()))
	}

	resp, err := h.engine.HandleEvent(ctx, flow.Event{
		UserID: userID,
		Kind:   flow.KindText,
		Text:   c.Text(),
	})
	if err != nil {
		return err
	}
	return send(c, resp)
}

// UnknownText answers text that matched no dialogue or command.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, h.unknownInput)
	}
}

// UnknownCallback answers callbacks with no registered handler.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
	}
}
