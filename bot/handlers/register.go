package handlers

import (
	tele "gopkg.in/telebot.v4"

	"github.com/promokod/promobot/bot/admin"
	"github.com/promokod/promobot/bot/flow"
	tg "github.com/promokod/promobot/core/telegram"
	"github.com/promokod/promobot/core/telegram/commands"
	"github.com/promokod/promobot/core/telegram/helpers"
)

// Registry wires every command and callback into a fresh registry.
func (h *Handlers) Registry() *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Start the bot",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.Help,
		Description: "How the bot works",
	})
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     h.Admin,
		Description: "Admin panel",
		AdminOnly:   true,
		Hidden:      true,
	})

	flowActions := []string{
		flow.ActionCheckSubscription,
		flow.ActionSelectApp,
		flow.ActionNextStep,
		flow.ActionGenerateCode,
		flow.ActionBackToMain,
		flow.ActionHelp,
	}
	for _, action := range flowActions {
		_ = reg.RegisterCallback(action, h.flowCallback(action))
	}

	_ = reg.RegisterCallback(admin.ActionBroadcast, h.adminCallback(func(c tele.Context) flow.Response {
		return h.panel.StartBroadcast(c.Sender().ID)
	}))
	_ = reg.RegisterCallback(admin.ActionStats, h.adminCallback(func(c tele.Context) flow.Response {
		return h.panel.StatsText(helpers.BuildContext(c))
	}))
	_ = reg.RegisterCallback(admin.ActionConfirmBroadcast, h.adminCallback(func(c tele.Context) flow.Response {
		return h.panel.Confirm(helpers.BuildContext(c), c.Sender().ID)
	}))
	_ = reg.RegisterCallback(admin.ActionCancelBroadcast, h.adminCallback(func(c tele.Context) flow.Response {
		return h.panel.Cancel(c.Sender().ID)
	}))
	_ = reg.RegisterCallback(admin.ActionClose, h.adminCallback(func(c tele.Context) flow.Response {
		return h.panel.Close(c.Sender().ID)
	}))

	reg.SetCallbackNotFound(h.UnknownCallback())
	reg.SetTextFallback(h.UnknownText())
	return reg
}
