// Package app assembles the promo bot: configuration, storage, the
// flow engine, the admin panel, and the Telegram runtime options.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/promokod/promobot/bot/admin"
	botconfig "github.com/promokod/promobot/bot/config"
	"github.com/promokod/promobot/bot/flow"
	"github.com/promokod/promobot/bot/handlers"
	"github.com/promokod/promobot/bot/session"
	"github.com/promokod/promobot/bot/subscription"
	"github.com/promokod/promobot/bot/users"
	"github.com/promokod/promobot/core/bootstrap"
	"github.com/promokod/promobot/core/cmd"
	tg "github.com/promokod/promobot/core/telegram"
	"github.com/promokod/promobot/core/telegram/router"
	"github.com/promokod/promobot/core/telegram/sender"
	"github.com/promokod/promobot/core/telegram/ui"
)

// App is the assembled bot, ready to produce Telegram run options.
type App struct {
	cfg        *botconfig.Config
	db         *sqlx.DB
	client     *telegramClient
	dispatcher *sender.Dispatcher
	handlers   *handlers.Handlers
}

// LoadConfig adapts the config loader to the runner's carrier interface.
func LoadConfig(path string) (cmd.ConfigCarrier, error) {
	return botconfig.Load(path)
}

// Bootstrap initializes infrastructure and builds the application graph.
func Bootstrap(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*botconfig.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	registry := users.NewService(users.NewRepository(res.DB))

	// The bot client exists only once the runtime starts; the checker
	// and broadcaster go through a late-bound wrapper.
	client := &telegramClient{}
	dispatcher := sender.NewDispatcher(sender.Options{})

	engine, err := flow.NewEngine(
		cfg.FlowConfig(),
		session.NewMemory(),
		subscription.New(client),
		flow.WithTransitionHook(registry.FlowHook()),
	)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}

	panel := admin.NewPanel(registry, admin.NewBroadcaster(client, dispatcher, 0))

	h := handlers.New(handlers.Options{
		Engine:       engine,
		Panel:        panel,
		Users:        registry,
		AdminIDs:     cfg.Bot.AdminIDs,
		UnknownInput: cfg.Bot.Messages.UnknownInput,
	})

	return &App{
		cfg:        cfg,
		db:         res.DB,
		client:     client,
		dispatcher: dispatcher,
		handlers:   h,
	}, nil
}

// TelegramRunOptions wires routes, middlewares, and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := a.handlers.Registry()
	var fallback ui.FallbackProvider = a.handlers

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminIDs: a.cfg.Bot.AdminIDs,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: fallback.UnknownCallback(),
	}))
	routes = append(routes, router.TextRoutes(a.handlers, reg, router.TextOptions{
		UnknownText: fallback.UnknownText(),
	})...)

	return tg.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Dispatcher:  a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.client.bind(rt.Bot)
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			return a.db.Close()
		},
	}, nil
}
