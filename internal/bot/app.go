// Package bot assembles the commerce bot on top of the telegram core:
// menu and catalog screens, the order conversation, the admin approval
// flow and the direct-chat relay.
package bot

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/rootzsu/servicebot/internal/bot/actions"
	"github.com/rootzsu/servicebot/internal/bot/flow"
	"github.com/rootzsu/servicebot/internal/catalog"
	"github.com/rootzsu/servicebot/internal/config"
	"github.com/rootzsu/servicebot/internal/logger"
	"github.com/rootzsu/servicebot/internal/orders"
	tg "github.com/rootzsu/servicebot/internal/telegram"
	"github.com/rootzsu/servicebot/internal/telegram/callbacks"
	"github.com/rootzsu/servicebot/internal/telegram/commands"
	tghelpers "github.com/rootzsu/servicebot/internal/telegram/helpers"
	"github.com/rootzsu/servicebot/internal/telegram/router"
	"github.com/rootzsu/servicebot/internal/telegram/state"
	"github.com/rootzsu/servicebot/internal/users"
)

// App wires the domain services into Telegram handlers.
type App struct {
	cfg      *config.Config
	users    *users.Service
	catalog  *catalog.Service
	orders   *orders.Service
	sessions state.Manager
	machine  *flow.Machine
	relay    *Relay
	notifier Notifier
}

// NewApp constructs the bot application.
func NewApp(cfg *config.Config, userSvc *users.Service, catalogSvc *catalog.Service, orderSvc *orders.Service, sessions state.Manager) *App {
	return &App{
		cfg:      cfg,
		users:    userSvc,
		catalog:  catalogSvc,
		orders:   orderSvc,
		sessions: sessions,
		machine:  flow.NewMachine(sessions),
		relay:    NewRelay(),
	}
}

// SetNotifier installs the outbound sender once the bot is running.
func (a *App) SetNotifier(n Notifier) {
	a.notifier = n
}

// action adapts a typed handler to the registry: the raw callback is
// decoded exactly once here, and malformed data never reaches handlers.
func (a *App) action(h func(tele.Context, actions.Action) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		unique := callbacks.CallbackKey(c)
		payload := callbacks.CallbackPayload(c)
		act, err := actions.Decode(unique, payload)
		if err != nil {
			ctx := tghelpers.BuildContext(c)
			reason := "bad_payload"
			if errors.Is(err, actions.ErrUnknownAction) {
				reason = "unknown_action"
			}
			logger.Warn(ctx, "tg", "callback.rejected",
				slog.String("cb_key", unique),
				slog.String("reason", reason),
			)
			_ = c.Respond(&tele.CallbackResponse{Text: "Недопустимое действие."})
			return nil
		}
		return h(c, act)
	}
}

// plain adapts a payload-free handler to the typed boundary.
func (a *App) plain(h tele.HandlerFunc) tele.HandlerFunc {
	return a.action(func(c tele.Context, _ actions.Action) error {
		return h(c)
	})
}

// Register binds commands, callbacks and conversation states.
func (a *App) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.cmdStart,
		Description: "Главное меню",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.cmdCancel,
		Description: "Отменить текущее действие",
		Hidden:      true,
	})

	handlers := map[actions.Kind]tele.HandlerFunc{
		actions.KindMainMenu:     a.plain(a.actionMainMenu),
		actions.KindPriceList:    a.plain(a.actionPriceList),
		actions.KindOrderService: a.plain(a.actionOrderService),
		actions.KindMyAccount:    a.plain(a.actionMyAccount),
		actions.KindContactAdmin: a.plain(a.actionContactAdmin),
		actions.KindAdminPanel:   a.plain(a.actionAdminPanel),
		actions.KindAdminUsers:   a.plain(a.actionAdminUsers),
		actions.KindAdminOrders:  a.plain(a.actionAdminOrders),
		actions.KindCancelOrder:  a.plain(a.actionCancelOrder),

		actions.KindSelectService: a.action(a.actionSelectService),
		actions.KindPay:           a.action(a.actionPay),
		actions.KindApprove:       a.action(a.actionApprove),
		actions.KindDecline:       a.action(a.actionDecline),
	}
	for _, kind := range actions.Uniques() {
		if h, ok := handlers[kind]; ok {
			_ = reg.RegisterCallback(string(kind), h)
		}
	}

	reg.SetTextFallback(a.handleText)

	state.RegisterHandler(flow.UploadingProof, a.fsmUploadProof)
	state.RegisterHandler(flow.AdminChat, a.fsmAdminChat)
}

// Routes builds the full route table for RunTelegram.
func (a *App) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminIDs: a.cfg.Telegram.AdminIDs,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.sessions, reg, router.TextOptions{
		UnknownPhoto: func(c tele.Context) error {
			return tghelpers.SendText(c, "Фото сейчас не ожидается. Используйте меню или команду /start.")
		},
	})...)
	return routes
}

// RunOptions assembles everything RunTelegram needs to serve the bot.
func (a *App) RunOptions(reg *tg.Registry) tg.RunOptions {
	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      a.Routes(reg),
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.SetNotifier(NewTeleNotifier(rt.Bot))
			logger.Info(ctx, "tg", "bot.ready",
				slog.Int("admins", len(a.cfg.Telegram.AdminIDs)),
			)
			return nil
		},
	}
}
