package bot

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/rootzsu/servicebot/internal/logger"
)

// Notifier delivers bot-initiated messages outside of an update handler,
// such as admin fan-outs and order status notifications.
type Notifier interface {
	Send(chatID int64, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type teleNotifier struct {
	bot *tele.Bot
}

// NewTeleNotifier wraps a running bot as a Notifier.
func NewTeleNotifier(bot *tele.Bot) Notifier {
	return teleNotifier{bot: bot}
}

func (n teleNotifier) Send(chatID int64, what interface{}, opts ...interface{}) (*tele.Message, error) {
	return n.bot.Send(tele.ChatID(chatID), what, opts...)
}

type adminDelivery struct {
	AdminID int64
	Message *tele.Message
}

// notifyAdmins delivers the same payload to every configured admin.
// A failed delivery is logged and skipped; the fan-out never aborts.
func (a *App) notifyAdmins(ctx context.Context, event string, what interface{}, opts ...interface{}) []adminDelivery {
	if a.notifier == nil {
		logger.Warn(ctx, "relay", event,
			slog.String("status", "skip"),
			slog.String("reason", "notifier_not_ready"),
		)
		return nil
	}

	delivered := make([]adminDelivery, 0, len(a.cfg.Telegram.AdminIDs))
	for _, adminID := range a.cfg.Telegram.AdminIDs {
		msg, err := a.notifier.Send(adminID, what, opts...)
		if err != nil {
			logger.Error(ctx, "relay", event,
				slog.Int64("chat_id", adminID),
				slog.String("err", err.Error()),
			)
			continue
		}
		delivered = append(delivered, adminDelivery{AdminID: adminID, Message: msg})
	}
	logger.Info(ctx, "relay", event,
		slog.Int("admins", len(a.cfg.Telegram.AdminIDs)),
		slog.Int("delivered", len(delivered)),
	)
	return delivered
}

// notifyUser sends a direct message to a user, logging instead of
// failing when delivery is impossible (blocked bot, deleted chat).
func (a *App) notifyUser(ctx context.Context, userID int64, text string) bool {
	if a.notifier == nil {
		return false
	}
	if _, err := a.notifier.Send(userID, text, tele.ModeMarkdown); err != nil {
		logger.Warn(ctx, "relay", "user.notify",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return true
}
