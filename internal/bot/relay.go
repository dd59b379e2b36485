package bot

import (
	"fmt"
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/rootzsu/servicebot/internal/bot/flow"
	"github.com/rootzsu/servicebot/internal/logger"
	"github.com/rootzsu/servicebot/internal/telegram/format"
	tghelpers "github.com/rootzsu/servicebot/internal/telegram/helpers"
)

type relayKey struct {
	ChatID    int64
	MessageID int
}

// Relay routes messages between users and admins. Every forwarded
// message is remembered by (admin chat, message id), so admin replies
// resolve the target user from the map instead of parsing message text.
type Relay struct {
	mu     sync.RWMutex
	routes map[relayKey]int64
}

// NewRelay constructs an empty relay table.
func NewRelay() *Relay {
	return &Relay{routes: make(map[relayKey]int64)}
}

// Track remembers which user a forwarded message belongs to.
func (r *Relay) Track(adminChatID int64, messageID int, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[relayKey{adminChatID, messageID}] = userID
}

// Resolve returns the user a forwarded message belongs to.
func (r *Relay) Resolve(adminChatID int64, messageID int) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.routes[relayKey{adminChatID, messageID}]
	return userID, ok
}

const (
	adminChatIntro = "Вы вошли в режим чата с администратором. " +
		"Напишите ваше сообщение, и оно будет переслано. " +
		"Для выхода из чата отправьте /cancel."
	adminChatForwarded = "Ваше сообщение отправлено администратору."
	adminChatLeft      = "Вы вышли из режима чата с администратором."
)

// actionContactAdmin switches the user into direct-chat mode.
func (a *App) actionContactAdmin(c tele.Context) error {
	userID := c.Sender().ID
	a.machine.Reset(userID)
	if _, err := a.machine.Fire(userID, flow.EventOpenAdminChat); err != nil {
		return a.showMainMenu(c, true)
	}
	return tghelpers.EditOrSendMD(c, adminChatIntro)
}

// fsmAdminChat forwards user text to every admin while direct-chat mode
// is active. Each delivered copy is tracked for reply routing.
func (a *App) fsmAdminChat(c tele.Context) error {
	userID := c.Sender().ID
	text := c.Text()

	if text == "" {
		return tghelpers.SendText(c, "Пожалуйста, отправьте текстовое сообщение.")
	}

	ctx := tghelpers.BuildContext(c)
	forwarded := fmt.Sprintf(
		"💬 *Сообщение от пользователя %s* (ID: `%d`):\n\n%s",
		userMention(c.Sender()), userID, escapeMD(text),
	)
	delivered := a.notifyAdmins(ctx, "relay.forward", forwarded, tele.ModeMarkdown)
	for _, d := range delivered {
		a.relay.Track(d.AdminID, d.Message.ID, userID)
	}

	return tghelpers.SendText(c, adminChatForwarded)
}

// handleAdminReply routes an admin's reply back to the original user.
// Non-reply admin text falls through to the menu hint.
func (a *App) handleAdminReply(c tele.Context) (bool, error) {
	if !a.cfg.Telegram.IsAdmin(c.Sender().ID) {
		return false, nil
	}
	replyTo := c.Message().ReplyTo
	if replyTo == nil {
		return false, nil
	}

	ctx := tghelpers.BuildContext(c)
	userID, ok := a.relay.Resolve(c.Chat().ID, replyTo.ID)
	if !ok {
		logger.Warn(ctx, "relay", "relay.reply",
			slog.String("status", "unroutable"),
			slog.Int("message_id", replyTo.ID),
		)
		return true, tghelpers.SendText(c,
			"Не удалось определить пользователя для ответа. "+
				"Убедитесь, что вы отвечаете на пересланное ботом сообщение.")
	}

	reply := fmt.Sprintf("✉️ *Ответ от администратора:*\n\n%s", escapeMD(c.Text()))
	if !a.notifyUser(ctx, userID, reply) {
		return true, tghelpers.SendText(c, "Ошибка при отправке сообщения пользователю.")
	}
	logger.Info(ctx, "relay", "relay.reply",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
	)
	return true, tghelpers.SendText(c, "✅ Ваш ответ отправлен пользователю.")
}

// escapeMD neutralizes markdown specials in text that originates from
// users or the catalog before it is embedded into a ModeMarkdown
// message. An unbalanced "*" or "_" would otherwise make Telegram
// reject the whole send.
func escapeMD(s string) string {
	escaped, err := format.EscapeMarkdown(s, format.MarkdownV1)
	if err != nil {
		return s
	}
	return escaped
}

// userMention builds a clickable mention. Names come from Telegram users
// and may contain markdown specials, so they are escaped first.
func userMention(u *tele.User) string {
	name := "пользователь"
	if u != nil && u.FirstName != "" {
		name = u.FirstName
	}
	name = escapeMD(name)
	if u == nil {
		return name
	}
	return fmt.Sprintf("[%s](tg://user?id=%d)", name, u.ID)
}
