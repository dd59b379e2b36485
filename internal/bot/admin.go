package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/rootzsu/servicebot/internal/bot/actions"
	tghelpers "github.com/rootzsu/servicebot/internal/telegram/helpers"
	"github.com/rootzsu/servicebot/internal/telegram/keyboard"
)

// requireAdmin rejects the callback with an alert when the sender is
// not a configured admin. Admin actions are never silently ignored.
func (a *App) requireAdmin(c tele.Context) bool {
	if a.cfg.Telegram.IsAdmin(c.Sender().ID) {
		return true
	}
	_ = c.Respond(&tele.CallbackResponse{Text: "У вас нет доступа.", ShowAlert: true})
	return false
}

func (a *App) actionAdminPanel(c tele.Context) error {
	if !a.requireAdmin(c) {
		return nil
	}

	btn := func(text string, kind actions.Kind) keyboard.InlineBtn {
		unique, payload := actions.Encode(actions.Action{Kind: kind})
		return keyboard.InlineBtn{Text: text, Unique: unique, Data: payload}
	}
	markup := keyboard.InlineButtons([]keyboard.InlineBtn{
		btn("👥 Все пользователи", actions.KindAdminUsers),
		btn("📦 Все заказы", actions.KindAdminOrders),
		btn("⬅️ Назад в меню", actions.KindMainMenu),
	})
	return tghelpers.EditOrSendMD(c, "👑 *Админ-панель*", markup)
}

func (a *App) actionAdminUsers(c tele.Context) error {
	if !a.requireAdmin(c) {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	list, err := a.users.List(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("*👥 Список пользователей:*\n\n")
	for _, u := range list {
		name := u.FirstName
		if name == "" {
			name = "N/A"
		}
		username := "N/A"
		if u.Username != nil && *u.Username != "" {
			username = *u.Username
		}
		fmt.Fprintf(&b, "ID: `%d` - %s (@%s)\n", u.ID, name, username)
	}
	return tghelpers.EditOrSendMD(c, b.String(), backToAdminMarkup())
}

func (a *App) actionAdminOrders(c tele.Context) error {
	if !a.requireAdmin(c) {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	list, err := a.orders.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return tghelpers.EditOrSendMD(c, "Заказов пока нет.", backToAdminMarkup())
	}

	var b strings.Builder
	b.WriteString("*📦 Список всех заказов:*\n\n")
	for _, o := range list {
		fmt.Fprintf(&b, "🔹 *Заказ `#%d`* | %s\n   Услуга: *%s*\n   Статус: _%s_\n\n",
			o.ID, orderUserDisplay(o.UserFirstName, o.UserUsername, o.UserID),
			o.ServiceName, o.Status.Human(),
		)
	}
	return tghelpers.EditOrSendMD(c, b.String(), backToAdminMarkup())
}

func orderUserDisplay(firstName string, username *string, userID int64) string {
	var parts []string
	if firstName != "" {
		parts = append(parts, firstName)
	}
	if username != nil && *username != "" {
		parts = append(parts, "(@"+*username+")")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("ID: %d", userID)
	}
	return strings.Join(parts, " ")
}

func backToAdminMarkup() *tele.ReplyMarkup {
	unique, payload := actions.Encode(actions.Action{Kind: actions.KindAdminPanel})
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "⬅️ Назад в админку", Unique: unique, Data: payload},
	})
}
