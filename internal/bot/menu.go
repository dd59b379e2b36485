package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/rootzsu/servicebot/internal/bot/actions"
	"github.com/rootzsu/servicebot/internal/bot/flow"
	tghelpers "github.com/rootzsu/servicebot/internal/telegram/helpers"
	"github.com/rootzsu/servicebot/internal/telegram/keyboard"
)

// cmdStart registers the user and shows the main menu. It also resets
// any conversation in progress, so /start always recovers the bot.
func (a *App) cmdStart(c tele.Context) error {
	sender := c.Sender()
	ctx := tghelpers.BuildContext(c)

	username := ""
	if sender.Username != "" {
		username = sender.Username
	}
	if _, err := a.users.EnsureUser(ctx, sender.ID, username, sender.FirstName); err != nil {
		return err
	}

	a.machine.Reset(sender.ID)
	return a.showMainMenu(c, false)
}

// actionMainMenu returns the user to the main menu from any screen.
func (a *App) actionMainMenu(c tele.Context) error {
	a.machine.Reset(c.Sender().ID)
	return a.showMainMenu(c, true)
}

func (a *App) showMainMenu(c tele.Context, edit bool) error {
	sender := c.Sender()

	btn := func(text string, kind actions.Kind) keyboard.InlineBtn {
		unique, payload := actions.Encode(actions.Action{Kind: kind})
		return keyboard.InlineBtn{Text: text, Unique: unique, Data: payload}
	}
	buttons := []keyboard.InlineBtn{
		btn("📋 Прайс-лист", actions.KindPriceList),
		btn("🛒 Заказать услугу", actions.KindOrderService),
		btn("👤 Мой кабинет", actions.KindMyAccount),
		btn("💬 Связаться с админом", actions.KindContactAdmin),
	}
	if a.cfg.Telegram.IsAdmin(sender.ID) {
		buttons = append(buttons, btn("👑 Админ-панель", actions.KindAdminPanel))
	}
	markup := keyboard.InlineButtons(buttons)

	text := fmt.Sprintf("Добро пожаловать в *rootzsu*, %s!\n\nВыберите действие:", escapeMD(sender.FirstName))
	if edit {
		return tghelpers.EditOrSendMD(c, text, markup)
	}
	return tghelpers.SendMD(c, text, markup)
}

// actionPriceList renders the catalog with all three prices per service.
func (a *App) actionPriceList(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	services, err := a.catalog.List(ctx)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return tghelpers.EditOrSendMD(c, "Прайс-лист пока пуст.", backToMenuMarkup())
	}

	var b strings.Builder
	b.WriteString("*📋 НАШ ПРАЙС-ЛИСТ 📋*\n\n")
	for _, svc := range services {
		fmt.Fprintf(&b, "🔹 *%s*\n   _%s_\n   *Цена:* $%s | %s BTC | %d ⭐\n\n",
			escapeMD(svc.Name), escapeMD(svc.Description),
			svc.PriceUSD.String(), svc.PriceBTC.String(), svc.PriceStars,
		)
	}
	return tghelpers.EditOrSendMD(c, b.String(), backToMenuMarkup())
}

// actionMyAccount lists the user's orders with human-readable statuses.
func (a *App) actionMyAccount(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	list, err := a.orders.ListForUser(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return tghelpers.EditOrSendMD(c, "У вас пока нет заказов.", backToMenuMarkup())
	}

	var b strings.Builder
	b.WriteString("*👤 ВАШИ ЗАКАЗЫ 👤*\n\n")
	for _, o := range list {
		fmt.Fprintf(&b, "🔹 Заказ `#%d` - *%s*\n   Статус: _%s_\n",
			o.ID, escapeMD(o.ServiceName), o.Status.Human(),
		)
	}
	return tghelpers.EditOrSendMD(c, b.String(), backToMenuMarkup())
}

// cmdCancel aborts whatever conversation is in progress.
func (a *App) cmdCancel(c tele.Context) error {
	userID := c.Sender().ID
	inAdminChat := a.machine.Current(userID) == flow.AdminChat
	a.machine.Reset(userID)
	if inAdminChat {
		if err := tghelpers.SendText(c, adminChatLeft); err != nil {
			return err
		}
	}
	return a.showMainMenu(c, false)
}

// handleText is the fallback for plain text outside any conversation.
// Admin replies to relayed messages are routed first.
func (a *App) handleText(c tele.Context) error {
	if handled, err := a.handleAdminReply(c); handled {
		return err
	}
	return tghelpers.SendText(c, "Используйте меню или команду /start.")
}

func backToMenuMarkup() *tele.ReplyMarkup {
	unique, payload := actions.Encode(actions.Action{Kind: actions.KindMainMenu})
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "⬅️ Назад в меню", Unique: unique, Data: payload},
	})
}
