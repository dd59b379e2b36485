package bot

import (
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/rootzsu/servicebot/internal/bot/actions"
	"github.com/rootzsu/servicebot/internal/bot/flow"
	"github.com/rootzsu/servicebot/internal/models"
	"github.com/rootzsu/servicebot/internal/orders"
	tghelpers "github.com/rootzsu/servicebot/internal/telegram/helpers"
	"github.com/rootzsu/servicebot/internal/telegram/keyboard"
)

const (
	tempKeyServiceID = "service_id"
	tempKeyOrderID   = "order_id"

	paymentWalletAddress = "UQCKtm0RoDtPCyObq18G-FKehsDPaVIiVX5Z8q78P_XfmTUh"

	staleSessionText  = "Сессия устарела. Пожалуйста, начните процесс заказа заново."
	proofAcceptedText = "✅ Спасибо! Ваше подтверждение получено и отправлено на проверку администратору.\n" +
		"Вы получите уведомление, как только ваш заказ будет одобрен."
)

// actionOrderService starts (or restarts) the order conversation with
// the service picker.
func (a *App) actionOrderService(c tele.Context) error {
	userID := c.Sender().ID
	ctx := tghelpers.BuildContext(c)

	services, err := a.catalog.List(ctx)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return tghelpers.EditOrSendMD(c,
			"Извините, в данный момент нет доступных услуг для заказа.", backToMenuMarkup())
	}

	// The button doubles as a "back to services" escape from deeper
	// steps, so the conversation restarts from scratch.
	a.machine.Reset(userID)
	if _, err := a.machine.Fire(userID, flow.EventStartOrder); err != nil {
		return err
	}

	buttons := make([]keyboard.InlineBtn, 0, len(services)+1)
	for _, svc := range services {
		unique, payload := actions.Encode(actions.Action{Kind: actions.KindSelectService, ServiceID: svc.ID})
		buttons = append(buttons, keyboard.InlineBtn{Text: svc.Name, Unique: unique, Data: payload})
	}
	cancelUnique, cancelPayload := actions.Encode(actions.Action{Kind: actions.KindCancelOrder})
	buttons = append(buttons, keyboard.InlineBtn{Text: "❌ Отмена", Unique: cancelUnique, Data: cancelPayload})

	return tghelpers.EditOrSendMD(c,
		"Пожалуйста, выберите услугу из списка:", keyboard.InlineButtons(buttons))
}

// actionSelectService shows the payment options for the chosen service.
func (a *App) actionSelectService(c tele.Context, act actions.Action) error {
	userID := c.Sender().ID
	ctx := tghelpers.BuildContext(c)

	if _, err := a.machine.Fire(userID, flow.EventServiceChosen); err != nil {
		return a.recoverStaleSession(c)
	}

	svc, err := a.catalog.Get(ctx, act.ServiceID)
	if err != nil {
		a.machine.Reset(userID)
		return tghelpers.EditOrSendMD(c, staleSessionText, backToMenuMarkup())
	}
	a.sessions.SetTemp(userID, tempKeyServiceID, svc.ID)

	payBtn := func(text string, method models.PaymentMethod) keyboard.InlineBtn {
		unique, payload := actions.Encode(actions.Action{
			Kind: actions.KindPay, Method: method, ServiceID: svc.ID,
		})
		return keyboard.InlineBtn{Text: text, Unique: unique, Data: payload}
	}
	backUnique, backPayload := actions.Encode(actions.Action{Kind: actions.KindOrderService})
	markup := keyboard.InlineButtons([]keyboard.InlineBtn{
		payBtn(fmt.Sprintf("💵 USD ($%s)", svc.PriceUSD.String()), models.PaymentUSD),
		payBtn(fmt.Sprintf("🪙 BTC (%s)", svc.PriceBTC.String()), models.PaymentBTC),
		payBtn(fmt.Sprintf("⭐ Stars (%d)", svc.PriceStars), models.PaymentStars),
		{Text: "⬅️ Назад к услугам", Unique: backUnique, Data: backPayload},
	})

	text := fmt.Sprintf("Вы выбрали: *%s*\n\nВыберите способ оплаты:", escapeMD(svc.Name))
	return tghelpers.EditOrSendMD(c, text, markup)
}

// actionPay creates the order and sends payment instructions.
func (a *App) actionPay(c tele.Context, act actions.Action) error {
	userID := c.Sender().ID
	ctx := tghelpers.BuildContext(c)

	if _, err := a.machine.Fire(userID, flow.EventPaymentChosen); err != nil {
		return a.recoverStaleSession(c)
	}

	order, err := a.orders.Place(ctx, userID, act.ServiceID, act.Method)
	if err != nil {
		a.machine.Reset(userID)
		if errors.Is(err, orders.ErrNotFound) {
			return tghelpers.EditOrSendMD(c, staleSessionText, backToMenuMarkup())
		}
		return err
	}
	a.sessions.SetTemp(userID, tempKeyOrderID, order.ID)

	text := fmt.Sprintf(
		"Ваш заказ `#%d` создан.\n\n%s\n\nПосле оплаты, пожалуйста, *отправьте скриншот или фото чека* в этот чат для подтверждения.",
		order.ID, paymentInstructions(act.Method),
	)
	return tghelpers.EditOrSendMD(c, text)
}

// fsmUploadProof handles the proof photo while an order awaits payment.
func (a *App) fsmUploadProof(c tele.Context) error {
	userID := c.Sender().ID
	ctx := tghelpers.BuildContext(c)

	photo := c.Message().Photo
	if photo == nil {
		return tghelpers.SendText(c, "Пожалуйста, отправьте скриншот или фото чека.")
	}

	orderID, ok := a.sessions.GetTempInt64(userID, tempKeyOrderID)
	if !ok {
		a.machine.Reset(userID)
		return tghelpers.SendText(c, "Произошла ошибка. Пожалуйста, начните процесс заказа заново.")
	}

	res, err := a.orders.AttachProof(ctx, orderID, photo.FileID)
	if err != nil {
		a.machine.Reset(userID)
		if errors.Is(err, orders.ErrNotFound) || errors.Is(err, orders.ErrIllegalTransition) {
			return tghelpers.SendText(c, "Произошла ошибка. Пожалуйста, начните процесс заказа заново.")
		}
		return err
	}

	if _, err := a.machine.Fire(userID, flow.EventProofUploaded); err != nil {
		a.machine.Reset(userID)
	}
	a.sessions.ClearTemp(userID, tempKeyOrderID)
	a.sessions.ClearTemp(userID, tempKeyServiceID)

	if err := tghelpers.SendText(c, proofAcceptedText); err != nil {
		return err
	}

	a.notifyProofSubmitted(ctx, c.Sender(), res, photo.FileID)
	return nil
}

// actionCancelOrder aborts the order conversation. An order already
// created keeps its pending_payment row; only the conversation ends.
func (a *App) actionCancelOrder(c tele.Context) error {
	a.machine.Reset(c.Sender().ID)
	if err := tghelpers.EditOrSendMD(c, "Заказ отменен."); err != nil {
		return err
	}
	return a.showMainMenu(c, false)
}

func (a *App) recoverStaleSession(c tele.Context) error {
	a.machine.Reset(c.Sender().ID)
	return tghelpers.EditOrSendMD(c, staleSessionText, backToMenuMarkup())
}

func paymentInstructions(method models.PaymentMethod) string {
	switch method {
	case models.PaymentStars:
		return "Пожалуйста, используйте встроенную функцию Telegram для отправки Stars."
	default:
		return fmt.Sprintf("Пожалуйста, переведите оплату на `%s`.", paymentWalletAddress)
	}
}
