package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/rootzsu/servicebot/internal/bot/actions"
	"github.com/rootzsu/servicebot/internal/logger"
	"github.com/rootzsu/servicebot/internal/models"
	"github.com/rootzsu/servicebot/internal/orders"
	tghelpers "github.com/rootzsu/servicebot/internal/telegram/helpers"
	"github.com/rootzsu/servicebot/internal/telegram/keyboard"
)

// notifyProofSubmitted fans the payment proof out to every admin. Each
// admin gets the photo with an approve/decline keyboard; the deliveries
// are tracked so replies to the notification route back to the buyer.
func (a *App) notifyProofSubmitted(ctx context.Context, buyer *tele.User, res orders.ProofResult, fileID string) {
	caption := fmt.Sprintf(
		"🔔 *Новое подтверждение оплаты!*\n\nЗаказ: `#%d`\nПользователь: %s\nУслуга: *%s*",
		res.Order.ID, userMention(buyer), escapeMD(res.ServiceName),
	)
	approveUnique, approvePayload := actions.Encode(actions.Action{Kind: actions.KindApprove, OrderID: res.Order.ID})
	declineUnique, declinePayload := actions.Encode(actions.Action{Kind: actions.KindDecline, OrderID: res.Order.ID})
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Одобрить", Unique: approveUnique, Data: approvePayload},
		{Text: "❌ Отклонить", Unique: declineUnique, Data: declinePayload},
	})

	photo := &tele.Photo{File: tele.File{FileID: fileID}, Caption: caption}
	delivered := a.notifyAdmins(ctx, "order.proof_notify", photo, markup, tele.ModeMarkdown)
	for _, d := range delivered {
		a.relay.Track(d.AdminID, d.Message.ID, buyer.ID)
	}
}

func (a *App) actionApprove(c tele.Context, act actions.Action) error {
	return a.decide(c, act.OrderID, true)
}

func (a *App) actionDecline(c tele.Context, act actions.Action) error {
	return a.decide(c, act.OrderID, false)
}

// decide records the admin's verdict and notifies the buyer. The
// decision is persisted first: a failed buyer notification never rolls
// it back. The notification message itself is annotated with the
// outcome and loses its buttons either way.
func (a *App) decide(c tele.Context, orderID int64, approve bool) error {
	ctx := tghelpers.BuildContext(c)

	decision, err := a.orders.Decide(ctx, orderID, approve)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return a.annotateDecision(c,
			fmt.Sprintf("ОШИБКА: заказ #%d не найден в базе данных.", orderID))
	case errors.Is(err, orders.ErrIllegalTransition):
		_ = c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("Заказ #%d уже обработан.", orderID)})
		return nil
	case err != nil:
		return err
	}

	delivered := a.notifyUser(ctx, decision.UserID, decisionText(decision))
	logger.Info(ctx, "relay", "order.decision_notify",
		slog.Int64("order_id", decision.OrderID),
		slog.Int64("user_id", decision.UserID),
		slog.String("to_status", string(decision.Status)),
		slog.Bool("delivered", delivered),
	)

	return a.annotateDecision(c, fmt.Sprintf("Статус обновлен на: %s", decision.Status.Human()))
}

// annotateDecision appends the outcome to the admin notification and
// removes its keyboard, so the same order cannot be decided twice from
// a stale button.
func (a *App) annotateDecision(c tele.Context, note string) error {
	msg := c.Message()
	if msg == nil || msg.Caption == "" {
		return tghelpers.SendText(c, note)
	}
	caption := fmt.Sprintf("%s\n\n---\n*%s*", msg.Caption, note)
	return c.EditCaption(caption, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
}

func decisionText(d orders.Decision) string {
	if d.Status == models.StatusApproved {
		return fmt.Sprintf(
			"✅ Ваш заказ `#%d` на услугу *%s* был *одобрен*! Администратор скоро свяжется с вами для уточнения деталей.",
			d.OrderID, escapeMD(d.ServiceName),
		)
	}
	return fmt.Sprintf(
		"❌ К сожалению, ваш заказ `#%d` на услугу *%s* был *отклонен*. Пожалуйста, свяжитесь с администратором для выяснения причин.",
		d.OrderID, escapeMD(d.ServiceName),
	)
}
