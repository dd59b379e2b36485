package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"

	"github.com/rootzsu/servicebot/internal/bot/actions"
	"github.com/rootzsu/servicebot/internal/catalog"
	"github.com/rootzsu/servicebot/internal/config"
	"github.com/rootzsu/servicebot/internal/models"
	"github.com/rootzsu/servicebot/internal/orders"
	"github.com/rootzsu/servicebot/internal/storage"
	"github.com/rootzsu/servicebot/internal/telegram/state"
	"github.com/rootzsu/servicebot/internal/users"
)

// --- storage stubs ---

type fixture struct {
	users    map[int64]models.User
	services map[int64]models.Service
	orders   map[int64]*models.Order
	nextID   int64
}

func newFixture() *fixture {
	return &fixture{
		users:    make(map[int64]models.User),
		services: make(map[int64]models.Service),
		orders:   make(map[int64]*models.Order),
		nextID:   1,
	}
}

type userStoreStub struct{ f *fixture }

func (s userStoreStub) GetByID(_ context.Context, id int64) (models.User, error) {
	u, ok := s.f.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return u, nil
}

func (s userStoreStub) GetByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range s.f.users {
		if u.Username != nil && *u.Username == username {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (s userStoreStub) Create(_ context.Context, u models.User) error {
	s.f.users[u.ID] = u
	return nil
}

func (s userStoreStub) SetPasswordHash(_ context.Context, id int64, hash string) error {
	u, ok := s.f.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.PasswordHash = &hash
	s.f.users[id] = u
	return nil
}

func (s userStoreStub) List(context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range s.f.users {
		out = append(out, u)
	}
	return out, nil
}

type catalogStoreStub struct{ f *fixture }

func (s catalogStoreStub) List(context.Context) ([]models.Service, error) {
	var out []models.Service
	for _, svc := range s.f.services {
		out = append(out, svc)
	}
	return out, nil
}

func (s catalogStoreStub) GetByID(_ context.Context, id int64) (models.Service, error) {
	svc, ok := s.f.services[id]
	if !ok {
		return models.Service{}, storage.ErrServiceNotFound
	}
	return svc, nil
}

func (s catalogStoreStub) Count(context.Context) (int, error) { return len(s.f.services), nil }

func (s catalogStoreStub) InsertBatch(_ context.Context, services []models.Service) error {
	for _, svc := range services {
		svc.ID = s.f.nextID
		s.f.nextID++
		s.f.services[svc.ID] = svc
	}
	return nil
}

func (s catalogStoreStub) Update(_ context.Context, svc models.Service) error {
	if _, ok := s.f.services[svc.ID]; !ok {
		return storage.ErrServiceNotFound
	}
	s.f.services[svc.ID] = svc
	return nil
}

type orderStoreStub struct{ f *fixture }

func (s orderStoreStub) Create(_ context.Context, userID, serviceID int64, method models.PaymentMethod) (models.Order, error) {
	id := s.f.nextID
	s.f.nextID++
	row := &models.Order{ID: id, UserID: userID, ServiceID: serviceID, PaymentMethod: method, Status: models.StatusPendingPayment}
	s.f.orders[id] = row
	return *row, nil
}

func (s orderStoreStub) GetByID(_ context.Context, id int64) (models.Order, error) {
	row, ok := s.f.orders[id]
	if !ok {
		return models.Order{}, storage.ErrOrderNotFound
	}
	return *row, nil
}

func (s orderStoreStub) GetByIDWithRefs(ctx context.Context, id int64) (models.OrderWithRefs, error) {
	row, err := s.GetByID(ctx, id)
	if err != nil {
		return models.OrderWithRefs{}, err
	}
	return models.OrderWithRefs{
		Order:         row,
		ServiceName:   s.f.services[row.ServiceID].Name,
		UserFirstName: s.f.users[row.UserID].FirstName,
	}, nil
}

func (s orderStoreStub) UpdateStatus(_ context.Context, id int64, from, to models.OrderStatus) error {
	row, ok := s.f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	if row.Status != from {
		return storage.ErrStatusConflict
	}
	row.Status = to
	return nil
}

func (s orderStoreStub) AttachProof(_ context.Context, id int64, fileID string) error {
	row, ok := s.f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	if row.Status != models.StatusPendingPayment {
		return storage.ErrStatusConflict
	}
	row.PaymentProof = &fileID
	row.Status = models.StatusPendingApproval
	return nil
}

func (s orderStoreStub) ListByUser(_ context.Context, userID int64) ([]models.OrderWithRefs, error) {
	var out []models.OrderWithRefs
	for _, row := range s.f.orders {
		if row.UserID == userID {
			out = append(out, models.OrderWithRefs{Order: *row, ServiceName: s.f.services[row.ServiceID].Name})
		}
	}
	return out, nil
}

func (s orderStoreStub) ListAll(context.Context) ([]models.OrderWithRefs, error) {
	var out []models.OrderWithRefs
	for _, row := range s.f.orders {
		out = append(out, models.OrderWithRefs{Order: *row, ServiceName: s.f.services[row.ServiceID].Name})
	}
	return out, nil
}

// --- notifier stub ---

type sentMessage struct {
	ChatID int64
	What   interface{}
	Opts   []interface{}
}

type notifierStub struct {
	sent   []sentMessage
	nextID int
	failTo map[int64]bool
}

func (n *notifierStub) Send(chatID int64, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if n.failTo[chatID] {
		return nil, errors.New("telegram: Forbidden: bot was blocked by the user")
	}
	n.nextID++
	n.sent = append(n.sent, sentMessage{ChatID: chatID, What: what, Opts: opts})
	return &tele.Message{ID: n.nextID}, nil
}

func (n *notifierStub) sentTo(chatID int64) []sentMessage {
	var out []sentMessage
	for _, m := range n.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// --- tele.Context stub ---

type ctxStub struct {
	tele.Context

	sender *tele.User
	chat   *tele.Chat
	msg    *tele.Message
	cb     *tele.Callback

	kv       map[string]interface{}
	sent     []string
	captions []string
	responds []*tele.CallbackResponse
}

func newCtxStub(sender *tele.User) *ctxStub {
	return &ctxStub{
		sender: sender,
		chat:   &tele.Chat{ID: sender.ID},
		kv:     make(map[string]interface{}),
	}
}

func (c *ctxStub) Sender() *tele.User       { return c.sender }
func (c *ctxStub) Chat() *tele.Chat         { return c.chat }
func (c *ctxStub) Message() *tele.Message   { return c.msg }
func (c *ctxStub) Callback() *tele.Callback { return c.cb }
func (c *ctxStub) Update() tele.Update      { return tele.Update{ID: 1} }

func (c *ctxStub) Text() string {
	if c.msg == nil {
		return ""
	}
	return c.msg.Text
}

func (c *ctxStub) Get(key string) interface{}      { return c.kv[key] }
func (c *ctxStub) Set(key string, val interface{}) { c.kv[key] = val }

func (c *ctxStub) Send(what interface{}, _ ...interface{}) error {
	c.sent = append(c.sent, fmt.Sprint(what))
	return nil
}

func (c *ctxStub) EditOrSend(what interface{}, _ ...interface{}) error {
	return c.Send(what)
}

func (c *ctxStub) EditCaption(caption string, _ ...interface{}) error {
	c.captions = append(c.captions, caption)
	return nil
}

func (c *ctxStub) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) == 0 {
		c.responds = append(c.responds, &tele.CallbackResponse{})
		return nil
	}
	c.responds = append(c.responds, resp...)
	return nil
}

func (c *ctxStub) lastSent(t *testing.T) string {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return c.sent[len(c.sent)-1]
}

// --- fixtures ---

func newTestApp(adminIDs ...int64) (*App, *fixture, *notifierStub) {
	f := newFixture()
	f.users[777] = models.User{ID: 777, FirstName: "Иван"}
	f.services[1] = models.Service{ID: 1, Name: "Установка root-прав", PriceStars: 100}

	cfg := &config.Config{Telegram: config.TelegramConfig{AdminIDs: adminIDs}}
	app := NewApp(cfg,
		users.NewService(userStoreStub{f}),
		catalog.NewService(catalogStoreStub{f}),
		orders.NewService(userStoreStub{f}, catalogStoreStub{f}, orderStoreStub{f}),
		state.NewMemoryManager(),
	)
	notifier := &notifierStub{failTo: make(map[int64]bool)}
	app.SetNotifier(notifier)
	return app, f, notifier
}

func pendingApprovalOrder(f *fixture) *models.Order {
	id := f.nextID
	f.nextID++
	proof := "proof-file"
	row := &models.Order{
		ID: id, UserID: 777, ServiceID: 1,
		PaymentMethod: models.PaymentStars,
		Status:        models.StatusPendingApproval,
		PaymentProof:  &proof,
	}
	f.orders[id] = row
	return row
}

// --- tests ---

func TestProofFanOutNotifiesEveryAdmin(t *testing.T) {
	app, _, notifier := newTestApp(10, 20)

	buyer := &tele.User{ID: 777, FirstName: "Иван"}
	res := orders.ProofResult{
		Order:       models.Order{ID: 5, UserID: 777, Status: models.StatusPendingApproval},
		ServiceName: "Установка root-прав",
	}
	app.notifyProofSubmitted(context.Background(), buyer, res, "file-9")

	for _, adminID := range []int64{10, 20} {
		got := notifier.sentTo(adminID)
		if len(got) != 1 {
			t.Fatalf("admin %d received %d messages, want exactly 1", adminID, len(got))
		}
		photo, ok := got[0].What.(*tele.Photo)
		if !ok {
			t.Fatalf("admin %d payload is %T, want *tele.Photo", adminID, got[0].What)
		}
		if photo.FileID != "file-9" {
			t.Errorf("admin %d photo file = %q", adminID, photo.FileID)
		}
		if !strings.Contains(photo.Caption, "#5") {
			t.Errorf("caption misses order ref: %q", photo.Caption)
		}

		var markup *tele.ReplyMarkup
		for _, opt := range got[0].Opts {
			if m, ok := opt.(*tele.ReplyMarkup); ok {
				markup = m
			}
		}
		if markup == nil {
			t.Fatalf("admin %d notification has no keyboard", adminID)
		}
		if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 2 {
			t.Fatalf("admin %d keyboard shape = %v, want one row of two buttons", adminID, markup.InlineKeyboard)
		}
	}
}

func TestProofFanOutSurvivesOneBlockedAdmin(t *testing.T) {
	app, _, notifier := newTestApp(10, 20)
	notifier.failTo[10] = true

	buyer := &tele.User{ID: 777, FirstName: "Иван"}
	res := orders.ProofResult{Order: models.Order{ID: 5, UserID: 777}, ServiceName: "x"}
	app.notifyProofSubmitted(context.Background(), buyer, res, "file-9")

	if len(notifier.sentTo(20)) != 1 {
		t.Fatal("second admin must still be notified")
	}
}

func TestDeclinePersistsWhenBuyerNotifyFails(t *testing.T) {
	app, f, notifier := newTestApp(10)
	notifier.failTo[777] = true
	order := pendingApprovalOrder(f)

	c := newCtxStub(&tele.User{ID: 10})
	c.msg = &tele.Message{Caption: "🔔 Новое подтверждение оплаты!"}

	if err := app.decide(c, order.ID, false); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if order.Status != models.StatusDeclined {
		t.Fatalf("status = %s, want declined despite failed notification", order.Status)
	}
	if len(c.captions) != 1 || !strings.Contains(c.captions[0], "Отклонен") {
		t.Fatalf("caption annotation = %v", c.captions)
	}
}

func TestApproveNotifiesBuyerAndAnnotates(t *testing.T) {
	app, f, notifier := newTestApp(10)
	order := pendingApprovalOrder(f)

	c := newCtxStub(&tele.User{ID: 10})
	c.msg = &tele.Message{Caption: "🔔 Новое подтверждение оплаты!"}

	if err := app.decide(c, order.ID, true); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if order.Status != models.StatusApproved {
		t.Fatalf("status = %s, want approved", order.Status)
	}
	buyerMsgs := notifier.sentTo(777)
	if len(buyerMsgs) != 1 || !strings.Contains(fmt.Sprint(buyerMsgs[0].What), "одобрен") {
		t.Fatalf("buyer notification = %v", buyerMsgs)
	}
	if !strings.Contains(c.captions[0], "Одобрен") {
		t.Fatalf("caption annotation = %q", c.captions[0])
	}
}

func TestDecideMissingOrderAnnotatesError(t *testing.T) {
	app, _, _ := newTestApp(10)

	c := newCtxStub(&tele.User{ID: 10})
	c.msg = &tele.Message{Caption: "🔔 Новое подтверждение оплаты!"}

	if err := app.decide(c, 404, true); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if len(c.captions) != 1 || !strings.Contains(c.captions[0], "ОШИБКА") {
		t.Fatalf("caption annotation = %v", c.captions)
	}
}

func TestDecideTwiceRespondsAlreadyHandled(t *testing.T) {
	app, f, _ := newTestApp(10)
	order := pendingApprovalOrder(f)

	c := newCtxStub(&tele.User{ID: 10})
	c.msg = &tele.Message{Caption: "caption"}
	if err := app.decide(c, order.ID, true); err != nil {
		t.Fatalf("first decide: %v", err)
	}
	if err := app.decide(c, order.ID, false); err != nil {
		t.Fatalf("second decide: %v", err)
	}
	if order.Status != models.StatusApproved {
		t.Fatalf("terminal status mutated to %s", order.Status)
	}
	if len(c.responds) == 0 {
		t.Fatal("second decide must answer the callback")
	}
}

func TestAdminChatForwardTracksDeliveries(t *testing.T) {
	app, _, notifier := newTestApp(10, 20)

	user := &tele.User{ID: 777, FirstName: "Иван"}
	app.sessions.SetState(777, "admin_chat")

	c := newCtxStub(user)
	c.msg = &tele.Message{Text: "когда будет готов заказ?"}
	if err := app.fsmAdminChat(c); err != nil {
		t.Fatalf("forward: %v", err)
	}

	for _, adminID := range []int64{10, 20} {
		msgs := notifier.sentTo(adminID)
		if len(msgs) != 1 {
			t.Fatalf("admin %d received %d messages", adminID, len(msgs))
		}
		if !strings.Contains(fmt.Sprint(msgs[0].What), "когда будет готов заказ?") {
			t.Errorf("forwarded text missing: %v", msgs[0].What)
		}
	}
	if got := c.lastSent(t); got != adminChatForwarded {
		t.Errorf("user ack = %q", got)
	}
}

func TestAdminChatForwardEscapesMarkdownInUserText(t *testing.T) {
	app, _, notifier := newTestApp(10)

	user := &tele.User{ID: 777, FirstName: "Иван_*"}
	app.sessions.SetState(777, "admin_chat")

	c := newCtxStub(user)
	c.msg = &tele.Message{Text: "скидка 20%_будет? *и еще"}
	if err := app.fsmAdminChat(c); err != nil {
		t.Fatalf("forward: %v", err)
	}

	msgs := notifier.sentTo(10)
	if len(msgs) != 1 {
		t.Fatalf("admin received %d messages", len(msgs))
	}
	body := fmt.Sprint(msgs[0].What)
	// Raw "_" and "*" would make Telegram reject the markdown send.
	if !strings.Contains(body, `скидка 20%\_будет? \*и еще`) {
		t.Errorf("user text not escaped: %q", body)
	}
	if !strings.Contains(body, `[Иван\_\*](tg://user?id=777)`) {
		t.Errorf("mention name not escaped: %q", body)
	}
}

func TestAdminReplyEscapesMarkdown(t *testing.T) {
	app, _, notifier := newTestApp(10)
	app.relay.Track(10, 55, 777)

	c := newCtxStub(&tele.User{ID: 10})
	c.msg = &tele.Message{
		Text:    "да, пришлю код_1 *сегодня",
		ReplyTo: &tele.Message{ID: 55},
	}
	if err := app.handleText(c); err != nil {
		t.Fatalf("handle: %v", err)
	}

	msgs := notifier.sentTo(777)
	if len(msgs) != 1 {
		t.Fatalf("user received %d messages", len(msgs))
	}
	if body := fmt.Sprint(msgs[0].What); !strings.Contains(body, `код\_1 \*сегодня`) {
		t.Errorf("admin text not escaped: %q", body)
	}
}

func TestDecisionNotificationEscapesServiceName(t *testing.T) {
	app, f, notifier := newTestApp(10)
	f.services[1] = models.Service{ID: 1, Name: "VIP_пакет *deluxe*"}
	order := pendingApprovalOrder(f)

	c := newCtxStub(&tele.User{ID: 10})
	c.msg = &tele.Message{Caption: "caption"}
	if err := app.decide(c, order.ID, true); err != nil {
		t.Fatalf("decide: %v", err)
	}

	msgs := notifier.sentTo(777)
	if len(msgs) != 1 {
		t.Fatalf("buyer received %d messages", len(msgs))
	}
	if body := fmt.Sprint(msgs[0].What); !strings.Contains(body, `VIP\_пакет \*deluxe\*`) {
		t.Errorf("service name not escaped: %q", body)
	}
}

func TestAdminReplyRoutedThroughRelayMap(t *testing.T) {
	app, _, notifier := newTestApp(10)
	app.relay.Track(10, 55, 777)

	c := newCtxStub(&tele.User{ID: 10, FirstName: "Admin"})
	c.msg = &tele.Message{
		Text:    "готово, проверяйте",
		ReplyTo: &tele.Message{ID: 55},
	}
	if err := app.handleText(c); err != nil {
		t.Fatalf("handle: %v", err)
	}

	msgs := notifier.sentTo(777)
	if len(msgs) != 1 || !strings.Contains(fmt.Sprint(msgs[0].What), "готово, проверяйте") {
		t.Fatalf("user reply = %v", msgs)
	}
	if !strings.Contains(c.lastSent(t), "отправлен пользователю") {
		t.Errorf("admin ack = %q", c.lastSent(t))
	}
}

func TestAdminReplyToUntrackedMessage(t *testing.T) {
	app, _, notifier := newTestApp(10)

	c := newCtxStub(&tele.User{ID: 10})
	c.msg = &tele.Message{Text: "кому это?", ReplyTo: &tele.Message{ID: 99}}
	if err := app.handleText(c); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatal("nothing should be forwarded for an untracked reply")
	}
	if !strings.Contains(c.lastSent(t), "Не удалось определить пользователя") {
		t.Errorf("admin hint = %q", c.lastSent(t))
	}
}

func TestCallbackBoundaryRejectsMalformedPayload(t *testing.T) {
	app, _, _ := newTestApp(10)

	called := false
	h := app.action(func(tele.Context, actions.Action) error {
		called = true
		return nil
	})

	c := newCtxStub(&tele.User{ID: 777})
	c.cb = &tele.Callback{Data: "\fsvc_select|abc"}
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if called {
		t.Fatal("handler must not run on malformed payload")
	}
	if len(c.responds) != 1 {
		t.Fatalf("responds = %d, want 1", len(c.responds))
	}
}

func TestStaleCallbackRecoversSession(t *testing.T) {
	app, _, _ := newTestApp(10)

	// Payment callback arrives while the conversation is idle, e.g.
	// after a restart with the memory backend.
	c := newCtxStub(&tele.User{ID: 777})
	c.cb = &tele.Callback{Data: "\fsvc_pay|STARS:1"}

	h := app.action(app.actionPay)
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(c.lastSent(t), "Сессия устарела") {
		t.Errorf("stale session hint = %q", c.lastSent(t))
	}
}

func TestPriceListRendersStoredPricesVerbatim(t *testing.T) {
	app, f, _ := newTestApp()
	svc := models.Service{
		ID:          2,
		Name:        "Прошивка устройств",
		Description: "Полная переустановка системы",
		PriceUSD:    decimal.RequireFromString("27.0"),
		PriceBTC:    decimal.RequireFromString("0.000223"),
		PriceStars:  2800,
	}
	f.services[svc.ID] = svc

	c := newCtxStub(&tele.User{ID: 777, FirstName: "Иван"})
	if err := app.actionPriceList(c); err != nil {
		t.Fatalf("price list: %v", err)
	}

	// Stored quotations must come back unchanged, digit for digit.
	want := fmt.Sprintf("$%s | %s BTC | %d ⭐",
		svc.PriceUSD.String(), svc.PriceBTC.String(), svc.PriceStars)
	if got := c.lastSent(t); !strings.Contains(got, want) {
		t.Errorf("rendered price list %q does not contain %q", got, want)
	}
	if !strings.Contains(c.lastSent(t), svc.Description) {
		t.Error("description missing from price list")
	}
}
