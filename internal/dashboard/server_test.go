package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rootzsu/servicebot/internal/catalog"
	"github.com/rootzsu/servicebot/internal/config"
	"github.com/rootzsu/servicebot/internal/models"
	"github.com/rootzsu/servicebot/internal/orders"
	"github.com/rootzsu/servicebot/internal/storage"
	"github.com/rootzsu/servicebot/internal/users"
)

type memStore struct {
	users    map[int64]*models.User
	services map[int64]models.Service
	orders   map[int64]*models.Order
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*models.User),
		services: make(map[int64]models.Service),
		orders:   make(map[int64]*models.Order),
	}
}

type memUsers struct{ m *memStore }

func (s memUsers) GetByID(_ context.Context, id int64) (models.User, error) {
	u, ok := s.m.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return *u, nil
}

func (s memUsers) GetByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range s.m.users {
		if u.Username != nil && *u.Username == username {
			return *u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (s memUsers) Create(_ context.Context, u models.User) error {
	copied := u
	s.m.users[u.ID] = &copied
	return nil
}

func (s memUsers) SetPasswordHash(_ context.Context, id int64, hash string) error {
	u, ok := s.m.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.PasswordHash = &hash
	return nil
}

func (s memUsers) List(context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range s.m.users {
		out = append(out, *u)
	}
	return out, nil
}

type memCatalog struct{ m *memStore }

func (s memCatalog) List(context.Context) ([]models.Service, error) {
	var out []models.Service
	for _, svc := range s.m.services {
		out = append(out, svc)
	}
	return out, nil
}

func (s memCatalog) GetByID(_ context.Context, id int64) (models.Service, error) {
	svc, ok := s.m.services[id]
	if !ok {
		return models.Service{}, storage.ErrServiceNotFound
	}
	return svc, nil
}

func (s memCatalog) Count(context.Context) (int, error) { return len(s.m.services), nil }

func (s memCatalog) InsertBatch(_ context.Context, services []models.Service) error {
	for i, svc := range services {
		svc.ID = int64(i + 1)
		s.m.services[svc.ID] = svc
	}
	return nil
}

func (s memCatalog) Update(_ context.Context, svc models.Service) error {
	if _, ok := s.m.services[svc.ID]; !ok {
		return storage.ErrServiceNotFound
	}
	s.m.services[svc.ID] = svc
	return nil
}

type memOrders struct{ m *memStore }

func (s memOrders) Create(_ context.Context, userID, serviceID int64, method models.PaymentMethod) (models.Order, error) {
	id := int64(len(s.m.orders) + 1)
	row := &models.Order{ID: id, UserID: userID, ServiceID: serviceID, PaymentMethod: method, Status: models.StatusPendingPayment}
	s.m.orders[id] = row
	return *row, nil
}

func (s memOrders) GetByID(_ context.Context, id int64) (models.Order, error) {
	row, ok := s.m.orders[id]
	if !ok {
		return models.Order{}, storage.ErrOrderNotFound
	}
	return *row, nil
}

func (s memOrders) GetByIDWithRefs(ctx context.Context, id int64) (models.OrderWithRefs, error) {
	row, err := s.GetByID(ctx, id)
	if err != nil {
		return models.OrderWithRefs{}, err
	}
	return models.OrderWithRefs{Order: row, ServiceName: s.m.services[row.ServiceID].Name}, nil
}

func (s memOrders) UpdateStatus(_ context.Context, id int64, from, to models.OrderStatus) error {
	row, ok := s.m.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	if row.Status != from {
		return storage.ErrStatusConflict
	}
	row.Status = to
	return nil
}

func (s memOrders) AttachProof(_ context.Context, id int64, fileID string) error {
	row, ok := s.m.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	row.PaymentProof = &fileID
	row.Status = models.StatusPendingApproval
	return nil
}

func (s memOrders) ListByUser(_ context.Context, userID int64) ([]models.OrderWithRefs, error) {
	var out []models.OrderWithRefs
	for _, row := range s.m.orders {
		if row.UserID == userID {
			out = append(out, models.OrderWithRefs{Order: *row, ServiceName: s.m.services[row.ServiceID].Name})
		}
	}
	return out, nil
}

func (s memOrders) ListAll(context.Context) ([]models.OrderWithRefs, error) {
	var out []models.OrderWithRefs
	for _, row := range s.m.orders {
		out = append(out, models.OrderWithRefs{Order: *row, ServiceName: s.m.services[row.ServiceID].Name})
	}
	return out, nil
}

type botStub struct {
	running bool
}

func (b *botStub) Start(context.Context) error { b.running = true; return nil }
func (b *botStub) Stop(context.Context) error  { b.running = false; return nil }
func (b *botStub) Running() bool               { return b.running }

func newTestServer(t *testing.T) (*Server, *memStore, *botStub) {
	t.Helper()
	m := newMemStore()
	username := "ivan"
	m.users[777] = &models.User{ID: 777, Username: &username, FirstName: "Иван"}
	m.services[1] = models.Service{
		ID: 1, Name: "Установка root-прав", Description: "Для мобильных устройств",
		PriceUSD: decimal.RequireFromString("3.0"), PriceBTC: decimal.RequireFromString("0.00002478"), PriceStars: 100,
	}

	cfg := &config.Config{
		Dashboard: config.DashboardConfig{
			Secret:        "test-secret",
			AdminLogin:    "root",
			AdminPassword: "toor",
		},
	}
	bot := &botStub{}
	srv := NewServer(cfg,
		users.NewService(memUsers{m}),
		catalog.NewService(memCatalog{m}),
		orders.NewService(memUsers{m}, memCatalog{m}, memOrders{m}),
		bot,
	)
	return srv, m, bot
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func adminToken(t *testing.T, srv *Server) string {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/api/admin/login", "", map[string]string{
		"login": "root", "password": "toor",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/admin/login", "", map[string]string{
		"login": "root", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServiceUpdateUnknownIDReturns404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := adminToken(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/admin/service/update", token, map[string]interface{}{
		"id": 999, "name": "x", "price_usd": "1.0", "price_btc": "0.1", "price_stars": 10,
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "service not found")
}

func TestServiceUpdatePersistsChanges(t *testing.T) {
	srv, m, _ := newTestServer(t)
	token := adminToken(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/admin/service/update", token, map[string]interface{}{
		"id": 1, "name": "Root-права", "description": "обновлено",
		"price_usd": "5.5", "price_btc": "0.0001", "price_stars": 150,
	})
	require.Equal(t, http.StatusOK, w.Code)

	svc := m.services[1]
	require.Equal(t, "Root-права", svc.Name)
	require.Equal(t, int64(150), svc.PriceStars)
	require.True(t, svc.PriceUSD.Equal(decimal.RequireFromString("5.5")))
}

func TestServiceUpdateKeepsFractionalPrecision(t *testing.T) {
	srv, m, _ := newTestServer(t)
	token := adminToken(t, srv)

	// More than two decimal places must survive the edit unrounded;
	// the price_usd column carries NUMERIC(16,8) like price_btc.
	w := doJSON(t, srv, http.MethodPost, "/api/admin/service/update", token, map[string]interface{}{
		"id": 1, "name": "Root-права",
		"price_usd": "5.4375", "price_btc": "0.00012345", "price_stars": 150,
	})
	require.Equal(t, http.StatusOK, w.Code)

	svc := m.services[1]
	require.Equal(t, "5.4375", svc.PriceUSD.String())
	require.Equal(t, "0.00012345", svc.PriceBTC.String())
}

func TestServiceUpdateRequiresAdmin(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/admin/service/update", "", map[string]interface{}{
		"id": 1, "name": "x",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterRequiresBotContact(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"username": "stranger", "password": "secret",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterLoginAndListOrders(t *testing.T) {
	srv, m, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"username": "ivan", "password": "secret",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Second registration for the same user is rejected.
	w = doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"username": "ivan", "password": "secret",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"username": "ivan", "password": "secret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	proof := "file-1"
	m.orders[1] = &models.Order{
		ID: 1, UserID: 777, ServiceID: 1,
		PaymentMethod: models.PaymentStars,
		Status:        models.StatusPendingApproval,
		PaymentProof:  &proof,
	}

	w = doJSON(t, srv, http.MethodGet, "/api/me/orders", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Установка root-прав")
	require.Contains(t, w.Body.String(), "На проверке")
}

func TestMyOrdersRejectsAnonymous(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/me/orders", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBotToggleFlipsSupervisor(t *testing.T) {
	srv, _, bot := newTestServer(t)
	token := adminToken(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/admin/bot/toggle", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, bot.running)
	require.Contains(t, w.Body.String(), `"running":true`)

	w = doJSON(t, srv, http.MethodPost, "/api/admin/bot/toggle", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, bot.running)
}

func TestOverviewIncludesBotStatus(t *testing.T) {
	srv, _, bot := newTestServer(t)
	bot.running = true
	token := adminToken(t, srv)

	w := doJSON(t, srv, http.MethodGet, "/api/admin/overview", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["bot_running"])
	require.Len(t, resp["services"], 1)
	require.Len(t, resp["users"], 1)
}
