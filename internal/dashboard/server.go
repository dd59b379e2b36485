// Package dashboard serves the companion web panel: user order
// history, catalog administration and bot process control.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rootzsu/servicebot/internal/catalog"
	"github.com/rootzsu/servicebot/internal/config"
	"github.com/rootzsu/servicebot/internal/logger"
	"github.com/rootzsu/servicebot/internal/models"
	"github.com/rootzsu/servicebot/internal/orders"
	"github.com/rootzsu/servicebot/internal/storage"
	"github.com/rootzsu/servicebot/internal/users"
)

// BotController is the supervisor surface the dashboard drives.
type BotController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
}

// Server is the dashboard HTTP application.
type Server struct {
	cfg     *config.Config
	users   *users.Service
	catalog *catalog.Service
	orders  *orders.Service
	bot     BotController
	hub     *statusHub
}

// NewServer constructs the dashboard server.
func NewServer(cfg *config.Config, userSvc *users.Service, catalogSvc *catalog.Service, orderSvc *orders.Service, bot BotController) *Server {
	return &Server{
		cfg:     cfg,
		users:   userSvc,
		catalog: catalogSvc,
		orders:  orderSvc,
		bot:     bot,
		hub:     newStatusHub(),
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)
	api.POST("/admin/login", s.handleAdminLogin)

	me := api.Group("/me", s.requireRole(roleUser))
	me.GET("/orders", s.handleMyOrders)

	admin := api.Group("/admin", s.requireRole(roleAdmin))
	admin.GET("/overview", s.handleOverview)
	admin.POST("/service/update", s.handleServiceUpdate)
	admin.POST("/bot/toggle", s.handleBotToggle)
	admin.GET("/bot/events", s.handleBotEvents)

	return r
}

// Run serves the dashboard until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Dashboard.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info(ctx, "dashboard", "http.listen",
		slog.String("addr", s.cfg.Dashboard.Listen),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "dashboard", "http.request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("code", c.Writer.Status()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	err := s.users.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, users.ErrUnknownUser):
		c.JSON(http.StatusNotFound, gin.H{"error": "username not known to the bot; start the bot first"})
	case errors.Is(err, users.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": "user already registered"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
	default:
		c.JSON(http.StatusCreated, gin.H{"success": true})
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	u, err := s.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, users.ErrBadCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	token, err := s.issueToken(strconv.FormatInt(u.ID, 10), roleUser)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.SetCookie(tokenCookie, token, int(tokenTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type adminLoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleAdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "login and password are required"})
		return
	}

	cfg := s.cfg.Dashboard
	if cfg.AdminLogin == "" || cfg.AdminPassword == "" ||
		req.Login != cfg.AdminLogin || req.Password != cfg.AdminPassword {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin credentials"})
		return
	}

	token, err := s.issueToken(roleAdmin, roleAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.SetCookie(tokenCookie, token, int(tokenTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type orderView struct {
	ID            int64  `json:"order_id"`
	ServiceName   string `json:"service_name"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
	StatusLabel   string `json:"status_label"`
	User          string `json:"user,omitempty"`
}

func orderViews(list []models.OrderWithRefs, withUser bool) []orderView {
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		v := orderView{
			ID:            o.ID,
			ServiceName:   o.ServiceName,
			PaymentMethod: string(o.PaymentMethod),
			Status:        string(o.Status),
			StatusLabel:   o.Status.Human(),
		}
		if withUser {
			v.User = o.UserFirstName
			if o.UserUsername != nil && *o.UserUsername != "" {
				v.User = fmt.Sprintf("%s (@%s)", o.UserFirstName, *o.UserUsername)
			}
		}
		out = append(out, v)
	}
	return out
}

func (s *Server) handleMyOrders(c *gin.Context) {
	claims := claimsFrom(c)
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "user token required"})
		return
	}

	list, err := s.orders.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orderViews(list, false)})
}

type serviceView struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	PriceBTC    decimal.Decimal `json:"price_btc"`
	PriceStars  int64           `json:"price_stars"`
}

func (s *Server) handleOverview(c *gin.Context) {
	ctx := c.Request.Context()

	allUsers, err := s.users.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}
	services, err := s.catalog.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load services"})
		return
	}
	allOrders, err := s.orders.ListAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}

	userList := make([]gin.H, 0, len(allUsers))
	for _, u := range allUsers {
		entry := gin.H{"user_id": u.ID, "first_name": u.FirstName}
		if u.Username != nil {
			entry["username"] = *u.Username
		}
		userList = append(userList, entry)
	}
	serviceList := make([]serviceView, 0, len(services))
	for _, svc := range services {
		serviceList = append(serviceList, serviceView{
			ID:          svc.ID,
			Name:        svc.Name,
			Description: svc.Description,
			PriceUSD:    svc.PriceUSD,
			PriceBTC:    svc.PriceBTC,
			PriceStars:  svc.PriceStars,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"users":       userList,
		"services":    serviceList,
		"orders":      orderViews(allOrders, true),
		"bot_running": s.bot.Running(),
	})
}

type serviceUpdateRequest struct {
	ID          int64           `json:"id" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	PriceBTC    decimal.Decimal `json:"price_btc"`
	PriceStars  int64           `json:"price_stars"`
}

func (s *Server) handleServiceUpdate(c *gin.Context) {
	var req serviceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid payload"})
		return
	}

	err := s.catalog.Update(c.Request.Context(), models.Service{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		PriceUSD:    req.PriceUSD,
		PriceBTC:    req.PriceBTC,
		PriceStars:  req.PriceStars,
	})
	if errors.Is(err, storage.ErrServiceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "service not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleBotToggle flips the bot process state. Start/stop races with
// another toggle resolve to reporting the resulting state.
func (s *Server) handleBotToggle(c *gin.Context) {
	ctx := c.Request.Context()

	var err error
	if s.bot.Running() {
		err = s.bot.Stop(ctx)
	} else {
		err = s.bot.Start(ctx)
	}
	if err != nil {
		logger.Warn(ctx, "dashboard", "bot.toggle",
			slog.String("err", err.Error()),
		)
	}

	running := s.bot.Running()
	s.hub.broadcast(running)
	c.JSON(http.StatusOK, gin.H{"running": running})
}

// handleBotEvents streams bot liveness over SSE. The current state is
// sent immediately, updates follow as they happen.
func (s *Server) handleBotEvents(c *gin.Context) {
	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	current := s.bot.Running()
	c.SSEvent("bot_status", gin.H{"running": current})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case running, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("bot_status", gin.H{"running": running})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
