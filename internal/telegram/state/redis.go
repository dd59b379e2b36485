package state

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	tele "gopkg.in/telebot.v4"
	"log/slog"

	"github.com/rootzsu/servicebot/internal/logger"
	tghelpers "github.com/rootzsu/servicebot/internal/telegram/helpers"
)

// sessionTTL bounds how long an abandoned conversation survives in Redis.
const sessionTTL = 24 * time.Hour

type redisManager struct {
	client *redis.Client
	prefix string
}

// NewRedisManager constructs a Manager backed by Redis so conversation
// state survives bot restarts.
func NewRedisManager(client *redis.Client) Manager {
	return &redisManager{client: client, prefix: "session:"}
}

func (m *redisManager) key(userID int64) string {
	return m.prefix + strconv.FormatInt(userID, 10)
}

func (m *redisManager) load(userID int64) *Session {
	ctx := context.Background()
	raw, err := m.client.Get(ctx, m.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Session{State: StateIdle, TempData: make(map[string]interface{})}
	}
	if err != nil {
		logger.Warn(ctx, "tg", "fsm.session_load",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return &Session{State: StateIdle, TempData: make(map[string]interface{})}
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return &Session{State: StateIdle, TempData: make(map[string]interface{})}
	}
	if sess.TempData == nil {
		sess.TempData = make(map[string]interface{})
	}
	if sess.State == "" {
		sess.State = StateIdle
	}
	return &sess
}

func (m *redisManager) store(userID int64, sess *Session) {
	ctx := context.Background()
	raw, err := json.Marshal(sess)
	if err != nil {
		return
	}
	if err := m.client.Set(ctx, m.key(userID), raw, sessionTTL).Err(); err != nil {
		logger.Warn(ctx, "tg", "fsm.session_store",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

// Get returns the session for a user, or a default idle session.
func (m *redisManager) Get(userID int64) *Session {
	return m.load(userID)
}

// Set updates the state for a user, creating a new session if necessary.
func (m *redisManager) Set(userID int64, state State) {
	sess := m.load(userID)
	sess.State = state
	m.store(userID, sess)
}

// SetTemp stores a temporary key/value pair for the given user session.
func (m *redisManager) SetTemp(userID int64, key string, value interface{}) {
	sess := m.load(userID)
	sess.TempData[key] = value
	m.store(userID, sess)
}

// GetTemp retrieves a temporary value by key for the given user session.
func (m *redisManager) GetTemp(userID int64, key string) (interface{}, bool) {
	sess := m.load(userID)
	val, ok := sess.TempData[key]
	return val, ok
}

// GetTempInt64 retrieves a temporary value by key and coerces it to
// int64. JSON round-tripping stores numbers as float64, so both
// representations are accepted.
func (m *redisManager) GetTempInt64(userID int64, key string) (int64, bool) {
	val, found := m.GetTemp(userID, key)
	if !found {
		return 0, false
	}
	switch v := val.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// ClearTemp removes a temporary key/value pair for the given user session.
func (m *redisManager) ClearTemp(userID int64, key string) {
	sess := m.load(userID)
	delete(sess.TempData, key)
	m.store(userID, sess)
}

// Clear removes the entire session for a user.
func (m *redisManager) Clear(userID int64) {
	ctx := context.Background()
	_ = m.client.Del(ctx, m.key(userID)).Err()
}

// SetState sets the FSM state for the given user.
func (m *redisManager) SetState(userID int64, st State) {
	m.Set(userID, st)
}

// GetState returns the current FSM state of a user, or StateIdle if none exists.
func (m *redisManager) GetState(userID int64) State {
	return m.load(userID).State
}

// ClearState resets the FSM state to idle without removing session data.
func (m *redisManager) ClearState(userID int64) {
	sess := m.load(userID)
	sess.State = StateIdle
	m.store(userID, sess)
}

// HasState checks if a user has an active state other than idle.
func (m *redisManager) HasState(userID int64) bool {
	return m.GetState(userID) != StateIdle
}

// InProgress reports whether the user currently has an active FSM state.
func (m *redisManager) InProgress(userID int64) bool {
	return m.HasState(userID)
}

// ManagerHandler executes the handler registered for the user's current state.
func (m *redisManager) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	current := m.GetState(userID)
	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("state", string(current)),
	)

	if handler, ok := fsmHandlers[current]; ok {
		return handler(c)
	}
	return nil
}
