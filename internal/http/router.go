package httpx

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/tipline/internal/bot"
	"github.com/splax/tipline/internal/domain"
	"github.com/splax/tipline/internal/ws"
)

const (
	healthCheckTimeout = 2 * time.Second
	dispatchTimeout    = 30 * time.Second
)

// Dispatcher routes an inbound chat message and produces the reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64, text string) domain.Reply
}

// Router wires the transport endpoints: the platform webhook, the websocket
// chat stream, and the operator admin API. Chat semantics live in the bot
// package; this layer only moves payloads.
type Router struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	dispatcher    Dispatcher
	access        *bot.AccessController
	hub           *ws.Hub
	upgrader      websocket.Upgrader
	webhookSecret string
	jwtSecret     string
	dbHealth      func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// NewRouter assembles routes with dependencies. dbHealth may be nil when the
// service runs on the in-memory store.
func NewRouter(logger *slog.Logger, dispatcher Dispatcher, access *bot.AccessController, hub *ws.Hub, webhookSecret, jwtSecret string, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:        http.NewServeMux(),
		logger:     logger,
		dispatcher: dispatcher,
		access:     access,
		hub:        hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		webhookSecret: strings.TrimSpace(webhookSecret),
		jwtSecret:     jwtSecret,
		dbHealth:      dbHealth,
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to the underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.instrument("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/webhook", r.instrument("/webhook", r.handleWebhook))
	r.mux.HandleFunc("/admin/users/", r.instrument("/admin/users", r.requireAdmin(r.handleAdminUsers)))
	// websocket upgrades need the raw ResponseWriter, so no instrumentation
	r.mux.HandleFunc("/ws/chat", r.handleChatWS)
}

// handleWebhook accepts a platform update and returns the reply inline.
func (r *Router) handleWebhook(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !r.verifyWebhookSecret(req) {
		writeError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	var payload struct {
		UserID int64  `json:"user_id"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), dispatchTimeout)
	defer cancel()
	reply := r.dispatcher.Dispatch(ctx, payload.UserID, payload.Text)

	r.pushToStreams(payload.UserID, reply)
	writeJSON(w, http.StatusOK, reply)
}

// handleChatWS upgrades to a websocket chat: each inbound text frame is
// dispatched and the reply streamed to every connection the user has open.
func (r *Router) handleChatWS(w http.ResponseWriter, req *http.Request) {
	userID, err := strconv.ParseInt(req.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}
	if !r.verifyWebhookSecret(req) {
		writeError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	key := strconv.FormatInt(userID, 10)
	r.hub.Register(key, client)
	defer func() {
		r.hub.Unregister(key, client)
		client.Close()
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		ctx, cancel := context.WithTimeout(req.Context(), dispatchTimeout)
		reply := r.dispatcher.Dispatch(ctx, userID, string(data))
		cancel()
		r.pushToStreams(userID, reply)
	}
}

// handleAdminUsers serves POST /admin/users/{id}/level for security-tier
// assignment.
func (r *Router) handleAdminUsers(w http.ResponseWriter, req *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/admin/users/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "level" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var payload struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	level := domain.SecurityLevel(strings.ToLower(strings.TrimSpace(payload.Level)))
	if !level.Valid() {
		writeError(w, http.StatusBadRequest, "level must be low, medium or high")
		return
	}
	if err := r.access.SetLevel(req.Context(), userID, level); err != nil {
		r.logger.Error("level assignment failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "level assignment failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"level":   level,
	})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			r.logger.Warn("database health check failed", "error", err)
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

func (r *Router) verifyWebhookSecret(req *http.Request) bool {
	if r.webhookSecret == "" {
		return false
	}
	provided := strings.TrimSpace(req.Header.Get("X-Tipline-Secret"))
	if provided == "" {
		provided = strings.TrimSpace(req.URL.Query().Get("secret"))
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(r.webhookSecret)) == 1
}

func (r *Router) pushToStreams(userID int64, reply domain.Reply) {
	if r.hub == nil {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		r.logger.Error("reply marshal failed", "error", err)
		return
	}
	r.hub.Broadcast(strconv.FormatInt(userID, 10), payload)
}
