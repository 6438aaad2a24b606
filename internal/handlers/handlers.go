// Package handlers содержит HTTP обработчики API панели
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sensor-dashboard/internal/alerting"
	"sensor-dashboard/internal/cache"
	"sensor-dashboard/internal/dashboard"
	"sensor-dashboard/internal/gateway"
	"sensor-dashboard/internal/logger"
	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/models"
)

// Board состояние панели, которое читают и обновляют обработчики
type Board interface {
	Refresh(ctx context.Context, q gateway.FeedQuery) (dashboard.Snapshot, error)
	Snapshot() dashboard.Snapshot
	Page(n int) dashboard.Page
	LastNotice() *alerting.Notice
	Acknowledge(id string) bool
}

// Upstream вход и управление пользователями в upstream API
type Upstream interface {
	Login(ctx context.Context, email, senha string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, in models.UserInput) (json.RawMessage, error)
	UpdateUser(ctx context.Context, id int, in models.UserInput) (json.RawMessage, error)
	DeleteUser(ctx context.Context, id int) error
}

// Cfg зависимости Handler; Hub может быть nil
type Cfg struct {
	Board        Board
	Upstream     Upstream
	Store        cache.Store
	Hub          http.Handler
	Log          logger.Logger
	Location     *time.Location
	Secret       string
	SessionTTL   time.Duration
	SecureCookie bool
	Now          func() time.Time
}

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	board     Board
	upstream  Upstream
	store     cache.Store
	hub       http.Handler
	log       logger.Logger
	loc       *time.Location
	token     *token
	secure    bool
	now       func() time.Time
	startTime time.Time
}

// NewHandler создает новый обработчик
func NewHandler(c Cfg) *Handler {
	h := &Handler{
		board:    c.Board,
		upstream: c.Upstream,
		store:    c.Store,
		hub:      c.Hub,
		log:      c.Log,
		loc:      c.Location,
		token:    newToken(c.Secret, c.SessionTTL),
		secure:   c.SecureCookie,
		now:      c.Now,
	}
	if h.log == nil {
		h.log = logger.NewNop()
	}
	if h.loc == nil {
		h.loc = time.Local
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.startTime = h.now()
	return h
}

// Router настраивает маршруты
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.Handle("/prometheus", promhttp.Handler())
	if h.hub != nil {
		router.Handle("/ws/alerts", h.sessionValidator(h.hub))
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", h.LoginHandler).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	private.Use(h.sessionValidator)
	private.HandleFunc("/logout", h.LogoutHandler).Methods(http.MethodPost)
	private.HandleFunc("/session", h.SessionHandler).Methods(http.MethodGet)
	private.HandleFunc("/feeds", h.FeedsHandler).Methods(http.MethodGet)
	private.HandleFunc("/feeds/page", h.PageHandler).Methods(http.MethodGet)
	private.HandleFunc("/feeds/export.csv", h.ExportHandler).Methods(http.MethodGet)
	private.HandleFunc("/alerts/latest", h.LatestAlertHandler).Methods(http.MethodGet)
	private.HandleFunc("/alerts/ack", h.AckAlertHandler).Methods(http.MethodPost)

	admin := private.PathPrefix("/users").Subrouter()
	admin.Use(h.adminOnly)
	admin.HandleFunc("", h.ListUsersHandler).Methods(http.MethodGet)
	admin.HandleFunc("", h.CreateUserHandler).Methods(http.MethodPost)
	admin.HandleFunc("/{id:[0-9]+}", h.UpdateUserHandler).Methods(http.MethodPut)
	admin.HandleFunc("/{id:[0-9]+}", h.DeleteUserHandler).Methods(http.MethodDelete)

	router.Use(h.metricsMiddleware)
	router.Use(h.loggingMiddleware)
	router.Use(h.recoveryMiddleware)

	return router
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disconnected"
	if _, inMemory := h.store.(*cache.MemoryCache); inMemory {
		redisStatus = "in-memory"
	} else if h.store != nil && h.store.Ping(r.Context()) == nil {
		redisStatus = "connected"
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: h.now(),
		Redis:     redisStatus,
		Uptime:    h.now().Sub(h.startTime).String(),
	}

	h.respondJSON(w, status, http.StatusOK)
}

// statusRecorder запоминает код ответа для метрик
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware считает запросы и их длительность по шаблону маршрута
func (h *Handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		if endpoint == "/ws/alerts" {
			next.ServeHTTP(w, r)
			return
		}

		timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()
		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

// loggingMiddleware логирует HTTP запросы
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Debugf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// recoveryMiddleware превращает панику обработчика в 500 и пишет стек в лог
func (h *Handler) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				h.log.With("event", logger.EventPanic).Errorf("%s %s: %v\n%s", r.Method, r.URL.Path, rv, debug.Stack())
				h.respondError(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Errorf("failed to encode response: %s", err)
	}
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	h.respondJSON(w, map[string]string{"error": message}, status)
}
