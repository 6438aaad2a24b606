package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"

	"sensor-dashboard/internal/cache"
	"sensor-dashboard/internal/gateway"
	"sensor-dashboard/internal/models"
)

const (
	// SessionCookie имя cookie с токеном сессии
	SessionCookie = "dashboard_session"

	sessionIDKey = "sid"
)

type ctxKey int

const sessionCtxKey ctxKey = iota

// token подписывает и проверяет HS256 токены с id сессии
type token struct {
	secret []byte
	ttl    time.Duration
}

func newToken(secret string, ttl time.Duration) *token {
	if ttl <= 0 {
		ttl = cache.DefaultSessionTTL
	}
	return &token{secret: []byte(secret), ttl: ttl}
}

func (t *token) sign(sessionID string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		sessionIDKey: sessionID,
		"iat":        now.Unix(),
		"exp":        now.Add(t.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *token) sessionID(raw string) (string, error) {
	parsed, err := jwt.Parse(raw, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tk.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("can not parse token, %v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("token is invalid")
	}
	sid, ok := claims[sessionIDKey].(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("empty %s", sessionIDKey)
	}
	return sid, nil
}

// sessionFromRequest достает токен из cookie или заголовка Authorization: Bearer
func (h *Handler) sessionFromRequest(r *http.Request) (*cache.Session, error) {
	raw := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		raw = c.Value
	} else if parts := strings.Fields(r.Header.Get("Authorization")); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		raw = parts[1]
	}
	if raw == "" {
		return nil, cache.ErrSessionNotFound
	}

	sid, err := h.token.sessionID(raw)
	if err != nil {
		return nil, err
	}
	return h.store.GetSession(r.Context(), sid)
}

// sessionValidator пропускает только запросы с действующей сессией
func (h *Handler) sessionValidator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessionFromRequest(r)
		if err != nil {
			if !errors.Is(err, cache.ErrSessionNotFound) {
				h.log.Debugf("session rejected: %s", err)
			}
			h.respondError(w, "Sessão inválida ou expirada", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionCtxKey, sess)))
	})
}

// adminOnly пропускает только пользователей с ролью администратора
func (h *Handler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if sess == nil || !sess.User.IsAdmin() {
			h.respondError(w, "Acesso restrito a administradores", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFrom(ctx context.Context) *cache.Session {
	sess, _ := ctx.Value(sessionCtxKey).(*cache.Session)
	return sess
}

// SessionResponse ответ GET /api/session и POST /api/login
type SessionResponse struct {
	LoggedIn       bool         `json:"loggedIn"`
	User           *models.User `json:"user,omitempty"`
	CanManageUsers bool         `json:"canManageUsers"`
	Token          string       `json:"token,omitempty"`
}

// LoginHandler обрабатывает POST /api/login
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Senha == "" {
		h.respondError(w, "Email e senha são obrigatórios", http.StatusBadRequest)
		return
	}

	user, err := h.upstream.Login(r.Context(), req.Email, req.Senha)
	if err != nil {
		status := http.StatusBadGateway
		var appErr *gateway.ApplicationError
		if errors.As(err, &appErr) {
			status = http.StatusUnauthorized
		}
		h.respondError(w, gateway.Message(err), status)
		return
	}

	sid, err := h.store.CreateSession(r.Context(), *user)
	if err != nil {
		h.log.Errorf("failed to create session: %s", err)
		h.respondError(w, "Falha ao criar sessão", http.StatusInternalServerError)
		return
	}
	signed, err := h.token.sign(sid, h.now())
	if err != nil {
		h.log.Errorf("failed to sign session token: %s", err)
		h.respondError(w, "Falha ao criar sessão", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  h.now().Add(h.token.ttl),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	h.respondJSON(w, SessionResponse{
		LoggedIn:       true,
		User:           user,
		CanManageUsers: user.IsAdmin(),
		Token:          signed,
	}, http.StatusOK)
}

// LogoutHandler обрабатывает POST /api/logout
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFrom(r.Context()); sess != nil {
		if err := h.store.DeleteSession(r.Context(), sess.ID); err != nil {
			h.log.Warnf("failed to delete session: %s", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	h.respondJSON(w, SessionResponse{LoggedIn: false}, http.StatusOK)
}

// SessionHandler обрабатывает GET /api/session
func (h *Handler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	user := sess.User
	h.respondJSON(w, SessionResponse{
		LoggedIn:       true,
		User:           &user,
		CanManageUsers: user.IsAdmin(),
	}, http.StatusOK)
}
