package notify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sensor-dashboard/internal/alerting"
	"sensor-dashboard/internal/logger"
	"sensor-dashboard/internal/metrics"
)

const writeWait = 5 * time.Second

// Hub держит WebSocket соединения браузеров и рассылает им баннеры
type Hub struct {
	log      logger.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]*sync.Mutex
}

// NewHub создает пустой хаб. Соединение принимается с того же хоста
// или с одного из origins; "*" для WebSocket не действует.
func NewHub(log logger.Logger, origins ...string) *Hub {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o != "*" {
			allowed[strings.TrimRight(o, "/")] = struct{}{}
		}
	}
	return &Hub{
		log:   log.With("component", "hub"),
		conns: make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, allowed)
			},
		},
	}
}

func checkOrigin(r *http.Request, allowed map[string]struct{}) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := allowed[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// ServeHTTP переводит запрос в WebSocket и держит соединение до его закрытия клиентом
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("Upgrade() failed: %s", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = &sync.Mutex{}
	n := len(h.conns)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	h.log.With("event", logger.EventWSConnAdded).Infof("addr: %v", conn.RemoteAddr())

	go h.readLoop(conn)
}

// readLoop отбрасывает входящие сообщения и снимает соединение при ошибке чтения
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	n := len(h.conns)
	h.mu.Unlock()
	if !ok {
		return
	}
	conn.Close()
	metrics.WSConnections.Set(float64(n))
	h.log.With("event", logger.EventWSConnRemoved).Infof("addr: %v", conn.RemoteAddr())
}

// Count число открытых соединений
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Notify отправляет уведомление всем соединениям; сломанные соединения закрываются
func (h *Hub) Notify(ctx context.Context, n alerting.Notice) error {
	data, err := encode(n)
	if err != nil {
		return err
	}

	h.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for c, wmu := range h.conns {
		targets[c] = wmu
	}
	h.mu.Unlock()

	for conn, wmu := range targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		wmu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.TextMessage, data)
		wmu.Unlock()
		if err != nil {
			h.remove(conn)
		}
	}
	return nil
}

// Close закрывает все соединения
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.remove(c)
	}
}
