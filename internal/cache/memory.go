package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sensor-dashboard/internal/models"
)

type memSession struct {
	user      []byte
	expiresAt time.Time
}

// MemoryCache реализует Store в памяти процесса, когда Redis недоступен
type MemoryCache struct {
	mu         sync.Mutex
	sessionTTL time.Duration
	now        func() time.Time
	sessions   map[string]memSession
	snapshot   []byte
	snapshotAt time.Time
	counters   map[string]int64
}

// NewMemoryCache создает хранилище в памяти
func NewMemoryCache(sessionTTL time.Duration) *MemoryCache {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &MemoryCache{
		sessionTTL: sessionTTL,
		now:        time.Now,
		sessions:   make(map[string]memSession),
		counters:   make(map[string]int64),
	}
}

func (m *MemoryCache) CreateSession(_ context.Context, user models.User) (string, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user: %w", err)
	}

	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = memSession{user: data, expiresAt: m.now().Add(m.sessionTTL)}
	return id, nil
}

func (m *MemoryCache) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok && !m.now().Before(sess.expiresAt) {
		delete(m.sessions, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	s := &Session{ID: id, LoggedIn: true}
	if err := json.Unmarshal(sess.user, &s.User); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session user: %w", err)
	}
	return s, nil
}

func (m *MemoryCache) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryCache) CacheSnapshot(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = append([]byte(nil), data...)
	m.snapshotAt = m.now()
	return nil
}

func (m *MemoryCache) LatestSnapshot(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil || m.now().Sub(m.snapshotAt) >= SnapshotTTL {
		return nil, nil
	}
	return append([]byte(nil), m.snapshot...), nil
}

func (m *MemoryCache) IncrementCounter(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *MemoryCache) GetCounter(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}

func (m *MemoryCache) Ping(context.Context) error { return nil }

func (m *MemoryCache) Close() error { return nil }
