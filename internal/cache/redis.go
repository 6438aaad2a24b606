// Package cache хранит сессии пользователей, последний снимок панели
// и счетчики алертов в Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"sensor-dashboard/internal/models"
)

const (
	// SessionKeyPrefix префикс хэшей сессий
	SessionKeyPrefix = "session:"
	// SnapshotKey ключ последнего снимка панели
	SnapshotKey = "dashboard:snapshot"
	// SnapshotTTL время жизни снимка
	SnapshotTTL = 1 * time.Hour
	// DefaultSessionTTL время жизни сессии по умолчанию
	DefaultSessionTTL = 12 * time.Hour

	fieldLoggedIn = "loggedIn"
	fieldUserData = "userData"
	loggedInValue = "true"
)

// ErrSessionNotFound сессия отсутствует или истекла
var ErrSessionNotFound = errors.New("session not found")

// Session сохраненное состояние клиента
type Session struct {
	ID       string      `json:"id"`
	LoggedIn bool        `json:"loggedIn"`
	User     models.User `json:"userData"`
}

// Store контракт хранилища, общий для Redis и памяти
type Store interface {
	CreateSession(ctx context.Context, user models.User) (string, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	CacheSnapshot(ctx context.Context, data []byte) error
	LatestSnapshot(ctx context.Context) ([]byte, error)
	IncrementCounter(ctx context.Context, key string) (int64, error)
	GetCounter(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// RedisCache реализует Store в Redis
type RedisCache struct {
	client     *redis.Client
	sessionTTL time.Duration
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(addr, password string, db int, sessionTTL time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &RedisCache{client: client, sessionTTL: sessionTTL}, nil
}

// CreateSession сохраняет хэш {loggedIn, userData} и возвращает id сессии
func (r *RedisCache) CreateSession(ctx context.Context, user models.User) (string, error) {
	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user: %w", err)
	}

	id := uuid.NewString()
	key := SessionKeyPrefix + id

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fieldLoggedIn, loggedInValue, fieldUserData, data)
	pipe.Expire(ctx, key, r.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// GetSession читает сессию; ErrSessionNotFound если ее нет или loggedIn != "true"
func (r *RedisCache) GetSession(ctx context.Context, id string) (*Session, error) {
	vals, err := r.client.HGetAll(ctx, SessionKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if vals[fieldLoggedIn] != loggedInValue {
		return nil, ErrSessionNotFound
	}

	s := &Session{ID: id, LoggedIn: true}
	if err := json.Unmarshal([]byte(vals[fieldUserData]), &s.User); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session user: %w", err)
	}
	return s, nil
}

// DeleteSession удаляет сессию (выход)
func (r *RedisCache) DeleteSession(ctx context.Context, id string) error {
	return r.client.Del(ctx, SessionKeyPrefix+id).Err()
}

// CacheSnapshot сохраняет последний снимок панели
func (r *RedisCache) CacheSnapshot(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, SnapshotKey, data, SnapshotTTL).Err()
}

// LatestSnapshot возвращает последний снимок или nil
func (r *RedisCache) LatestSnapshot(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, SnapshotKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// IncrementCounter увеличивает счетчик
func (r *RedisCache) IncrementCounter(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// GetCounter возвращает значение счетчика
func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// Publish отправляет сообщение в канал pub/sub
func (r *RedisCache) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

// Subscribe подписывается на канал pub/sub
func (r *RedisCache) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return r.client.Subscribe(ctx, channel)
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}
