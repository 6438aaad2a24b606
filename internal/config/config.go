// Package config загружает конфигурацию сервиса из переменных окружения и .env файла
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config содержит конфигурацию сервиса
type Config struct {
	ServerAddr    string
	APIBaseURL    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LogLevel      string
	Location      *time.Location

	AlertCooldown time.Duration
	PollInterval  time.Duration
	FetchTimeout  time.Duration
	Thresholds    Thresholds

	SessionSecret   string
	// EphemeralSecret выставляется, если SESSION_SECRET не задан и секрет сгенерирован при старте
	EphemeralSecret bool
	SessionTTL      time.Duration
	SecureCookie    bool

	MQTTAddr    string
	CORSOrigins []string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Thresholds границы допустимых значений датчика
type Thresholds struct {
	HumidityMin    float64
	HumidityMax    float64
	TemperatureMin float64
	TemperatureMax float64
}

// DefaultThresholds границы, с которыми поставляется продукт
var DefaultThresholds = Thresholds{
	HumidityMin:    60,
	HumidityMax:    70,
	TemperatureMin: 18,
	TemperatureMax: 30,
}

// Load читает envFile (если он есть), затем переменные окружения
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg := &Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
		APIBaseURL:    strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api"), "/"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Location:      loc,
		AlertCooldown: getEnvDuration("ALERT_COOLDOWN", 30*time.Second),
		PollInterval:  getEnvDuration("POLL_INTERVAL", 0),
		FetchTimeout:  getEnvDuration("FETCH_TIMEOUT", 0),
		Thresholds: Thresholds{
			HumidityMin:    getEnvFloat("HUMIDITY_MIN", DefaultThresholds.HumidityMin),
			HumidityMax:    getEnvFloat("HUMIDITY_MAX", DefaultThresholds.HumidityMax),
			TemperatureMin: getEnvFloat("TEMPERATURE_MIN", DefaultThresholds.TemperatureMin),
			TemperatureMax: getEnvFloat("TEMPERATURE_MAX", DefaultThresholds.TemperatureMax),
		},
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),
		SecureCookie:  getEnvBool("COOKIE_SECURE", false),
		MQTTAddr:      getEnv("MQTT_ADDR", ""),
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"*"}),
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = uuid.NewString()
		cfg.EphemeralSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("SERVER_ADDR env var is missing")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL env var is missing")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}
	if c.AlertCooldown < 0 {
		return fmt.Errorf("ALERT_COOLDOWN must not be negative")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("POLL_INTERVAL must not be negative")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET env var is missing")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Location == nil {
		return fmt.Errorf("TIMEZONE is not loaded")
	}
	return c.Thresholds.Validate()
}

// Validate проверяет, что нижняя граница меньше верхней
func (t Thresholds) Validate() error {
	if t.HumidityMin >= t.HumidityMax {
		return fmt.Errorf("HUMIDITY_MIN must be lower than HUMIDITY_MAX")
	}
	if t.TemperatureMin >= t.TemperatureMax {
		return fmt.Errorf("TEMPERATURE_MIN must be lower than TEMPERATURE_MAX")
	}
	return nil
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration принимает "30s" и голое число секунд
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
