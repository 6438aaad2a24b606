// Package main запускает сервис панели датчика влажности и температуры.
// Сервис реализует:
// - получение ленты измерений из upstream API
// - ряды графика, таблицу и сводную статистику
// - уведомления о нарушении порогов с периодом охлаждения
// - сессии пользователей в Redis
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/cors"

	"sensor-dashboard/internal/alerting"
	"sensor-dashboard/internal/cache"
	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/dashboard"
	"sensor-dashboard/internal/gateway"
	"sensor-dashboard/internal/handlers"
	"sensor-dashboard/internal/logger"
	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/notify"
)

const appID = "sensor-dashboard"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg := logger.New(appID, cfg.LogLevel)
	defer lg.Flush()

	lg.Infof("Starting %s, Go version: %s, NumCPU: %d", appID, runtime.Version(), runtime.NumCPU())
	if cfg.EphemeralSecret {
		lg.Warnf("SESSION_SECRET is not set, sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, redisCache := connectStore(cfg, lg)
	defer store.Close()

	hub := notify.NewHub(lg, cfg.CORSOrigins...)
	notifiers := notify.Multi{hub, notify.LogNotifier{Log: lg}}
	if redisCache != nil {
		notifiers = append(notifiers, notify.RedisNotifier{Pub: redisCache, Channel: notify.ChannelAlerts})
	}

	if cfg.MQTTAddr != "" {
		broker, err := notify.NewBroker(cfg.MQTTAddr, lg)
		if err != nil {
			lg.Fatalf("Failed to create MQTT broker: %s", err)
		}
		if err := broker.Start(); err != nil {
			lg.Fatalf("%s", err)
		}
		defer broker.Close()
		notifiers = append(notifiers, broker)
		lg.Infof("MQTT broker listening on %s, topic %s", cfg.MQTTAddr, notify.TopicAlerts)
	}

	client := gateway.NewClient(cfg.APIBaseURL, cfg.FetchTimeout)

	evaluator := alerting.NewEvaluator(cfg.Thresholds, cfg.AlertCooldown, cfg.Location,
		alerting.WithNotifiers(notifiers),
		alerting.WithLogger(lg.With("component", "alerting")),
	)

	board := dashboard.New(dashboard.Cfg{
		Fetcher:   client,
		Evaluator: evaluator,
		Store:     store,
		Location:  cfg.Location,
		Log:       lg.With("component", "dashboard"),
	})
	if err := board.Restore(ctx); err != nil {
		lg.Warnf("Failed to restore cached snapshot: %s", err)
	}

	handler := handlers.NewHandler(handlers.Cfg{
		Board:        board,
		Upstream:     client,
		Store:        store,
		Hub:          hub,
		Log:          lg.With("component", "http"),
		Location:     cfg.Location,
		Secret:       cfg.SessionSecret,
		SessionTTL:   cfg.SessionTTL,
		SecureCookie: cfg.SecureCookie,
	})

	router := handler.Router()
	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      c.Handler(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go updateMetricsLoop(ctx)

	if cfg.PollInterval > 0 {
		lg.Infof("Polling upstream every %s", cfg.PollInterval)
		go board.Run(ctx, cfg.PollInterval)
	}

	go func() {
		lg.With("event", logger.EventComponentStarted).Infof("Server listening on %s, upstream %s", cfg.ServerAddr, client.BaseURL())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	lg.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Errorf("Server shutdown error: %v", err)
	}

	lg.With("event", logger.EventComponentShutdown).Info("Server stopped")
}

// connectStore подключается к Redis с повторами; при неудаче сессии хранятся в памяти
func connectStore(cfg *config.Config, lg logger.Logger) (cache.Store, *cache.RedisCache) {
	var (
		redisCache *cache.RedisCache
		err        error
	)

	for i := 0; i < 5; i++ {
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
		if err == nil {
			lg.With("event", logger.EventStoreInit).Infof("Connected to Redis at %s", cfg.RedisAddr)
			return redisCache, redisCache
		}
		lg.Warnf("Redis connection attempt %d failed: %v", i+1, err)
		if i < 4 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	lg.With("event", logger.EventStoreInit).Warnf("Failed to connect to Redis, running with in-memory sessions: %v", err)
	return cache.NewMemoryCache(cfg.SessionTTL), nil
}

// updateMetricsLoop периодически обновляет метрики процесса
func updateMetricsLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		}
	}
}
