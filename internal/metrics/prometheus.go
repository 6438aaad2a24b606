// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов к API дашборда
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_requests_total",
			Help: "Total number of dashboard API requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов к API дашборда
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_request_duration_seconds",
			Help:    "Dashboard API request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"endpoint", "method"},
	)

	// UpstreamRequests запросы к upstream API по исходу
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_upstream_requests_total",
			Help: "Total number of upstream API calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	// UpstreamDuration длительность запросов к upstream API
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_upstream_request_duration_seconds",
			Help:    "Upstream API call duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)

	// FeedsReceived количество полученных записей
	FeedsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_feeds_received_total",
			Help: "Total number of feed records received from upstream",
		},
	)

	// FeedsDropped записи, отброшенные из-за отсутствующих или нечисловых значений
	FeedsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_feeds_dropped_total",
			Help: "Total number of feed records dropped as unclean",
		},
	)

	// AlertsRaised количество показанных уведомлений
	AlertsRaised = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_alerts_raised_total",
			Help: "Total number of alert notices raised",
		},
	)

	// AlertsSuppressed уведомления, подавленные периодом охлаждения
	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_alerts_suppressed_total",
			Help: "Total number of alert notices suppressed by the cooldown",
		},
	)

	// RefreshesSuperseded обновления, вытесненные более новым запросом
	RefreshesSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_refreshes_superseded_total",
			Help: "Total number of refreshes discarded because a newer one started",
		},
	)

	// CleanRecords число чистых записей в текущем наборе
	CleanRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_clean_records",
			Help: "Number of clean feed records in the current batch",
		},
	)

	// AvgHumidity средняя влажность текущего набора
	AvgHumidity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_avg_humidity_percent",
			Help: "Average humidity of the current batch",
		},
	)

	// AvgTemperature средняя температура текущего набора
	AvgTemperature = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_avg_temperature_celsius",
			Help: "Average temperature of the current batch",
		},
	)

	// WSConnections открытые websocket соединения
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_ws_connections",
			Help: "Number of open alert websocket connections",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_active_goroutines",
			Help: "Number of active goroutines",
		},
	)

	// TransformLatency время трансформации набора
	TransformLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashboard_transform_latency_seconds",
			Help:    "Feed transform latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05},
		},
	)
)

// UpdateBatchMetrics обновляет метрики текущего набора
func UpdateBatchMetrics(received, dropped, clean int, avgHumidity, avgTemperature float64) {
	FeedsReceived.Add(float64(received))
	FeedsDropped.Add(float64(dropped))
	CleanRecords.Set(float64(clean))
	AvgHumidity.Set(avgHumidity)
	AvgTemperature.Set(avgTemperature)
}
