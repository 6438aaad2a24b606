// Package models содержит структуры данных ленты датчика, пользователей и ответов API
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Metric значение датчика, которое может отсутствовать (null в JSON).
// Upstream иногда отдает числа строками, поэтому принимаются оба варианта.
type Metric struct {
	Value float64
	Valid bool
}

// NewMetric создает присутствующее значение
func NewMetric(v float64) Metric {
	return Metric{Value: v, Valid: true}
}

// UnmarshalJSON разбирает число, числовую строку или null.
// Нечисловое значение сохраняется как NaN и отбрасывается при трансформации.
func (m *Metric) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*m = Metric{}
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			v = math.NaN()
		}
		*m = Metric{Value: v, Valid: true}
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			v = math.NaN()
		}
		*m = Metric{Value: v, Valid: true}
	}
	return nil
}

// MarshalJSON отдает null для отсутствующих и нечисловых значений
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Usable() {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// Usable сообщает, что значение присутствует и является конечным числом
func (m Metric) Usable() bool {
	return m.Valid && !math.IsNaN(m.Value) && !math.IsInf(m.Value, 0)
}

// FeedRecord одно измерение датчика в формате upstream API
type FeedRecord struct {
	CreatedAt   string `json:"created_at"`
	Humidity    Metric `json:"field1"`
	Temperature Metric `json:"field2"`
}

// FeedBatch упорядоченный набор записей, полученный одним запросом
type FeedBatch []FeedRecord

// FeedsResponse тело ответа GET /data
type FeedsResponse struct {
	Feeds FeedBatch `json:"feeds"`
	Error string    `json:"error,omitempty"`
}

// CleanFeed запись, у которой обе метрики и временная метка разобраны
type CleanFeed struct {
	At          time.Time `json:"at"`
	CreatedAt   string    `json:"created_at"`
	Humidity    float64   `json:"humidity"`
	Temperature float64   `json:"temperature"`
}

// timestampLayouts форматы created_at в порядке проверки; форматы без зоны читаются в локальной зоне
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseTimestamp разбирает ISO-8601 временную метку
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Uptime    string    `json:"uptime"`
}
