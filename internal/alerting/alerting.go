// Package alerting ищет последние нарушения порогов в чистом наборе
// и выпускает уведомление не чаще одного раза за период охлаждения
package alerting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sensor-dashboard/internal/analytics"
	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/logger"
	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/models"
)

// NoticeTitle заголовок баннера
const NoticeTitle = "Principais Alertas Recentes:"

// DefaultCooldown минимальный интервал между двумя уведомлениями
const DefaultCooldown = 30 * time.Second

// Kind вид нарушения
type Kind string

const (
	KindHumidity        Kind = "humidity"
	KindLowTemperature  Kind = "temperature_low"
	KindHighTemperature Kind = "temperature_high"
)

// AlertLine одна строка уведомления
type AlertLine struct {
	Kind      Kind      `json:"kind"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	At        time.Time `json:"at"`
	Threshold string    `json:"threshold"`
	Text      string    `json:"text"`
}

// Notice составное уведомление о нарушениях
type Notice struct {
	ID       string      `json:"id"`
	RaisedAt time.Time   `json:"raisedAt"`
	Title    string      `json:"title"`
	Lines    []AlertLine `json:"lines"`
	Sound    bool        `json:"sound"`
}

// Notifier доставляет выпущенное уведомление
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Evaluator хранит состояние охлаждения одной сессии панели
type Evaluator struct {
	thresholds config.Thresholds
	cooldown   time.Duration
	loc        *time.Location
	now        func() time.Time
	notifiers  []Notifier
	log        logger.Logger

	mu         sync.Mutex
	lastRaised time.Time
}

// Option настраивает Evaluator
type Option func(*Evaluator)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithNotifiers задает получателей уведомлений
func WithNotifiers(n ...Notifier) Option {
	return func(e *Evaluator) { e.notifiers = append(e.notifiers, n...) }
}

// WithLogger задает логгер
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) { e.log = l }
}

// NewEvaluator создает оценщик; cooldown < 0 трактуется как 0
func NewEvaluator(th config.Thresholds, cooldown time.Duration, loc *time.Location, opts ...Option) *Evaluator {
	if cooldown < 0 {
		cooldown = 0
	}
	if loc == nil {
		loc = time.Local
	}
	e := &Evaluator{
		thresholds: th,
		cooldown:   cooldown,
		loc:        loc,
		now:        time.Now,
		log:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate строит уведомление по чистому набору или возвращает nil.
// Состояние охлаждения не затрагивается.
func (e *Evaluator) Evaluate(clean []models.CleanFeed) *Notice {
	if len(clean) == 0 {
		return nil
	}

	var humidity, low, high *models.CleanFeed
	for _, f := range newestFirst(clean) {
		f := f
		if humidity == nil && !math.IsNaN(f.Humidity) &&
			(f.Humidity < e.thresholds.HumidityMin || f.Humidity > e.thresholds.HumidityMax) {
			humidity = &f
		}
		if !math.IsNaN(f.Temperature) {
			if low == nil && f.Temperature < e.thresholds.TemperatureMin {
				low = &f
			}
			if high == nil && f.Temperature > e.thresholds.TemperatureMax {
				high = &f
			}
		}
		if humidity != nil && low != nil && high != nil {
			break
		}
	}

	var lines []AlertLine
	if humidity != nil {
		lines = append(lines, e.humidityLine(*humidity))
	}
	if low != nil {
		lines = append(lines, e.lowLine(*low))
	}
	if high != nil {
		lines = append(lines, e.highLine(*high))
	}

	lines = dedup(lines)
	if len(lines) == 0 {
		return nil
	}
	return &Notice{Title: NoticeTitle, Lines: lines, Sound: true}
}

// MaybeRaise выпускает уведомление, если период охлаждения истек.
// Подавленное уведомление отбрасывается. Ошибки получателей только логируются.
func (e *Evaluator) MaybeRaise(ctx context.Context, n *Notice) bool {
	if !e.Claim(n) {
		return false
	}
	e.Dispatch(ctx, *n)
	return true
}

// Claim занимает окно охлаждения и присваивает уведомлению ID и время выпуска.
// Получатели не вызываются; false значит, что уведомление подавлено.
func (e *Evaluator) Claim(n *Notice) bool {
	if n == nil {
		return false
	}

	e.mu.Lock()
	now := e.now()
	if !e.lastRaised.IsZero() && now.Sub(e.lastRaised) < e.cooldown {
		last := e.lastRaised
		e.mu.Unlock()
		metrics.AlertsSuppressed.Inc()
		e.log.With("event", logger.EventAlertSuppressed).Debugf("alert suppressed, last raised at %s", last.Format(time.RFC3339))
		return false
	}
	e.lastRaised = now
	e.mu.Unlock()

	n.ID = uuid.NewString()
	n.RaisedAt = now
	metrics.AlertsRaised.Inc()
	e.log.With("event", logger.EventAlertRaised).Infof("alert raised with %d line(s)", len(n.Lines))
	return true
}

// Dispatch рассылает уже выпущенное уведомление всем получателям
func (e *Evaluator) Dispatch(ctx context.Context, n Notice) {
	for _, nt := range e.notifiers {
		if err := nt.Notify(ctx, n); err != nil {
			e.log.With("event", logger.EventNotifyFailed).Errorf("notifier %T failed: %s", nt, err)
		}
	}
}

// Check выполняет Evaluate и MaybeRaise; возвращает выпущенное уведомление или nil
func (e *Evaluator) Check(ctx context.Context, clean []models.CleanFeed) *Notice {
	n := e.Evaluate(clean)
	if !e.MaybeRaise(ctx, n) {
		return nil
	}
	return n
}

// LastRaised время последнего выпущенного уведомления
func (e *Evaluator) LastRaised() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRaised
}

func (e *Evaluator) humidityLine(f models.CleanFeed) AlertLine {
	th := fmt.Sprintf("Ideal: %s%% - %s%%", num(e.thresholds.HumidityMin), num(e.thresholds.HumidityMax))
	return AlertLine{
		Kind:      KindHumidity,
		Metric:    "humidity",
		Value:     f.Humidity,
		At:        f.At,
		Threshold: th,
		Text:      fmt.Sprintf("Umidade fora do ideal: %s%% às %s (%s)", analytics.Fixed2(f.Humidity), analytics.FormatLabel(f.At, e.loc), th),
	}
}

func (e *Evaluator) lowLine(f models.CleanFeed) AlertLine {
	th := fmt.Sprintf("Min: %s°C", num(e.thresholds.TemperatureMin))
	return AlertLine{
		Kind:      KindLowTemperature,
		Metric:    "temperature",
		Value:     f.Temperature,
		At:        f.At,
		Threshold: th,
		Text:      fmt.Sprintf("Temperatura baixa: %s°C às %s (%s)", analytics.Fixed2(f.Temperature), analytics.FormatLabel(f.At, e.loc), th),
	}
}

func (e *Evaluator) highLine(f models.CleanFeed) AlertLine {
	th := fmt.Sprintf("Max: %s°C", num(e.thresholds.TemperatureMax))
	return AlertLine{
		Kind:      KindHighTemperature,
		Metric:    "temperature",
		Value:     f.Temperature,
		At:        f.At,
		Threshold: th,
		Text:      fmt.Sprintf("Temperatura alta: %s°C às %s (%s)", analytics.Fixed2(f.Temperature), analytics.FormatLabel(f.At, e.loc), th),
	}
}

// newestFirst копия набора от самой свежей записи к самой старой;
// при равных метках сохраняется обратный порядок хранения
func newestFirst(clean []models.CleanFeed) []models.CleanFeed {
	out := make([]models.CleanFeed, len(clean))
	for i, f := range clean {
		out[len(clean)-1-i] = f
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.After(out[j].At)
	})
	return out
}

func dedup(lines []AlertLine) []AlertLine {
	seen := make(map[string]struct{}, len(lines))
	out := lines[:0]
	for _, l := range lines {
		if _, ok := seen[l.Text]; ok {
			continue
		}
		seen[l.Text] = struct{}{}
		out = append(out, l)
	}
	return out
}

// num печатает порог без лишних нулей: 60, 18.5
func num(v float64) string {
	return fmt.Sprintf("%g", v)
}
