// Package analytics преобразует сырую ленту датчика в ряды графика,
// очищенные записи и сводную статистику
package analytics

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"sensor-dashboard/internal/models"
)

const (
	// LabelLayout формат подписи точки графика и строки таблицы
	LabelLayout = "02/01/2006, 15:04:05"
	// DateLayout формат границ периода в сводке
	DateLayout = "02/01/2006"
	// EmptyPeriod выводится, когда в наборе нет чистых записей
	EmptyPeriod = "-"
)

// TimeSeries три параллельных ряда одинаковой длины
type TimeSeries struct {
	Labels      []string  `json:"labels"`
	Humidity    []float64 `json:"humidity"`
	Temperature []float64 `json:"temperature"`
}

// Len возвращает длину рядов
func (ts TimeSeries) Len() int {
	return len(ts.Labels)
}

// Period диапазон временных меток чистого набора
type Period struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Empty bool      `json:"empty"`
}

// Label форматирует период как "02/01/2006 - 09/01/2006" или "-"
func (p Period) Label(loc *time.Location) string {
	if p.Empty {
		return EmptyPeriod
	}
	return FormatDate(p.From, loc) + " - " + FormatDate(p.To, loc)
}

// SummaryStats сводка по чистым записям
type SummaryStats struct {
	Count          int     `json:"count"`
	AvgHumidity    float64 `json:"avgHumidity"`
	AvgTemperature float64 `json:"avgTemperature"`
	Period         Period  `json:"period"`
	PeriodLabel    string  `json:"periodLabel"`
}

// Result результат трансформации одного набора
type Result struct {
	Series     TimeSeries         `json:"series"`
	Stats      SummaryStats       `json:"stats"`
	CleanFeeds []models.CleanFeed `json:"-"`
	Dropped    int                `json:"dropped"`
}

// Empty возвращает безопасное пустое состояние
func Empty() Result {
	return Result{
		Series: TimeSeries{
			Labels:      []string{},
			Humidity:    []float64{},
			Temperature: []float64{},
		},
		Stats: SummaryStats{
			Period:      Period{Empty: true},
			PeriodLabel: EmptyPeriod,
		},
		CleanFeeds: []models.CleanFeed{},
	}
}

// Transform отбрасывает записи без одной из метрик, с нечисловым значением
// или с неразборчивой меткой времени, и строит ряды и статистику.
// Порядок набора сохраняется.
func Transform(batch models.FeedBatch, loc *time.Location) Result {
	if loc == nil {
		loc = time.Local
	}

	res := Empty()
	var sumH, sumT float64

	for _, rec := range batch {
		if !rec.Humidity.Usable() || !rec.Temperature.Usable() {
			res.Dropped++
			continue
		}
		at, err := models.ParseTimestamp(rec.CreatedAt, loc)
		if err != nil {
			res.Dropped++
			continue
		}

		clean := models.CleanFeed{
			At:          at,
			CreatedAt:   rec.CreatedAt,
			Humidity:    rec.Humidity.Value,
			Temperature: rec.Temperature.Value,
		}
		res.CleanFeeds = append(res.CleanFeeds, clean)

		res.Series.Labels = append(res.Series.Labels, FormatLabel(at, loc))
		res.Series.Humidity = append(res.Series.Humidity, clean.Humidity)
		res.Series.Temperature = append(res.Series.Temperature, clean.Temperature)

		sumH += clean.Humidity
		sumT += clean.Temperature

		if res.Stats.Period.Empty || at.Before(res.Stats.Period.From) {
			res.Stats.Period.From = at
		}
		if res.Stats.Period.Empty || at.After(res.Stats.Period.To) {
			res.Stats.Period.To = at
		}
		res.Stats.Period.Empty = false
	}

	n := len(res.CleanFeeds)
	res.Stats.Count = n
	if n > 0 {
		res.Stats.AvgHumidity = Round2(sumH / float64(n))
		res.Stats.AvgTemperature = Round2(sumT / float64(n))
	}
	res.Stats.PeriodLabel = res.Stats.Period.Label(loc)

	return res
}

// Fixed2 печатает v с двумя знаками после запятой, как toFixed(2) в браузере:
// округляется точное двоичное значение, половина уходит от нуля.
// 22.125 дает "22.13", а 2.675 (на деле 2.67499...) дает "2.67".
func Fixed2(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	return round2(v).StringFixed(2)
}

// Round2 числовая форма Fixed2; средние и отображаемые значения округляются одинаково
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := round2(v).Float64()
	return f
}

// round2 берет 40 знаков точного разложения: ближе к границе половины double не бывает
func round2(v float64) decimal.Decimal {
	return decimal.RequireFromString(strconv.FormatFloat(v, 'f', 40, 64)).Round(2)
}

// FormatLabel форматирует метку времени в зоне loc
func FormatLabel(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(LabelLayout)
}

// FormatDate форматирует дату в зоне loc
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}
