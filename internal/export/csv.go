// Package export выгружает чистые записи ленты в CSV
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"time"

	"sensor-dashboard/internal/analytics"
	"sensor-dashboard/internal/models"
)

// Header заголовок CSV файла
var Header = []string{"Data/Hora", "Umidade (%)", "Temperatura (°C)"}

// NotAvailable выводится вместо отсутствующей метрики
const NotAvailable = "N/A"

// FileName имя файла выгрузки за дату now
func FileName(now time.Time) string {
	return fmt.Sprintf("dados-sensor-%s.csv", now.UTC().Format("2006-01-02"))
}

// WriteCSV пишет заголовок и по строке на запись; пустой набор дает только заголовок
func WriteCSV(w io.Writer, feeds []models.CleanFeed, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, f := range feeds {
		row := []string{
			analytics.FormatLabel(f.At, loc),
			formatValue(f.Humidity),
			formatValue(f.Temperature),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotAvailable
	}
	return analytics.Fixed2(v)
}
