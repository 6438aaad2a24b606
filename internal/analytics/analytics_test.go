package analytics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"sensor-dashboard/internal/models"
)

func feed(ts string, h, t interface{}) models.FeedRecord {
	rec := models.FeedRecord{CreatedAt: ts}
	if v, ok := h.(float64); ok {
		rec.Humidity = models.NewMetric(v)
	}
	if v, ok := t.(float64); ok {
		rec.Temperature = models.NewMetric(v)
	}
	return rec
}

func TestTransform_DropsIncompleteRecords(t *testing.T) {
	batch := models.FeedBatch{
		feed("2024-05-01T10:00:00Z", 65.5, 22.1),
		feed("2024-05-01T10:05:00Z", nil, 45.0),
		feed("2024-05-01T10:10:00Z", 60.0, nil),
		feed("not-a-date", 61.0, 20.0),
		feed("2024-05-01T10:15:00Z", math.NaN(), 20.0),
		feed("2024-05-01T10:20:00Z", 70.25, 25.0),
	}

	res := Transform(batch, time.UTC)

	if res.Series.Len() != 2 {
		t.Fatalf("Expected 2 clean records, got %d", res.Series.Len())
	}
	if len(res.Series.Humidity) != 2 || len(res.Series.Temperature) != 2 {
		t.Errorf("Series lengths differ: labels=%d humidity=%d temperature=%d",
			len(res.Series.Labels), len(res.Series.Humidity), len(res.Series.Temperature))
	}
	if res.Dropped != 4 {
		t.Errorf("Expected 4 dropped records, got %d", res.Dropped)
	}
	if res.Stats.Count != res.Series.Len() {
		t.Errorf("Count %d does not match series length %d", res.Stats.Count, res.Series.Len())
	}
	if len(res.CleanFeeds) != 2 {
		t.Errorf("Expected 2 clean feeds, got %d", len(res.CleanFeeds))
	}
}

func TestTransform_PreservesOrderAndLabels(t *testing.T) {
	batch := models.FeedBatch{
		feed("2024-05-01T10:20:00Z", 61.0, 21.0),
		feed("2024-05-01T10:00:00Z", 62.0, 22.0),
	}

	res := Transform(batch, time.UTC)

	want := []string{"01/05/2024, 10:20:00", "01/05/2024, 10:00:00"}
	for i, label := range want {
		if res.Series.Labels[i] != label {
			t.Errorf("Label %d: expected %q, got %q", i, label, res.Series.Labels[i])
		}
	}
	if res.Series.Humidity[0] != 61.0 || res.Series.Temperature[1] != 22.0 {
		t.Errorf("Series not index-aligned with batch: %+v", res.Series)
	}
}

func TestTransform_LabelsUseLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	res := Transform(models.FeedBatch{feed("2024-05-01T10:00:00Z", 65.0, 25.0)}, loc)

	if res.Series.Labels[0] != "01/05/2024, 07:00:00" {
		t.Errorf("Expected local label, got %q", res.Series.Labels[0])
	}
}

func TestTransform_Stats(t *testing.T) {
	batch := models.FeedBatch{
		feed("2024-05-03T08:00:00Z", 65.5, 22.1),
		feed("2024-05-01T08:00:00Z", 60.0, 18.3),
		feed("2024-05-02T08:00:00Z", 70.25, 25.0),
	}

	res := Transform(batch, time.UTC)

	if res.Stats.AvgHumidity != 65.25 {
		t.Errorf("Expected avg humidity 65.25, got %v", res.Stats.AvgHumidity)
	}
	if res.Stats.AvgTemperature != 21.8 {
		t.Errorf("Expected avg temperature 21.8, got %v", res.Stats.AvgTemperature)
	}
	if res.Stats.Period.Empty {
		t.Fatal("Period should not be empty")
	}
	if res.Stats.PeriodLabel != "01/05/2024 - 03/05/2024" {
		t.Errorf("Unexpected period label %q", res.Stats.PeriodLabel)
	}
}

func TestTransform_Empty(t *testing.T) {
	for name, batch := range map[string]models.FeedBatch{
		"nil":       nil,
		"all nulls": {feed("2024-05-01T10:00:00Z", nil, nil)},
	} {
		res := Transform(batch, time.UTC)
		if res.Stats.Count != 0 || res.Stats.AvgHumidity != 0 || res.Stats.AvgTemperature != 0 {
			t.Errorf("%s: expected zero stats, got %+v", name, res.Stats)
		}
		if !res.Stats.Period.Empty || res.Stats.PeriodLabel != EmptyPeriod {
			t.Errorf("%s: expected empty period sentinel, got %+v", name, res.Stats.Period)
		}
		if res.Series.Labels == nil || res.Series.Humidity == nil || res.Series.Temperature == nil {
			t.Errorf("%s: series must be empty slices, not nil", name)
		}
	}
}

func TestTransform_DecodedUpstreamPayload(t *testing.T) {
	payload := `{"feeds":[
		{"created_at":"2024-05-01T10:00:00Z","field1":"64.20","field2":"23.5"},
		{"created_at":"2024-05-01T10:01:00Z","field1":null,"field2":"40"},
		{"created_at":"2024-05-01T10:02:00Z","field1":"abc","field2":20}
	]}`
	var resp models.FeedsResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}

	res := Transform(resp.Feeds, time.UTC)

	if res.Stats.Count != 1 {
		t.Fatalf("Expected 1 clean record, got %d", res.Stats.Count)
	}
	if res.Series.Humidity[0] != 64.2 || res.Series.Temperature[0] != 23.5 {
		t.Errorf("Unexpected values %v / %v", res.Series.Humidity[0], res.Series.Temperature[0])
	}
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		2.675:   2.67,
		-2.675:  -2.67,
		1.005:   1,
		22.125:  22.13,
		-22.125: -22.13,
		3.14159: 3.14,
		0:       0,
	}
	for in, want := range cases {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v): expected %v, got %v", in, want, got)
		}
	}
}

func TestFixed2(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{22.125, "22.13"},
		{-22.125, "-22.13"},
		{2.675, "2.67"},
		{1.005, "1.00"},
		{65.5, "65.50"},
		{18, "18.00"},
		{0.125, "0.13"},
	}
	for _, c := range cases {
		if got := Fixed2(c.in); got != c.want {
			t.Errorf("Fixed2(%v): expected %q, got %q", c.in, c.want, got)
		}
	}
	if got := Fixed2(math.NaN()); got != "NaN" {
		t.Errorf("Fixed2(NaN): expected %q, got %q", "NaN", got)
	}
}

func BenchmarkTransform(b *testing.B) {
	batch := make(models.FeedBatch, 0, 100)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		ts := start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339)
		batch = append(batch, feed(ts, 55.0+float64(i%20), 15.0+float64(i%20)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Transform(batch, time.UTC)
	}
}
