package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensor-dashboard/internal/analytics"
	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/models"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(min int) time.Time {
	return base.Add(time.Duration(min) * time.Minute)
}

func clean(min int, h, t float64) models.CleanFeed {
	return models.CleanFeed{At: at(min), Humidity: h, Temperature: t}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu      sync.Mutex
	notices []Notice
	err     error
}

func (r *recorder) Notify(_ context.Context, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return r.err
}

func newEvaluator(opts ...Option) *Evaluator {
	return NewEvaluator(config.DefaultThresholds, DefaultCooldown, time.UTC, opts...)
}

func TestEvaluate_MostRecentViolationPerSlot(t *testing.T) {
	e := newEvaluator()

	n := e.Evaluate([]models.CleanFeed{
		clean(1, 50, 25),
		clean(2, 65, 35),
		clean(3, 65, 25),
	})

	require.NotNil(t, n)
	assert.Equal(t, NoticeTitle, n.Title)
	assert.True(t, n.Sound)
	require.Len(t, n.Lines, 2)

	assert.Equal(t, KindHumidity, n.Lines[0].Kind)
	assert.Equal(t, at(1), n.Lines[0].At)
	assert.Equal(t, "Umidade fora do ideal: 50.00% às 01/05/2024, 12:01:00 (Ideal: 60% - 70%)", n.Lines[0].Text)

	assert.Equal(t, KindHighTemperature, n.Lines[1].Kind)
	assert.Equal(t, at(2), n.Lines[1].At)
	assert.Equal(t, "Temperatura alta: 35.00°C às 01/05/2024, 12:02:00 (Max: 30°C)", n.Lines[1].Text)
}

func TestEvaluate_PicksNewestRegardlessOfStoredOrder(t *testing.T) {
	e := newEvaluator()
	oldestFirst := []models.CleanFeed{clean(1, 40, 10), clean(2, 80, 5), clean(3, 65, 25)}
	newestFirst := []models.CleanFeed{clean(3, 65, 25), clean(2, 80, 5), clean(1, 40, 10)}

	for _, batch := range [][]models.CleanFeed{oldestFirst, newestFirst} {
		n := e.Evaluate(batch)
		require.NotNil(t, n)
		require.Len(t, n.Lines, 2)
		assert.Equal(t, at(2), n.Lines[0].At)
		assert.Equal(t, KindLowTemperature, n.Lines[1].Kind)
		assert.Equal(t, at(2), n.Lines[1].At)
		assert.Equal(t, "Temperatura baixa: 5.00°C às 01/05/2024, 12:02:00 (Min: 18°C)", n.Lines[1].Text)
	}
}

func TestEvaluate_AllThreeSlots(t *testing.T) {
	e := newEvaluator()

	n := e.Evaluate([]models.CleanFeed{
		clean(1, 65, 10),
		clean(2, 65, 40),
		clean(3, 90, 25),
	})

	require.NotNil(t, n)
	require.Len(t, n.Lines, 3)
	assert.Equal(t, []Kind{KindHumidity, KindLowTemperature, KindHighTemperature},
		[]Kind{n.Lines[0].Kind, n.Lines[1].Kind, n.Lines[2].Kind})
}

func TestEvaluate_StrictBoundaries(t *testing.T) {
	e := newEvaluator()

	n := e.Evaluate([]models.CleanFeed{
		clean(1, 60, 18),
		clean(2, 70, 30),
	})

	assert.Nil(t, n)
}

func TestEvaluate_LineValuesRoundTiesUp(t *testing.T) {
	e := newEvaluator()

	n := e.Evaluate([]models.CleanFeed{clean(1, 65, 30.125)})

	require.NotNil(t, n)
	require.Len(t, n.Lines, 1)
	assert.Equal(t, "Temperatura alta: 30.13°C às 01/05/2024, 12:01:00 (Max: 30°C)", n.Lines[0].Text)
}

func TestEvaluate_InRangeAndEmpty(t *testing.T) {
	e := newEvaluator()

	assert.Nil(t, e.Evaluate(nil))
	assert.Nil(t, e.Evaluate([]models.CleanFeed{clean(1, 65, 25), clean(2, 61, 19)}))
}

func TestEvaluate_NullMetricRecordExcluded(t *testing.T) {
	e := newEvaluator()
	batch := models.FeedBatch{
		{CreatedAt: "2024-05-01T12:00:00Z", Temperature: models.NewMetric(80)},
		{CreatedAt: "2024-05-01T12:01:00Z", Humidity: models.NewMetric(65), Temperature: models.NewMetric(25)},
	}

	res := analytics.Transform(batch, time.UTC)

	assert.Nil(t, e.Evaluate(res.CleanFeeds))
}

func TestMaybeRaise_Cooldown(t *testing.T) {
	clock := &fakeClock{now: base}
	rec := &recorder{}
	e := newEvaluator(WithClock(clock.Now), WithNotifiers(rec))
	batch := []models.CleanFeed{clean(1, 50, 25)}
	ctx := context.Background()

	assert.True(t, e.MaybeRaise(ctx, e.Evaluate(batch)))
	assert.Equal(t, base, e.LastRaised())

	clock.Advance(10 * time.Second)
	assert.False(t, e.MaybeRaise(ctx, e.Evaluate(batch)), "second notice within cooldown must be suppressed")
	assert.Equal(t, base, e.LastRaised())

	clock.Advance(20 * time.Second)
	assert.True(t, e.MaybeRaise(ctx, e.Evaluate(batch)))

	require.Len(t, rec.notices, 2)
	assert.NotEmpty(t, rec.notices[0].ID)
	assert.NotEqual(t, rec.notices[0].ID, rec.notices[1].ID)
	assert.Equal(t, base.Add(30*time.Second), rec.notices[1].RaisedAt)
}

func TestMaybeRaise_Nil(t *testing.T) {
	e := newEvaluator()
	assert.False(t, e.MaybeRaise(context.Background(), nil))
	assert.True(t, e.LastRaised().IsZero())
}

func TestMaybeRaise_NotifierErrorIsSwallowed(t *testing.T) {
	failing := &recorder{err: errors.New("broker down")}
	ok := &recorder{}
	e := newEvaluator(WithNotifiers(failing, ok))

	raised := e.MaybeRaise(context.Background(), e.Evaluate([]models.CleanFeed{clean(1, 50, 25)}))

	assert.True(t, raised)
	assert.Len(t, failing.notices, 1)
	assert.Len(t, ok.notices, 1)
}

func TestMaybeRaise_ConcurrentCallsRaiseOnce(t *testing.T) {
	clock := &fakeClock{now: base}
	rec := &recorder{}
	e := newEvaluator(WithClock(clock.Now), WithNotifiers(rec))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Check(context.Background(), []models.CleanFeed{clean(1, 50, 25)})
		}()
	}
	wg.Wait()

	assert.Len(t, rec.notices, 1)
}

func TestDedup(t *testing.T) {
	lines := []AlertLine{{Text: "a"}, {Text: "b"}, {Text: "a"}}
	assert.Equal(t, []AlertLine{{Text: "a"}, {Text: "b"}}, dedup(lines))
}

func BenchmarkEvaluate(b *testing.B) {
	e := newEvaluator()
	batch := make([]models.CleanFeed, 0, 100)
	for i := 0; i < 100; i++ {
		batch = append(batch, clean(i, 65, 25))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Evaluate(batch)
	}
}
