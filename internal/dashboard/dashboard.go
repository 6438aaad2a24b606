// Package dashboard связывает получение ленты, трансформацию и оценку алертов
// в одно состояние панели, которое читают HTTP обработчики
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"sensor-dashboard/internal/alerting"
	"sensor-dashboard/internal/analytics"
	"sensor-dashboard/internal/gateway"
	"sensor-dashboard/internal/logger"
	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/models"
)

const (
	// ItemsPerPage строк таблицы на странице
	ItemsPerPage = 20
	// DefaultLimit лимит выборки по умолчанию
	DefaultLimit = 100
	// DefaultWindow окно фильтра по умолчанию
	DefaultWindow = 7 * 24 * time.Hour
	// QueryDateLayout формат start_date/end_date
	QueryDateLayout = "2006-01-02T15:04"

	counterRaised     = "alerts:raised"
	counterSuppressed = "alerts:suppressed"
)

// ErrSuperseded возвращается обновлением, которое вытеснил более новый запрос
var ErrSuperseded = errors.New("refresh superseded by a newer request")

// Fetcher источник ленты
type Fetcher interface {
	FetchFeeds(ctx context.Context, q gateway.FeedQuery) (models.FeedBatch, error)
}

// Store хранилище снимка и счетчиков алертов
type Store interface {
	CacheSnapshot(ctx context.Context, data []byte) error
	LatestSnapshot(ctx context.Context) ([]byte, error)
	IncrementCounter(ctx context.Context, key string) (int64, error)
}

// Snapshot текущее состояние панели
type Snapshot struct {
	Query     gateway.FeedQuery      `json:"query"`
	Series    analytics.TimeSeries   `json:"series"`
	Stats     analytics.SummaryStats `json:"stats"`
	Feeds     []models.CleanFeed     `json:"feeds"`
	Dropped   int                    `json:"dropped"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// Row строка таблицы
type Row struct {
	Label       string  `json:"label"`
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
}

// Page страница таблицы; From и To нумеруются с единицы
type Page struct {
	Number int   `json:"page"`
	Pages  int   `json:"pages"`
	Total  int   `json:"total"`
	From   int   `json:"from"`
	To     int   `json:"to"`
	Rows   []Row `json:"rows"`
}

// Dashboard состояние одной сессии панели
type Dashboard struct {
	fetcher   Fetcher
	evaluator *alerting.Evaluator
	store     Store
	loc       *time.Location
	log       logger.Logger
	now       func() time.Time

	mu     sync.RWMutex
	seq    uint64
	cancel context.CancelFunc
	snap   Snapshot
	notice *alerting.Notice
}

// Cfg зависимости Dashboard; Store может быть nil
type Cfg struct {
	Fetcher   Fetcher
	Evaluator *alerting.Evaluator
	Store     Store
	Location  *time.Location
	Log       logger.Logger
	Now       func() time.Time
}

// New создает панель в пустом состоянии
func New(c Cfg) *Dashboard {
	d := &Dashboard{
		fetcher:   c.Fetcher,
		evaluator: c.Evaluator,
		store:     c.Store,
		loc:       c.Location,
		log:       c.Log,
		now:       c.Now,
	}
	if d.loc == nil {
		d.loc = time.Local
	}
	if d.log == nil {
		d.log = logger.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.snap = emptySnapshot(gateway.FeedQuery{}, time.Time{})
	return d
}

// DefaultQuery последние 7 дней с лимитом 100
func DefaultQuery(now time.Time) gateway.FeedQuery {
	end := now.UTC()
	return gateway.FeedQuery{
		Limit:     DefaultLimit,
		StartDate: end.Add(-DefaultWindow).Format(QueryDateLayout),
		EndDate:   end.Format(QueryDateLayout),
	}
}

// Refresh получает ленту, строит ряды и статистику, оценивает алерты и сохраняет состояние.
// Новый вызов отменяет незавершенный предыдущий; устаревший ответ возвращает ErrSuperseded.
// При ошибке получения состояние сбрасывается в пустое.
func (d *Dashboard) Refresh(ctx context.Context, q gateway.FeedQuery) (Snapshot, error) {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.seq++
	seq := d.seq
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	batch, err := d.fetcher.FetchFeeds(ctx, q)

	d.mu.Lock()
	if seq != d.seq {
		d.mu.Unlock()
		metrics.RefreshesSuperseded.Inc()
		d.log.With("event", logger.EventFetchSuperseded).Debugf("refresh #%d superseded", seq)
		return Snapshot{}, ErrSuperseded
	}
	d.cancel = nil

	if err != nil {
		d.snap = emptySnapshot(q, d.now())
		d.notice = nil
		snap := d.snap
		d.mu.Unlock()
		d.log.With("event", logger.EventFetchFailed).Errorf("failed to fetch feeds: %s", err)
		return snap, err
	}

	start := time.Now()
	res := analytics.Transform(batch, d.loc)
	metrics.TransformLatency.Observe(time.Since(start).Seconds())
	metrics.UpdateBatchMetrics(len(batch), res.Dropped, res.Stats.Count, res.Stats.AvgHumidity, res.Stats.AvgTemperature)

	snap := Snapshot{
		Query:     q,
		Series:    res.Series,
		Stats:     res.Stats,
		Feeds:     res.CleanFeeds,
		Dropped:   res.Dropped,
		UpdatedAt: d.now(),
	}
	d.snap = snap
	notice, raised := d.claim(res.CleanFeeds)
	d.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	if raised {
		d.evaluator.Dispatch(bg, notice)
	}
	d.count(bg, notice, raised)
	d.persist(bg, snap)

	return snap, nil
}

// claim оценивает набор и, если охлаждение истекло, запоминает уведомление.
// Вызывается под d.mu вместе с фиксацией снимка: более новое обновление
// не может вклиниться между выпуском уведомления и его сохранением.
func (d *Dashboard) claim(clean []models.CleanFeed) (alerting.Notice, bool) {
	if d.evaluator == nil {
		return alerting.Notice{}, false
	}
	n := d.evaluator.Evaluate(clean)
	if n == nil {
		return alerting.Notice{}, false
	}
	if !d.evaluator.Claim(n) {
		return *n, false
	}
	stored := *n
	d.notice = &stored
	return *n, true
}

// count ведет счетчики выпущенных и подавленных уведомлений
func (d *Dashboard) count(ctx context.Context, n alerting.Notice, raised bool) {
	if d.store == nil || len(n.Lines) == 0 {
		return
	}
	key := counterSuppressed
	if raised {
		key = counterRaised
	}
	if _, err := d.store.IncrementCounter(ctx, key); err != nil {
		d.log.Warnf("failed to increment %s: %s", key, err)
	}
}

func (d *Dashboard) persist(ctx context.Context, snap Snapshot) {
	if d.store == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		d.log.Errorf("failed to marshal snapshot: %s", err)
		return
	}
	if err := d.store.CacheSnapshot(ctx, data); err != nil {
		d.log.Warnf("failed to cache snapshot: %s", err)
	}
}

// Restore загружает последний сохраненный снимок; отсутствие снимка не ошибка
func (d *Dashboard) Restore(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	data, err := d.store.LatestSnapshot(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Feeds == nil {
		snap.Feeds = []models.CleanFeed{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snap.UpdatedAt.IsZero() {
		d.snap = snap
	}
	return nil
}

// Snapshot возвращает текущее состояние
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Page возвращает страницу n таблицы; n ограничивается диапазоном [1, Pages]
func (d *Dashboard) Page(n int) Page {
	d.mu.RLock()
	feeds := d.snap.Feeds
	d.mu.RUnlock()

	return paginate(feeds, n, d.loc)
}

// LastNotice последнее выпущенное и не подтвержденное уведомление
func (d *Dashboard) LastNotice() *alerting.Notice {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.notice == nil {
		return nil
	}
	n := *d.notice
	return &n
}

// Acknowledge закрывает баннер; пустой id закрывает любое уведомление
func (d *Dashboard) Acknowledge(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.notice == nil || (id != "" && d.notice.ID != id) {
		return false
	}
	d.notice = nil
	return true
}

// Run периодически обновляет панель, пока ctx не отменен.
// Окно дат на каждом тике отсчитывается от текущего времени, лимит берется из последнего запроса.
func (d *Dashboard) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q := DefaultQuery(d.now())
			if last := d.Snapshot().Query.Limit; last > 0 {
				q.Limit = last
			}
			if _, err := d.Refresh(ctx, q); err != nil && !errors.Is(err, ErrSuperseded) {
				d.log.Warnf("poll refresh failed: %s", gateway.Message(err))
			}
		}
	}
}

func paginate(feeds []models.CleanFeed, n int, loc *time.Location) Page {
	total := len(feeds)
	pages := (total + ItemsPerPage - 1) / ItemsPerPage
	if pages < 1 {
		pages = 1
	}
	if n < 1 {
		n = 1
	}
	if n > pages {
		n = pages
	}

	p := Page{Number: n, Pages: pages, Total: total, Rows: []Row{}}
	if total == 0 {
		return p
	}

	start := (n - 1) * ItemsPerPage
	end := start + ItemsPerPage
	if end > total {
		end = total
	}
	p.From = start + 1
	p.To = end
	for _, f := range feeds[start:end] {
		p.Rows = append(p.Rows, Row{
			Label:       analytics.FormatLabel(f.At, loc),
			Humidity:    f.Humidity,
			Temperature: f.Temperature,
		})
	}
	return p
}

func emptySnapshot(q gateway.FeedQuery, at time.Time) Snapshot {
	res := analytics.Empty()
	return Snapshot{
		Query:     q,
		Series:    res.Series,
		Stats:     res.Stats,
		Feeds:     res.CleanFeeds,
		UpdatedAt: at,
	}
}
