package dividend

import (
	"alertbot/internal/logger"
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Fetcher interface {
	NextExDividend(ctx context.Context, yahooSymbol string) (time.Time, bool, error)
}

type Store interface {
	Symbols() []string
	SetDividendDate(symbol string, date time.Time) bool
	Save() error
}

// Entry - результат проверки одного тикера.
type Entry struct {
	Symbol      string    `json:"symbol"`
	YahooSymbol string    `json:"yahoo_symbol"`
	ExDividend  time.Time `json:"ex_dividend,omitempty"`
	Upcoming    bool      `json:"upcoming"`
	Error       string    `json:"error,omitempty"`
}

type Refresher struct {
	store   Store
	fetcher Fetcher
	log     *logger.Logger
	now     func() time.Time
}

func NewRefresher(store Store, fetcher Fetcher, log *logger.Logger) *Refresher {
	return &Refresher{
		store:   store,
		fetcher: fetcher,
		log:     log,
		now:     time.Now,
	}
}

// Check запрашивает даты для всех тикеров таблицы, ничего не меняя.
// Ошибки по отдельным тикерам попадают в Entry.Error.
func (r *Refresher) Check(ctx context.Context) []Entry {
	today := truncateDay(r.now())
	symbols := r.store.Symbols()
	entries := make([]Entry, 0, len(symbols))

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		entry := Entry{Symbol: symbol}

		ys, err := YahooSymbol(symbol)
		if err != nil {
			entry.Error = err.Error()
			r.logEntry().WithError(err).WithField("symbol", symbol).Warn("Тикер пропущен.")
			entries = append(entries, entry)
			continue
		}
		entry.YahooSymbol = ys

		date, ok, err := r.fetcher.NextExDividend(ctx, ys)
		switch {
		case err != nil:
			entry.Error = err.Error()
			r.logEntry().WithError(err).WithField("symbol", symbol).Warn("Не удалось получить дивидендную дату.")
		case ok:
			entry.ExDividend = date
			entry.Upcoming = !truncateDay(date).Before(today)
		}
		entries = append(entries, entry)
	}
	return entries
}

// Run обновляет будущие ex-dividend даты в таблице и сохраняет её.
func (r *Refresher) Run(ctx context.Context) ([]Entry, error) {
	entries := r.Check(ctx)

	updated := 0
	for _, e := range entries {
		if e.Upcoming && r.store.SetDividendDate(e.Symbol, e.ExDividend) {
			updated++
		}
	}

	r.logEntry().WithFields(logrus.Fields{
		"checked": len(entries),
		"updated": updated,
	}).Info("Дивидендные даты обновлены.")

	if updated == 0 {
		return entries, nil
	}
	if err := r.store.Save(); err != nil {
		return entries, fmt.Errorf("Не удалось сохранить дивидендные даты: %w", err)
	}
	return entries, nil
}

// Schedule запускает Run по cron-выражению с секундами.
func (r *Refresher) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(spec, func() {
		if _, err := r.Run(ctx); err != nil {
			r.logEntry().WithError(err).Error("Плановое обновление дивидендов завершилось ошибкой.")
		}
	}); err != nil {
		return nil, fmt.Errorf("Некорректное расписание дивидендов %q: %w", spec, err)
	}
	c.Start()
	r.logEntry().WithField("cron", spec).Info("Планировщик дивидендов запущен.")
	return c, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *Refresher) logEntry() *logrus.Entry {
	return r.log.WithComponent("dividend")
}
