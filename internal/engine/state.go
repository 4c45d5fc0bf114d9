package engine

import (
	"alertbot/internal/models"
	"sort"
	"sync"
	"time"
)

type TradeRecord struct {
	ID          string             `json:"id"`
	RequestID   string             `json:"request_id"`
	Time        time.Time          `json:"time"`
	Ticker      string             `json:"ticker"`
	Epic        string             `json:"epic"`
	Params      TradeParameters    `json:"params"`
	Result      models.OrderResult `json:"result"`
	MarketPrice float64            `json:"market_price"`
	Error       string             `json:"error,omitempty"`
}

type TradeLog interface {
	HasTradedToday(ticker string) bool
	RecordTrade(rec TradeRecord)
	ResetIfNewDay(now time.Time) bool
	Get(ticker string) (TradeRecord, bool)
	Today() []TradeRecord
	Reset()
}

type MemoryTradeLog struct {
	mu     sync.Mutex
	day    string
	trades map[string]TradeRecord
}

func NewMemoryTradeLog(now time.Time) *MemoryTradeLog {
	return &MemoryTradeLog{
		day:    dayKey(now),
		trades: map[string]TradeRecord{},
	}
}

func (l *MemoryTradeLog) HasTradedToday(ticker string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.trades[ticker]
	return ok
}

func (l *MemoryTradeLog) RecordTrade(rec TradeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades[rec.Ticker] = rec
}

func (l *MemoryTradeLog) ResetIfNewDay(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := dayKey(now)
	if key == l.day {
		return false
	}
	l.day = key
	l.trades = map[string]TradeRecord{}
	return true
}

func (l *MemoryTradeLog) Get(ticker string) (TradeRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.trades[ticker]
	return rec, ok
}

func (l *MemoryTradeLog) Today() []TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TradeRecord, 0, len(l.trades))
	for _, rec := range l.trades {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

func (l *MemoryTradeLog) Reset() {
	l.mu.Lock()
	l.trades = map[string]TradeRecord{}
	l.mu.Unlock()
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
