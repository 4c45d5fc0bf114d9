package engine

import (
	"alertbot/internal/alert"
	"alertbot/internal/config"
	"alertbot/internal/exchange"
	"alertbot/internal/logger"
	"alertbot/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type TickerStore interface {
	TickerSource
	EpicSource
	IsDividendDate(symbol string, today time.Time) bool
}

type Result struct {
	Status         Status            `json:"status"`
	Message        string            `json:"message"`
	Kind           Kind              `json:"kind,omitempty"`
	Retryable      bool              `json:"retryable,omitempty"`
	RequestID      string            `json:"request_id,omitempty"`
	Ticker         string            `json:"ticker,omitempty"`
	TradeDirection models.OrderSide  `json:"trade_direction,omitempty"`
	EntryPrice     float64           `json:"entry_price,omitempty"`
	StopDistance   float64           `json:"stop_distance,omitempty"`
	LimitDistance  float64           `json:"limit_distance,omitempty"`
	PositionSize   float64           `json:"position_size,omitempty"`
	Epic           string            `json:"epic,omitempty"`
	OrderType      models.OrderType  `json:"order_type,omitempty"`
	OrderReference string            `json:"order_reference,omitempty"`
	DealID         string            `json:"deal_id,omitempty"`
	DealStatus     models.DealStatus `json:"deal_status,omitempty"`
	TestMode       bool              `json:"test_mode,omitempty"`
	Params         *TradeParameters  `json:"trade_params,omitempty"`
}

type Engine struct {
	cfg     *config.Config
	client  exchange.Client
	tickers TickerStore
	trades  TradeLog
	calc    *Calculator
	epics   *epicResolver
	log     *logger.Logger
	now     func() time.Time
}

func New(cfg *config.Config, client exchange.Client, store TickerStore, trades TradeLog, log *logger.Logger) *Engine {
	if trades == nil {
		trades = NewMemoryTradeLog(time.Now())
	}
	return &Engine{
		cfg:     cfg,
		client:  client,
		tickers: store,
		trades:  trades,
		calc:    NewCalculator(store, NewTieredNormalizer(log), cfg.Trading.MinPositionSize, log),
		epics:   newEpicResolver(store, client, log),
		log:     log,
		now:     time.Now,
	}
}

// ProcessAlert проводит алерт через все стадии и всегда возвращает Result.
func (e *Engine) ProcessAlert(ctx context.Context, payload alert.Payload) Result {
	requestID := newRequestID()
	entry := e.log.WithRequestID(requestID).WithField("component", "engine")
	entry.WithFields(logrus.Fields{
		"message":   payload.Message,
		"test_mode": payload.TestMode,
	}).Info("Получен алерт.")

	res, params, rej := e.process(ctx, entry, requestID, payload)
	res.RequestID = requestID
	res.TestMode = payload.TestMode
	if params != nil {
		res.fill(*params)
	}
	if rej != nil {
		res.Status = StatusError
		res.Kind = rej.Kind
		res.Retryable = rej.Kind.Retryable()
		res.Message = rej.Message
		le := entry.WithFields(logrus.Fields{
			"kind":   rej.Kind,
			"ticker": res.Ticker,
		})
		if rej.Err != nil {
			le = le.WithError(rej.Err)
		}
		le.Warn("Алерт отклонён: " + rej.Message)
		return res
	}

	res.Status = StatusSuccess
	entry.WithFields(logrus.Fields{
		"ticker":          res.Ticker,
		"epic":            res.Epic,
		"order_reference": res.OrderReference,
		"deal_id":         res.DealID,
	}).Info(res.Message)
	return res
}

func (e *Engine) process(ctx context.Context, entry *logrus.Entry, requestID string, payload alert.Payload) (Result, *TradeParameters, *Rejection) {
	now := e.now()
	if e.trades.ResetIfNewDay(now) {
		entry.Info("Новый торговый день, журнал сделок очищен.")
	}

	if e.cfg.Validation.CheckAlertAge && !payload.Timestamp.IsZero() {
		if age := now.Sub(payload.Timestamp); age > e.cfg.Trading.MaxAlertAge {
			return Result{}, nil, reject(KindStale, nil, "Алерт устарел: возраст %s больше %s", age.Round(time.Millisecond), e.cfg.Trading.MaxAlertAge)
		}
	}

	sig, err := alert.Parse(payload.Message)
	if err != nil {
		return Result{}, nil, reject(KindParse, err, "Не удалось разобрать алерт")
	}
	res := Result{Ticker: sig.Ticker}
	entry = entry.WithField("ticker", sig.Ticker)

	if rej := e.validateLocal(sig.Ticker, now); rej != nil {
		return res, nil, rej
	}

	epic, rej := e.resolveEpic(ctx, sig.Ticker)
	if rej != nil {
		return res, nil, rej
	}
	res.Epic = epic
	entry = entry.WithField("epic", epic)

	if rej := e.validatePositions(ctx, sig.Ticker, epic); rej != nil {
		return res, nil, rej
	}

	quote, err := e.client.GetQuote(ctx, epic)
	if err != nil {
		return res, nil, reject(KindQuoteUnavailable, err, "Нет котировки для %s", epic)
	}
	if quote.Mid <= 0 {
		return res, nil, reject(KindQuoteUnavailable, nil, "Нулевая котировка для %s (status=%s)", epic, quote.Status)
	}
	entry.WithFields(logrus.Fields{
		"bid":    quote.Bid,
		"offer":  quote.Offer,
		"status": quote.Status,
	}).Info("Котировка получена.")

	mid := quote.Mid
	params, err := e.calc.Calculate(sig.Ticker, sig.Direction, sig.ReferencePrice, sig.ATR, &mid)
	if err != nil {
		if errors.Is(err, ErrTickerNotConfigured) {
			return res, nil, reject(KindConfiguration, err, "Тикер %s не найден в конфигурации", sig.Ticker)
		}
		return res, nil, reject(KindCalculation, err, "Не удалось рассчитать параметры сделки для %s", sig.Ticker)
	}
	if quote.MinDistance > 0 && params.StopDistance < quote.MinDistance {
		entry.WithFields(logrus.Fields{
			"stop_distance": params.StopDistance,
			"min_distance":  quote.MinDistance,
		}).Warn("Стоп ближе минимальной дистанции брокера.")
	}

	if payload.TestMode {
		res.Message = fmt.Sprintf("TEST MODE: алерт для %s обработан, заявка не отправлялась", sig.Ticker)
		return res, &params, nil
	}

	order := models.LimitOrder{
		Epic:          epic,
		Side:          params.Direction,
		Size:          params.PositionSize,
		Level:         params.EntryPrice,
		StopDistance:  params.StopDistance,
		LimitDistance: params.LimitDistance,
		DecimalPlaces: quote.DecimalPlaces,
		CurrentPrice:  quote.Mid,
	}
	result, submitErr := e.client.SubmitLimitOrder(ctx, order)

	rec := TradeRecord{
		ID:          newRequestID(),
		RequestID:   requestID,
		Time:        now,
		Ticker:      sig.Ticker,
		Epic:        epic,
		Params:      params,
		Result:      result,
		MarketPrice: quote.Mid,
	}
	if submitErr != nil {
		rec.Error = submitErr.Error()
	} else if !result.Accepted() {
		rec.Error = result.Reason
	}
	e.trades.RecordTrade(rec)

	res.OrderType = result.OrderType
	res.OrderReference = result.DealReference
	res.DealID = result.DealID
	res.DealStatus = result.Status

	if submitErr != nil {
		return res, &params, reject(KindBroker, submitErr, "Брокер не принял заявку для %s", sig.Ticker)
	}
	if !result.Accepted() {
		return res, &params, reject(KindBroker, nil, "Брокер отклонил заявку для %s: %s", sig.Ticker, result.Reason)
	}

	res.Message = fmt.Sprintf("%s заявка выставлена для %s", result.OrderType, sig.Ticker)
	return res, &params, nil
}

func (r *Result) fill(p TradeParameters) {
	r.TradeDirection = p.Direction
	r.EntryPrice = p.EntryPrice
	r.StopDistance = p.StopDistance
	r.LimitDistance = p.LimitDistance
	r.PositionSize = p.PositionSize
	r.Params = &p
}

func (e *Engine) Calculator() *Calculator {
	return e.calc
}

func (e *Engine) TodayTrades() []TradeRecord {
	return e.trades.Today()
}

func (e *Engine) ResetDailyTrades() {
	e.trades.Reset()
	e.logEntry().Info("Журнал сделок за день сброшен вручную.")
}
