package engine

import (
	"alertbot/internal/logger"
	"alertbot/internal/models"
	"alertbot/internal/tickers"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	fallbackStopATR   = 0.01
	fallbackProfitATR = 0.02
	minDistancePct    = 0.001
	maxStopPct        = 0.15
	maxLimitPct       = 0.20

	DefaultMinPositionSize = 1.0
	OfflineMinPositionSize = 0.85
)

var (
	ErrTickerNotConfigured = errors.New("Тикер не настроен")
	ErrCalculation         = errors.New("Ошибка расчёта параметров сделки")
)

type TickerSource interface {
	Lookup(symbol string) (tickers.Config, bool)
}

type TradeParameters struct {
	Ticker           string           `json:"ticker"`
	Direction        models.OrderSide `json:"direction"`
	OriginalPrice    float64          `json:"original_price"`
	PriceLevel       float64          `json:"price_level"`
	EntryPrice       float64          `json:"entry_price"`
	StopDistance     float64          `json:"stop_distance"`
	LimitDistance    float64          `json:"limit_distance"`
	PositionSize     float64          `json:"position_size"`
	MaxPositionValue float64          `json:"max_position_size_gbp"`
	ATRStop          float64          `json:"atr_stop"`
	ATRProfit        float64          `json:"atr_profit"`
	ScaleFactor      float64          `json:"scale_factor"`
	DistanceScale    float64          `json:"distance_scale"`
	UsedFallbackATR  bool             `json:"used_fallback_atr"`
}

type Calculator struct {
	tickers         TickerSource
	normalizer      PriceNormalizer
	minPositionSize float64
	log             *logger.Logger
}

func NewCalculator(src TickerSource, normalizer PriceNormalizer, minPositionSize float64, log *logger.Logger) *Calculator {
	if normalizer == nil {
		normalizer = NewTieredNormalizer(log)
	}
	if minPositionSize <= 0 {
		minPositionSize = DefaultMinPositionSize
	}
	return &Calculator{
		tickers:         src,
		normalizer:      normalizer,
		minPositionSize: minPositionSize,
		log:             log,
	}
}

// TradeSide: DOWN -> BUY, иначе SELL (контртрендовая схема).
func TradeSide(dir models.Direction) models.OrderSide {
	if dir == models.DirectionDown {
		return models.OrderSideBuy
	}
	return models.OrderSideSell
}

// quote nil или <= 0 отключает нормализацию.
func (c *Calculator) Calculate(ticker string, dir models.Direction, referencePrice float64, atr []float64, quote *float64) (TradeParameters, error) {
	cfg, ok := c.tickers.Lookup(ticker)
	if !ok {
		return TradeParameters{}, fmt.Errorf("%w: %s", ErrTickerNotConfigured, ticker)
	}
	if referencePrice <= 0 || !finite(referencePrice) {
		return TradeParameters{}, fmt.Errorf("%w: некорректная цена алерта %v", ErrCalculation, referencePrice)
	}

	entry := c.logEntry().WithField("ticker", ticker)
	side := TradeSide(dir)

	multiple := cfg.OpeningPriceMultiple / 100
	if multiple <= 0 {
		multiple = 1
	}
	priceLevel := referencePrice * multiple
	if dir == models.DirectionDown {
		priceLevel = referencePrice / multiple
	}

	norm := Normalization{Price: priceLevel, Factor: 1}
	distScale := 1.0
	if quote != nil && *quote > 0 {
		norm = c.normalizer.Normalize(priceLevel, *quote)
		distScale = distanceScale(priceLevel, *quote)
	}

	atrStop, atrProfit, fallback := selectATR(cfg, referencePrice, atr)
	if fallback {
		entry.WithFields(logrus.Fields{
			"atr_stop":   atrStop,
			"atr_profit": atrProfit,
		}).Warn("Недостаточно данных ATR, используем 1% / 2% от цены.")
	}

	stop := math.Abs(atrStop * cfg.ATRStopMultiple / 100)
	limit := math.Abs(atrProfit * cfg.ATRProfitMultiple / 100)

	stop = c.clamp(entry, "stop", stop, priceLevel*minDistancePct, priceLevel*maxStopPct)
	limit = c.clamp(entry, "limit", limit, priceLevel*minDistancePct, priceLevel*maxLimitPct)

	stop *= distScale
	limit *= distScale

	size := positionSize(cfg.MaxPositionValue, norm.Price)
	if size < c.minPositionSize {
		entry.WithFields(logrus.Fields{
			"size": size,
			"min":  c.minPositionSize,
		}).Warn("Размер позиции меньше минимального, поднимаем до минимума.")
		size = c.minPositionSize
	}

	params := TradeParameters{
		Ticker:           ticker,
		Direction:        side,
		OriginalPrice:    referencePrice,
		PriceLevel:       priceLevel,
		EntryPrice:       norm.Price,
		StopDistance:     stop,
		LimitDistance:    limit,
		PositionSize:     size,
		MaxPositionValue: cfg.MaxPositionValue,
		ATRStop:          atrStop,
		ATRProfit:        atrProfit,
		ScaleFactor:      norm.Factor,
		DistanceScale:    distScale,
		UsedFallbackATR:  fallback,
	}
	if err := params.validate(); err != nil {
		return TradeParameters{}, err
	}

	entry.WithFields(logrus.Fields{
		"direction":      params.Direction,
		"price_level":    params.PriceLevel,
		"entry_price":    params.EntryPrice,
		"stop_distance":  params.StopDistance,
		"limit_distance": params.LimitDistance,
		"position_size":  params.PositionSize,
		"scale_factor":   params.ScaleFactor,
		"distance_scale": params.DistanceScale,
	}).Info("Параметры сделки рассчитаны.")
	return params, nil
}

// selectATR берёт ATR по периодам (1-based). Короткий ряд - запасные значения
// для обеих ног; период вне ряда или ATR <= 0 - запасное значение для ноги.
func selectATR(cfg tickers.Config, referencePrice float64, atr []float64) (float64, float64, bool) {
	stopFallback := fallbackStopATR * referencePrice
	profitFallback := fallbackProfitATR * referencePrice

	if len(atr) < max(cfg.ATRStopPeriod, cfg.ATRProfitPeriod) {
		return stopFallback, profitFallback, true
	}

	fallback := false
	pick := func(period int, def float64) float64 {
		if period < 1 || period > len(atr) {
			fallback = true
			return def
		}
		v := atr[period-1]
		if v <= 0 || !finite(v) {
			fallback = true
			return def
		}
		return v
	}
	stop := pick(cfg.ATRStopPeriod, stopFallback)
	profit := pick(cfg.ATRProfitPeriod, profitFallback)
	return stop, profit, fallback
}

// distanceScale зависит только от разницы разрядов целой части котировки
// и уровня; при |d| < 2 дистанции не масштабируются.
func distanceScale(priceLevel, quote float64) float64 {
	d := intDigits(quote) - intDigits(priceLevel)
	if abs(d) < 2 {
		return 1
	}
	return math.Pow10(d)
}

func (c *Calculator) clamp(entry *logrus.Entry, leg string, v, lo, hi float64) float64 {
	switch {
	case v > hi:
		entry.WithFields(logrus.Fields{"leg": leg, "raw": v, "max": hi}).Warn("Дистанция слишком большая, ограничиваем.")
		return hi
	case v < lo:
		entry.WithFields(logrus.Fields{"leg": leg, "raw": v, "min": lo}).Warn("Дистанция слишком маленькая, поднимаем до минимума.")
		return lo
	}
	return v
}

// positionSize = maxValue / entry, 2 знака; при entry > 800 и размере > 10
// размер делится на 100.
func positionSize(maxValue, entryPrice float64) float64 {
	if entryPrice <= 0 || maxValue <= 0 {
		return 0
	}
	size := decimal.NewFromFloat(maxValue).Div(decimal.NewFromFloat(entryPrice)).Round(2)
	ten := decimal.NewFromInt(10)
	if entryPrice > 800 && size.GreaterThan(ten) {
		size = size.Div(decimal.NewFromInt(100)).Round(2)
	}
	return size.InexactFloat64()
}

func (p TradeParameters) validate() error {
	values := map[string]float64{
		"entry_price":    p.EntryPrice,
		"stop_distance":  p.StopDistance,
		"limit_distance": p.LimitDistance,
		"position_size":  p.PositionSize,
	}
	for name, v := range values {
		if !finite(v) || v <= 0 {
			return fmt.Errorf("%w: %s = %v", ErrCalculation, name, v)
		}
	}
	return nil
}

func (c *Calculator) logEntry() *logrus.Entry {
	return c.log.WithComponent("calculator")
}
