package alert

import (
	"alertbot/internal/models"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ATRCount - число значений ATR в алерте.
const ATRCount = 10

const minTokens = 3 + ATRCount

var ErrTooFewTokens = errors.New("Недостаточно токенов в алерте")

// Signal - разобранный алерт TradingView.
type Signal struct {
	Ticker         string           `json:"ticker"`
	Direction      models.Direction `json:"direction"`
	ReferencePrice float64          `json:"reference_price"`
	ATR            []float64        `json:"atr"`
}

type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Не удалось разобрать алерт %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse разбирает строку "<TICKER> <UP|DOWN> <PRICE> <ATR1> ... <ATR10>".
// Токены после тринадцатого игнорируются.
func Parse(text string) (Signal, error) {
	parts := strings.Fields(text)
	if len(parts) < minTokens {
		return Signal{}, &ParseError{
			Input: text,
			Err:   fmt.Errorf("%w: нужно %d, получено %d", ErrTooFewTokens, minTokens, len(parts)),
		}
	}

	price, err := parseFloat(parts[2])
	if err != nil {
		return Signal{}, &ParseError{Input: text, Err: fmt.Errorf("цена %q: %w", parts[2], err)}
	}

	atr := make([]float64, ATRCount)
	for i := 0; i < ATRCount; i++ {
		v, err := parseFloat(parts[3+i])
		if err != nil {
			return Signal{}, &ParseError{Input: text, Err: fmt.Errorf("ATR%d %q: %w", i+1, parts[3+i], err)}
		}
		atr[i] = v
	}

	return Signal{
		Ticker:         parts[0],
		Direction:      models.Direction(strings.ToUpper(parts[1])),
		ReferencePrice: price,
		ATR:            atr,
	}, nil
}

func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("не число")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("не конечное число")
	}
	return v, nil
}
