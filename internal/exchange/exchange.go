package exchange

import (
	"alertbot/internal/models"
	"context"
	"errors"
	"time"
)

var (
	ErrNotAuthenticated = errors.New("Нет действующей сессии брокера")
	ErrNotFound         = errors.New("Не найдено у брокера")
)

type HistoryRange struct {
	From       time.Time
	To         time.Time
	MaxResults int
}

type Client interface {
	GetQuote(ctx context.Context, epic string) (models.Quote, error)
	SubmitLimitOrder(ctx context.Context, order models.LimitOrder) (models.OrderResult, error)
	GetConfirmation(ctx context.Context, dealReference string) (models.DealConfirmation, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
	GetPosition(ctx context.Context, dealID string) (models.Position, error)
	GetWorkingOrders(ctx context.Context) ([]models.WorkingOrder, error)
	CancelWorkingOrder(ctx context.Context, dealID string) (models.OrderResult, error)
	GetTransactions(ctx context.Context, r HistoryRange) ([]models.Transaction, error)
	GetActivities(ctx context.Context, r HistoryRange) ([]models.Activity, error)
	SearchMarkets(ctx context.Context, term string) ([]models.Market, error)
}

func LastDays(now time.Time, days, maxResults int) HistoryRange {
	if days <= 0 {
		days = 7
	}
	if maxResults <= 0 {
		maxResults = 50
	}
	return HistoryRange{
		From:       now.AddDate(0, 0, -days),
		To:         now,
		MaxResults: maxResults,
	}
}
