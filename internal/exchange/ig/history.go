package ig

import (
	"alertbot/internal/exchange"
	"alertbot/internal/models"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const historyTimeLayout = "2006-01-02T15:04:05"

func historyParams(r exchange.HistoryRange) url.Values {
	params := url.Values{}
	if !r.From.IsZero() {
		params.Set("from", r.From.UTC().Format(historyTimeLayout))
	}
	if !r.To.IsZero() {
		params.Set("to", r.To.UTC().Format(historyTimeLayout))
	}
	if r.MaxResults > 0 {
		params.Set("pageSize", strconv.Itoa(r.MaxResults))
	}
	return params
}

func (c *Client) GetTransactions(ctx context.Context, r exchange.HistoryRange) ([]models.Transaction, error) {
	params := historyParams(r)
	resp, err := withRetry(ctx, c, func() (transactionsResponse, error) {
		var out transactionsResponse
		err := c.doRequest(ctx, http.MethodGet, "/history/transactions", "2", params, nil, &out)
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("Не удалось получить историю транзакций: %w", err)
	}

	txs := make([]models.Transaction, 0, len(resp.Transactions))
	for _, t := range resp.Transactions {
		date := t.DateUTC
		if date == "" {
			date = t.Date
		}
		txs = append(txs, models.Transaction{
			Date:            date,
			TransactionType: t.TransactionType,
			InstrumentName:  t.InstrumentName,
			Reference:       t.Reference,
			OpenLevel:       t.OpenLevel,
			CloseLevel:      t.CloseLevel,
			Size:            t.Size,
			Currency:        t.Currency,
			ProfitAndLoss:   t.ProfitAndLoss,
			Cash:            t.CashTransaction,
		})
	}
	return txs, nil
}

func (c *Client) GetActivities(ctx context.Context, r exchange.HistoryRange) ([]models.Activity, error) {
	params := historyParams(r)
	params.Set("detailed", "true")
	resp, err := withRetry(ctx, c, func() (activitiesResponse, error) {
		var out activitiesResponse
		err := c.doRequest(ctx, http.MethodGet, "/history/activity", "3", params, nil, &out)
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("Не удалось получить историю активности: %w", err)
	}

	acts := make([]models.Activity, 0, len(resp.Activities))
	for _, a := range resp.Activities {
		act := models.Activity{
			Date:        a.Date,
			Type:        a.Type,
			Status:      a.Status,
			Description: a.Description,
			DealID:      a.DealID,
			Epic:        a.Epic,
		}
		if d := a.Details; d != nil {
			act.DealReference = d.DealReference
			act.MarketName = d.MarketName
			act.Direction = models.OrderSide(d.Direction)
			act.Size = floatOrZero(d.Size)
			act.Level = floatOrZero(d.Level)
			act.StopLevel = floatOrZero(d.StopLevel)
			act.LimitLevel = floatOrZero(d.LimitLevel)
		}
		acts = append(acts, act)
	}
	return acts, nil
}
