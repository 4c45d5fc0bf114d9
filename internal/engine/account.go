package engine

import (
	"alertbot/internal/exchange"
	"alertbot/internal/models"
	"context"
	"errors"
	"fmt"
)

var (
	ErrMissingReference = errors.New("Нужен deal_reference или ticker")
	ErrNoTradeToday     = errors.New("Сегодня по тикеру не было сделок")
)

const (
	PositionOpen      = "OPEN"
	PositionConfirmed = "CONFIRMED"
	PositionNotFound  = "NOT_FOUND"
)

type PositionStatus struct {
	Status        string                   `json:"position_status"`
	DealReference string                   `json:"deal_reference"`
	DealID        string                   `json:"deal_id,omitempty"`
	Direction     models.OrderSide         `json:"direction,omitempty"`
	Size          float64                  `json:"size,omitempty"`
	Position      *models.Position         `json:"position,omitempty"`
	Activity      *models.Activity         `json:"activity,omitempty"`
	Confirmation  *models.DealConfirmation `json:"confirmation,omitempty"`
}

// PositionStatus ищет сделку: подтверждение, открытая позиция, история активности.
func (e *Engine) PositionStatus(ctx context.Context, dealReference, ticker string) (PositionStatus, error) {
	if dealReference == "" && ticker == "" {
		return PositionStatus{}, ErrMissingReference
	}
	if dealReference == "" {
		rec, ok := e.trades.Get(ticker)
		if !ok || rec.Result.DealReference == "" {
			return PositionStatus{}, fmt.Errorf("%w: %s", ErrNoTradeToday, ticker)
		}
		dealReference = rec.Result.DealReference
	}

	out := PositionStatus{DealReference: dealReference}
	confirm, err := e.client.GetConfirmation(ctx, dealReference)
	if err != nil {
		if errors.Is(err, exchange.ErrNotFound) {
			out.Status = PositionNotFound
			return out, nil
		}
		return PositionStatus{}, err
	}
	out.Confirmation = &confirm
	out.DealID = confirm.DealID
	out.Direction = confirm.Direction
	out.Size = confirm.Size

	if confirm.DealID != "" {
		pos, err := e.client.GetPosition(ctx, confirm.DealID)
		if err == nil {
			out.Status = PositionOpen
			out.Position = &pos
			out.Direction = pos.Direction
			out.Size = pos.Size
			return out, nil
		}
		if !errors.Is(err, exchange.ErrNotFound) {
			e.logEntry().WithError(err).Warn("Не удалось получить позицию по deal id.")
		}
	}

	acts, err := e.client.GetActivities(ctx, exchange.LastDays(e.now(), 7, 50))
	if err != nil {
		e.logEntry().WithError(err).Warn("Не удалось получить историю активности.")
	}
	for i := range acts {
		if acts[i].DealReference == dealReference {
			out.Status = acts[i].Status
			out.Activity = &acts[i]
			if acts[i].DealID != "" {
				out.DealID = acts[i].DealID
			}
			return out, nil
		}
	}

	out.Status = PositionConfirmed
	return out, nil
}

func (e *Engine) Positions(ctx context.Context) ([]models.Position, error) {
	return e.client.GetPositions(ctx)
}

func (e *Engine) Transactions(ctx context.Context, days, maxResults int) ([]models.Transaction, error) {
	return e.client.GetTransactions(ctx, exchange.LastDays(e.now(), days, maxResults))
}

func (e *Engine) Activities(ctx context.Context, days, maxResults int) ([]models.Activity, error) {
	return e.client.GetActivities(ctx, exchange.LastDays(e.now(), days, maxResults))
}

func (e *Engine) WorkingOrders(ctx context.Context) ([]models.WorkingOrder, error) {
	return e.client.GetWorkingOrders(ctx)
}

func (e *Engine) CancelOrder(ctx context.Context, dealID string) (models.OrderResult, error) {
	res, err := e.client.CancelWorkingOrder(ctx, dealID)
	if err != nil {
		return res, err
	}
	e.logEntry().WithField("deal_id", dealID).Info("Рабочая заявка отменена.")
	return res, nil
}

type History struct {
	Positions    []models.Position    `json:"open_positions"`
	Transactions []models.Transaction `json:"transactions"`
	Activities   []models.Activity    `json:"activities"`
	Days         int                  `json:"days_history"`
	Errors       map[string]string    `json:"errors,omitempty"`
}

// History собирает все три раздела; ошибка - только если не удалось ни одного.
func (e *Engine) History(ctx context.Context, days, maxResults int) (History, error) {
	r := exchange.LastDays(e.now(), days, maxResults)
	out := History{
		Positions:    []models.Position{},
		Transactions: []models.Transaction{},
		Activities:   []models.Activity{},
		Days:         int(r.To.Sub(r.From).Hours() / 24),
		Errors:       map[string]string{},
	}

	var errs []error
	if positions, err := e.client.GetPositions(ctx); err != nil {
		out.Errors["positions"] = err.Error()
		errs = append(errs, err)
	} else {
		out.Positions = positions
	}
	if txs, err := e.client.GetTransactions(ctx, r); err != nil {
		out.Errors["transactions"] = err.Error()
		errs = append(errs, err)
	} else {
		out.Transactions = txs
	}
	if acts, err := e.client.GetActivities(ctx, r); err != nil {
		out.Errors["activities"] = err.Error()
		errs = append(errs, err)
	} else {
		out.Activities = acts
	}

	if len(errs) == 3 {
		return out, fmt.Errorf("Не удалось получить историю: %w", errors.Join(errs...))
	}
	if len(out.Errors) == 0 {
		out.Errors = nil
	}
	e.logEntry().WithFields(map[string]interface{}{
		"positions":    len(out.Positions),
		"transactions": len(out.Transactions),
		"activities":   len(out.Activities),
	}).Info("История получена.")
	return out, nil
}
