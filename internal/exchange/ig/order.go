package ig

import (
	"alertbot/internal/exchange"
	"alertbot/internal/models"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type workingOrderRequest struct {
	Epic           string `json:"epic"`
	Expiry         string `json:"expiry"`
	Direction      string `json:"direction"`
	Size           string `json:"size"`
	Level          string `json:"level"`
	Type           string `json:"type"`
	CurrencyCode   string `json:"currencyCode"`
	TimeInForce    string `json:"timeInForce"`
	GuaranteedStop bool   `json:"guaranteedStop"`
	ForceOpen      bool   `json:"forceOpen"`
	StopDistance   string `json:"stopDistance"`
	LimitDistance  string `json:"limitDistance"`
}

// SubmitLimitOrder выставляет рабочую заявку и дожидается подтверждения.
// Запись не повторяется: повтор может открыть вторую заявку.
func (c *Client) SubmitLimitOrder(ctx context.Context, order models.LimitOrder) (models.OrderResult, error) {
	orderType := workingOrderType(order)
	body := workingOrderRequest{
		Epic:          order.Epic,
		Expiry:        c.opts.Expiry,
		Direction:     string(order.Side),
		Size:          formatSize(order.Size),
		Level:         formatLevel(order.Level, order.DecimalPlaces),
		Type:          string(orderType),
		CurrencyCode:  c.opts.Currency,
		TimeInForce:   "GOOD_TILL_CANCELLED",
		ForceOpen:     true,
		StopDistance:  formatDistance(order.StopDistance, order.DecimalPlaces),
		LimitDistance: formatDistance(order.LimitDistance, order.DecimalPlaces),
	}

	entry := c.logEntry().WithFields(map[string]interface{}{
		"epic":           body.Epic,
		"direction":      body.Direction,
		"size":           body.Size,
		"level":          body.Level,
		"type":           body.Type,
		"stop_distance":  body.StopDistance,
		"limit_distance": body.LimitDistance,
	})
	entry.Info("Отправка рабочей заявки.")

	var resp dealReferenceResponse
	if err := c.doRequest(ctx, http.MethodPost, "/workingorders/otc", "2", nil, body, &resp); err != nil {
		return models.OrderResult{OrderType: orderType}, fmt.Errorf("Не удалось выставить заявку: %w", err)
	}
	if resp.DealReference == "" {
		return models.OrderResult{OrderType: orderType}, fmt.Errorf("IG не вернул dealReference")
	}

	confirm, err := c.GetConfirmation(ctx, resp.DealReference)
	if err != nil {
		return models.OrderResult{DealReference: resp.DealReference, OrderType: orderType}, err
	}

	result := models.OrderResult{
		Status:        confirm.Status,
		DealID:        confirm.DealID,
		DealReference: resp.DealReference,
		OrderType:     orderType,
		Reason:        confirm.Reason,
	}
	entry.WithFields(map[string]interface{}{
		"deal_reference": result.DealReference,
		"deal_id":        result.DealID,
		"deal_status":    result.Status,
		"reason":         result.Reason,
	}).Info("Подтверждение заявки получено.")
	return result, nil
}

// workingOrderType: LIMIT, если уровень лучше текущей цены, иначе STOP.
func workingOrderType(order models.LimitOrder) models.OrderType {
	if order.CurrentPrice <= 0 {
		return models.OrderTypeLimit
	}
	if order.Side == models.OrderSideBuy && order.Level > order.CurrentPrice {
		return models.OrderTypeStop
	}
	if order.Side == models.OrderSideSell && order.Level < order.CurrentPrice {
		return models.OrderTypeStop
	}
	return models.OrderTypeLimit
}

func (c *Client) GetConfirmation(ctx context.Context, dealReference string) (models.DealConfirmation, error) {
	resp, err := withRetry(ctx, c, func() (confirmResponse, error) {
		var out confirmResponse
		err := c.doRequest(ctx, http.MethodGet, "/confirms/"+url.PathEscape(dealReference), "1", nil, nil, &out)
		return out, err
	})
	if err != nil {
		if isNotFound(err) {
			return models.DealConfirmation{}, fmt.Errorf("Подтверждение %s: %w", dealReference, exchange.ErrNotFound)
		}
		return models.DealConfirmation{}, fmt.Errorf("Не удалось получить подтверждение %s: %w", dealReference, err)
	}

	reason := resp.Reason
	if strings.EqualFold(reason, "SUCCESS") {
		reason = ""
	}
	return models.DealConfirmation{
		DealID:        resp.DealID,
		DealReference: resp.DealReference,
		Status:        models.DealStatus(strings.ToUpper(resp.DealStatus)),
		Reason:        reason,
		Epic:          resp.Epic,
		Direction:     models.OrderSide(resp.Direction),
		Size:          floatOrZero(resp.Size),
		Level:         floatOrZero(resp.Level),
		Date:          resp.Date,
	}, nil
}

func (c *Client) GetWorkingOrders(ctx context.Context) ([]models.WorkingOrder, error) {
	resp, err := withRetry(ctx, c, func() (workingOrdersResponse, error) {
		var out workingOrdersResponse
		err := c.doRequest(ctx, http.MethodGet, "/workingorders", "2", nil, nil, &out)
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("Не удалось получить рабочие заявки: %w", err)
	}

	orders := make([]models.WorkingOrder, 0, len(resp.WorkingOrders))
	for _, item := range resp.WorkingOrders {
		data := item.WorkingOrderData
		orders = append(orders, models.WorkingOrder{
			DealID:         data.DealID,
			Epic:           data.Epic,
			InstrumentName: item.MarketData.InstrumentName,
			Direction:      models.OrderSide(data.Direction),
			Size:           data.OrderSize,
			Level:          data.OrderLevel,
			Type:           models.OrderType(data.OrderType),
			StopDistance:   floatOrZero(data.StopDistance),
			LimitDistance:  floatOrZero(data.LimitDistance),
			CreatedDate:    data.CreatedDateUTC,
		})
	}
	return orders, nil
}

func (c *Client) CancelWorkingOrder(ctx context.Context, dealID string) (models.OrderResult, error) {
	var resp dealReferenceResponse
	err := c.doRequest(ctx, http.MethodDelete, "/workingorders/otc/"+url.PathEscape(dealID), "2", nil, nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return models.OrderResult{}, fmt.Errorf("Рабочая заявка %s: %w", dealID, exchange.ErrNotFound)
		}
		return models.OrderResult{}, fmt.Errorf("Не удалось отменить заявку %s: %w", dealID, err)
	}

	confirm, err := c.GetConfirmation(ctx, resp.DealReference)
	if err != nil {
		return models.OrderResult{DealID: dealID, DealReference: resp.DealReference}, err
	}
	c.logEntry().WithFields(map[string]interface{}{
		"deal_id":     dealID,
		"deal_status": confirm.Status,
	}).Info("Рабочая заявка отменена.")
	return models.OrderResult{
		Status:        confirm.Status,
		DealID:        dealID,
		DealReference: resp.DealReference,
		Reason:        confirm.Reason,
	}, nil
}
