package ig

import (
	"alertbot/internal/exchange"
	"alertbot/internal/models"
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func (c *Client) GetPositions(ctx context.Context) ([]models.Position, error) {
	resp, err := withRetry(ctx, c, func() (positionsResponse, error) {
		var out positionsResponse
		err := c.doRequest(ctx, http.MethodGet, "/positions", "2", nil, nil, &out)
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("Не удалось получить позиции: %w", err)
	}

	positions := make([]models.Position, 0, len(resp.Positions))
	for _, item := range resp.Positions {
		positions = append(positions, toPosition(item))
	}
	return positions, nil
}

func (c *Client) GetPosition(ctx context.Context, dealID string) (models.Position, error) {
	resp, err := withRetry(ctx, c, func() (positionItem, error) {
		var out positionItem
		err := c.doRequest(ctx, http.MethodGet, "/positions/"+url.PathEscape(dealID), "2", nil, nil, &out)
		return out, err
	})
	if err != nil {
		if isNotFound(err) {
			return models.Position{}, fmt.Errorf("Позиция %s: %w", dealID, exchange.ErrNotFound)
		}
		return models.Position{}, fmt.Errorf("Не удалось получить позицию %s: %w", dealID, err)
	}
	return toPosition(resp), nil
}

func toPosition(item positionItem) models.Position {
	return models.Position{
		DealID:         item.Position.DealID,
		DealReference:  item.Position.DealReference,
		Epic:           item.Market.Epic,
		InstrumentName: item.Market.InstrumentName,
		Direction:      models.OrderSide(item.Position.Direction),
		Size:           item.Position.Size,
		Level:          item.Position.Level,
		StopLevel:      floatOrZero(item.Position.StopLevel),
		LimitLevel:     floatOrZero(item.Position.LimitLevel),
		Bid:            floatOrZero(item.Market.Bid),
		Offer:          floatOrZero(item.Market.Offer),
		CreatedDate:    item.Position.CreatedDate,
	}
}
