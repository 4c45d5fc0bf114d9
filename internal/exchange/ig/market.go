package ig

import (
	"alertbot/internal/exchange"
	"alertbot/internal/models"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

func (c *Client) GetQuote(ctx context.Context, epic string) (models.Quote, error) {
	resp, err := withRetry(ctx, c, func() (marketResponse, error) {
		var out marketResponse
		err := c.doRequest(ctx, http.MethodGet, "/markets/"+url.PathEscape(epic), "3", nil, nil, &out)
		return out, err
	})
	if err != nil {
		if isNotFound(err) {
			return models.Quote{}, fmt.Errorf("Инструмент %s: %w", epic, exchange.ErrNotFound)
		}
		return models.Quote{}, fmt.Errorf("Не удалось получить котировку %s: %w", epic, err)
	}

	snap := resp.Snapshot
	if snap.Bid == nil || snap.Offer == nil {
		return models.Quote{}, fmt.Errorf("Нет цены bid/offer для %s (status=%s)", epic, snap.MarketStatus)
	}

	bid, offer := *snap.Bid, *snap.Offer
	mid := (bid + offer) / 2
	quote := models.Quote{
		Epic:          epic,
		Bid:           bid,
		Offer:         offer,
		Mid:           mid,
		Status:        models.MarketStatus(snap.MarketStatus),
		DecimalPlaces: quoteDecimals(snap.DecimalPlacesFactor, mid),
		Currency:      c.opts.Currency,
		Timestamp:     time.Now(),
	}
	if rule := resp.DealingRules.MinNormalStopOrLimitDistance; rule != nil {
		quote.MinDistance = rule.Value
		if rule.Unit == "PERCENTAGE" {
			quote.MinDistance = mid * rule.Value / 100
		}
	}
	for _, cur := range resp.Instrument.Currencies {
		if cur.IsDefault {
			quote.Currency = cur.Code
		}
	}

	c.logEntry().WithFields(map[string]interface{}{
		"epic":   epic,
		"bid":    bid,
		"offer":  offer,
		"status": snap.MarketStatus,
	}).Debug("Котировка получена.")
	return quote, nil
}

func (c *Client) SearchMarkets(ctx context.Context, term string) ([]models.Market, error) {
	params := url.Values{}
	params.Set("searchTerm", term)

	resp, err := withRetry(ctx, c, func() (searchResponse, error) {
		var out searchResponse
		err := c.doRequest(ctx, http.MethodGet, "/markets", "1", params, nil, &out)
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("Не удалось выполнить поиск инструментов %q: %w", term, err)
	}

	markets := make([]models.Market, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		markets = append(markets, models.Market{
			Epic:           m.Epic,
			InstrumentName: m.InstrumentName,
			InstrumentType: m.InstrumentType,
			Expiry:         m.Expiry,
			MarketID:       m.MarketID,
		})
	}
	return markets, nil
}
