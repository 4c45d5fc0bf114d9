package engine

import (
	"context"
	"errors"
	"time"
)

func (e *Engine) validateLocal(ticker string, now time.Time) *Rejection {
	if _, ok := e.tickers.Lookup(ticker); !ok {
		return reject(KindConfiguration, ErrTickerNotConfigured, "Тикер %s не найден в конфигурации", ticker)
	}
	if e.cfg.Validation.CheckDuplicate && e.trades.HasTradedToday(ticker) {
		return reject(KindValidation, nil, "По %s уже была сделка сегодня", ticker)
	}
	if e.cfg.Validation.CheckDividend && e.tickers.IsDividendDate(ticker, now) {
		return reject(KindValidation, nil, "Сегодня дивидендная дата %s, сделка пропущена", ticker)
	}
	return nil
}

func (e *Engine) resolveEpic(ctx context.Context, ticker string) (string, *Rejection) {
	epic, err := e.epics.Resolve(ctx, ticker)
	if err == nil {
		return epic, nil
	}
	if errors.Is(err, ErrEpicNotFound) {
		return "", reject(KindConfiguration, err, "Не найден IG EPIC для %s", ticker)
	}
	return "", reject(KindQuoteUnavailable, err, "Брокер недоступен при поиске EPIC для %s", ticker)
}

func (e *Engine) validatePositions(ctx context.Context, ticker, epic string) *Rejection {
	checkMax := e.cfg.Validation.CheckMaxPositions
	checkOpen := e.cfg.Validation.CheckOpenPosition
	if !checkMax && !checkOpen {
		return nil
	}

	positions, err := e.client.GetPositions(ctx)
	if err != nil {
		return reject(KindQuoteUnavailable, err, "Не удалось получить открытые позиции")
	}
	if checkMax && len(positions) >= e.cfg.Trading.MaxOpenPositions {
		return reject(KindValidation, nil, "Достигнут лимит открытых позиций (%d)", e.cfg.Trading.MaxOpenPositions)
	}
	if checkOpen {
		for _, p := range positions {
			if p.Epic == epic {
				return reject(KindValidation, nil, "Уже есть открытая позиция по %s", ticker)
			}
		}
	}
	return nil
}
