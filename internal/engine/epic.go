package engine

import (
	"alertbot/internal/exchange"
	"alertbot/internal/logger"
	"alertbot/internal/models"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrEpicNotFound = errors.New("EPIC не найден")

var spreadBetPrefixes = []string{"CS.D.", "IX.D.", "KA.D.", "UA.D.", "UD.D.", "UK.D.", "UP.D."}

type EpicSource interface {
	Epic(symbol string) (string, bool)
}

type epicResolver struct {
	source EpicSource
	client exchange.Client
	log    *logger.Logger

	mu    sync.Mutex
	cache map[string]string
}

func newEpicResolver(source EpicSource, client exchange.Client, log *logger.Logger) *epicResolver {
	return &epicResolver{
		source: source,
		client: client,
		log:    log,
		cache:  map[string]string{},
	}
}

func (r *epicResolver) Resolve(ctx context.Context, symbol string) (string, error) {
	if epic, ok := r.source.Epic(symbol); ok {
		return epic, nil
	}

	r.mu.Lock()
	epic, ok := r.cache[symbol]
	r.mu.Unlock()
	if ok {
		return epic, nil
	}

	exch, term := splitSymbol(symbol)
	markets, err := r.client.SearchMarkets(ctx, term)
	if err != nil {
		return "", err
	}

	epic, reason := pickMarket(exch, markets)
	if epic == "" {
		return "", fmt.Errorf("%w: %s", ErrEpicNotFound, symbol)
	}

	r.logEntry().WithFields(logrus.Fields{
		"symbol":  symbol,
		"epic":    epic,
		"reason":  reason,
		"results": len(markets),
	}).Info("EPIC найден поиском у брокера.")

	r.mu.Lock()
	r.cache[symbol] = epic
	r.mu.Unlock()
	return epic, nil
}

func splitSymbol(symbol string) (string, string) {
	if i := strings.LastIndex(symbol, ":"); i >= 0 {
		return symbol[:i], symbol[i+1:]
	}
	return "", symbol
}

// pickMarket: spread-bet EPIC с совпадением биржи, любой spread-bet,
// любой рынок с совпадением биржи, первый результат.
func pickMarket(exch string, markets []models.Market) (string, string) {
	if len(markets) == 0 {
		return "", ""
	}

	var spreadBet []models.Market
	for _, m := range markets {
		if isSpreadBetEpic(m.Epic) {
			spreadBet = append(spreadBet, m)
		}
	}

	if exch != "" {
		for _, m := range spreadBet {
			if exchangeMatches(exch, m) {
				return m.Epic, "spread_bet_exchange_match"
			}
		}
	}
	if len(spreadBet) > 0 {
		return spreadBet[0].Epic, "spread_bet_first"
	}
	if exch != "" {
		for _, m := range markets {
			if exchangeMatches(exch, m) {
				return m.Epic, "exchange_match"
			}
		}
	}
	return markets[0].Epic, "first_result"
}

func isSpreadBetEpic(epic string) bool {
	for _, prefix := range spreadBetPrefixes {
		if strings.HasPrefix(epic, prefix) {
			return true
		}
	}
	return strings.Contains(epic, ".DAILY.IP") || strings.Contains(epic, ".CASH.IP")
}

func exchangeMatches(exch string, m models.Market) bool {
	exch = strings.ToLower(exch)
	marketExchange := strings.ToLower(strings.SplitN(m.MarketID, ".", 2)[0])
	return strings.Contains(marketExchange, exch) || strings.Contains(strings.ToLower(m.InstrumentName), exch)
}

func (r *epicResolver) logEntry() *logrus.Entry {
	return r.log.WithComponent("epic")
}
