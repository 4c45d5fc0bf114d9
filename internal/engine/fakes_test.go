package engine

import (
	"alertbot/internal/exchange"
	"alertbot/internal/models"
	"alertbot/internal/tickers"
	"context"
	"sync"
	"time"
)

type fakeStore struct {
	configs  map[string]tickers.Config
	dividend map[string]bool
}

func (f *fakeStore) Lookup(symbol string) (tickers.Config, bool) {
	cfg, ok := f.configs[symbol]
	return cfg, ok
}

func (f *fakeStore) Epic(symbol string) (string, bool) {
	cfg, ok := f.configs[symbol]
	if !ok || !cfg.HasEpic() {
		return "", false
	}
	return cfg.Epic, true
}

func (f *fakeStore) IsDividendDate(symbol string, _ time.Time) bool {
	return f.dividend[symbol]
}

func srpConfig() tickers.Config {
	return tickers.Config{
		Symbol:               "LSE_DLY:SRP",
		Epic:                 "KA.D.SRP.DAILY.IP",
		ATRStopPeriod:        4,
		ATRStopMultiple:      189,
		ATRProfitPeriod:      7,
		ATRProfitMultiple:    180,
		MaxPositionValue:     1000,
		OpeningPriceMultiple: 101,
		NextDividendDate:     "na",
	}
}

func newFakeStore() *fakeStore {
	gne := tickers.Config{
		Symbol:               "BATS:GNE",
		Epic:                 tickers.UnsetEpic,
		ATRStopPeriod:        3,
		ATRStopMultiple:      150,
		ATRProfitPeriod:      5,
		ATRProfitMultiple:    200,
		MaxPositionValue:     500,
		OpeningPriceMultiple: 99,
	}
	return &fakeStore{
		configs: map[string]tickers.Config{
			"LSE_DLY:SRP": srpConfig(),
			"BATS:GNE":    gne,
		},
		dividend: map[string]bool{},
	}
}

type fakeClient struct {
	mu    sync.Mutex
	calls map[string]int

	quote        models.Quote
	quoteErr     error
	positions    []models.Position
	positionsErr error
	submitResult models.OrderResult
	submitErr    error
	submitted    []models.LimitOrder
	markets      []models.Market
	confirm      models.DealConfirmation
	confirmErr   error
	position     models.Position
	positionErr  error
	activities   []models.Activity
	txErr        error
	actErr       error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		calls: map[string]int{},
		quote: models.Quote{
			Epic:          "KA.D.SRP.DAILY.IP",
			Bid:           191.6,
			Offer:         191.8,
			Mid:           191.7,
			Status:        models.MarketTradeable,
			DecimalPlaces: 2,
		},
		submitResult: models.OrderResult{
			Status:        models.DealAccepted,
			DealID:        "DIAAAA1",
			DealReference: "REF1",
			OrderType:     models.OrderTypeLimit,
		},
		positionErr: exchange.ErrNotFound,
	}
}

func (f *fakeClient) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeClient) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeClient) GetQuote(ctx context.Context, epic string) (models.Quote, error) {
	f.count("GetQuote")
	return f.quote, f.quoteErr
}

func (f *fakeClient) SubmitLimitOrder(ctx context.Context, order models.LimitOrder) (models.OrderResult, error) {
	f.count("SubmitLimitOrder")
	f.mu.Lock()
	f.submitted = append(f.submitted, order)
	f.mu.Unlock()
	return f.submitResult, f.submitErr
}

func (f *fakeClient) GetConfirmation(ctx context.Context, dealReference string) (models.DealConfirmation, error) {
	f.count("GetConfirmation")
	return f.confirm, f.confirmErr
}

func (f *fakeClient) GetPositions(ctx context.Context) ([]models.Position, error) {
	f.count("GetPositions")
	return f.positions, f.positionsErr
}

func (f *fakeClient) GetPosition(ctx context.Context, dealID string) (models.Position, error) {
	f.count("GetPosition")
	return f.position, f.positionErr
}

func (f *fakeClient) GetWorkingOrders(ctx context.Context) ([]models.WorkingOrder, error) {
	f.count("GetWorkingOrders")
	return nil, nil
}

func (f *fakeClient) CancelWorkingOrder(ctx context.Context, dealID string) (models.OrderResult, error) {
	f.count("CancelWorkingOrder")
	return models.OrderResult{Status: models.DealAccepted, DealID: dealID}, nil
}

func (f *fakeClient) GetTransactions(ctx context.Context, r exchange.HistoryRange) ([]models.Transaction, error) {
	f.count("GetTransactions")
	return nil, f.txErr
}

func (f *fakeClient) GetActivities(ctx context.Context, r exchange.HistoryRange) ([]models.Activity, error) {
	f.count("GetActivities")
	return f.activities, f.actErr
}

func (f *fakeClient) SearchMarkets(ctx context.Context, term string) ([]models.Market, error) {
	f.count("SearchMarkets")
	return f.markets, nil
}
