package engine

import (
	"alertbot/internal/logger"
	"alertbot/internal/models"
	"alertbot/internal/tickers"
	"errors"
	"math"
	"testing"
)

var srpATR = []float64{0.6, 1.819, 2.378, 2.839, 3.204, 3.478, 3.68, 3.83, 3.94, 4.023}

func newTestCalculator(store *fakeStore) *Calculator {
	return NewCalculator(store, nil, DefaultMinPositionSize, logger.Discard())
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func TestCalculateSRPScenario(t *testing.T) {
	c := newTestCalculator(newFakeStore())
	p, err := c.Calculate("LSE_DLY:SRP", models.DirectionUp, 189.8, srpATR, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if p.Direction != models.OrderSideSell {
		t.Errorf("UP must map to SELL, got %s", p.Direction)
	}
	if !approx(p.PriceLevel, 191.698) || !approx(p.EntryPrice, 191.698) {
		t.Errorf("unexpected price level %v / entry %v", p.PriceLevel, p.EntryPrice)
	}
	if !approx(p.StopDistance, 2.839*1.89) {
		t.Errorf("unexpected stop distance %v", p.StopDistance)
	}
	if !approx(p.LimitDistance, 3.68*1.8) {
		t.Errorf("unexpected limit distance %v", p.LimitDistance)
	}
	if p.PositionSize != 5.22 {
		t.Errorf("unexpected position size %v", p.PositionSize)
	}
	if p.UsedFallbackATR || p.ScaleFactor != 1 {
		t.Errorf("unexpected diagnostics %+v", p)
	}
}

func TestCalculateDownIsBuyAndDividesByMultiple(t *testing.T) {
	c := newTestCalculator(newFakeStore())
	p, err := c.Calculate("LSE_DLY:SRP", models.DirectionDown, 189.8, srpATR, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if p.Direction != models.OrderSideBuy || !approx(p.PriceLevel, 189.8/1.01) {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestCalculateClampsToBounds(t *testing.T) {
	c := newTestCalculator(newFakeStore())

	huge := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100}
	p, err := c.Calculate("LSE_DLY:SRP", models.DirectionUp, 189.8, huge, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if p.StopDistance != p.PriceLevel*0.15 {
		t.Errorf("stop must equal exactly 15%% of price level: %v vs %v", p.StopDistance, p.PriceLevel*0.15)
	}
	if p.LimitDistance != p.PriceLevel*0.20 {
		t.Errorf("limit must equal exactly 20%% of price level: %v vs %v", p.LimitDistance, p.PriceLevel*0.20)
	}

	tiny := []float64{1e-6, 1e-6, 1e-6, 1e-6, 1e-6, 1e-6, 1e-6, 1e-6, 1e-6, 1e-6}
	p, err = c.Calculate("LSE_DLY:SRP", models.DirectionUp, 189.8, tiny, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if p.StopDistance != p.PriceLevel*0.001 || p.LimitDistance != p.PriceLevel*0.001 {
		t.Errorf("distances must be raised to 0.1%% of price level: %+v", p)
	}
}

func TestCalculateATRFallback(t *testing.T) {
	c := newTestCalculator(newFakeStore())

	p, err := c.Calculate("LSE_DLY:SRP", models.DirectionUp, 189.8, []float64{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !p.UsedFallbackATR || !approx(p.ATRStop, 1.898) || !approx(p.ATRProfit, 3.796) {
		t.Errorf("short series must fall back to 1%%/2%%: %+v", p)
	}

	negative := append([]float64(nil), srpATR...)
	negative[3] = -1
	p, err = c.Calculate("LSE_DLY:SRP", models.DirectionUp, 189.8, negative, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !approx(p.ATRStop, 1.898) || p.ATRProfit != 3.68 || !p.UsedFallbackATR {
		t.Errorf("only the stop leg must fall back: %+v", p)
	}

	store := newFakeStore()
	cfg := srpConfig()
	cfg.ATRStopPeriod = 0
	store.configs["LSE_DLY:SRP"] = cfg
	p, err = newTestCalculator(store).Calculate("LSE_DLY:SRP", models.DirectionUp, 189.8, srpATR, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !approx(p.ATRStop, 1.898) || p.ATRProfit != 3.68 {
		t.Errorf("period out of range must fall back for its leg: %+v", p)
	}
}

func TestCalculateWithQuoteRescalesDistances(t *testing.T) {
	c := newTestCalculator(newFakeStore())
	quote := 19170.0
	p, err := c.Calculate("LSE_DLY:SRP", models.DirectionUp, 189.8, srpATR, &quote)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if p.ScaleFactor != 100 || !approx(p.EntryPrice, 19169.8) {
		t.Errorf("unexpected normalization %+v", p)
	}
	if !approx(p.StopDistance, 2.839*1.89*100) || !approx(p.LimitDistance, 3.68*1.8*100) {
		t.Errorf("distances must be rescaled by 100: %+v", p)
	}
	if p.DistanceScale != 100 {
		t.Errorf("unexpected distance scale %v", p.DistanceScale)
	}
	if p.PositionSize != DefaultMinPositionSize {
		t.Errorf("size must be floored at the minimum, got %v", p.PositionSize)
	}
}

func TestCalculateDistancesFollowDigitDifferenceOnly(t *testing.T) {
	store := newFakeStore()
	cfg := srpConfig()
	cfg.OpeningPriceMultiple = 100
	store.configs["LSE_DLY:SRP"] = cfg
	c := newTestCalculator(store)

	quote := 960.0
	p, err := c.Calculate("LSE_DLY:SRP", models.DirectionUp, 19, srpATR, &quote)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if p.ScaleFactor != 100 || !approx(p.EntryPrice, 1900) {
		t.Errorf("ratio tier must scale the entry by 100: %+v", p)
	}
	if p.DistanceScale != 1 {
		t.Errorf("one digit of difference must not rescale distances, got %v", p.DistanceScale)
	}
	if !approx(p.StopDistance, 19*0.15) || !approx(p.LimitDistance, 19*0.20) {
		t.Errorf("distances must stay in the alert scale: %+v", p)
	}

	quote = 5
	p, err = c.Calculate("LSE_DLY:SRP", models.DirectionUp, 0.5, srpATR, &quote)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if p.ScaleFactor != 10 || p.DistanceScale != 1 {
		t.Errorf("significant-digit tier must leave distances unscaled: %+v", p)
	}
	if !approx(p.StopDistance, 0.5*0.15) {
		t.Errorf("unexpected stop distance %v", p.StopDistance)
	}
}

func TestDistanceScale(t *testing.T) {
	cases := []struct {
		level, quote, want float64
	}{
		{191.698, 19170, 100},
		{19, 960, 1},
		{0.5, 5, 1},
		{19170, 191.7, 0.01},
		{1.2, 1234, 1000},
	}
	for _, tc := range cases {
		if got := distanceScale(tc.level, tc.quote); !approx(got, tc.want) {
			t.Errorf("distanceScale(%v, %v) = %v, want %v", tc.level, tc.quote, got, tc.want)
		}
	}
}

func TestPositionSizeTiers(t *testing.T) {
	cases := []struct {
		maxValue float64
		entry    float64
		want     float64
	}{
		{1000, 50, 20},
		{100000, 900, 1.11},
		{5000, 900, 5.56},
		{1000, 191.698, 5.22},
	}
	for _, tc := range cases {
		if got := positionSize(tc.maxValue, tc.entry); got != tc.want {
			t.Errorf("positionSize(%v, %v) = %v, want %v", tc.maxValue, tc.entry, got, tc.want)
		}
	}
}

func TestCalculateUnknownTicker(t *testing.T) {
	c := newTestCalculator(newFakeStore())
	_, err := c.Calculate("NYSE:NOPE", models.DirectionUp, 10, srpATR, nil)
	if !errors.Is(err, ErrTickerNotConfigured) {
		t.Errorf("expected ErrTickerNotConfigured, got %v", err)
	}
}

func TestCalculateRejectsNonPositivePrice(t *testing.T) {
	c := newTestCalculator(newFakeStore())
	_, err := c.Calculate("LSE_DLY:SRP", models.DirectionUp, 0, srpATR, nil)
	if !errors.Is(err, ErrCalculation) {
		t.Errorf("expected ErrCalculation, got %v", err)
	}
}

func TestCalculateMinPositionSizeIsConfigurable(t *testing.T) {
	store := &fakeStore{configs: map[string]tickers.Config{"X": {
		Symbol: "X", Epic: "E", ATRStopPeriod: 1, ATRStopMultiple: 100,
		ATRProfitPeriod: 1, ATRProfitMultiple: 100, MaxPositionValue: 10, OpeningPriceMultiple: 100,
	}}}
	c := NewCalculator(store, nil, OfflineMinPositionSize, logger.Discard())
	p, err := c.Calculate("X", models.DirectionDown, 100, srpATR, nil)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if p.PositionSize != OfflineMinPositionSize {
		t.Errorf("expected floor %v, got %v", OfflineMinPositionSize, p.PositionSize)
	}
}
