package ig

import "github.com/shopspring/decimal"

// formatLevel округляет уровень до точности инструмента.
func formatLevel(value float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	return decimal.NewFromFloat(value).Round(int32(decimals)).StringFixed(int32(decimals))
}

// formatDistance никогда не отдаёт ноль: IG отклоняет нулевую дистанцию.
func formatDistance(value float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	d := decimal.NewFromFloat(value).Round(int32(decimals))
	if d.LessThanOrEqual(decimal.Zero) {
		d = decimal.New(1, -int32(decimals))
	}
	return d.StringFixed(int32(decimals))
}

func formatSize(value float64) string {
	return decimal.NewFromFloat(value).Round(2).StringFixed(2)
}

// quoteDecimals: decimalPlacesFactor из снапшота, иначе по величине цены.
func quoteDecimals(factor int, price float64) int {
	if factor > 0 {
		return factor
	}
	switch {
	case price <= 0:
		return 2
	case price < 10:
		return 4
	case price < 1000:
		return 2
	default:
		return 1
	}
}
