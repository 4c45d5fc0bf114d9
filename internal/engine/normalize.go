package engine

import (
	"alertbot/internal/logger"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"
)

type Normalization struct {
	Price  float64
	Factor float64
}

type PriceNormalizer interface {
	Normalize(source, reference float64) Normalization
}

// TieredNormalizer: сначала соотношение 50..150 (×100), затем разница
// числа цифр целой части (|d| >= 2), затем значащие цифры (только d > 0).
type TieredNormalizer struct {
	log *logger.Logger
}

func NewTieredNormalizer(log *logger.Logger) *TieredNormalizer {
	return &TieredNormalizer{log: log}
}

func (n *TieredNormalizer) Normalize(source, reference float64) Normalization {
	unchanged := Normalization{Price: source, Factor: 1}
	if reference <= 0 || source <= 0 || !finite(reference) || !finite(source) {
		return unchanged
	}

	ratio := reference / source
	if ratio >= 50 && ratio <= 150 {
		out := Normalization{Price: source * 100, Factor: 100}
		n.logEntry().WithFields(logrus.Fields{
			"source":    source,
			"reference": reference,
			"ratio":     ratio,
			"result":    out.Price,
		}).Info("Соотношение цен около 100x, применяем множитель 100.")
		return out
	}

	if d := intDigits(reference) - intDigits(source); d >= 2 || d <= -2 {
		out := shift(source, d)
		n.logEntry().WithFields(logrus.Fields{
			"source":    source,
			"reference": reference,
			"digits":    d,
			"result":    out.Price,
		}).Info("Нормализация цены по разнице разрядов.")
		return out
	}

	if d := significantDigits(reference) - significantDigits(source); d > 0 {
		out := shift(source, d)
		n.logEntry().WithFields(logrus.Fields{
			"source":    source,
			"reference": reference,
			"digits":    d,
			"result":    out.Price,
		}).Info("Нормализация цены по значащим разрядам.")
		return out
	}

	return unchanged
}

func shift(source float64, d int) Normalization {
	scale := math.Pow10(abs(d))
	if d > 0 {
		return Normalization{Price: source * scale, Factor: scale}
	}
	return Normalization{Price: source / scale, Factor: 1 / scale}
}

// intDigits - число цифр усечённой целой части; у 0.x это "0", одна цифра.
func intDigits(v float64) int {
	return len(strconv.FormatInt(int64(math.Trunc(v)), 10))
}

// significantDigits - то же без ведущих нулей, у 0.x ноль цифр.
func significantDigits(v float64) int {
	i := int64(math.Trunc(v))
	if i == 0 {
		return 0
	}
	return len(strconv.FormatInt(i, 10))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (n *TieredNormalizer) logEntry() *logrus.Entry {
	return n.log.WithComponent("normalizer")
}
