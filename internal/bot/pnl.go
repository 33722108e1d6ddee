package bot

import (
	"github.com/shopspring/decimal"

	"autotrader/internal/models"
)

// PnL - нереализованный результат позиции
type PnL struct {
	Amount  float64 // в единицах банкролла
	Percent float64 // от PositionSize, в процентах
}

// CalculatePnL считает PnL в десятичной арифметике
//
// long: (price - entry) * qty, short: (entry - price) * qty.
// (0.49 - 0.40) * 100 даёт ровно 9, без двоичного хвоста float64.
func CalculatePnL(direction string, entry, price, quantity, positionSize float64) PnL {
	e := decimal.NewFromFloat(entry)
	p := decimal.NewFromFloat(price)
	q := decimal.NewFromFloat(quantity)

	diff := p.Sub(e)
	if direction == models.DirectionShort {
		diff = e.Sub(p)
	}
	amount := diff.Mul(q)

	var percent decimal.Decimal
	if positionSize > 0 {
		percent = amount.Div(decimal.NewFromFloat(positionSize)).Mul(decimal.NewFromInt(100))
	}

	a, _ := amount.Float64()
	pct, _ := percent.Round(6).Float64()
	return PnL{Amount: a, Percent: pct}
}

// scalePrice возвращает price * (1 + pct) в десятичной арифметике
//
// 0.45 * (1 - 0.05) даёт ровно 0.4275; pct со знаком.
func scalePrice(price, pct float64) float64 {
	p := decimal.NewFromFloat(price)
	f := decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct))
	v, _ := p.Mul(f).Float64()
	return v
}
