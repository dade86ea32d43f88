package order

import "github.com/shopspring/decimal"

func LineTotal(price float64, qty int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty)))
}

// CartTotal sums locked_price x quantity in decimal and rounds to cents.
func CartTotal(lines []CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTotal(l.LockedPrice, l.Quantity))
	}
	return sum.Round(2)
}
