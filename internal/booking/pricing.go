package booking

import "github.com/shopspring/decimal"

// Price is rate times the number of nights. It depends only on its inputs,
// so recomputing from a stored booking reproduces the stored price.
func Price(rate decimal.Decimal, r DateRange) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(int64(r.Nights())))
}
