package order

import "github.com/shopspring/decimal"

var (
	taxRate = decimal.RequireFromString("0.02")
	hundred = decimal.NewFromInt(100)
)

// Tax returns the surcharge for an order subtotal: 2% floored to a whole
// currency unit.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(taxRate).Floor()
}

// TotalWithTax returns subtotal plus Tax(subtotal). The tax is floored
// before it is added; the sum itself is not rounded.
func TotalWithTax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Add(Tax(subtotal))
}

// UnitAmount returns the gateway unit price of a product in minor units.
// The unit price is inflated by 2%, truncated to a whole currency unit,
// then converted to cents. This deliberately differs from TotalWithTax,
// which floors the tax of the aggregate.
func UnitAmount(price decimal.Decimal) int64 {
	return price.Add(price.Mul(taxRate)).Floor().Mul(hundred).IntPart()
}
