// Package cart implements the product-to-quantity mapping shared by the
// storefront client and the server-side cart service.
//
// A Cart never holds an entry with a quantity below one: every mutation
// either keeps the quantity positive or deletes the entry.
package cart

import (
	"maps"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when a quantity below one is requested.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Cart maps product identifiers to positive quantities.
type Cart map[string]int

// PriceLookup resolves the unit offer price of a product. ok is false when
// the product is not present in the lookup's snapshot.
type PriceLookup interface {
	OfferPrice(productID string) (price decimal.Decimal, ok bool)
}

// New returns an empty cart.
func New() Cart {
	return make(Cart)
}

// Add increments the quantity of productID by one, inserting it with
// quantity one when absent.
func (c Cart) Add(productID string) {
	c[productID]++
}

// SetQuantity sets the quantity of productID. Quantities below one are
// rejected with ErrInvalidQuantity and leave the cart unchanged.
func (c Cart) SetQuantity(productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	c[productID] = quantity
	return nil
}

// Remove deletes productID when force is set or its quantity is one or
// less, and decrements it otherwise. Removing an absent product is a no-op.
func (c Cart) Remove(productID string, force bool) {
	qty, ok := c[productID]
	if !ok {
		return
	}
	if force || qty <= 1 {
		delete(c, productID)
		return
	}
	c[productID] = qty - 1
}

// Count returns the sum of all quantities.
func (c Cart) Count() int {
	total := 0
	for _, qty := range c {
		total += qty
	}
	return total
}

// Clone returns an independent copy of the cart.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	maps.Copy(out, c)
	return out
}

// ProductIDs returns the product identifiers in the cart in sorted order.
func (c Cart) ProductIDs() []string {
	return slices.Sorted(maps.Keys(c))
}

// Normalize drops entries whose quantity is below one. It is used on
// snapshots received from outside, where zero entries may appear.
func (c Cart) Normalize() Cart {
	maps.DeleteFunc(c, func(_ string, qty int) bool { return qty < 1 })
	return c
}

// Amount sums offer price times quantity for every entry with a positive
// quantity and floors the result to two decimal places. Entries whose
// product is absent from prices are skipped and their identifiers returned
// in missing, sorted.
func (c Cart) Amount(prices PriceLookup) (total decimal.Decimal, missing []string) {
	total = decimal.Zero
	for _, id := range c.ProductIDs() {
		qty := c[id]
		if qty <= 0 {
			continue
		}
		price, ok := prices.OfferPrice(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total.RoundFloor(2), missing
}
