package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description []string
	Category    string
	Price       decimal.Decimal
	OfferPrice  decimal.Decimal
	Images      []string
	InStock     bool
	CreatedAt   time.Time
}

// Repository defines read operations for the product catalog.
//
// GetByIDs returns only the products that exist; identifiers that are
// unknown or malformed for the backing store are silently omitted.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Writer inserts catalog records. It is used by the seeding tool only.
type Writer interface {
	Upsert(ctx context.Context, p *Product) error
}

// ValidID reports whether id is a well-formed product identifier:
// 1 to 64 characters from [A-Za-z0-9_-].
func ValidID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for i := range len(id) {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// Index maps product identifiers to products.
type Index map[string]Product

// NewIndex builds an Index from a product list.
func NewIndex(products []Product) Index {
	idx := make(Index, len(products))
	for _, p := range products {
		idx[p.ID] = p
	}
	return idx
}

// OfferPrice implements cart.PriceLookup.
func (idx Index) OfferPrice(id string) (decimal.Decimal, bool) {
	p, ok := idx[id]
	if !ok {
		return decimal.Zero, false
	}
	return p.OfferPrice, true
}
