// Package cart implements the server-side, authoritative copy of a
// customer's cart.
package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/greencart/internal/domain/product"
	"github.com/xenking/greencart/internal/domain/user"
	"github.com/xenking/greencart/pkg/cart"
)

// ErrInvalidProductID is returned for a malformed product identifier.
var ErrInvalidProductID = errors.New("invalid product id")

// Service mutates user carts. Each operation is a single storage update.
type Service struct {
	users user.Repository
}

// NewService creates a cart Service.
func NewService(users user.Repository) *Service {
	return &Service{users: users}
}

// Replace overwrites the user's cart with items after validating every
// entry. Nothing is written when any entry is invalid.
func (s *Service) Replace(ctx context.Context, userID string, items cart.Cart) error {
	for id, qty := range items {
		if !product.ValidID(id) {
			return ErrInvalidProductID
		}
		if qty < 1 {
			return errors.Wrapf(cart.ErrInvalidQuantity, "product %s", id)
		}
	}
	if items == nil {
		items = cart.New()
	}
	if err := s.users.ReplaceCart(ctx, userID, items); err != nil {
		return errors.Wrap(err, "replace cart")
	}
	return nil
}

// Add increments productID by one and returns the resulting cart.
func (s *Service) Add(ctx context.Context, userID, productID string) (cart.Cart, error) {
	if !product.ValidID(productID) {
		return nil, ErrInvalidProductID
	}
	if err := s.users.IncrementCartItem(ctx, userID, productID); err != nil {
		return nil, errors.Wrap(err, "increment cart item")
	}
	return s.Get(ctx, userID)
}

// SetQuantity sets productID to quantity and returns the resulting cart.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) (cart.Cart, error) {
	if !product.ValidID(productID) {
		return nil, ErrInvalidProductID
	}
	if quantity < 1 {
		return nil, cart.ErrInvalidQuantity
	}
	if err := s.users.SetCartItem(ctx, userID, productID, quantity); err != nil {
		return nil, errors.Wrap(err, "set cart item")
	}
	return s.Get(ctx, userID)
}

// Remove decrements productID, deleting it at one or when force is set,
// and returns the resulting cart.
func (s *Service) Remove(ctx context.Context, userID, productID string, force bool) (cart.Cart, error) {
	if !product.ValidID(productID) {
		return nil, ErrInvalidProductID
	}
	if err := s.users.RemoveCartItem(ctx, userID, productID, force); err != nil {
		return nil, errors.Wrap(err, "remove cart item")
	}
	return s.Get(ctx, userID)
}

// Get returns the user's current cart.
func (s *Service) Get(ctx context.Context, userID string) (cart.Cart, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	if u.CartItems == nil {
		return cart.New(), nil
	}
	return u.CartItems, nil
}

