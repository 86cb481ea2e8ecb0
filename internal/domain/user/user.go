package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/greencart/pkg/cart"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an email that is in use.
	ErrEmailTaken = errors.New("user already exists")
)

// User is a storefront customer. CartItems is the server-side,
// authoritative copy of the customer's cart.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CartItems    cart.Cart
	CreatedAt    time.Time
}

// Repository persists users and their carts.
//
// The cart mutations are single atomic updates in the backing store so
// that concurrent per-item changes from one user do not lose updates.
// RemoveCartItem deletes the entry when force is set or the stored
// quantity is one or less. All cart mutations return ErrNotFound when the
// user does not exist.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	ReplaceCart(ctx context.Context, userID string, items cart.Cart) error
	IncrementCartItem(ctx context.Context, userID, productID string) error
	SetCartItem(ctx context.Context, userID, productID string, quantity int) error
	RemoveCartItem(ctx context.Context, userID, productID string, force bool) error
	ClearCart(ctx context.Context, userID string) error
}
