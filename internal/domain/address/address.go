package address

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrInvalid is returned when a required address field is empty.
var ErrInvalid = errors.New("address is incomplete")

// Address is a delivery address owned by a user.
type Address struct {
	ID        string
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Street    string
	City      string
	State     string
	Zipcode   string
	Country   string
	Phone     string
}

// Validate reports ErrInvalid when any field needed for delivery is empty.
func (a *Address) Validate() error {
	for _, v := range []string{a.FirstName, a.LastName, a.Street, a.City, a.State, a.Zipcode, a.Country, a.Phone} {
		if v == "" {
			return ErrInvalid
		}
	}
	return nil
}

// Repository persists delivery addresses.
type Repository interface {
	Add(ctx context.Context, a *Address) error
	ListByUser(ctx context.Context, userID string) ([]Address, error)
	GetByIDs(ctx context.Context, ids []string) ([]Address, error)
}
