package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/greencart/internal/domain/address"
)

const (
	addressColumns = `id, user_id, first_name, last_name, email, street, city, state, zipcode, country, phone`

	addAddressSQL = `INSERT INTO addresses (` + addressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	listAddressesByUserSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1`

	getAddressesByIDsSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE id = ANY($1)`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// Add inserts a and assigns its ID.
func (r *AddressRepository) Add(ctx context.Context, a *address.Address) error {
	a.ID = uuid.NewString()
	_, err := r.pool.Exec(ctx, addAddressSQL,
		a.ID, a.UserID, a.FirstName, a.LastName, a.Email,
		a.Street, a.City, a.State, a.Zipcode, a.Country, a.Phone,
	)
	if err != nil {
		return fmt.Errorf("adding address: %w", err)
	}
	return nil
}

// ListByUser returns every address of the user.
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	return pgx.CollectRows(rows, scanAddress)
}

// GetByIDs returns the addresses matching ids.
func (r *AddressRepository) GetByIDs(ctx context.Context, ids []string) ([]address.Address, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, getAddressesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting addresses by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanAddress)
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(
		&a.ID, &a.UserID, &a.FirstName, &a.LastName, &a.Email,
		&a.Street, &a.City, &a.State, &a.Zipcode, &a.Country, &a.Phone,
	)
	return a, err
}
