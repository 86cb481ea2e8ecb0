package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/greencart/internal/domain/user"
	"github.com/xenking/greencart/pkg/cart"
)

const (
	userColumns = `id, name, email, password_hash, cart_items, created_at`

	createUserSQL = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	replaceCartSQL = `UPDATE users SET cart_items = $2 WHERE id = $1`

	incrementCartItemSQL = `UPDATE users SET cart_items = jsonb_set(cart_items, ARRAY[$2::text],
		to_jsonb(COALESCE((cart_items->>$2::text)::int, 0) + 1)) WHERE id = $1`

	setCartItemSQL = `UPDATE users SET cart_items = jsonb_set(cart_items, ARRAY[$2::text],
		to_jsonb($3::int)) WHERE id = $1`

	deleteCartItemSQL = `UPDATE users SET cart_items = cart_items - $2::text WHERE id = $1`

	decrementCartItemSQL = `UPDATE users SET cart_items = CASE
		WHEN COALESCE((cart_items->>$2::text)::int, 0) > 1
			THEN jsonb_set(cart_items, ARRAY[$2::text], to_jsonb((cart_items->>$2::text)::int - 1))
		ELSE cart_items - $2::text
	END WHERE id = $1`

	clearCartSQL = `UPDATE users SET cart_items = '{}'::jsonb WHERE id = $1`

	uniqueViolation = "23505"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL. The cart
// is a JSONB object keyed by product id; every cart mutation is a single
// UPDATE statement.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts u and assigns its ID.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.CartItems == nil {
		u.CartItems = cart.New()
	}
	_, err := r.pool.Exec(ctx, createUserSQL,
		u.ID, u.Name, u.Email, u.PasswordHash, map[string]int(u.CartItems), u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByEmail returns the user registered with email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

func (r *UserRepository) getOne(ctx context.Context, sql string, arg string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// ReplaceCart overwrites the whole cart.
func (r *UserRepository) ReplaceCart(ctx context.Context, userID string, items cart.Cart) error {
	return r.exec(ctx, replaceCartSQL, userID, map[string]int(items))
}

// IncrementCartItem adds one unit of productID.
func (r *UserRepository) IncrementCartItem(ctx context.Context, userID, productID string) error {
	return r.exec(ctx, incrementCartItemSQL, userID, productID)
}

// SetCartItem sets the quantity of productID.
func (r *UserRepository) SetCartItem(ctx context.Context, userID, productID string, quantity int) error {
	return r.exec(ctx, setCartItemSQL, userID, productID, quantity)
}

// RemoveCartItem decrements productID, or deletes it when force is set or
// its quantity is one or less.
func (r *UserRepository) RemoveCartItem(ctx context.Context, userID, productID string, force bool) error {
	if force {
		return r.exec(ctx, deleteCartItemSQL, userID, productID)
	}
	return r.exec(ctx, decrementCartItemSQL, userID, productID)
}

// ClearCart empties the cart.
func (r *UserRepository) ClearCart(ctx context.Context, userID string) error {
	return r.exec(ctx, clearCartSQL, userID)
}

func (r *UserRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u     user.User
		items map[string]int
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &items, &u.CreatedAt)
	if items == nil {
		items = map[string]int{}
	}
	u.CartItems = cart.Cart(items).Normalize()
	return u, err
}
