package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/greencart/internal/domain/order"
)

const (
	orderColumns = `id, user_id, items, amount, address_id, payment_type, status, payment_intent_id, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	applyTransitionSQL = `UPDATE orders SET
			status = $2,
			payment_intent_id = CASE WHEN $3 = '' THEN payment_intent_id ELSE $3 END,
			updated_at = $4
		WHERE id = $1 AND status = ANY($5)`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 AND status <> 'cancelled' ORDER BY created_at DESC`

	listSellerOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE payment_type = 'COD' OR status = 'paid' ORDER BY created_at DESC`
)

// orderItemRow is the JSONB representation of an order line.
type orderItemRow struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and assigns its ID. The order items are
// stored in a JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	o.ID = uuid.NewString()
	items := make([]orderItemRow, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemRow{Product: it.ProductID, Quantity: it.Quantity}
	}

	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, items, o.Amount, o.AddressID,
		string(o.PaymentType), string(o.Status), o.PaymentIntentID, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// Apply performs t with a status-conditional UPDATE.
func (r *OrderRepository) Apply(ctx context.Context, id string, t order.Transition) (bool, error) {
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	tag, err := r.pool.Exec(ctx, applyTransitionSQL,
		id, string(t.To), t.PaymentIntentID, time.Now().UTC(), from,
	)
	if err != nil {
		return false, fmt.Errorf("updating order %q: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return false, order.ErrNotFound
	}
	return false, nil
}

// ListByUser returns the user's orders except cancelled ones, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListForSeller returns cash-on-delivery and paid orders, newest first.
func (r *OrderRepository) ListForSeller(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listSellerOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing seller orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		items       []orderItemRow
		paymentType string
		status      string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &items, &o.Amount, &o.AddressID,
		&paymentType, &status, &o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt,
	)
	o.PaymentType = order.PaymentType(paymentType)
	o.Status = order.Status(status)
	o.Items = make([]order.Item, len(items))
	for i, it := range items {
		o.Items[i] = order.Item{ProductID: it.Product, Quantity: it.Quantity}
	}
	return o, err
}
