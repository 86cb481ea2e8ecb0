package mongodb

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/greencart/internal/domain/order"
)

type orderItemDoc struct {
	Product  string `bson:"product"`
	Quantity int    `bson:"quantity"`
}

type orderDoc struct {
	ID              primitive.ObjectID   `bson:"_id"`
	UserID          string               `bson:"userId"`
	Items           []orderItemDoc       `bson:"items"`
	Amount          primitive.Decimal128 `bson:"amount"`
	Address         string               `bson:"address"`
	PaymentType     string               `bson:"paymentType"`
	Status          string               `bson:"status"`
	IsPaid          bool                 `bson:"isPaid"`
	PaymentIntentID string               `bson:"paymentIntentId,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

func (d *orderDoc) toDomain() (order.Order, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return order.Order{}, errors.Wrap(err, "amount")
	}
	items := make([]order.Item, len(d.Items))
	for i, it := range d.Items {
		items[i] = order.Item{ProductID: it.Product, Quantity: it.Quantity}
	}
	return order.Order{
		ID:              d.ID.Hex(),
		UserID:          d.UserID,
		Items:           items,
		Amount:          amount,
		AddressID:       d.Address,
		PaymentType:     order.PaymentType(d.PaymentType),
		Status:          order.Status(d.Status),
		PaymentIntentID: d.PaymentIntentID,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by MongoDB.
type OrderRepository struct {
	c *mongo.Collection
}

// NewOrderRepository returns an OrderRepository on db.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{c: db.Collection(ordersCollection)}
}

// Create inserts o and assigns its ID.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	amount, err := toDecimal128(o.Amount)
	if err != nil {
		return err
	}
	items := make([]orderItemDoc, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemDoc{Product: it.ProductID, Quantity: it.Quantity}
	}
	doc := orderDoc{
		ID:              primitive.NewObjectID(),
		UserID:          o.UserID,
		Items:           items,
		Amount:          amount,
		Address:         o.AddressID,
		PaymentType:     string(o.PaymentType),
		Status:          string(o.Status),
		IsPaid:          o.IsPaid(),
		PaymentIntentID: o.PaymentIntentID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if _, err := r.c.InsertOne(ctx, doc); err != nil {
		return errors.Wrap(err, "insert order")
	}
	o.ID = doc.ID.Hex()
	return nil
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, order.ErrNotFound
	}
	var doc orderDoc
	if err := r.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find order %q", id)
	}
	o, err := doc.toDomain()
	if err != nil {
		return nil, errors.Wrapf(err, "decode order %q", id)
	}
	return &o, nil
}

// Apply performs t with a status-conditional update. When nothing matched,
// a second lookup tells a missing order from one in another status.
func (r *OrderRepository) Apply(ctx context.Context, id string, t order.Transition) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, order.ErrNotFound
	}
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}
	set := bson.M{
		"status":    string(t.To),
		"isPaid":    t.To == order.StatusPaid,
		"updatedAt": time.Now().UTC(),
	}
	if t.PaymentIntentID != "" {
		set["paymentIntentId"] = t.PaymentIntentID
	}

	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": oid, "status": bson.M{"$in": from}},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, errors.Wrapf(err, "update order %q", id)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	ok, err := exists(ctx, r.c, oid)
	if err != nil {
		return false, errors.Wrapf(err, "check order %q", id)
	}
	if !ok {
		return false, order.ErrNotFound
	}
	return false, nil
}

// ListByUser returns the user's orders, newest first. Cancelled orders are
// left out.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.find(ctx, bson.M{
		"userId": userID,
		"status": bson.M{"$ne": string(order.StatusCancelled)},
	})
}

// ListForSeller returns cash-on-delivery and paid orders, newest first.
func (r *OrderRepository) ListForSeller(ctx context.Context) ([]order.Order, error) {
	return r.find(ctx, bson.M{"$or": bson.A{
		bson.M{"paymentType": string(order.PaymentCOD)},
		bson.M{"status": string(order.StatusPaid)},
	}})
}

func (r *OrderRepository) find(ctx context.Context, filter bson.M) ([]order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find orders")
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "read orders")
	}
	out := make([]order.Order, 0, len(docs))
	for i := range docs {
		o, err := docs[i].toDomain()
		if err != nil {
			return nil, errors.Wrapf(err, "decode order %s", docs[i].ID.Hex())
		}
		out = append(out, o)
	}
	return out, nil
}
