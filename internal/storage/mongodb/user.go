package mongodb

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/xenking/greencart/internal/domain/user"
	"github.com/xenking/greencart/pkg/cart"
)

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	CartItems map[string]int     `bson:"cartItems"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d *userDoc) toDomain() *user.User {
	items := cart.Cart(d.CartItems)
	if items == nil {
		items = cart.New()
	}
	return &user.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		CartItems:    items.Normalize(),
		CreatedAt:    d.CreatedAt,
	}
}

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by MongoDB. Cart items
// live in the cartItems sub-document keyed by product id, so every cart
// mutation is a single-document update.
type UserRepository struct {
	c *mongo.Collection
}

// NewUserRepository returns a UserRepository on db.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{c: db.Collection(usersCollection)}
}

// Create inserts u and assigns its ID.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	items := u.CartItems
	if items == nil {
		items = cart.New()
	}
	doc := userDoc{
		ID:        primitive.NewObjectID(),
		Name:      u.Name,
		Email:     u.Email,
		Password:  u.PasswordHash,
		CartItems: items,
		CreatedAt: u.CreatedAt,
	}
	if _, err := r.c.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.ErrEmailTaken
		}
		return errors.Wrap(err, "insert user")
	}
	u.ID = doc.ID.Hex()
	u.CartItems = items
	return nil
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, user.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// GetByEmail returns the user registered with email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*user.User, error) {
	var doc userDoc
	if err := r.c.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrap(err, "find user")
	}
	return doc.toDomain(), nil
}

// ReplaceCart overwrites the whole cart.
func (r *UserRepository) ReplaceCart(ctx context.Context, userID string, items cart.Cart) error {
	return r.update(ctx, userID, bson.M{"$set": bson.M{"cartItems": map[string]int(items)}})
}

// IncrementCartItem adds one unit of productID.
func (r *UserRepository) IncrementCartItem(ctx context.Context, userID, productID string) error {
	return r.update(ctx, userID, bson.M{"$inc": bson.M{cartField(productID): 1}})
}

// SetCartItem sets the quantity of productID.
func (r *UserRepository) SetCartItem(ctx context.Context, userID, productID string, quantity int) error {
	return r.update(ctx, userID, bson.M{"$set": bson.M{cartField(productID): quantity}})
}

// RemoveCartItem decrements productID when its quantity is above one and
// deletes it otherwise or when force is set. Each branch is a conditional
// single-document update.
func (r *UserRepository) RemoveCartItem(ctx context.Context, userID, productID string, force bool) error {
	field := cartField(productID)
	unset := bson.M{"$unset": bson.M{field: ""}}
	if force {
		return r.update(ctx, userID, unset)
	}

	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return user.ErrNotFound
	}
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": oid, field: bson.M{"$gt": 1}},
		bson.M{"$inc": bson.M{field: -1}},
	)
	if err != nil {
		return errors.Wrap(err, "decrement cart item")
	}
	if res.MatchedCount > 0 {
		return nil
	}
	return r.update(ctx, userID, unset)
}

// ClearCart empties the cart.
func (r *UserRepository) ClearCart(ctx context.Context, userID string) error {
	return r.update(ctx, userID, bson.M{"$set": bson.M{"cartItems": bson.M{}}})
}

func (r *UserRepository) update(ctx context.Context, userID string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return user.ErrNotFound
	}
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return errors.Wrap(err, "update user cart")
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

func cartField(productID string) string {
	return "cartItems." + productID
}
