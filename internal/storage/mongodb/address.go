package mongodb

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/xenking/greencart/internal/domain/address"
)

type addressDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	UserID    string             `bson:"userId"`
	FirstName string             `bson:"firstName"`
	LastName  string             `bson:"lastName"`
	Email     string             `bson:"email"`
	Street    string             `bson:"street"`
	City      string             `bson:"city"`
	State     string             `bson:"state"`
	Zipcode   string             `bson:"zipcode"`
	Country   string             `bson:"country"`
	Phone     string             `bson:"phone"`
}

func (d *addressDoc) toDomain() address.Address {
	return address.Address{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		Street:    d.Street,
		City:      d.City,
		State:     d.State,
		Zipcode:   d.Zipcode,
		Country:   d.Country,
		Phone:     d.Phone,
	}
}

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by MongoDB.
type AddressRepository struct {
	c *mongo.Collection
}

// NewAddressRepository returns an AddressRepository on db.
func NewAddressRepository(db *mongo.Database) *AddressRepository {
	return &AddressRepository{c: db.Collection(addressesCollection)}
}

// Add inserts a and assigns its ID.
func (r *AddressRepository) Add(ctx context.Context, a *address.Address) error {
	doc := addressDoc{
		ID:        primitive.NewObjectID(),
		UserID:    a.UserID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		Zipcode:   a.Zipcode,
		Country:   a.Country,
		Phone:     a.Phone,
	}
	if _, err := r.c.InsertOne(ctx, doc); err != nil {
		return errors.Wrap(err, "insert address")
	}
	a.ID = doc.ID.Hex()
	return nil
}

// ListByUser returns every address of the user.
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]address.Address, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

// GetByIDs returns the addresses matching ids.
func (r *AddressRepository) GetByIDs(ctx context.Context, ids []string) ([]address.Address, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (r *AddressRepository) find(ctx context.Context, filter bson.M) ([]address.Address, error) {
	cur, err := r.c.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "find addresses")
	}
	var docs []addressDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "read addresses")
	}
	out := make([]address.Address, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, nil
}
