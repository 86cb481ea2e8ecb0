package mongodb

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/greencart/internal/domain/product"
)

type productDoc struct {
	ID          primitive.ObjectID   `bson:"_id"`
	Name        string               `bson:"name"`
	Description []string             `bson:"description"`
	Category    string               `bson:"category"`
	Price       primitive.Decimal128 `bson:"price"`
	OfferPrice  primitive.Decimal128 `bson:"offerPrice"`
	Images      []string             `bson:"image"`
	InStock     bool                 `bson:"inStock"`
	CreatedAt   time.Time            `bson:"createdAt"`
}

func (d *productDoc) toDomain() (product.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return product.Product{}, errors.Wrap(err, "price")
	}
	offer, err := fromDecimal128(d.OfferPrice)
	if err != nil {
		return product.Product{}, errors.Wrap(err, "offerPrice")
	}
	return product.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Price:       price,
		OfferPrice:  offer,
		Images:      d.Images,
		InStock:     d.InStock,
		CreatedAt:   d.CreatedAt,
	}, nil
}

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Writer     = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository backed by MongoDB.
type ProductRepository struct {
	c *mongo.Collection
}

// NewProductRepository returns a ProductRepository on db.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{c: db.Collection(productsCollection)}
}

// List returns the whole catalog, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{}, opts)
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, product.ErrNotFound
	}
	var doc productDoc
	if err := r.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find product %q", id)
	}
	p, err := doc.toDomain()
	if err != nil {
		return nil, errors.Wrapf(err, "decode product %q", id)
	}
	return &p, nil
}

// GetByIDs returns the products matching ids. Identifiers that are not
// valid ObjectIDs are skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (r *ProductRepository) find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]product.Product, error) {
	cur, err := r.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "read products")
	}
	out := make([]product.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toDomain()
		if err != nil {
			return nil, errors.Wrapf(err, "decode product %s", docs[i].ID.Hex())
		}
		out = append(out, p)
	}
	return out, nil
}

// Upsert inserts or replaces p. An empty p.ID is assigned a new ObjectID.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	oid := primitive.NewObjectID()
	if p.ID != "" {
		var err error
		if oid, err = primitive.ObjectIDFromHex(p.ID); err != nil {
			return errors.Wrapf(err, "product id %q", p.ID)
		}
	}
	price, err := toDecimal128(p.Price)
	if err != nil {
		return err
	}
	offer, err := toDecimal128(p.OfferPrice)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	doc := productDoc{
		ID:          oid,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       price,
		OfferPrice:  offer,
		Images:      p.Images,
		InStock:     p.InStock,
		CreatedAt:   p.CreatedAt,
	}
	if _, err := r.c.ReplaceOne(ctx, bson.M{"_id": oid}, doc, options.Replace().SetUpsert(true)); err != nil {
		return errors.Wrapf(err, "upsert product %q", p.Name)
	}
	p.ID = oid.Hex()
	return nil
}
