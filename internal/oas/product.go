package oas

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Product is a catalog record.
type Product struct {
	ID          string
	Name        string
	Description []string
	Category    string
	Price       decimal.Decimal
	OfferPrice  decimal.Decimal
	Images      []string
	InStock     bool
	CreatedAt   time.Time
}

// Encode implements Encoder.
func (p *Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("_id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	encodeStrings(e, p.Description)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	encodeMoney(e, p.Price)
	e.FieldStart("offerPrice")
	encodeMoney(e, p.OfferPrice)
	e.FieldStart("image")
	encodeStrings(e, p.Images)
	e.FieldStart("inStock")
	e.Bool(p.InStock)
	if !p.CreatedAt.IsZero() {
		e.FieldStart("createdAt")
		encodeTime(e, p.CreatedAt)
	}
	e.ObjEnd()
}

// Decode implements Decoder.
func (p *Product) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "_id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = decodeStrings(d)
		case "category":
			p.Category, err = d.Str()
		case "price":
			p.Price, err = decodeMoney(d)
		case "offerPrice":
			p.OfferPrice, err = decodeMoney(d)
		case "image":
			p.Images, err = decodeStrings(d)
		case "inStock":
			p.InStock, err = d.Bool()
		case "createdAt":
			p.CreatedAt, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// ProductListResponse is the result of listing the catalog.
type ProductListResponse struct {
	Response
	Products []Product
}

// Encode implements Encoder.
func (r *ProductListResponse) Encode(e *jx.Encoder) {
	e.ObjStart()
	encodeStatus(e, r.Success, r.Message)
	if r.Success {
		e.FieldStart("products")
		e.ArrStart()
		for i := range r.Products {
			r.Products[i].Encode(e)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

// Decode implements Decoder.
func (r *ProductListResponse) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "products" {
			return r.Response.decodeField(d, key)
		}
		return d.Arr(func(d *jx.Decoder) error {
			var p Product
			if err := p.Decode(d); err != nil {
				return err
			}
			r.Products = append(r.Products, p)
			return nil
		})
	})
}

// ProductResponse is the result of fetching one product.
type ProductResponse struct {
	Response
	Product *Product
}

// Encode implements Encoder.
func (r *ProductResponse) Encode(e *jx.Encoder) {
	e.ObjStart()
	encodeStatus(e, r.Success, r.Message)
	if r.Product != nil {
		e.FieldStart("product")
		r.Product.Encode(e)
	}
	e.ObjEnd()
}
