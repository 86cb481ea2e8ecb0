package oas

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// OrderItem is one requested order line.
type OrderItem struct {
	// Product is empty when the client sent a non-string identifier.
	Product  string
	Quantity int
}

// OrderRequest is the body of the order placement endpoints.
type OrderRequest struct {
	UserID  string
	Items   []OrderItem
	Address string
}

// Encode implements Encoder.
func (r *OrderRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("userId")
	e.Str(r.UserID)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range r.Items {
		e.ObjStart()
		e.FieldStart("product")
		e.Str(it.Product)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("address")
	e.Str(r.Address)
	e.ObjEnd()
}

// Decode implements Decoder.
func (r *OrderRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			r.UserID, err = d.Str()
		case "address":
			r.Address, err = d.Str()
		case "items":
			r.Items = []OrderItem{}
			err = d.Arr(func(d *jx.Decoder) error {
				var it OrderItem
				if err := it.decode(d); err != nil {
					return err
				}
				r.Items = append(r.Items, it)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
}

func (it *OrderItem) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product":
			if d.Next() != jx.String {
				return d.Skip()
			}
			s, err := d.Str()
			it.Product = s
			return err
		case "quantity":
			n, err := d.Int()
			it.Quantity = n
			return err
		default:
			return d.Skip()
		}
	})
}

// CheckoutResponse is the result of starting an online checkout.
type CheckoutResponse struct {
	Response
	URL string
}

// Encode implements Encoder.
func (r *CheckoutResponse) Encode(e *jx.Encoder) {
	e.ObjStart()
	encodeStatus(e, r.Success, r.Message)
	if r.URL != "" {
		e.FieldStart("url")
		e.Str(r.URL)
	}
	e.ObjEnd()
}

// OrderLine is an order item joined with its product. Product is nil when
// the product no longer exists.
type OrderLine struct {
	Product  *Product
	Quantity int
}

// Order is a placed order joined with its products and address.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderLine
	Amount          decimal.Decimal
	Address         *Address
	PaymentType     string
	Status          string
	IsPaid          bool
	PaymentIntentID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Encode implements Encoder with full product and address records.
func (o *Order) Encode(e *jx.Encoder) { o.encode(e, false) }

// EncodeBrief writes the order with the product and address subsets shown
// in a customer's order history.
func (o *Order) EncodeBrief(e *jx.Encoder) { o.encode(e, true) }

func (o *Order) encode(e *jx.Encoder, brief bool) {
	e.ObjStart()
	e.FieldStart("_id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)

	e.FieldStart("items")
	e.ArrStart()
	for _, line := range o.Items {
		e.ObjStart()
		e.FieldStart("product")
		switch {
		case line.Product == nil:
			e.Null()
		case brief:
			encodeBriefProduct(e, line.Product)
		default:
			line.Product.Encode(e)
		}
		e.FieldStart("quantity")
		e.Int(line.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("amount")
	e.Str(o.Amount.StringFixed(2))

	e.FieldStart("address")
	switch {
	case o.Address == nil:
		e.Null()
	case brief:
		o.Address.EncodeBrief(e)
	default:
		o.Address.Encode(e)
	}

	e.FieldStart("paymentType")
	e.Str(o.PaymentType)
	e.FieldStart("status")
	e.Str(o.Status)
	e.FieldStart("isPaid")
	e.Bool(o.IsPaid)
	if o.PaymentIntentID != "" && !brief {
		e.FieldStart("paymentIntentId")
		e.Str(o.PaymentIntentID)
	}
	e.FieldStart("createdAt")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, o.UpdatedAt)
	e.ObjEnd()
}

func encodeBriefProduct(e *jx.Encoder, p *Product) {
	e.ObjStart()
	e.FieldStart("_id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("image")
	encodeStrings(e, p.Images)
	e.FieldStart("offerPrice")
	encodeMoney(e, p.OfferPrice)
	e.FieldStart("category")
	e.Str(p.Category)
	e.ObjEnd()
}

// OrdersResponse lists orders. Brief selects the customer projection.
type OrdersResponse struct {
	Response
	Orders []Order
	Brief  bool
}

// Encode implements Encoder.
func (r *OrdersResponse) Encode(e *jx.Encoder) {
	e.ObjStart()
	encodeStatus(e, r.Success, r.Message)
	if r.Success {
		e.FieldStart("orders")
		e.ArrStart()
		for i := range r.Orders {
			r.Orders[i].encode(e, r.Brief)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}
