package oas

import (
	"github.com/go-faster/jx"

	"github.com/xenking/greencart/pkg/cart"
)

// CartUpdateRequest is the full cart snapshot pushed by a client.
type CartUpdateRequest struct {
	UserID    string
	CartItems cart.Cart
}

// Encode implements Encoder.
func (r *CartUpdateRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	if r.UserID != "" {
		e.FieldStart("userId")
		e.Str(r.UserID)
	}
	e.FieldStart("cartItems")
	encodeCart(e, r.CartItems)
	e.ObjEnd()
}

// Decode implements Decoder.
func (r *CartUpdateRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			r.UserID, err = d.Str()
		case "cartItems":
			r.CartItems, err = decodeCart(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// CartItemRequest is the body of the per-item cart endpoints.
type CartItemRequest struct {
	ProductID   string
	Quantity    int
	ForceRemove bool
}

// Encode implements Encoder.
func (r *CartItemRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Str(r.ProductID)
	if r.Quantity != 0 {
		e.FieldStart("quantity")
		e.Int(r.Quantity)
	}
	if r.ForceRemove {
		e.FieldStart("forceRemove")
		e.Bool(true)
	}
	e.ObjEnd()
}

// Decode implements Decoder.
func (r *CartItemRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			r.ProductID, err = d.Str()
		case "quantity":
			r.Quantity, err = d.Int()
		case "forceRemove":
			r.ForceRemove, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
}

// CartResponse reports the outcome of a cart mutation.
type CartResponse struct {
	Response
	CartItems cart.Cart
}

// Encode implements Encoder.
func (r *CartResponse) Encode(e *jx.Encoder) {
	e.ObjStart()
	encodeStatus(e, r.Success, r.Message)
	if r.CartItems != nil {
		e.FieldStart("cartItems")
		encodeCart(e, r.CartItems)
	}
	e.ObjEnd()
}

// Decode implements Decoder.
func (r *CartResponse) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "cartItems" {
			return r.Response.decodeField(d, key)
		}
		c, err := decodeCart(d)
		r.CartItems = c
		return err
	})
}
