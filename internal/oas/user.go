package oas

import (
	"github.com/go-faster/jx"

	"github.com/xenking/greencart/pkg/cart"
)

// RegisterRequest is the body of POST /api/user/register.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// Decode implements Decoder.
func (r *RegisterRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			r.Name, err = d.Str()
		case "email":
			r.Email, err = d.Str()
		case "password":
			r.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

// LoginRequest is the body of the user and seller login endpoints.
type LoginRequest struct {
	Email    string
	Password string
}

// Decode implements Decoder.
func (r *LoginRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			r.Email, err = d.Str()
		case "password":
			r.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

// Encode implements Encoder.
func (r *LoginRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("email")
	e.Str(r.Email)
	e.FieldStart("password")
	e.Str(r.Password)
	e.ObjEnd()
}

// User is the public view of a customer.
type User struct {
	ID        string
	Name      string
	Email     string
	CartItems cart.Cart
}

// Encode implements Encoder.
func (u *User) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("_id")
	e.Str(u.ID)
	e.FieldStart("name")
	e.Str(u.Name)
	e.FieldStart("email")
	e.Str(u.Email)
	e.FieldStart("cartItems")
	encodeCart(e, u.CartItems)
	e.ObjEnd()
}

// Decode implements Decoder.
func (u *User) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "_id":
			u.ID, err = d.Str()
		case "name":
			u.Name, err = d.Str()
		case "email":
			u.Email, err = d.Str()
		case "cartItems":
			u.CartItems, err = decodeCart(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// UserResponse is the result of register, login and is-auth.
type UserResponse struct {
	Response
	User *User
}

// Encode implements Encoder.
func (r *UserResponse) Encode(e *jx.Encoder) {
	e.ObjStart()
	encodeStatus(e, r.Success, r.Message)
	if r.User != nil {
		e.FieldStart("user")
		r.User.Encode(e)
	}
	e.ObjEnd()
}

// Decode implements Decoder.
func (r *UserResponse) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "user" {
			return r.Response.decodeField(d, key)
		}
		r.User = &User{}
		return r.User.Decode(d)
	})
}
