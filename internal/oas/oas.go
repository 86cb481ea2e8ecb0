// Package oas contains the JSON wire types of the storefront API and their
// jx codecs.
//
// Field names follow the storefront front end: documents are keyed by
// "_id" and money is written as JSON numbers, except order amounts which
// are fixed two-decimal strings.
package oas

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/greencart/pkg/cart"
)

// Decoder is implemented by request types.
type Decoder interface {
	Decode(d *jx.Decoder) error
}

// Encoder is implemented by response types.
type Encoder interface {
	Encode(e *jx.Encoder)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v Decoder) error {
	if len(data) == 0 {
		return errors.New("empty body")
	}
	if err := v.Decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

// Marshal encodes v.
func Marshal(v Encoder) []byte {
	var e jx.Encoder
	v.Encode(&e)
	return e.Bytes()
}

// Response is the generic {success, message} result.
type Response struct {
	Success bool
	Message string
}

// Encode implements Encoder.
func (r *Response) Encode(e *jx.Encoder) {
	e.ObjStart()
	encodeStatus(e, r.Success, r.Message)
	e.ObjEnd()
}

// Decode implements Decoder.
func (r *Response) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		return r.decodeField(d, key)
	})
}

func (r *Response) decodeField(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "success":
		r.Success, err = d.Bool()
	case "message":
		r.Message, err = d.Str()
	default:
		err = d.Skip()
	}
	return err
}

// WebhookResponse acknowledges a gateway webhook delivery.
type WebhookResponse struct {
	Received bool
}

// Encode implements Encoder.
func (r *WebhookResponse) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("received")
	e.Bool(r.Received)
	e.ObjEnd()
}

func encodeStatus(e *jx.Encoder, success bool, message string) {
	e.FieldStart("success")
	e.Bool(success)
	if message != "" {
		e.FieldStart("message")
		e.Str(message)
	}
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		out = append(out, s)
		return err
	})
	return out, err
}

func encodeCart(e *jx.Encoder, c cart.Cart) {
	e.ObjStart()
	for _, id := range c.ProductIDs() {
		e.FieldStart(id)
		e.Int(c[id])
	}
	e.ObjEnd()
}

func decodeCart(d *jx.Decoder) (cart.Cart, error) {
	c := cart.New()
	if d.Next() == jx.Null {
		return c, d.Null()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		qty, err := d.Int()
		if err != nil {
			return errors.Wrapf(err, "quantity of %q", key)
		}
		c[key] = qty
		return nil
	})
	return c, err
}
