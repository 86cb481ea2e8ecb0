package oas

import "github.com/go-faster/jx"

// Address is a delivery address.
type Address struct {
	ID        string
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Street    string
	City      string
	State     string
	Zipcode   string
	Country   string
	Phone     string
}

// Encode implements Encoder.
func (a *Address) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("_id")
	e.Str(a.ID)
	e.FieldStart("userId")
	e.Str(a.UserID)
	e.FieldStart("firstName")
	e.Str(a.FirstName)
	e.FieldStart("lastName")
	e.Str(a.LastName)
	e.FieldStart("email")
	e.Str(a.Email)
	a.encodeLocation(e)
	e.FieldStart("zipcode")
	e.Str(a.Zipcode)
	e.FieldStart("phone")
	e.Str(a.Phone)
	e.ObjEnd()
}

// EncodeBrief writes the location subset shown in a customer's order
// history.
func (a *Address) EncodeBrief(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("_id")
	e.Str(a.ID)
	a.encodeLocation(e)
	e.ObjEnd()
}

func (a *Address) encodeLocation(e *jx.Encoder) {
	e.FieldStart("street")
	e.Str(a.Street)
	e.FieldStart("city")
	e.Str(a.City)
	e.FieldStart("state")
	e.Str(a.State)
	e.FieldStart("country")
	e.Str(a.Country)
}

// Decode implements Decoder.
func (a *Address) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "_id":
			a.ID, err = d.Str()
		case "userId":
			a.UserID, err = d.Str()
		case "firstName":
			a.FirstName, err = d.Str()
		case "lastName":
			a.LastName, err = d.Str()
		case "email":
			a.Email, err = d.Str()
		case "street":
			a.Street, err = d.Str()
		case "city":
			a.City, err = d.Str()
		case "state":
			a.State, err = d.Str()
		case "zipcode":
			a.Zipcode, err = decodeLoose(d)
		case "country":
			a.Country, err = d.Str()
		case "phone":
			a.Phone, err = decodeLoose(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// decodeLoose reads a string or a number as a string. Forms submit zip
// codes and phone numbers either way.
func decodeLoose(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		return n.String(), err
	}
	return d.Str()
}

// AddressRequest is the body of POST /api/address/add.
type AddressRequest struct {
	UserID  string
	Address Address
}

// Decode implements Decoder.
func (r *AddressRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "userId":
			s, err := d.Str()
			r.UserID = s
			return err
		case "address":
			return r.Address.Decode(d)
		default:
			return d.Skip()
		}
	})
}

// AddressListResponse is the result of listing a user's addresses.
type AddressListResponse struct {
	Response
	Addresses []Address
}

// Encode implements Encoder.
func (r *AddressListResponse) Encode(e *jx.Encoder) {
	e.ObjStart()
	encodeStatus(e, r.Success, r.Message)
	if r.Success {
		e.FieldStart("addresses")
		e.ArrStart()
		for i := range r.Addresses {
			r.Addresses[i].Encode(e)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}
