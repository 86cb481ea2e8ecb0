package oas

import (
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/greencart/pkg/cart"
)

func TestOrderRequest_Decode(t *testing.T) {
	var req OrderRequest
	require.NoError(t, Unmarshal([]byte(`{
		"userId": "u1",
		"address": "a1",
		"items": [
			{"product": "p1", "quantity": 2},
			{"product": {"$gt": ""}, "quantity": 1},
			{"product": 42, "quantity": 1, "extra": true}
		],
		"ignored": [1, 2]
	}`), &req))

	assert.Equal(t, "u1", req.UserID)
	assert.Equal(t, "a1", req.Address)
	assert.Equal(t, []OrderItem{
		{Product: "p1", Quantity: 2},
		{Product: "", Quantity: 1},
		{Product: "", Quantity: 1},
	}, req.Items)
}

func TestOrderRequest_DecodeMissingItems(t *testing.T) {
	var req OrderRequest
	require.NoError(t, Unmarshal([]byte(`{"userId":"u1","address":"a1"}`), &req))
	assert.Nil(t, req.Items)

	require.Error(t, Unmarshal(nil, &req))
	require.Error(t, Unmarshal([]byte(`{"items":"nope"}`), &req))
}

func TestCartUpdateRequest(t *testing.T) {
	in := &CartUpdateRequest{UserID: "u1", CartItems: cart.Cart{"b": 2, "a": 1}}
	data := Marshal(in)
	assert.JSONEq(t, `{"userId":"u1","cartItems":{"a":1,"b":2}}`, string(data))

	var out CartUpdateRequest
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in.CartItems, out.CartItems)

	require.NoError(t, Unmarshal([]byte(`{"userId":"u1","cartItems":null}`), &out))
	assert.Empty(t, out.CartItems)

	require.Error(t, Unmarshal([]byte(`{"cartItems":{"a":"x"}}`), &out))
}

func TestCartItemRequest(t *testing.T) {
	var req CartItemRequest
	require.NoError(t, Unmarshal([]byte(`{"productId":"p1","quantity":3,"forceRemove":true}`), &req))
	assert.Equal(t, CartItemRequest{ProductID: "p1", Quantity: 3, ForceRemove: true}, req)
	assert.JSONEq(t, `{"productId":"p1","quantity":3,"forceRemove":true}`, string(Marshal(&req)))
}

func TestAddressRequest_Decode(t *testing.T) {
	var req AddressRequest
	require.NoError(t, Unmarshal([]byte(`{
		"userId": "u1",
		"address": {
			"firstName": "Ann", "lastName": "Lee", "email": "ann@example.com",
			"street": "1 Main", "city": "Springfield", "state": "IL",
			"zipcode": 62701, "country": "US", "phone": "555-0100"
		}
	}`), &req))
	assert.Equal(t, "u1", req.UserID)
	assert.Equal(t, "62701", req.Address.Zipcode)
	assert.Equal(t, "555-0100", req.Address.Phone)
	assert.Equal(t, "Springfield", req.Address.City)
}

func testOrder() Order {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return Order{
		ID:     "o1",
		UserID: "u1",
		Items: []OrderLine{
			{Product: &Product{
				ID:          "p1",
				Name:        "Apple",
				Description: []string{"Red"},
				Category:    "Fruits",
				Price:       decimal.RequireFromString("3"),
				OfferPrice:  decimal.RequireFromString("2.5"),
				Images:      []string{"a.png"},
				InStock:     true,
			}, Quantity: 2},
			{Product: nil, Quantity: 1},
		},
		Amount: decimal.RequireFromString("102"),
		Address: &Address{
			ID: "a1", UserID: "u1", FirstName: "Ann", LastName: "Lee",
			Street: "1 Main", City: "Springfield", State: "IL", Country: "US",
			Zipcode: "62701", Phone: "555",
		},
		PaymentType:     "Online",
		Status:          "paid",
		IsPaid:          true,
		PaymentIntentID: "pi_1",
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

func TestOrdersResponse_Brief(t *testing.T) {
	resp := &OrdersResponse{
		Response: Response{Success: true},
		Orders:   []Order{testOrder()},
		Brief:    true,
	}
	assert.JSONEq(t, `{
		"success": true,
		"orders": [{
			"_id": "o1",
			"userId": "u1",
			"items": [
				{"product": {"_id": "p1", "name": "Apple", "image": ["a.png"], "offerPrice": 2.5, "category": "Fruits"}, "quantity": 2},
				{"product": null, "quantity": 1}
			],
			"amount": "102.00",
			"address": {"_id": "a1", "street": "1 Main", "city": "Springfield", "state": "IL", "country": "US"},
			"paymentType": "Online",
			"status": "paid",
			"isPaid": true,
			"createdAt": "2026-03-01T12:00:00Z",
			"updatedAt": "2026-03-01T12:00:00Z"
		}]
	}`, string(Marshal(resp)))
}

func TestOrdersResponse_Full(t *testing.T) {
	resp := &OrdersResponse{
		Response: Response{Success: true},
		Orders:   []Order{testOrder()},
	}
	data := Marshal(resp)

	d := jx.DecodeBytes(data)
	var (
		amount    string
		intent    string
		zipcode   string
		inStock   bool
		itemCount int
	)
	require.NoError(t, d.Obj(func(d *jx.Decoder, key string) error {
		if key != "orders" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "amount":
					s, err := d.Str()
					amount = s
					return err
				case "paymentIntentId":
					s, err := d.Str()
					intent = s
					return err
				case "address":
					var a Address
					err := a.Decode(d)
					zipcode = a.Zipcode
					return err
				case "items":
					return d.Arr(func(d *jx.Decoder) error {
						itemCount++
						return d.Obj(func(d *jx.Decoder, key string) error {
							if key != "product" || d.Next() == jx.Null {
								return d.Skip()
							}
							var p Product
							err := p.Decode(d)
							inStock = p.InStock
							return err
						})
					})
				default:
					return d.Skip()
				}
			})
		})
	}))

	assert.Equal(t, "102.00", amount)
	assert.Equal(t, "pi_1", intent)
	assert.Equal(t, "62701", zipcode)
	assert.True(t, inStock)
	assert.Equal(t, 2, itemCount)
}

func TestResponses(t *testing.T) {
	assert.JSONEq(t, `{"success":false,"message":"Invalid order data"}`,
		string(Marshal(&Response{Message: "Invalid order data"})))
	assert.JSONEq(t, `{"success":true}`, string(Marshal(&Response{Success: true})))
	assert.JSONEq(t, `{"success":true,"url":"https://pay"}`,
		string(Marshal(&CheckoutResponse{Response: Response{Success: true}, URL: "https://pay"})))
	assert.JSONEq(t, `{"received":true}`, string(Marshal(&WebhookResponse{Received: true})))
	assert.JSONEq(t, `{"success":false,"message":"boom"}`,
		string(Marshal(&OrdersResponse{Response: Response{Message: "boom"}})))
}

func TestProductListResponse(t *testing.T) {
	in := &ProductListResponse{
		Response: Response{Success: true},
		Products: []Product{{
			ID:         "p1",
			Name:       "Milk",
			Price:      decimal.RequireFromString("1.20"),
			OfferPrice: decimal.RequireFromString("0.99"),
			CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
	var out ProductListResponse
	require.NoError(t, Unmarshal(Marshal(in), &out))
	assert.True(t, out.Success)
	require.Len(t, out.Products, 1)
	assert.True(t, out.Products[0].OfferPrice.Equal(decimal.RequireFromString("0.99")))
	assert.True(t, out.Products[0].CreatedAt.Equal(in.Products[0].CreatedAt))

	var fromString Product
	require.NoError(t, Unmarshal([]byte(`{"_id":"p2","offerPrice":"4.50"}`), &fromString))
	assert.Equal(t, "4.5", fromString.OfferPrice.String())
}

func TestUserResponse(t *testing.T) {
	in := &UserResponse{
		Response: Response{Success: true},
		User:     &User{ID: "u1", Name: "Ann", Email: "ann@example.com", CartItems: cart.Cart{"p1": 3}},
	}
	var out UserResponse
	require.NoError(t, Unmarshal(Marshal(in), &out))
	require.NotNil(t, out.User)
	assert.Equal(t, *in.User, *out.User)
}
