package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/greencart/internal/domain/order"
	"github.com/xenking/greencart/internal/oas"
)

// PlaceCOD places a cash-on-delivery order.
func (h *Handler) PlaceCOD(w http.ResponseWriter, r *http.Request) {
	req, accepted := h.placeRequest(w, r)
	if !accepted {
		return
	}
	o, err := h.orders.PlaceCOD(r.Context(), req)
	if err != nil {
		h.orderError(w, r, err)
		return
	}
	h.metrics.orderPlaced(r.Context(), o.PaymentType)
	zctx.From(r.Context()).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("payment_type", string(o.PaymentType)),
		zap.Stringer("amount", o.Amount),
	)
	ok(w, &oas.Response{Success: true, Message: "Order Placed Successfully"})
}

// PlaceOnline places an online order and returns the checkout URL.
func (h *Handler) PlaceOnline(w http.ResponseWriter, r *http.Request) {
	req, accepted := h.placeRequest(w, r)
	if !accepted {
		return
	}
	req.Origin = r.Header.Get("Origin")
	res, err := h.orders.PlaceOnline(r.Context(), req)
	if err != nil {
		h.orderError(w, r, err)
		return
	}
	h.metrics.orderPlaced(r.Context(), res.Order.PaymentType)
	zctx.From(r.Context()).Info("Checkout started",
		zap.String("order_id", res.Order.ID),
		zap.Stringer("amount", res.Order.Amount),
	)
	ok(w, &oas.CheckoutResponse{Response: oas.Response{Success: true}, URL: res.CheckoutURL})
}

// placeRequest decodes an order body. It writes the response itself and
// reports false when the request must not proceed.
func (h *Handler) placeRequest(w http.ResponseWriter, r *http.Request) (order.PlaceRequest, bool) {
	var body oas.OrderRequest
	if err := decode(w, r, &body); err != nil {
		fail(w, order.ErrInvalidOrder.Error())
		return order.PlaceRequest{}, false
	}
	userID, match := ownUserID(r, body.UserID)
	if !match {
		unauthorized(w)
		return order.PlaceRequest{}, false
	}
	items := make([]order.Item, len(body.Items))
	for i, it := range body.Items {
		items[i] = order.Item{ProductID: it.Product, Quantity: it.Quantity}
	}
	return order.PlaceRequest{
		UserID:    userID,
		Items:     items,
		AddressID: body.Address,
	}, true
}

// orderError reports validation failures verbatim. Other failures are
// logged and surfaced with their message.
func (h *Handler) orderError(w http.ResponseWriter, r *http.Request, err error) {
	if msg, ok := orderErrorMessage(err); ok {
		fail(w, msg)
		return
	}
	zctx.From(r.Context()).Error("Place order", zap.Error(err))
	fail(w, err.Error())
}

func orderErrorMessage(err error) (string, bool) {
	if errors.Is(err, order.ErrInvalidOrder) || errors.Is(err, order.ErrInvalidProductID) {
		return err.Error(), true
	}
	var pnfErr *order.ProductNotFoundError
	if errors.As(err, &pnfErr) {
		return pnfErr.Error(), true
	}
	var ipErr *order.InvalidPricingError
	if errors.As(err, &ipErr) {
		return ipErr.Error(), true
	}
	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		return iqErr.Error(), true
	}
	return "", false
}

// UserOrders lists the signed-in user's orders.
func (h *Handler) UserOrders(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.UserOrders(r.Context(), subject(r))
	if err != nil {
		internalError(w, r, "List user orders", err)
		return
	}
	ok(w, h.ordersResponse(details, true))
}

// SellerOrders lists the orders visible on the seller dashboard.
func (h *Handler) SellerOrders(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.SellerOrders(r.Context())
	if err != nil {
		internalError(w, r, "List seller orders", err)
		return
	}
	ok(w, h.ordersResponse(details, false))
}

func (h *Handler) ordersResponse(details []order.Detail, brief bool) *oas.OrdersResponse {
	resp := &oas.OrdersResponse{
		Response: oas.Response{Success: true},
		Orders:   make([]oas.Order, len(details)),
		Brief:    brief,
	}
	for i := range details {
		resp.Orders[i] = h.toOrder(&details[i])
	}
	return resp
}

func (h *Handler) toOrder(d *order.Detail) oas.Order {
	lines := make([]oas.OrderLine, len(d.Items))
	for i, item := range d.Items {
		lines[i].Quantity = item.Quantity
		if p, found := d.Products[item.ProductID]; found {
			out := h.toProduct(&p)
			lines[i].Product = &out
		}
	}
	o := oas.Order{
		ID:              d.ID,
		UserID:          d.UserID,
		Items:           lines,
		Amount:          d.Amount,
		PaymentType:     string(d.PaymentType),
		Status:          string(d.Status),
		IsPaid:          d.IsPaid(),
		PaymentIntentID: d.PaymentIntentID,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.Address != nil {
		a := toAddress(d.Address)
		o.Address = &a
	}
	return o
}
