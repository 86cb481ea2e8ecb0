package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/greencart/internal/domain/address"
	"github.com/xenking/greencart/internal/domain/payment"
	"github.com/xenking/greencart/internal/domain/product"
)

// Sentinel errors for order validation.
var (
	ErrInvalidOrder     = errors.New("Invalid order data")
	ErrInvalidProductID = errors.New("Invalid product ID in cart")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product %s not found", e.ProductID)
}

// InvalidPricingError indicates a product has a missing or non-positive
// offer price.
type InvalidPricingError struct {
	ProductID string
	Name      string
}

func (e *InvalidPricingError) Error() string {
	return fmt.Sprintf("Product %s has invalid pricing", e.Name)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("Quantity must be greater than 0 for product %s", e.ProductID)
}

// PlaceRequest holds the input for placing an order.
type PlaceRequest struct {
	UserID    string
	Items     []Item
	AddressID string
	// Origin is the storefront origin the checkout pages redirect back to.
	Origin string
}

// PlaceOnlineResult holds the output of a successfully started online
// checkout.
type PlaceOnlineResult struct {
	Order       *Order
	CheckoutURL string
}

// Detail is an order joined with the products and address it references.
type Detail struct {
	Order
	Products map[string]product.Product
	Address  *address.Address
}

// ServiceConfig holds non-dependency configuration for the Service.
type ServiceConfig struct {
	// PublicURL is used as checkout redirect origin when the request does
	// not carry one.
	PublicURL string
}

// Service encapsulates order placement and order queries.
type Service struct {
	products  product.Repository
	addresses address.Repository
	orders    Repository
	gateway   payment.Gateway
	events    EventRecorder
	publicURL string
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	cfg ServiceConfig,
	products product.Repository,
	addresses address.Repository,
	orders Repository,
	gateway payment.Gateway,
	events EventRecorder,
) *Service {
	if events == nil {
		events = NopRecorder{}
	}
	return &Service{
		products:  products,
		addresses: addresses,
		orders:    orders,
		gateway:   gateway,
		events:    events,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		now:       time.Now,
	}
}

// PlaceCOD validates and persists a cash-on-delivery order.
func (s *Service) PlaceCOD(ctx context.Context, req PlaceRequest) (*Order, error) {
	o, _, err := s.place(ctx, req, PaymentCOD)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// PlaceOnline validates and persists an online order, then opens a hosted
// checkout session for it. When the session cannot be created the order is
// cancelled so it never shows up as awaiting payment.
func (s *Service) PlaceOnline(ctx context.Context, req PlaceRequest) (*PlaceOnlineResult, error) {
	o, products, err := s.place(ctx, req, PaymentOnline)
	if err != nil {
		return nil, err
	}

	lineItems := make([]payment.LineItem, len(req.Items))
	for i, item := range req.Items {
		p := products[item.ProductID]
		lineItems[i] = payment.LineItem{
			Name:       p.Name,
			UnitAmount: UnitAmount(p.OfferPrice),
			Quantity:   int64(item.Quantity),
		}
	}

	origin := strings.TrimSuffix(req.Origin, "/")
	if origin == "" {
		origin = s.publicURL
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		OrderID:    o.ID,
		UserID:     o.UserID,
		Items:      lineItems,
		SuccessURL: origin + "/loader?next=my-orders",
		CancelURL:  origin + "/cart",
	})
	if err != nil {
		s.abandon(ctx, o)
		return nil, errors.Wrap(err, "create checkout session")
	}

	return &PlaceOnlineResult{
		Order:       o,
		CheckoutURL: session.URL,
	}, nil
}

// place validates the request, resolves every product in a single batch,
// computes the amount, and persists the order. Nothing is written unless
// every item is valid.
func (s *Service) place(ctx context.Context, req PlaceRequest, pt PaymentType) (*Order, map[string]product.Product, error) {
	if req.UserID == "" || req.AddressID == "" || len(req.Items) == 0 {
		return nil, nil, ErrInvalidOrder
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if !product.ValidID(item.ProductID) {
			return nil, nil, ErrInvalidProductID
		}
		if item.Quantity <= 0 {
			return nil, nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	subtotal := decimal.Zero
	for _, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if !p.OfferPrice.IsPositive() {
			return nil, nil, &InvalidPricingError{ProductID: p.ID, Name: p.Name}
		}
		subtotal = subtotal.Add(p.OfferPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	now := s.now().UTC()
	o := &Order{
		UserID:      req.UserID,
		Items:       req.Items,
		Amount:      TotalWithTax(subtotal),
		AddressID:   req.AddressID,
		PaymentType: pt,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, nil, errors.Wrap(err, "create order")
	}
	s.record(ctx, NewEvent(EventPlaced, o, now))

	return o, byID, nil
}

// abandon cancels an order whose checkout could not be started.
func (s *Service) abandon(ctx context.Context, o *Order) {
	changed, err := s.orders.Apply(ctx, o.ID, Transition{
		From: []Status{StatusPending},
		To:   StatusCancelled,
	})
	if err != nil {
		zctx.From(ctx).Warn("Cancel abandoned order", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	if changed {
		o.Status = StatusCancelled
		s.record(ctx, NewEvent(EventCancelled, o, s.now().UTC()))
	}
}

// record stores a lifecycle event. The order itself is already persisted,
// so a failure here is logged and not returned.
func (s *Service) record(ctx context.Context, e Event) {
	if err := s.events.Record(ctx, e); err != nil {
		zctx.From(ctx).Error("Record order event",
			zap.String("type", string(e.Type)),
			zap.String("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}

// UserOrders returns every order of the user, newest first, joined with
// the referenced products and addresses.
func (s *Service) UserOrders(ctx context.Context, userID string) ([]Detail, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user orders")
	}
	return s.join(ctx, orders)
}

// SellerOrders returns orders that are cash on delivery or already paid,
// newest first, joined with the referenced products and addresses.
func (s *Service) SellerOrders(ctx context.Context) ([]Detail, error) {
	orders, err := s.orders.ListForSeller(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list seller orders")
	}
	return s.join(ctx, orders)
}

func (s *Service) join(ctx context.Context, orders []Order) ([]Detail, error) {
	if len(orders) == 0 {
		return []Detail{}, nil
	}

	var productIDs, addressIDs []string
	for _, o := range orders {
		for _, item := range o.Items {
			productIDs = append(productIDs, item.ProductID)
		}
		if o.AddressID != "" {
			addressIDs = append(addressIDs, o.AddressID)
		}
	}

	products, err := s.products.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "get order products")
	}
	productIdx := product.NewIndex(products)

	addresses, err := s.addresses.GetByIDs(ctx, addressIDs)
	if err != nil {
		return nil, errors.Wrap(err, "get order addresses")
	}
	addressIdx := make(map[string]*address.Address, len(addresses))
	for i := range addresses {
		addressIdx[addresses[i].ID] = &addresses[i]
	}

	out := make([]Detail, len(orders))
	for i, o := range orders {
		d := Detail{
			Order:    o,
			Products: make(map[string]product.Product, len(o.Items)),
			Address:  addressIdx[o.AddressID],
		}
		for _, item := range o.Items {
			if p, ok := productIdx[item.ProductID]; ok {
				d.Products[item.ProductID] = p
			}
		}
		out[i] = d
	}
	return out, nil
}
