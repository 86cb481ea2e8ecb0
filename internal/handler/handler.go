// Package handler implements the storefront HTTP API on a chi router,
// translating wire types from package oas to domain calls.
package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/greencart/internal/auth"
	"github.com/xenking/greencart/internal/domain/address"
	"github.com/xenking/greencart/internal/domain/order"
	"github.com/xenking/greencart/internal/domain/payment"
	"github.com/xenking/greencart/internal/domain/product"
	"github.com/xenking/greencart/internal/domain/user"
	"github.com/xenking/greencart/internal/oas"
	"github.com/xenking/greencart/pkg/cart"
)

const (
	maxBodyBytes    = 1 << 20
	maxWebhookBytes = 65536
)

// OrderService places and lists orders.
type OrderService interface {
	PlaceCOD(ctx context.Context, req order.PlaceRequest) (*order.Order, error)
	PlaceOnline(ctx context.Context, req order.PlaceRequest) (*order.PlaceOnlineResult, error)
	UserOrders(ctx context.Context, userID string) ([]order.Detail, error)
	SellerOrders(ctx context.Context) ([]order.Detail, error)
}

// CartService mutates the server copy of a user's cart.
type CartService interface {
	Replace(ctx context.Context, userID string, items cart.Cart) error
	Add(ctx context.Context, userID, productID string) (cart.Cart, error)
	SetQuantity(ctx context.Context, userID, productID string, quantity int) (cart.Cart, error)
	Remove(ctx context.Context, userID, productID string, force bool) (cart.Cart, error)
}

// EventProcessor applies verified gateway webhook events.
type EventProcessor interface {
	Process(ctx context.Context, e *payment.Event) (order.Outcome, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product
	// responses.
	ImageBaseURL string
	// SecureCookies marks session cookies Secure and SameSite=None, as
	// needed when the front end is served from another origin over TLS.
	SecureCookies bool
}

// Deps are the Handler's domain dependencies.
type Deps struct {
	Auth      *auth.Service
	Users     user.Repository
	Products  product.Repository
	Addresses address.Repository
	Carts     CartService
	Orders    OrderService
	Verifier  payment.WebhookVerifier
	Events    EventProcessor
	Meter     metric.Meter
}

// Handler serves the storefront API.
type Handler struct {
	auth      *auth.Service
	users     user.Repository
	products  product.Repository
	addresses address.Repository
	carts     CartService
	orders    OrderService
	verifier  payment.WebhookVerifier
	events    EventProcessor
	metrics   *metrics

	imageBaseURL  string
	secureCookies bool
}

// New creates a Handler.
func New(cfg Config, deps Deps) (*Handler, error) {
	m, err := newMetrics(deps.Meter)
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}
	return &Handler{
		auth:          deps.Auth,
		users:         deps.Users,
		products:      deps.Products,
		addresses:     deps.Addresses,
		carts:         deps.Carts,
		orders:        deps.Orders,
		verifier:      deps.Verifier,
		events:        deps.Events,
		metrics:       m,
		imageBaseURL:  strings.TrimSuffix(cfg.ImageBaseURL, "/"),
		secureCookies: cfg.SecureCookies,
	}, nil
}

// Mount registers every API route on r.
func (h *Handler) Mount(r chi.Router) {
	requireUser := auth.Require(h.auth.Tokens(), auth.RoleUser)
	requireSeller := auth.Require(h.auth.Tokens(), auth.RoleSeller)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(requireUser).Get("/is-auth", h.IsAuth)
		r.Get("/logout", h.Logout)
	})
	r.Route("/api/seller", func(r chi.Router) {
		r.Post("/login", h.SellerLogin)
		r.With(requireSeller).Get("/is-auth", h.SellerIsAuth)
		r.Get("/logout", h.SellerLogout)
	})
	r.Route("/api/product", func(r chi.Router) {
		r.Get("/list", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
	})
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/update", h.UpdateCart)
		r.Post("/add", h.AddCartItem)
		r.Post("/set", h.SetCartItem)
		r.Post("/remove", h.RemoveCartItem)
	})
	r.Route("/api/address", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/add", h.AddAddress)
		r.Get("/get", h.ListAddresses)
	})
	r.Route("/api/order", func(r chi.Router) {
		r.With(requireUser).Post("/cod", h.PlaceCOD)
		r.With(requireUser).Post("/stripe", h.PlaceOnline)
		r.With(requireUser).Get("/user", h.UserOrders)
		r.With(requireSeller).Get("/seller", h.SellerOrders)
	})
	r.Post("/stripe", h.StripeWebhook)
}

// decode reads a size-limited JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v oas.Decoder) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	return oas.Unmarshal(data, v)
}

func write(w http.ResponseWriter, code int, v oas.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(oas.Marshal(v))
}

func ok(w http.ResponseWriter, v oas.Encoder) {
	write(w, http.StatusOK, v)
}

// fail writes a {success:false} result. Storefront endpoints report
// domain failures with 200.
func fail(w http.ResponseWriter, message string) {
	ok(w, &oas.Response{Message: message})
}

func unauthorized(w http.ResponseWriter) {
	write(w, http.StatusUnauthorized, &oas.Response{Message: auth.ErrUnauthorized.Error()})
}

// subject returns the authenticated subject. Handlers behind auth.Require
// always have one.
func subject(r *http.Request) string {
	id, _ := auth.FromContext(r.Context())
	return id.Subject
}

// ownUserID resolves the acting user. A userId in the body must match the
// token subject.
func ownUserID(r *http.Request, bodyUserID string) (string, bool) {
	sub := subject(r)
	if sub == "" || (bodyUserID != "" && bodyUserID != sub) {
		return "", false
	}
	return sub, true
}

// internalError logs err and reports its message.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	zctx.From(r.Context()).Error(msg, zap.Error(err))
	fail(w, err.Error())
}
