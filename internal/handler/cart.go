package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	domaincart "github.com/xenking/greencart/internal/domain/cart"
	"github.com/xenking/greencart/internal/domain/user"
	"github.com/xenking/greencart/internal/oas"
	"github.com/xenking/greencart/pkg/cart"
)

// UpdateCart replaces the user's cart with the client snapshot.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var req oas.CartUpdateRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, "Invalid cart data")
		return
	}
	userID, match := ownUserID(r, req.UserID)
	if !match {
		unauthorized(w)
		return
	}
	if err := h.carts.Replace(r.Context(), userID, req.CartItems); err != nil {
		h.cartError(w, r, err)
		return
	}
	ok(w, &oas.Response{Success: true, Message: "Cart Updated"})
}

// AddCartItem increments one product.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, "Added to Cart", func(userID string, req *oas.CartItemRequest) (cart.Cart, error) {
		return h.carts.Add(r.Context(), userID, req.ProductID)
	})
}

// SetCartItem sets one product's quantity.
func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, "Cart Updated", func(userID string, req *oas.CartItemRequest) (cart.Cart, error) {
		return h.carts.SetQuantity(r.Context(), userID, req.ProductID, req.Quantity)
	})
}

// RemoveCartItem decrements or removes one product.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, "Removed from Cart", func(userID string, req *oas.CartItemRequest) (cart.Cart, error) {
		return h.carts.Remove(r.Context(), userID, req.ProductID, req.ForceRemove)
	})
}

func (h *Handler) mutateCart(
	w http.ResponseWriter,
	r *http.Request,
	message string,
	apply func(userID string, req *oas.CartItemRequest) (cart.Cart, error),
) {
	var req oas.CartItemRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, "Invalid cart data")
		return
	}
	items, err := apply(subject(r), &req)
	if err != nil {
		h.cartError(w, r, err)
		return
	}
	ok(w, &oas.CartResponse{
		Response:  oas.Response{Success: true, Message: message},
		CartItems: items,
	})
}

func (h *Handler) cartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domaincart.ErrInvalidProductID):
		fail(w, "Invalid product ID in cart")
	case errors.Is(err, cart.ErrInvalidQuantity):
		fail(w, "Quantity must be greater than 0")
	case errors.Is(err, user.ErrNotFound):
		zctx.From(r.Context()).Warn("Cart of unknown user", zap.String("user_id", subject(r)))
		unauthorized(w)
	default:
		internalError(w, r, "Update cart", err)
	}
}
