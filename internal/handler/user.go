package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/greencart/internal/auth"
	"github.com/xenking/greencart/internal/domain/user"
	"github.com/xenking/greencart/internal/oas"
)

// Register creates a customer account and sets the session cookie.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req oas.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, auth.ErrMissingDetails.Error())
		return
	}
	s, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingDetails):
		fail(w, auth.ErrMissingDetails.Error())
		return
	case errors.Is(err, auth.ErrInvalidEmail):
		fail(w, auth.ErrInvalidEmail.Error())
		return
	case errors.Is(err, user.ErrEmailTaken):
		fail(w, "User already exists")
		return
	case err != nil:
		internalError(w, r, "Register user", err)
		return
	}
	h.startSession(w, auth.UserCookie, s.Token)
	ok(w, &oas.UserResponse{Response: oas.Response{Success: true}, User: toUser(s.User)})
}

// Login signs a customer in.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req oas.LoginRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, auth.ErrInvalidCredentials.Error())
		return
	}
	s, err := h.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingDetails):
		fail(w, "Email and password are required")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		fail(w, auth.ErrInvalidCredentials.Error())
		return
	case err != nil:
		internalError(w, r, "Login user", err)
		return
	}
	h.startSession(w, auth.UserCookie, s.Token)
	ok(w, &oas.UserResponse{Response: oas.Response{Success: true}, User: toUser(s.User)})
}

// IsAuth returns the signed-in customer with their cart.
func (h *Handler) IsAuth(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), subject(r))
	switch {
	case errors.Is(err, user.ErrNotFound):
		unauthorized(w)
		return
	case err != nil:
		internalError(w, r, "Get user", err)
		return
	}
	ok(w, &oas.UserResponse{Response: oas.Response{Success: true}, User: toUser(u)})
}

// Logout clears the customer session cookie.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	auth.SetCookie(w, auth.UserCookie, "", -1, h.secureCookies)
	ok(w, &oas.Response{Success: true, Message: "Logged Out"})
}

// SellerLogin signs the seller in with the configured credentials.
func (h *Handler) SellerLogin(w http.ResponseWriter, r *http.Request) {
	var req oas.LoginRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, auth.ErrInvalidCredentials.Error())
		return
	}
	token, err := h.auth.SellerLogin(req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		zctx.From(r.Context()).Warn("Seller login rejected", zap.String("email", req.Email))
		fail(w, auth.ErrInvalidCredentials.Error())
		return
	case err != nil:
		internalError(w, r, "Login seller", err)
		return
	}
	h.startSession(w, auth.SellerCookie, token)
	ok(w, &oas.Response{Success: true, Message: "Logged In"})
}

// SellerIsAuth confirms the seller session.
func (h *Handler) SellerIsAuth(w http.ResponseWriter, _ *http.Request) {
	ok(w, &oas.Response{Success: true})
}

// SellerLogout clears the seller session cookie.
func (h *Handler) SellerLogout(w http.ResponseWriter, _ *http.Request) {
	auth.SetCookie(w, auth.SellerCookie, "", -1, h.secureCookies)
	ok(w, &oas.Response{Success: true, Message: "Logged Out"})
}

func (h *Handler) startSession(w http.ResponseWriter, cookie, token string) {
	maxAge := int(h.auth.Tokens().TTL().Seconds())
	auth.SetCookie(w, cookie, token, maxAge, h.secureCookies)
}

func toUser(u *user.User) *oas.User {
	return &oas.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CartItems: u.CartItems,
	}
}
