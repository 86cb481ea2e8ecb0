package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/greencart/internal/domain/address"
	"github.com/xenking/greencart/internal/oas"
)

// AddAddress stores a delivery address for the signed-in user.
func (h *Handler) AddAddress(w http.ResponseWriter, r *http.Request) {
	var req oas.AddressRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, address.ErrInvalid.Error())
		return
	}
	userID, match := ownUserID(r, req.UserID)
	if !match {
		unauthorized(w)
		return
	}
	a := fromAddress(&req.Address)
	a.ID = ""
	a.UserID = userID
	if err := a.Validate(); err != nil {
		fail(w, err.Error())
		return
	}
	if err := h.addresses.Add(r.Context(), &a); err != nil {
		if errors.Is(err, address.ErrInvalid) {
			fail(w, err.Error())
			return
		}
		internalError(w, r, "Add address", err)
		return
	}
	ok(w, &oas.Response{Success: true, Message: "Address added successfully"})
}

// ListAddresses returns the signed-in user's addresses.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.addresses.ListByUser(r.Context(), subject(r))
	if err != nil {
		internalError(w, r, "List addresses", err)
		return
	}
	resp := &oas.AddressListResponse{
		Response:  oas.Response{Success: true},
		Addresses: make([]oas.Address, len(list)),
	}
	for i := range list {
		resp.Addresses[i] = toAddress(&list[i])
	}
	ok(w, resp)
}

func fromAddress(a *oas.Address) address.Address {
	return address.Address{
		ID:        a.ID,
		UserID:    a.UserID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		Zipcode:   a.Zipcode,
		Country:   a.Country,
		Phone:     a.Phone,
	}
}

func toAddress(a *address.Address) oas.Address {
	return oas.Address{
		ID:        a.ID,
		UserID:    a.UserID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		Zipcode:   a.Zipcode,
		Country:   a.Country,
		Phone:     a.Phone,
	}
}
