package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/greencart/internal/domain/product"
	"github.com/xenking/greencart/internal/oas"
)

// ListProducts returns the whole catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		internalError(w, r, "List products", err)
		return
	}
	resp := &oas.ProductListResponse{
		Response: oas.Response{Success: true},
		Products: make([]oas.Product, len(products)),
	}
	for i := range products {
		resp.Products[i] = h.toProduct(&products[i])
	}
	ok(w, resp)
}

// GetProduct returns one catalog item.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !product.ValidID(id) {
		fail(w, "Invalid product ID")
		return
	}
	p, err := h.products.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, product.ErrNotFound):
		fail(w, "Product not found")
		return
	case err != nil:
		internalError(w, r, "Get product", err)
		return
	}
	out := h.toProduct(p)
	ok(w, &oas.ProductResponse{Response: oas.Response{Success: true}, Product: &out})
}

func (h *Handler) toProduct(p *product.Product) oas.Product {
	images := make([]string, len(p.Images))
	for i, img := range p.Images {
		images[i] = h.imageURL(img)
	}
	return oas.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		OfferPrice:  p.OfferPrice,
		Images:      images,
		InStock:     p.InStock,
		CreatedAt:   p.CreatedAt,
	}
}

// imageURL resolves a relative image path against the image base URL.
func (h *Handler) imageURL(img string) string {
	if h.imageBaseURL == "" || img == "" ||
		strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
		return img
	}
	return h.imageBaseURL + "/" + strings.TrimPrefix(img, "/")
}
