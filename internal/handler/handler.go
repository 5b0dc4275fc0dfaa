// Package handler serves the product catalogue over a JSON HTTP API.
package handler

import (
	"net/http"

	"github.com/xenking/productos/internal/domain/product"
)

const (
	// maxBodyBytes bounds JSON request bodies.
	maxBodyBytes = 1 << 20
	// MaxImageBytes bounds image uploads.
	MaxImageBytes = 8 << 20
)

// Handler translates HTTP requests into product repository calls.
type Handler struct {
	products product.Repository
}

// New constructs a Handler over the given repository.
func New(products product.Repository) *Handler {
	return &Handler{products: products}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("POST /api/products", h.createProduct)
	mux.HandleFunc("GET /api/products/{code}", h.getProduct)
	mux.HandleFunc("PUT /api/products/{code}", h.updateProduct)
	mux.HandleFunc("DELETE /api/products/{code}", h.deleteProduct)
	mux.HandleFunc("GET /api/products/{code}/image", h.getImage)
	mux.HandleFunc("PUT /api/products/{code}/image", h.putImage)
	mux.HandleFunc("DELETE /api/products/{code}/image", h.deleteImage)
}
