package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/productos/internal/catalog"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list products"))
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		encodeProduct(&e, p)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.FindByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "find product"))
		return
	}

	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := form.Product()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.products.Insert(r.Context(), p); err != nil {
		writeError(w, r, errors.Wrap(err, "insert product"))
		return
	}

	w.Header().Set("Location", "/api/products/"+p.Code)
	var e jx.Encoder
	encodeProduct(&e, p)
	writeJSON(w, http.StatusCreated, e.Bytes())
}

// updateProduct replaces the fields of an existing product. The code in the
// path wins over the body and the stored image is kept.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	form.Code = r.PathValue("code")
	p, err := form.Product()
	if err != nil {
		writeError(w, r, err)
		return
	}

	existing, err := h.products.FindByCode(r.Context(), p.Code)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "find product"))
		return
	}
	p.Image = existing.Image

	if err := h.products.Update(r.Context(), p); err != nil {
		writeError(w, r, errors.Wrap(err, "update product"))
		return
	}

	var e jx.Encoder
	encodeProduct(&e, p)
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("code")); err != nil {
		writeError(w, r, errors.Wrap(err, "delete product"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getImage(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.FindByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "find product"))
		return
	}
	if !p.HasImage() {
		writeError(w, r, catalog.ErrNoImage)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(p.Image))
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Image)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.Image)
}

// putImage stores the raw request body as the product image.
func (h *Handler) putImage(w http.ResponseWriter, r *http.Request) {
	img, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorStatus(w, http.StatusRequestEntityTooLarge, "image exceeds "+strconv.Itoa(MaxImageBytes)+" bytes")
			return
		}
		writeError(w, r, errors.Wrap(errBadJSON, err.Error()))
		return
	}
	if img == nil {
		img = []byte{}
	}
	h.setImage(w, r, img)
}

func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	h.setImage(w, r, nil)
}

func (h *Handler) setImage(w http.ResponseWriter, r *http.Request, img []byte) {
	p, err := h.products.FindByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "find product"))
		return
	}
	p.Image = img
	if err := h.products.Update(r.Context(), *p); err != nil {
		writeError(w, r, errors.Wrap(err, "update image"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
