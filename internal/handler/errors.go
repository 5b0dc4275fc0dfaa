package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/productos/internal/catalog"
	"github.com/xenking/productos/internal/domain/product"
	"github.com/xenking/productos/internal/storage/postgres"
)

// statusFor maps domain failures onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case postgres.IsConnectionError(err):
		return http.StatusServiceUnavailable, "database unavailable"
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, catalog.ErrNoImage):
		return http.StatusNotFound, catalog.ErrNoImage.Error()
	case errors.Is(err, product.ErrConflict):
		return http.StatusConflict, "product code already exists"
	case errors.Is(err, catalog.ErrMissingInput),
		errors.Is(err, catalog.ErrInvalidPrice),
		errors.Is(err, product.ErrInvalid),
		errors.Is(err, errBadJSON):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	lg := zctx.From(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeErrorStatus(w, status, msg)
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
