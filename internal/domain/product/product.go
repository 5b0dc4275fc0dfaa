package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no product matches the requested code.
	ErrNotFound = errors.New("product not found")
	// ErrConflict is returned when a product with the same code already exists.
	ErrConflict = errors.New("product code already exists")
	// ErrInvalid is returned when the database rejects a product for violating
	// a constraint other than code uniqueness.
	ErrInvalid = errors.New("invalid product")
)

// Product is one catalogue entry. Code is the identity key.
type Product struct {
	Code      string
	Name      string
	Price     float32
	Available bool
	// Image is nil when the product has no image. A non-nil empty slice is
	// an empty payload.
	Image []byte
}

// Equal reports whether p and o identify the same catalogue entry.
func (p Product) Equal(o Product) bool {
	return p.Code == o.Code
}

// HasImage reports whether an image payload is present, even if empty.
func (p Product) HasImage() bool {
	return p.Image != nil
}

// PriceText formats the price with two decimals for display.
func (p Product) PriceText() string {
	return decimal.NewFromFloat32(p.Price).StringFixed(2)
}

// Repository defines persistence operations for products.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	FindByCode(ctx context.Context, code string) (*Product, error)
	Insert(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, code string) error
}
