package catalog

import (
	"math"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/productos/internal/domain/product"
)

// Form is the raw user input for a product, before parsing.
type Form struct {
	Code      string `form:"code" validate:"required"`
	Name      string `form:"name" validate:"required"`
	Price     string `form:"price" validate:"required"`
	Available bool   `form:"available"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// normalize trims surrounding whitespace so blank fields count as missing.
func (f Form) normalize() Form {
	f.Code = strings.TrimSpace(f.Code)
	f.Name = strings.TrimSpace(f.Name)
	f.Price = strings.TrimSpace(f.Price)
	return f
}

// Product checks that code, name and price are present and parses the
// price. The image is not part of the form.
func (f Form) Product() (product.Product, error) {
	f = f.normalize()
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return product.Product{}, errors.Wrap(err, "validate form")
		}
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, fe.Field())
		}
		return product.Product{}, &MissingInputError{Fields: missing}
	}

	price, err := ParsePrice(f.Price)
	if err != nil {
		return product.Product{}, err
	}

	return product.Product{
		Code:      f.Code,
		Name:      f.Name,
		Price:     price,
		Available: f.Available,
	}, nil
}

// ParsePrice parses a price typed by a user. A decimal comma is accepted.
func ParsePrice(text string) (float32, error) {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, &InvalidPriceError{Text: text}
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 {
		return 0, &InvalidPriceError{Text: text}
	}
	return float32(f), nil
}
