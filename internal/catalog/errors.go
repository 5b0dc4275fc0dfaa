package catalog

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrMissingInput is matched by *MissingInputError.
	ErrMissingInput = errors.New("missing required input")
	// ErrInvalidPrice is matched by *InvalidPriceError.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrCancelled is returned when the user declines a confirmation.
	ErrCancelled = errors.New("cancelled by user")
	// ErrNoImage is returned when a product has no stored image.
	ErrNoImage = errors.New("product has no image")
	// ErrNoSelection is returned when an action needs a selected product.
	ErrNoSelection = errors.New("no product selected")
)

// MissingInputError lists the form fields left empty.
type MissingInputError struct {
	Fields []string
}

func (e *MissingInputError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingInputError) Is(target error) bool {
	return target == ErrMissingInput
}

// InvalidPriceError is returned when the price text is not a number.
type InvalidPriceError struct {
	Text string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price %q", e.Text)
}

func (e *InvalidPriceError) Is(target error) bool {
	return target == ErrInvalidPrice
}

// ImageError reports that an image file could not be used.
type ImageError struct {
	Path string
	Err  error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image %s: %v", e.Path, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}
