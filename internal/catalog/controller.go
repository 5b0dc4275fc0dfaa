// Package catalog implements the user-facing actions of the product
// catalogue: load, select, create, update, delete and image selection.
//
// The Controller owns no business rules beyond input presence checks. It
// drives a View through callbacks and never depends on a concrete UI.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/productos/internal/domain/product"
)

// View renders controller state.
type View interface {
	// Render shows the full product list.
	Render(products []product.Product)
	// Fill shows a selected product in the form.
	Fill(p product.Product)
	// ResetForm clears the form.
	ResetForm()
	// ShowError reports a failed action to the user.
	ShowError(title, message string)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(question string) bool
}

// Controller is not safe for concurrent use.
type Controller struct {
	repo    product.Repository
	view    View
	confirm Confirmer
	lg      *zap.Logger

	readFile func(string) ([]byte, error)

	selected   *product.Product
	image      []byte
	imagePath  string
	clearImage bool
}

// NewController creates a Controller. A nil logger disables logging.
func NewController(repo product.Repository, view View, confirm Confirmer, lg *zap.Logger) *Controller {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Controller{
		repo:     repo,
		view:     view,
		confirm:  confirm,
		lg:       lg,
		readFile: os.ReadFile,
	}
}

// Load fetches every product and renders the list.
func (c *Controller) Load(ctx context.Context) error {
	products, err := c.repo.List(ctx)
	if err != nil {
		return c.fail("Error loading products", err)
	}
	c.view.Render(products)
	return nil
}

// Select loads one product into the form; later updates and deletes apply
// to it.
func (c *Controller) Select(ctx context.Context, code string) error {
	p, err := c.repo.FindByCode(ctx, code)
	if err != nil {
		return c.fail("Error selecting product", err)
	}
	c.selected = p
	c.image, c.imagePath, c.clearImage = nil, "", false
	c.view.Fill(*p)
	return nil
}

// Selected returns the selected product, if any.
func (c *Controller) Selected() (product.Product, bool) {
	if c.selected == nil {
		return product.Product{}, false
	}
	return *c.selected, true
}

// SelectImage reads the file at path and holds its bytes for the next
// create or update. On failure the form state is left unchanged.
func (c *Controller) SelectImage(path string) error {
	data, err := c.readFile(path)
	if err != nil {
		return c.fail("Error loading image", &ImageError{Path: path, Err: err})
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return c.fail("Error loading image", &ImageError{
			Path: path,
			Err:  errors.Errorf("unsupported content type %s", ct),
		})
	}

	c.image, c.imagePath, c.clearImage = data, path, false
	c.lg.Debug("Image selected", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// ImagePath returns the path of the image selected with SelectImage.
func (c *Controller) ImagePath() string {
	return c.imagePath
}

// RemoveImage makes the next update store the product without an image.
func (c *Controller) RemoveImage() {
	c.image, c.imagePath, c.clearImage = nil, "", true
}

// Create inserts a product built from f and the selected image.
func (c *Controller) Create(ctx context.Context, f Form) error {
	p, err := f.Product()
	if err != nil {
		return c.fail("Error creating product", err)
	}
	p.Image = c.image

	if err := c.repo.Insert(ctx, p); err != nil {
		return c.fail("Error creating product", err)
	}
	c.lg.Info("Product created", zap.String("code", p.Code))
	return c.refresh(ctx)
}

// Update overwrites the selected product, or the product with f.Code when
// nothing is selected. The code itself never changes. Without a newly
// selected image the currently stored image is kept.
func (c *Controller) Update(ctx context.Context, f Form) error {
	if c.selected != nil {
		f.Code = c.selected.Code
	}
	p, err := f.Product()
	if err != nil {
		return c.fail("Error updating product", err)
	}

	switch {
	case c.image != nil:
		p.Image = c.image
	case c.clearImage:
		p.Image = nil
	default:
		// Re-read so an image stored after Select is not overwritten.
		current, err := c.repo.FindByCode(ctx, p.Code)
		if err != nil {
			return c.fail("Error updating product", err)
		}
		p.Image = current.Image
	}

	if err := c.repo.Update(ctx, p); err != nil {
		return c.fail("Error updating product", err)
	}
	c.lg.Info("Product updated", zap.String("code", p.Code))
	return c.refresh(ctx)
}

// Delete removes the product with code after confirmation. An empty code
// means the selected product.
func (c *Controller) Delete(ctx context.Context, code string) error {
	if code == "" {
		if c.selected == nil {
			return c.fail("Error deleting product", ErrNoSelection)
		}
		code = c.selected.Code
	}

	if !c.confirm.Confirm(fmt.Sprintf("Delete product %s? This action cannot be undone.", code)) {
		return ErrCancelled
	}

	if err := c.repo.Delete(ctx, code); err != nil {
		return c.fail("Error deleting product", err)
	}
	c.lg.Info("Product deleted", zap.String("code", code))
	return c.refresh(ctx)
}

// Image returns the stored image of the product with code.
func (c *Controller) Image(ctx context.Context, code string) ([]byte, error) {
	p, err := c.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, c.fail("Error showing image", err)
	}
	if !p.HasImage() {
		return nil, c.fail("Error showing image", ErrNoImage)
	}
	return p.Image, nil
}

// Reset clears the form, the selection and the selected image.
func (c *Controller) Reset() {
	c.selected = nil
	c.image, c.imagePath, c.clearImage = nil, "", false
	c.view.ResetForm()
}

func (c *Controller) refresh(ctx context.Context) error {
	if err := c.Load(ctx); err != nil {
		return err
	}
	c.Reset()
	return nil
}

func (c *Controller) fail(title string, err error) error {
	c.lg.Warn(title, zap.Error(err))
	c.view.ShowError(title, userMessage(err))
	return err
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, product.ErrNotFound):
		return "The product does not exist."
	case errors.Is(err, product.ErrConflict):
		return "A product with this code already exists."
	case errors.Is(err, product.ErrInvalid):
		return "The database rejected the product."
	default:
		return err.Error()
	}
}
