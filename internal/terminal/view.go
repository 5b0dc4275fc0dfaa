// Package terminal renders the catalogue on a text terminal.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/xenking/productos/internal/catalog"
	"github.com/xenking/productos/internal/domain/product"
)

var (
	_ catalog.View      = (*View)(nil)
	_ catalog.Confirmer = (*View)(nil)
)

// View prints products as an aligned table and reads confirmations from in.
type View struct {
	out    io.Writer
	errOut io.Writer
	in     *bufio.Reader
	// AssumeYes answers every confirmation with yes without reading in.
	AssumeYes bool
}

// New returns a View writing to out and errOut and reading answers from in.
func New(out, errOut io.Writer, in io.Reader) *View {
	return &View{out: out, errOut: errOut, in: bufio.NewReader(in)}
}

// Render prints the product table.
func (v *View) Render(products []product.Product) {
	if len(products) == 0 {
		fmt.Fprintln(v.out, "No products.")
		return
	}

	tw := tabwriter.NewWriter(v.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tPRICE\tAVAILABLE\tIMAGE")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.Code, p.Name, p.PriceText(), yesNo(p.Available), imageSummary(p))
	}
	_ = tw.Flush()
}

// Fill prints the fields of one product.
func (v *View) Fill(p product.Product) {
	tw := tabwriter.NewWriter(v.out, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Code:\t%s\n", p.Code)
	fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	fmt.Fprintf(tw, "Price:\t%s\n", p.PriceText())
	fmt.Fprintf(tw, "Available:\t%s\n", yesNo(p.Available))
	fmt.Fprintf(tw, "Image:\t%s\n", imageSummary(p))
	_ = tw.Flush()
}

// ResetForm has nothing to clear on a terminal.
func (v *View) ResetForm() {}

// ShowError prints a failure to errOut.
func (v *View) ShowError(title, message string) {
	fmt.Fprintf(v.errOut, "%s: %s\n", title, message)
}

// Confirm asks question and accepts y or yes, case-insensitive.
func (v *View) Confirm(question string) bool {
	if v.AssumeYes {
		return true
	}
	fmt.Fprintf(v.out, "%s [y/N]: ", question)
	line, err := v.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func imageSummary(p product.Product) string {
	if !p.HasImage() {
		return "-"
	}
	return fmt.Sprintf("%d bytes", len(p.Image))
}
