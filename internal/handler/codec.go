package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/productos/internal/catalog"
	"github.com/xenking/productos/internal/domain/product"
)

// errBadJSON is wrapped around request body decoding failures.
var errBadJSON = errors.New("malformed request body")

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(p.Code)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Float32(p.Price)
	e.FieldStart("available")
	e.Bool(p.Available)
	e.FieldStart("hasImage")
	e.Bool(p.HasImage())
	e.ObjEnd()
}

// decodeForm reads a product body into a catalog.Form so that the HTTP API
// applies the same presence and price rules as the terminal front end. The
// price may be sent as a JSON number or string.
func decodeForm(w http.ResponseWriter, r *http.Request) (catalog.Form, error) {
	var f catalog.Form
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return f, errors.Wrap(errBadJSON, err.Error())
	}

	err = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			f.Code = v
			return err
		case "name":
			v, err := d.Str()
			f.Name = v
			return err
		case "price":
			switch d.Next() {
			case jx.String:
				v, err := d.Str()
				f.Price = v
				return err
			case jx.Number:
				v, err := d.Num()
				f.Price = v.String()
				return err
			case jx.Null:
				return d.Null()
			default:
				return errors.New("price must be a number")
			}
		case "available":
			v, err := d.Bool()
			f.Available = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return f, errors.Wrap(errBadJSON, err.Error())
	}
	return f, nil
}
