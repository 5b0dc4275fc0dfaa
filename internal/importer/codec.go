package importer

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/productos/internal/catalog"
	"github.com/xenking/productos/internal/domain/product"
)

// decodeLine parses one product object. Presence and price rules are the
// ones the interactive front ends apply. A missing or null image means no
// image; an empty string is an empty payload.
func decodeLine(data []byte) (product.Product, error) {
	var (
		form  catalog.Form
		image []byte
	)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			form.Code, err = d.Str()
		case "name":
			form.Name, err = d.Str()
		case "price":
			switch d.Next() {
			case jx.String:
				form.Price, err = d.Str()
			case jx.Number:
				var n jx.Num
				n, err = d.Num()
				form.Price = n.String()
			case jx.Null:
				err = d.Null()
			default:
				err = errors.New("price must be a number")
			}
		case "available":
			form.Available, err = d.Bool()
		case "image":
			if d.Next() == jx.Null {
				return d.Null()
			}
			image, err = d.Base64()
			if err == nil && image == nil {
				image = []byte{}
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, errors.Wrap(err, "decode")
	}

	p, err := form.Product()
	if err != nil {
		return product.Product{}, err
	}
	p.Image = image
	return p, nil
}
