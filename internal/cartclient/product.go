package cartclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Products returns the catalog. It needs no session.
func (c *Client) Products(ctx context.Context) ([]product.Product, error) {
	data, err := c.do(ctx, request{
		op:     "list products",
		method: http.MethodGet,
		path:   "/products",
	})
	if err != nil {
		return nil, err
	}

	var out []product.Product
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "products" || d.Next() == jx.Null {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			p, err := decodeProduct(d)
			if err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, &cart.ValidationError{Reason: "decode products response", Err: err}
	}
	return out, nil
}

// Product returns one catalog entry. An unknown id yields a
// *cart.NotFoundError.
func (c *Client) Product(ctx context.Context, id string) (product.Product, error) {
	data, err := c.do(ctx, request{
		op:        "get product",
		method:    http.MethodGet,
		path:      "/products/" + url.PathEscape(id),
		productID: id,
	})
	if err != nil {
		return product.Product{}, err
	}

	var (
		out   product.Product
		found bool
	)
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "product" {
			return d.Skip()
		}
		found = true
		p, err := decodeProduct(d)
		out = p
		return err
	})
	if err == nil && !found {
		err = errors.New("missing product")
	}
	if err != nil {
		return product.Product{}, &cart.ValidationError{Reason: "decode product response", Err: err}
	}
	return out, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "_id", "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = cart.DecodeDecimal(d)
		case "category":
			p.Category, err = d.Str()
		case "image":
			p.Image, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err == nil && p.ID == "" {
		err = errors.New("product without id")
	}
	return p, err
}
