package cartclient

import (
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// decodeCartResponse parses {"cart":{"items":[...]}}. A null or missing cart
// is an empty cart.
func decodeCartResponse(data []byte) (cart.Cart, error) {
	out := cart.Empty()
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "cart" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "items" {
				return d.Skip()
			}
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				l, err := cart.DecodeLine(d)
				if err != nil {
					return err
				}
				out.Items = append(out.Items, l)
				return nil
			})
		})
	})
	if err != nil {
		return cart.Cart{}, &cart.ValidationError{Reason: "decode cart response", Err: err}
	}
	return out, nil
}
