package cartclient

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/address"
	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var addressErrs = map[int]error{
	http.StatusNotFound:   address.ErrNotFound,
	http.StatusBadRequest: address.ErrInvalid,
}

// Addresses lists the user's saved addresses, newest first.
func (c *Client) Addresses(ctx context.Context, token string) ([]address.Address, error) {
	data, err := c.do(ctx, request{
		op:     "list addresses",
		method: http.MethodGet,
		path:   "/address/get",
		token:  token,
	})
	if err != nil {
		return nil, err
	}

	var out []address.Address
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "addresses" || d.Next() == jx.Null {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			a, err := decodeAddress(d)
			if err != nil {
				return err
			}
			out = append(out, a)
			return nil
		})
	})
	if err != nil {
		return nil, &cart.ValidationError{Reason: "decode addresses response", Err: err}
	}
	return out, nil
}

// AddAddress saves a new address and returns it with its server id.
func (c *Client) AddAddress(ctx context.Context, token string, a address.Address) (address.Address, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("address", func(e *jx.Encoder) { encodeAddressForm(e, a) })
	})
	return c.writeAddress(ctx, request{
		op:         "add address",
		method:     http.MethodPost,
		path:       "/address/add",
		token:      token,
		body:       e.Bytes(),
		statusErrs: addressErrs,
	})
}

// UpdateAddress replaces the fields of the saved address a.ID.
func (c *Client) UpdateAddress(ctx context.Context, token string, a address.Address) (address.Address, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("_id", func(e *jx.Encoder) { e.Str(a.ID) })
		e.Field("address", func(e *jx.Encoder) { encodeAddressForm(e, a) })
	})
	return c.writeAddress(ctx, request{
		op:         "edit address",
		method:     http.MethodPost,
		path:       "/address/edit",
		token:      token,
		body:       e.Bytes(),
		statusErrs: addressErrs,
	})
}

// DeleteAddress removes a saved address.
func (c *Client) DeleteAddress(ctx context.Context, token, id string) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("payload", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("addressId", func(e *jx.Encoder) { e.Str(id) })
			})
		})
	})
	_, err := c.do(ctx, request{
		op:         "delete address",
		method:     http.MethodDelete,
		path:       "/address/delete",
		token:      token,
		body:       e.Bytes(),
		statusErrs: addressErrs,
	})
	return err
}

func (c *Client) writeAddress(ctx context.Context, r request) (address.Address, error) {
	data, err := c.do(ctx, r)
	if err != nil {
		return address.Address{}, err
	}

	var (
		out   address.Address
		found bool
	)
	err = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "address" {
			return d.Skip()
		}
		found = true
		a, err := decodeAddress(d)
		out = a
		return err
	})
	if err == nil && !found {
		err = errors.New("missing address")
	}
	if err != nil {
		return address.Address{}, &cart.ValidationError{Reason: "decode address response", Err: err}
	}
	return out, nil
}

func encodeAddressForm(e *jx.Encoder, a address.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(a.Name) })
		e.Field("mobileNumber", func(e *jx.Encoder) { e.Str(a.Phone) })
		e.Field("address", func(e *jx.Encoder) { e.Str(a.Line1) })
		e.Field("locality", func(e *jx.Encoder) { e.Str(a.Line2) })
		e.Field("landmark", func(e *jx.Encoder) { e.Str(a.Landmark) })
		e.Field("cityDistrictTown", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("state", func(e *jx.Encoder) { e.Str(a.State) })
		e.Field("pinCode", func(e *jx.Encoder) { e.Str(a.PostalCode) })
		if a.Kind != "" {
			e.Field("addressType", func(e *jx.Encoder) { e.Str(a.Kind) })
		}
	})
}

func decodeAddress(d *jx.Decoder) (address.Address, error) {
	var a address.Address
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var (
			dst *string
			err error
		)
		switch key {
		case "_id":
			dst = &a.ID
		case "name":
			dst = &a.Name
		case "mobileNumber":
			dst = &a.Phone
		case "address":
			dst = &a.Line1
		case "locality":
			dst = &a.Line2
		case "landmark":
			dst = &a.Landmark
		case "cityDistrictTown":
			dst = &a.City
		case "state":
			dst = &a.State
		case "pinCode":
			dst = &a.PostalCode
		case "addressType":
			dst = &a.Kind
		case "createdAt":
			var s string
			if s, err = d.Str(); err == nil {
				a.CreatedAt, err = time.Parse(time.RFC3339, s)
			}
		default:
			return d.Skip()
		}
		if dst != nil {
			if d.Next() == jx.Null {
				return d.Skip()
			}
			*dst, err = d.Str()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return a, err
}
