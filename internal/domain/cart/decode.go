package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// DecodeLine parses one line item. The product identity may be carried by
// "productId" or "product", each either an id string or an embedded product
// object.
func DecodeLine(d *jx.Decoder) (LineItem, error) {
	var l LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId", "product":
			return DecodeProductRef(d, &l)
		case "quantity":
			n, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			l.Quantity = n
			return nil
		case "price":
			p, err := DecodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			l.UnitPrice = p
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return LineItem{}, err
	}
	if l.ProductID == "" {
		return LineItem{}, errors.New("line item without product id")
	}
	return l, nil
}

// DecodeProductRef reads a product reference into l: either a bare id or a
// product object whose fields fill the snapshot.
func DecodeProductRef(d *jx.Decoder, l *LineItem) error {
	switch d.Next() {
	case jx.String:
		id, err := d.Str()
		if err != nil {
			return err
		}
		if l.ProductID == "" {
			l.ProductID = id
		}
		return nil
	case jx.Object:
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "_id", "id":
				id, err := d.Str()
				if err != nil {
					return err
				}
				l.ProductID = id
			case "name":
				name, err := d.Str()
				if err != nil {
					return err
				}
				l.Product.Name = name
			case "image":
				if d.Next() != jx.String {
					return d.Skip()
				}
				img, err := d.Str()
				if err != nil {
					return err
				}
				l.Product.Image = img
			case "productPictures":
				return decodePictures(d, l)
			case "price":
				p, err := DecodeDecimal(d)
				if err != nil {
					return err
				}
				l.Product.Price = p
			default:
				return d.Skip()
			}
			return nil
		})
	case jx.Null:
		return d.Null()
	default:
		return errors.Errorf("unexpected product reference type %s", d.Next())
	}
}

// decodePictures takes the first picture of a productPictures array as the
// image when none was given.
func decodePictures(d *jx.Decoder, l *LineItem) error {
	if d.Next() != jx.Array {
		return d.Skip()
	}
	return d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "img" || d.Next() != jx.String {
				return d.Skip()
			}
			img, err := d.Str()
			if err != nil {
				return err
			}
			if l.Product.Image == "" {
				l.Product.Image = img
			}
			return nil
		})
	})
}

// DecodeDecimal accepts a JSON number or a numeric string.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(string(n))
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected price type %s", d.Next())
	}
}
