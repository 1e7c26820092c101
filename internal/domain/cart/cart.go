package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Snapshot is the product data captured on a line item at the time it was
// added, so the cart can be rendered without a catalog round trip.
type Snapshot struct {
	Name  string          `json:"name"`
	Image string          `json:"image"`
	Price decimal.Decimal `json:"price"`
}

// Product is the catalog entry a caller adds to the cart.
type Product struct {
	ID    string
	Name  string
	Image string
	Price decimal.Decimal
}

// Snapshot returns the snapshot stored on line items for this product.
func (p Product) Snapshot() Snapshot {
	return Snapshot{Name: p.Name, Image: p.Image, Price: p.Price}
}

// LineItem is a single product entry in a cart. ProductID is its identity.
type LineItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Product   Snapshot        `json:"product"`
}

// Total returns the line total, falling back to the snapshot price when no
// unit price was recorded.
func (l LineItem) Total() decimal.Decimal {
	price := l.UnitPrice
	if price.IsZero() {
		price = l.Product.Price
	}
	return price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered collection of line items, unique by ProductID.
type Cart struct {
	Items []LineItem `json:"items"`
}

// Empty returns a cart with no items.
func Empty() Cart {
	return Cart{Items: []LineItem{}}
}

// Len returns the number of distinct lines.
func (c Cart) Len() int {
	return len(c.Items)
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	return Cart{Items: append(make([]LineItem, 0, len(c.Items)), c.Items...)}
}

// Index returns the position of the line with the given product ID, or -1.
func (c Cart) Index(productID string) int {
	return slices.IndexFunc(c.Items, func(l LineItem) bool {
		return l.ProductID == productID
	})
}

// Find returns the line for productID.
func (c Cart) Find(productID string) (LineItem, bool) {
	i := c.Index(productID)
	if i < 0 {
		return LineItem{}, false
	}
	return c.Items[i], true
}

// Add merges quantity units of p into a copy of the cart: an existing line is
// incremented in place, otherwise a new line is appended. It returns the new
// cart and the resulting line.
func (c Cart) Add(p Product, quantity int) (Cart, LineItem) {
	out := c.Clone()
	if i := out.Index(p.ID); i >= 0 {
		out.Items[i].Quantity += quantity
		return out, out.Items[i]
	}
	line := LineItem{
		ProductID: p.ID,
		Quantity:  quantity,
		UnitPrice: p.Price,
		Product:   p.Snapshot(),
	}
	out.Items = append(out.Items, line)
	return out, line
}

// Remove returns a copy of the cart without productID. Removing an absent
// product returns an identical copy.
func (c Cart) Remove(productID string) Cart {
	out := Cart{Items: make([]LineItem, 0, len(c.Items))}
	for _, l := range c.Items {
		if l.ProductID != productID {
			out.Items = append(out.Items, l)
		}
	}
	return out
}

// Adjust returns a copy of the cart with the quantity of productID changed by
// delta, floored at 1. The boolean is false when the product is absent or the
// quantity did not change.
func (c Cart) Adjust(productID string, delta int) (Cart, bool) {
	i := c.Index(productID)
	if i < 0 {
		return c, false
	}
	next := max(c.Items[i].Quantity+delta, 1)
	if next == c.Items[i].Quantity {
		return c, false
	}
	out := c.Clone()
	out.Items[i].Quantity = next
	return out, true
}

// ItemCount returns the total number of units across all lines.
func (c Cart) ItemCount() int {
	var n int
	for _, l := range c.Items {
		n += l.Quantity
	}
	return n
}

// Subtotal returns the sum of all line totals.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Items {
		total = total.Add(l.Total())
	}
	return total
}
