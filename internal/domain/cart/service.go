package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Repository persists server-side carts keyed by user.
type Repository interface {
	// Load returns the user's cart with product snapshots populated. A user
	// without a cart gets an empty one.
	Load(ctx context.Context, userID string) (Cart, error)
	// AddLines increments each line by its delta, creating absent lines with
	// their snapshot. Either every line is applied or none is.
	AddLines(ctx context.Context, userID string, lines []Addition) error
	// Adjust changes the quantity of an existing line by delta, never going
	// below 1. It reports whether the line exists.
	Adjust(ctx context.Context, userID, productID string, delta int) (bool, error)
	// Remove deletes the line if present.
	Remove(ctx context.Context, userID, productID string) error
}

// Addition is one line of an AddLines call.
type Addition struct {
	ProductID string
	Delta     int
	Snapshot  Snapshot
}

// AddRequest is one product/quantity pair in an add call.
type AddRequest struct {
	ProductID string
	Quantity  int
}

// Service encapsulates the backend cart rules: merge by product, product
// existence checks and the quantity floor.
type Service struct {
	products product.Repository
	carts    Repository
}

// NewService creates a cart Service.
func NewService(products product.Repository, carts Repository) *Service {
	return &Service{products: products, carts: carts}
}

// Get returns the user's cart.
func (s *Service) Get(ctx context.Context, userID string) (Cart, error) {
	c, err := s.carts.Load(ctx, userID)
	if err != nil {
		return Cart{}, errors.Wrap(err, "load cart")
	}
	return c, nil
}

// Add merges the requested lines into the user's cart. Duplicate product IDs
// within one request are summed. Every product must exist and every quantity
// must be positive, otherwise nothing is written.
func (s *Service) Add(ctx context.Context, userID string, reqs []AddRequest) (Cart, error) {
	if len(reqs) == 0 {
		return Cart{}, &ValidationError{Reason: "no items"}
	}

	var (
		order  []string
		deltas = make(map[string]int, len(reqs))
	)
	for _, r := range reqs {
		if r.ProductID == "" {
			return Cart{}, &ValidationError{Reason: "product id is required"}
		}
		if r.Quantity <= 0 {
			return Cart{}, ErrInvalidQuantity
		}
		if _, ok := deltas[r.ProductID]; !ok {
			order = append(order, r.ProductID)
		}
		deltas[r.ProductID] += r.Quantity
	}

	fetched, err := s.products.GetByIDs(ctx, order)
	if err != nil {
		return Cart{}, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}
	for _, id := range order {
		if _, ok := byID[id]; !ok {
			return Cart{}, &NotFoundError{ProductID: id}
		}
	}

	lines := make([]Addition, 0, len(order))
	for _, id := range order {
		p := byID[id]
		lines = append(lines, Addition{
			ProductID: id,
			Delta:     deltas[id],
			Snapshot:  Snapshot{Name: p.Name, Image: p.Image, Price: p.Price},
		})
	}
	if err := s.carts.AddLines(ctx, userID, lines); err != nil {
		return Cart{}, errors.Wrapf(err, "add %d lines", len(lines))
	}

	return s.Get(ctx, userID)
}

// Remove deletes productID from the user's cart and returns the result.
// Removing an absent product is not an error.
func (s *Service) Remove(ctx context.Context, userID, productID string) (Cart, error) {
	if err := s.carts.Remove(ctx, userID, productID); err != nil {
		return Cart{}, errors.Wrapf(err, "remove %s", productID)
	}
	return s.Get(ctx, userID)
}

// Adjust changes the quantity of productID by delta with a floor of 1.
func (s *Service) Adjust(ctx context.Context, userID, productID string, delta int) (Cart, error) {
	ok, err := s.carts.Adjust(ctx, userID, productID, delta)
	if err != nil {
		return Cart{}, errors.Wrapf(err, "adjust %s", productID)
	}
	if !ok {
		return Cart{}, &NotFoundError{ProductID: productID}
	}
	return s.Get(ctx, userID)
}
