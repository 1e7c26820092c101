package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrInvalidQuantity is returned when an add requests fewer than one unit.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// NetworkError indicates a remote cart request failed, either in transport or
// with a non-success status. It is never retried automatically.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NotFoundError indicates the backend no longer knows the referenced product.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	if e.ProductID == "" {
		return "product not found"
	}
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// ValidationError indicates malformed cart data, typically a corrupted local
// record. Callers treat it as an empty cart.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid cart data: %s: %v", e.Reason, e.Err)
	}
	return "invalid cart data: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err carries a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsNetwork reports whether err carries a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
