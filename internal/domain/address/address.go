// Package address manages a user's saved delivery addresses.
package address

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the user has no address with the given id.
	ErrNotFound = errors.New("address not found")
	// ErrInvalid is returned when a required field is blank.
	ErrInvalid = errors.New("invalid address")
)

// Address is a saved delivery address.
type Address struct {
	ID         string
	UserID     string
	Name       string
	Phone      string
	Line1      string
	Line2      string
	Landmark   string
	City       string
	State      string
	PostalCode string
	Kind       string
	CreatedAt  time.Time
}

// Repository persists addresses. Every lookup is scoped to the owner, so one
// user can never read or change another user's address.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Address, error)
	Get(ctx context.Context, userID, id string) (*Address, error)
	Create(ctx context.Context, a *Address) error
	// Update replaces the fields of an existing address. It returns
	// ErrNotFound when the user has no such address.
	Update(ctx context.Context, a *Address) error
	// Delete returns ErrNotFound when the user has no such address.
	Delete(ctx context.Context, userID, id string) error
}

// Service validates and stores addresses.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an address Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns the user's addresses, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	return list, nil
}

// Get returns one of the user's addresses.
func (s *Service) Get(ctx context.Context, userID, id string) (*Address, error) {
	a, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get address %s", id)
	}
	return a, nil
}

// Add stores a new address for the user and assigns its id.
func (s *Service) Add(ctx context.Context, userID string, a Address) (*Address, error) {
	a = normalize(a)
	if err := validate(a); err != nil {
		return nil, err
	}
	a.ID = uuid.NewString()
	a.UserID = userID
	a.CreatedAt = s.now().UTC()
	if err := s.repo.Create(ctx, &a); err != nil {
		return nil, errors.Wrap(err, "create address")
	}
	return &a, nil
}

// Update replaces the user's address a.ID.
func (s *Service) Update(ctx context.Context, userID string, a Address) (*Address, error) {
	if a.ID == "" {
		return nil, errors.Wrap(ErrInvalid, "address id is required")
	}
	a = normalize(a)
	if err := validate(a); err != nil {
		return nil, err
	}
	a.UserID = userID
	if err := s.repo.Update(ctx, &a); err != nil {
		return nil, errors.Wrapf(err, "update address %s", a.ID)
	}
	return s.Get(ctx, userID, a.ID)
}

// Delete removes the user's address id.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return errors.Wrapf(err, "delete address %s", id)
	}
	return nil
}

func normalize(a Address) Address {
	for _, f := range []*string{&a.Name, &a.Phone, &a.Line1, &a.Line2, &a.Landmark, &a.City, &a.State, &a.PostalCode, &a.Kind} {
		*f = strings.TrimSpace(*f)
	}
	if a.Kind == "" {
		a.Kind = "home"
	}
	return a
}

func validate(a Address) error {
	switch {
	case a.Name == "":
		return errors.Wrap(ErrInvalid, "name is required")
	case a.Line1 == "":
		return errors.Wrap(ErrInvalid, "address line is required")
	case a.City == "":
		return errors.Wrap(ErrInvalid, "city is required")
	case a.PostalCode == "":
		return errors.Wrap(ErrInvalid, "postal code is required")
	}
	return nil
}
