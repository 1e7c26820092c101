// Package addressbook manages a signed-in shopper's delivery addresses.
package addressbook

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/address"
	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/reconciler"
)

// Backend is the backend address API.
type Backend interface {
	Addresses(ctx context.Context, token string) ([]address.Address, error)
	AddAddress(ctx context.Context, token string, a address.Address) (address.Address, error)
	UpdateAddress(ctx context.Context, token string, a address.Address) (address.Address, error)
	DeleteAddress(ctx context.Context, token, id string) error
}

// Service reads and edits the address book of the shopper owning a State.
type Service struct {
	backend Backend
	lg      *zap.Logger
}

// New creates a Service.
func New(backend Backend, lg *zap.Logger) *Service {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{backend: backend, lg: lg}
}

// List returns the saved addresses, newest first.
func (s *Service) List(ctx context.Context, st *reconciler.State) ([]address.Address, error) {
	token, err := signedIn(st)
	if err != nil {
		return nil, err
	}
	return s.backend.Addresses(ctx, token)
}

// Save adds a when it has no id and updates it otherwise.
func (s *Service) Save(ctx context.Context, st *reconciler.State, a address.Address) (address.Address, error) {
	token, err := signedIn(st)
	if err != nil {
		return address.Address{}, err
	}
	if a.ID == "" {
		out, err := s.backend.AddAddress(ctx, token, a)
		if err != nil {
			return address.Address{}, err
		}
		s.lg.Debug("Address added", zap.String("address_id", out.ID))
		return out, nil
	}
	return s.backend.UpdateAddress(ctx, token, a)
}

// Delete removes the saved address id.
func (s *Service) Delete(ctx context.Context, st *reconciler.State, id string) error {
	token, err := signedIn(st)
	if err != nil {
		return err
	}
	return s.backend.DeleteAddress(ctx, token, id)
}

func signedIn(st *reconciler.State) (string, error) {
	sess := st.Session()
	if !sess.Authenticated() {
		return "", errors.Wrap(auth.ErrUnauthorized, "the address book requires a signed-in session")
	}
	return sess.Token, nil
}
