package reconciler

import (
	"sync"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// State is the displayed cart for one shopper together with the session that
// owns it and the last recorded failure. It is safe for concurrent use; each
// operation reads the latest cart at the moment it runs.
type State struct {
	mu      sync.Mutex
	session auth.Session
	cart    cart.Cart
	err     error
}

// NewState returns a State for sess with an empty cart.
func NewState(sess auth.Session) *State {
	return &State{session: sess, cart: cart.Empty()}
}

// Session returns the current session.
func (s *State) Session() auth.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// SetSession switches the owner of the state. The displayed cart is kept
// until the next fetch.
func (s *State) SetSession(sess auth.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

// Cart returns a copy of the displayed cart.
func (s *State) Cart() cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Err returns the failure recorded by the last read, if any.
func (s *State) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *State) replace(c cart.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = c.Clone()
	s.err = nil
}

func (s *State) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// update applies fn to the current displayed cart and stores the result.
func (s *State) update(fn func(cart.Cart) cart.Cart) cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = fn(s.cart)
	return s.cart.Clone()
}
