// Package session drives the shopper lifecycle: sign-in with the one-time
// guest cart merge, restore from persisted state, and sign-out.
package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/reconciler"
)

// Phase is the lifecycle position of a shopper.
type Phase int

const (
	PhaseGuest Phase = iota
	PhaseMerging
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseGuest:
		return "guest"
	case PhaseMerging:
		return "merging"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Store persists the session between runs.
type Store interface {
	SaveSession(ctx context.Context, token string, user auth.User) error
	LoadSession(ctx context.Context) (auth.Session, auth.User, bool, error)
	Clear(ctx context.Context) error
}

// Carts is the subset of the reconciler the lifecycle needs.
type Carts interface {
	GetCart(ctx context.Context, st *reconciler.State) cart.Cart
	MergeGuestCartIntoRemote(ctx context.Context, st *reconciler.State) (bool, error)
	Reset(st *reconciler.State)
}

// LoginResult describes a completed sign-in.
type LoginResult struct {
	User   auth.User
	Merged bool
	// MergeErr is set when the guest cart could not be merged. The guest
	// cart is kept and RetryMerge may be called later.
	MergeErr error
}

// Manager owns the State of one shopper.
type Manager struct {
	auth  auth.Authenticator
	store Store
	carts Carts
	lg    *zap.Logger

	mu           sync.Mutex
	st           *reconciler.State
	phase        Phase
	user         auth.User
	mergePending bool
}

// NewManager creates a Manager for a guest shopper.
func NewManager(a auth.Authenticator, store Store, carts Carts, lg *zap.Logger) *Manager {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Manager{
		auth:  a,
		store: store,
		carts: carts,
		lg:    lg,
		st:    reconciler.NewState(auth.Session{}),
		phase: PhaseGuest,
	}
}

// State returns the shopper's cart state.
func (m *Manager) State() *reconciler.State {
	return m.st
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// User returns the signed-in user, if any.
func (m *Manager) User() auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// MergePending reports whether the last merge attempt failed.
func (m *Manager) MergePending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergePending
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = p
}

// Login signs in, persists the session and merges the guest cart exactly
// once. A failed merge does not fail the login.
func (m *Manager) Login(ctx context.Context, creds auth.Credentials) (LoginResult, error) {
	token, user, err := m.auth.SignIn(ctx, creds)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "sign in")
	}
	if err := m.store.SaveSession(ctx, token, user); err != nil {
		return LoginResult{}, errors.Wrap(err, "persist session")
	}

	m.mu.Lock()
	m.user = user
	m.phase = PhaseMerging
	m.mu.Unlock()
	m.st.SetSession(auth.Session{Token: token, UserID: user.ID})

	merged, mergeErr := m.carts.MergeGuestCartIntoRemote(ctx, m.st)
	if mergeErr != nil {
		m.lg.Warn("Guest cart kept after failed merge", zap.String("user_id", user.ID), zap.Error(mergeErr))
	}

	m.mu.Lock()
	m.phase = PhaseAuthenticated
	m.mergePending = mergeErr != nil
	m.mu.Unlock()

	m.carts.GetCart(ctx, m.st)
	m.lg.Info("Signed in", zap.String("user_id", user.ID), zap.Bool("merged", merged))

	return LoginResult{User: user, Merged: merged, MergeErr: mergeErr}, nil
}

// Restore rebuilds a signed-in session from persisted state. It reports
// whether a session was found; without one the shopper stays a guest.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	sess, user, ok, err := m.store.LoadSession(ctx)
	if err != nil {
		return false, errors.Wrap(err, "load session")
	}
	if !ok {
		m.carts.GetCart(ctx, m.st)
		return false, nil
	}

	m.mu.Lock()
	m.user = user
	m.phase = PhaseAuthenticated
	m.mu.Unlock()
	m.st.SetSession(sess)

	m.carts.GetCart(ctx, m.st)
	return true, nil
}

// Logout clears all local state, including any unmerged guest cart, and
// returns to an empty guest cart.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear local state")
	}

	m.mu.Lock()
	m.user = auth.User{}
	m.phase = PhaseGuest
	m.mergePending = false
	m.mu.Unlock()

	m.st.SetSession(auth.Session{})
	m.carts.Reset(m.st)
	return nil
}

// RetryMerge re-runs the guest cart merge for a signed-in shopper.
func (m *Manager) RetryMerge(ctx context.Context) (bool, error) {
	if m.Phase() != PhaseAuthenticated {
		return false, errors.Wrap(auth.ErrUnauthorized, "retry merge")
	}

	m.setPhase(PhaseMerging)
	merged, err := m.carts.MergeGuestCartIntoRemote(ctx, m.st)

	m.mu.Lock()
	m.phase = PhaseAuthenticated
	m.mergePending = err != nil
	m.mu.Unlock()

	if err != nil {
		return false, err
	}
	if merged {
		m.carts.GetCart(ctx, m.st)
	}
	return merged, nil
}
