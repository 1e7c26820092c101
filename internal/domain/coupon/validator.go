package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Validator prices and redeems a code for an order.
type Validator interface {
	Redeem(ctx context.Context, code string, lines []Line) (Discount, error)
}

var _ Validator = (*RepoValidator)(nil)

// RepoValidator checks rules stored in a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by repo.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Redeem checks the validity window and usage limit, prices the rule and
// counts one use. Nothing is counted when pricing fails.
func (v *RepoValidator) Redeem(ctx context.Context, code string, lines []Line) (Discount, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Discount{}, ErrInvalid
	}

	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalid) {
			return Discount{}, ErrInvalid
		}
		return Discount{}, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return Discount{}, ErrExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return Discount{}, ErrExpired
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return Discount{}, ErrExhausted
	}

	d, err := Apply(rule, lines)
	if err != nil {
		return Discount{}, err
	}

	if err := v.repo.Redeem(ctx, rule.Code); err != nil {
		if errors.Is(err, ErrExhausted) {
			return Discount{}, ErrExhausted
		}
		return Discount{}, errors.Wrap(err, "redeem coupon")
	}
	return d, nil
}
