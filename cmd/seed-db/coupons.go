package main

import (
	"bufio"
	"context"
	"io"
	"math/bits"
	"slices"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/coupon"
)

const (
	feedFPR    = 0.001
	maxFeeds   = bits.UintSize
	maxCodeLen = 64
)

var defaultCouponRule = coupon.Rule{
	Kind:        coupon.KindPercentage,
	Value:       decimal.NewFromInt(10),
	Description: "Valid promo code: 10% off",
}

type couponUpserter interface {
	Upsert(ctx context.Context, rule coupon.Rule) error
}

// seedCoupons upserts coupon rules. Without feeds every rule in the rules
// file is loaded. With feeds only codes listed in at least minFeeds of them
// are loaded, each with its rule from the rules file or the default rule.
func seedCoupons(ctx context.Context, lg *zap.Logger, repo couponUpserter, opts options) error {
	if opts.couponsFile == "" && len(opts.couponFeeds) == 0 {
		return nil
	}

	var rules []coupon.Rule
	if opts.couponsFile != "" {
		lg.Info("Reading coupon rules", zap.String("path", opts.couponsFile))
		r, err := openInput(opts.couponsFile)
		if err != nil {
			return err
		}
		rules, err = decodeRules(r)
		_ = r.Close()
		if err != nil {
			return errors.Wrap(err, "decode coupon rules")
		}
	}

	if len(opts.couponFeeds) > 0 {
		codes, err := acceptedCodes(ctx, lg, opts.couponFeeds, opts.couponMinFeeds, opts.feedCapacity)
		if err != nil {
			return err
		}
		rules = rulesForCodes(rules, codes)
	}

	for i, rule := range rules {
		if err := repo.Upsert(ctx, rule); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", rule.Code)
		}
		if (i+1)%100 == 0 {
			lg.Info("Coupon progress", zap.Int("written", i+1), zap.Int("total", len(rules)))
		}
	}
	lg.Info("Upserted coupons", zap.Int("count", len(rules)))
	return nil
}

// rulesForCodes pairs each accepted code with its configured rule.
func rulesForCodes(rules []coupon.Rule, codes []string) []coupon.Rule {
	byCode := make(map[string]coupon.Rule, len(rules))
	for _, r := range rules {
		byCode[r.Code] = r
	}
	out := make([]coupon.Rule, 0, len(codes))
	for _, code := range codes {
		r, ok := byCode[code]
		if !ok {
			r = defaultCouponRule
			r.Code = code
		}
		out = append(out, r)
	}
	return out
}

// acceptedCodes returns, sorted, the codes that appear in at least minFeeds
// of the feed files. Membership is approximated with one bloom filter per
// feed, so a rare false positive may admit a code.
func acceptedCodes(ctx context.Context, lg *zap.Logger, feeds []string, minFeeds int, capacity uint) ([]string, error) {
	if len(feeds) > maxFeeds {
		return nil, errors.Errorf("at most %d coupon feeds are supported, got %d", maxFeeds, len(feeds))
	}
	if minFeeds < 1 {
		minFeeds = 1
	}
	if minFeeds > len(feeds) {
		return nil, errors.Errorf("coupon-min-feeds %d exceeds the %d feeds given", minFeeds, len(feeds))
	}

	lg.Info("Indexing coupon feeds", zap.Int("feeds", len(feeds)))
	filters, err := buildFilters(ctx, lg, feeds, capacity)
	if err != nil {
		return nil, errors.Wrap(err, "index coupon feeds")
	}

	masks := make([]map[string]uint, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			m, err := scanFeed(gctx, i, path, filters, minFeeds)
			if err != nil {
				return errors.Wrapf(err, "scan feed %s", path)
			}
			masks[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}
	var codes []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= minFeeds {
			codes = append(codes, code)
		}
	}
	slices.Sort(codes)
	lg.Info("Accepted coupon codes", zap.Int("count", len(codes)))
	return codes, nil
}

func buildFilters(ctx context.Context, lg *zap.Logger, feeds []string, capacity uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			f := bloom.NewWithEstimates(capacity, feedFPR)
			n, err := streamCodes(gctx, path, func(code string) {
				f.AddString(code)
			})
			if err != nil {
				return err
			}
			lg.Debug("Indexed coupon feed", zap.String("path", path), zap.Int("codes", n))
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// scanFeed marks each code of feed idx with the feed's bit when some other
// feed's filter also holds it.
func scanFeed(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter, minFeeds int) (map[string]uint, error) {
	own := uint(1) << uint(idx)
	out := make(map[string]uint)
	_, err := streamCodes(ctx, path, func(code string) {
		if minFeeds == 1 {
			out[code] |= own
			return
		}
		for j, f := range filters {
			if j != idx && f.TestString(code) {
				out[code] |= own
				return
			}
		}
	})
	return out, err
}

// streamCodes calls fn for each normalized code in a feed file. Blank lines,
// "#" comments and overlong codes are skipped.
func streamCodes(ctx context.Context, path string, fn func(code string)) (int, error) {
	r, err := openInput(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	var n int
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		code := strings.ToUpper(strings.TrimSpace(sc.Text()))
		if code == "" || strings.HasPrefix(code, "#") || len(code) > maxCodeLen {
			continue
		}
		fn(code)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrapf(err, "read %s", path)
	}
	return n, nil
}

// decodeRules reads a JSON array of coupon rules.
func decodeRules(r io.Reader) ([]coupon.Rule, error) {
	var out []coupon.Rule
	d := jx.Decode(r, 4096)
	err := d.Arr(func(d *jx.Decoder) error {
		rule, err := decodeRule(d)
		if err != nil {
			return errors.Wrapf(err, "coupon #%d", len(out)+1)
		}
		if rule.Code == "" {
			return errors.Errorf("coupon #%d: missing code", len(out)+1)
		}
		switch rule.Kind {
		case coupon.KindPercentage, coupon.KindFixed, coupon.KindFreeLowest:
		default:
			return errors.Errorf("coupon %s: unknown kind %q", rule.Code, rule.Kind)
		}
		out = append(out, rule)
		return nil
	})
	return out, err
}

func decodeRule(d *jx.Decoder) (coupon.Rule, error) {
	var rule coupon.Rule
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			var s string
			s, err = d.Str()
			rule.Code = strings.ToUpper(strings.TrimSpace(s))
		case "kind":
			var s string
			s, err = d.Str()
			rule.Kind = coupon.Kind(s)
		case "value":
			rule.Value, err = decodeAmount(d)
		case "maxDiscount":
			rule.MaxDiscount, err = decodeAmount(d)
		case "minItems":
			rule.MinItems, err = d.Int()
		case "maxUses":
			rule.MaxUses, err = d.Int()
		case "description":
			rule.Description, err = d.Str()
		case "validFrom":
			rule.ValidFrom, err = decodeTime(d)
		case "validUntil":
			rule.ValidUntil, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return rule, err
}

func decodeAmount(d *jx.Decoder) (decimal.Decimal, error) {
	raw, err := d.Raw()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(strings.Trim(raw.String(), `"`))
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
