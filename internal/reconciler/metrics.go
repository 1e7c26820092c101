package reconciler

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

type metrics struct {
	ops    metric.Int64Counter
	merges metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter("github.com/xenking/kart-storefront/internal/reconciler")

	ops, err := meter.Int64Counter("storefront.cart.operations",
		metric.WithDescription("Cart operations by kind, mode and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "operations counter")
	}
	merges, err := meter.Int64Counter("storefront.cart.merges",
		metric.WithDescription("Guest cart merges by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "merges counter")
	}
	return &metrics{ops: ops, merges: merges}, nil
}

func (m *metrics) record(ctx context.Context, op, mode string, err error) {
	m.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("mode", mode),
		attribute.String("outcome", outcome(err)),
	))
}

func (m *metrics) merge(ctx context.Context, merged bool, err error) {
	o := outcome(err)
	if err == nil && !merged {
		o = "skipped"
	}
	m.merges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", o)))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case cart.IsNotFound(err):
		return "not_found"
	case cart.IsNetwork(err):
		return "network"
	default:
		return "error"
	}
}
