// Package quota gates resource creation on the owner's subscription tier.
//
// The check is advisory and runs only in this client: a count is read, the
// decision is made, and the insert happens later as a separate request. The
// API accepts inserts without re-checking, so a client that skips this
// package, or two concurrent attempts by the same user, can exceed the
// limit.
package quota

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bookineo/bookineo/pkg/subscription"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bookineo_quota_decisions_total",
	Help: "Quota checks by resource kind and outcome.",
}, []string{"kind", "outcome"})

// Counter reads how many resources of a kind an owner has.
type Counter interface {
	CountResourcesByOwner(ctx context.Context, ownerID string, kind subscription.Kind) (int, error)
}

// Decision is the outcome of a quota check. Count is zero and Counted false
// when the tier is unbounded and no count was read.
type Decision struct {
	Allowed bool
	Kind    subscription.Kind
	Tier    subscription.Tier
	Limit   int
	Count   int
	Counted bool
}

// Message is the user-facing explanation of a denial.
func (d Decision) Message() string {
	if d.Allowed {
		return ""
	}
	return fmt.Sprintf("You have reached the %s limit for a %s account (limit of %d %s)",
		d.Kind, d.Tier.DisplayName(), d.Limit, d.Kind.Noun())
}

// Enforcer evaluates tier limits against live counts. Counts are fetched on
// every check and never cached.
type Enforcer struct {
	counter Counter
	logger  *slog.Logger
}

func NewEnforcer(counter Counter, logger *slog.Logger) *Enforcer {
	return &Enforcer{counter: counter, logger: logger}
}

// CheckQuota decides whether identity may create one more resource of kind.
func (e *Enforcer) CheckQuota(ctx context.Context, identity *gateway.Identity, kind subscription.Kind) (Decision, error) {
	if identity == nil {
		return Decision{}, fmt.Errorf("check %s quota: no signed-in user", kind)
	}

	limit, err := subscription.LimitFor(identity.Tier, kind)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Kind: kind, Tier: identity.Tier, Limit: limit}
	if limit == subscription.Unlimited {
		d.Allowed = true
		decisionsTotal.WithLabelValues(string(kind), "allowed").Inc()
		return d, nil
	}

	count, err := e.counter.CountResourcesByOwner(ctx, identity.ID, kind)
	if err != nil {
		decisionsTotal.WithLabelValues(string(kind), "error").Inc()
		return Decision{}, fmt.Errorf("check %s quota: %w", kind, err)
	}

	d.Count = count
	d.Counted = true
	d.Allowed = count < limit

	outcome := "allowed"
	if !d.Allowed {
		outcome = "denied"
		e.logger.Info("quota reached",
			slog.String("user_id", identity.ID),
			slog.String("kind", string(kind)),
			slog.Int("count", count),
			slog.Int("limit", limit),
		)
	}
	decisionsTotal.WithLabelValues(string(kind), outcome).Inc()

	return d, nil
}
