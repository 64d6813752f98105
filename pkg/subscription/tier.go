// Package subscription holds the tier table. Every limit shown to users or
// checked before a creation comes from here.
package subscription

import (
	"fmt"
	"strings"
)

// Tier is a subscription level.
type Tier string

const (
	Freemium Tier = "freemium"
	Premium  Tier = "premium"
)

// Kind is a user-owned resource that a tier may limit.
type Kind string

const (
	KindBox      Kind = "box"
	KindFavorite Kind = "favorite"
	KindReview   Kind = "review"
)

// Unlimited marks a limit with no upper bound.
const Unlimited = -1

// Limits are the per-kind caps of a tier.
type Limits struct {
	Boxes     int `json:"boxes"`
	Favorites int `json:"favorites"`
	Reviews   int `json:"reviews"`
}

// Plan describes a tier for the pricing view.
type Plan struct {
	Tier   Tier   `json:"tier"`
	Name   string `json:"name"`
	Limits Limits `json:"limits"`
}

var plans = []Plan{
	{Tier: Freemium, Name: "Freemium", Limits: Limits{Boxes: 5, Favorites: 5, Reviews: 5}},
	{Tier: Premium, Name: "Premium", Limits: Limits{Boxes: Unlimited, Favorites: Unlimited, Reviews: Unlimited}},
}

// Plans returns the tier table in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// ParseTier accepts a tier name in any case. Unknown and empty values are
// treated as freemium so a malformed profile never gains premium limits.
func ParseTier(s string) Tier {
	if Tier(strings.ToLower(strings.TrimSpace(s))) == Premium {
		return Premium
	}
	return Freemium
}

// DisplayName is the capitalised tier name used in user-facing messages.
func (t Tier) DisplayName() string {
	return planFor(t).Name
}

// LimitFor returns the cap on kind for tier t, or Unlimited.
func LimitFor(t Tier, kind Kind) (int, error) {
	l := planFor(t).Limits
	switch kind {
	case KindBox:
		return l.Boxes, nil
	case KindFavorite:
		return l.Favorites, nil
	case KindReview:
		return l.Reviews, nil
	default:
		return 0, fmt.Errorf("subscription: unknown resource kind %q", kind)
	}
}

// Unbounded reports whether t has no limit on kind.
func Unbounded(t Tier, kind Kind) bool {
	limit, err := LimitFor(t, kind)
	return err == nil && limit == Unlimited
}

func planFor(t Tier) Plan {
	for _, p := range plans {
		if p.Tier == t {
			return p
		}
	}
	return plans[0]
}

// Noun is the plural used in messages, e.g. "boxes".
func (k Kind) Noun() string {
	switch k {
	case KindBox:
		return "boxes"
	case KindFavorite:
		return "favorites"
	case KindReview:
		return "reviews"
	default:
		return string(k) + "s"
	}
}
