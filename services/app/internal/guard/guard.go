// Package guard decides whether the current user may open a view.
package guard

import (
	"fmt"
	"strings"

	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

// SignInPath is where unauthenticated visitors are sent.
const SignInPath = "/auth"

// Requirement is the auth state a view needs.
type Requirement int

const (
	Public Requirement = iota
	Authenticated
)

// Outcome of an authorization check.
type Outcome int

const (
	Allowed Outcome = iota
	Unauthorized
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Unauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision is the result of Authorize. Redirect is set when the caller must
// navigate elsewhere instead of rendering.
type Decision struct {
	Outcome  Outcome
	Redirect string
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allowed
}

// IdentitySource yields the current Identity, or nil.
type IdentitySource interface {
	Current() *gateway.Identity
}

// Guard gates views on the current Identity. It never calls the gateway.
type Guard struct {
	identities IdentitySource
	routes     []Route
}

// New creates a guard over the default route table.
func New(identities IdentitySource) *Guard {
	return &Guard{identities: identities, routes: DefaultRoutes()}
}

// Authorize checks required against the current Identity. Any signed-in
// user passes regardless of tier.
func (g *Guard) Authorize(required Requirement) Decision {
	if required == Public || g.identities.Current() != nil {
		return Decision{Outcome: Allowed}
	}
	return Decision{Outcome: Unauthorized, Redirect: SignInPath}
}

// AuthorizePath authorizes the route matching path. Unknown paths are
// treated as protected.
func (g *Guard) AuthorizePath(path string) (Decision, Route) {
	route, ok := Match(g.routes, path)
	if !ok {
		route = Route{Pattern: path, Requirement: Authenticated}
	}
	return g.Authorize(route.Requirement), route
}

// Route is one entry of the route table.
type Route struct {
	Pattern     string
	Requirement Requirement
}

// DefaultRoutes is the application's route table.
func DefaultRoutes() []Route {
	return []Route{
		{Pattern: "/", Requirement: Public},
		{Pattern: "/auth", Requirement: Public},
		{Pattern: "/pricing", Requirement: Public},
		{Pattern: "/map", Requirement: Authenticated},
		{Pattern: "/profile", Requirement: Authenticated},
		{Pattern: "/my-boxes", Requirement: Authenticated},
		{Pattern: "/add-box", Requirement: Authenticated},
		{Pattern: "/box/:id", Requirement: Authenticated},
		{Pattern: "/user/:username", Requirement: Authenticated},
		{Pattern: "/edit-box/:id", Requirement: Authenticated},
	}
}

// Match returns the first route whose pattern matches path. A ":name"
// segment matches any single non-empty segment.
func Match(routes []Route, path string) (Route, bool) {
	want := segments(path)
	for _, r := range routes {
		if matchSegments(segments(r.Pattern), want) {
			return r, true
		}
	}
	return Route{}, false
}

func segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if p != path[i] {
			return false
		}
	}
	return true
}
