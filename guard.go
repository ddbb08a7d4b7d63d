package doclient

import (
	"context"
)

// RouteMeta is the authorization metadata of a target view.
type RouteMeta struct {
	Name          string `json:"name,omitempty"`
	RequiresAuth  bool   `json:"requires_auth,omitempty"`
	RequiresAdmin bool   `json:"requires_admin,omitempty"`
}

// Inherit returns m with the requirements of its parent route added. Nested
// views are at least as restricted as the view that contains them.
func (m RouteMeta) Inherit(parent RouteMeta) RouteMeta {
	m.RequiresAuth = m.RequiresAuth || parent.RequiresAuth
	m.RequiresAdmin = m.RequiresAdmin || parent.RequiresAdmin
	return m
}

// Decision is the outcome of a guard evaluation. Redirect is empty when the
// transition is allowed.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

// Decide is the navigation rule with the default routes: an anonymous
// session is sent to the login view for routes requiring authentication, a
// non admin session is sent to the default view for admin routes, anything
// else is allowed.
func Decide(meta RouteMeta, loggedIn, admin bool) Decision {
	return decide(meta, loggedIn, admin, DefaultLoginRoute, DefaultRoute)
}

func decide(meta RouteMeta, loggedIn, admin bool, loginRoute, defaultRoute string) Decision {
	if meta.RequiresAuth && !loggedIn {
		return Decision{Redirect: loginRoute}
	}
	if meta.RequiresAdmin && !admin {
		return Decision{Redirect: defaultRoute}
	}
	return Decision{Allow: true}
}

// Predicates is the part of a session the guard reads.
type Predicates interface {
	IsLoggedIn() bool
	IsAdmin() bool
}

// IdentityLoader is implemented by sessions that can load a profile that is
// not cached yet, e.g. after a token was restored.
type IdentityLoader interface {
	EnsureIdentity(ctx context.Context) (*UserProfile, error)
}

var _ Predicates = &Session{}
var _ IdentityLoader = &Session{}

// Guard evaluates route metadata against a session.
type Guard struct {
	session      Predicates
	navigator    Navigator
	loginRoute   string
	defaultRoute string
	logger       Logger
}

func NewGuard(session Predicates, cfg Config, opts ...Option) *Guard {
	o := newOptions(opts...)
	return &Guard{
		session:      session,
		navigator:    o.navigator,
		loginRoute:   cfg.GetLoginRoute(),
		defaultRoute: cfg.GetDefaultRoute(),
		logger:       o.logger,
	}
}

// Evaluate decides a transition without side effects. Predicates are read
// on every call.
func (g *Guard) Evaluate(meta RouteMeta) Decision {
	return decide(meta, g.session.IsLoggedIn(), g.session.IsAdmin(), g.loginRoute, g.defaultRoute)
}

// Check evaluates a transition and signals the redirect, if any, through the
// navigator. It reports whether the transition is allowed. For admin routes a
// logged in session without a profile loads it first; if that fails the
// session is logged out and the transition is denied.
func (g *Guard) Check(ctx context.Context, meta RouteMeta) bool {
	if meta.RequiresAdmin && g.session.IsLoggedIn() {
		if loader, ok := g.session.(IdentityLoader); ok {
			if _, err := loader.EnsureIdentity(ctx); err != nil {
				g.logger.Warn("route %q: could not load identity: %v", meta.Name, err)
				// a 401 tore the session down and redirected already
				if IsUnauthorized(err) {
					return false
				}
			}
		}
	}

	d := g.Evaluate(meta)
	if d.Allow {
		return true
	}

	g.logger.Debug("route %q denied, redirecting to %s", meta.Name, d.Redirect)
	g.navigator.Navigate(ctx, d.Redirect)
	return false
}
