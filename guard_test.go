package doclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-doclient/internal/fakebackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPredicates struct {
	loggedIn, admin bool
}

func (p fixedPredicates) IsLoggedIn() bool { return p.loggedIn }
func (p fixedPredicates) IsAdmin() bool    { return p.admin }

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		meta     RouteMeta
		loggedIn bool
		admin    bool
		want     Decision
	}{
		{
			name: "public route is allowed for anonymous sessions",
			meta: RouteMeta{Name: "home"},
			want: Decision{Allow: true},
		},
		{
			name: "protected route redirects anonymous sessions to login",
			meta: RouteMeta{Name: "documents", RequiresAuth: true},
			want: Decision{Redirect: DefaultLoginRoute},
		},
		{
			name:     "protected route is allowed once logged in",
			meta:     RouteMeta{Name: "documents", RequiresAuth: true},
			loggedIn: true,
			want:     Decision{Allow: true},
		},
		{
			name:     "admin route redirects regular users to the default view",
			meta:     RouteMeta{Name: "categories", RequiresAuth: true, RequiresAdmin: true},
			loggedIn: true,
			want:     Decision{Redirect: DefaultRoute},
		},
		{
			name: "admin route checks authentication first",
			meta: RouteMeta{Name: "categories", RequiresAuth: true, RequiresAdmin: true},
			want: Decision{Redirect: DefaultLoginRoute},
		},
		{
			name:     "admin route is allowed for admins",
			meta:     RouteMeta{Name: "categories", RequiresAuth: true, RequiresAdmin: true},
			loggedIn: true,
			admin:    true,
			want:     Decision{Allow: true},
		},
		{
			name: "admin only route without auth flag still needs the admin role",
			meta: RouteMeta{Name: "stats", RequiresAdmin: true},
			want: Decision{Redirect: DefaultRoute},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.meta, tt.loggedIn, tt.admin))
		})
	}
}

func TestRouteMetaInherit(t *testing.T) {
	parent := RouteMeta{Name: "admin", RequiresAuth: true, RequiresAdmin: true}
	child := RouteMeta{Name: "admin.categories"}.Inherit(parent)

	assert.Equal(t, "admin.categories", child.Name)
	assert.True(t, child.RequiresAuth)
	assert.True(t, child.RequiresAdmin)

	open := RouteMeta{Name: "about"}.Inherit(RouteMeta{})
	assert.False(t, open.RequiresAuth)
}

func TestGuardCheckSignalsRedirect(t *testing.T) {
	nav := &recordingNavigator{}
	cfg := Options{LoginRoute: "/signin", DefaultRoute: "/home"}

	anonymous := NewGuard(fixedPredicates{}, cfg, WithNavigator(nav))
	assert.False(t, anonymous.Check(context.Background(), RouteMeta{RequiresAuth: true}))

	user := NewGuard(fixedPredicates{loggedIn: true}, cfg, WithNavigator(nav))
	assert.False(t, user.Check(context.Background(), RouteMeta{RequiresAuth: true, RequiresAdmin: true}))
	assert.True(t, user.Check(context.Background(), RouteMeta{RequiresAuth: true}))

	assert.Equal(t, []string{"/signin", "/home"}, nav.Routes())
}

func TestGuardReadsSessionOnEveryEvaluation(t *testing.T) {
	h := newHarness(t)
	meta := RouteMeta{RequiresAuth: true, RequiresAdmin: true}

	assert.Equal(t, Decision{Redirect: DefaultLoginRoute}, h.dc.Guard.Evaluate(meta))

	h.login(t, "alice", "secret")
	assert.Equal(t, Decision{Redirect: DefaultRoute}, h.dc.Guard.Evaluate(meta))

	h.login(t, "admin", "admin123")
	assert.Equal(t, Decision{Allow: true}, h.dc.Guard.Evaluate(meta))

	h.dc.Session.Logout(context.Background())
	assert.Equal(t, Decision{Redirect: DefaultLoginRoute}, h.dc.Guard.Evaluate(meta))
}

func restoreAs(t *testing.T, h *harness, user fakebackend.User) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.store.Set(ctx, DefaultTokenKey, h.backend.IssueToken(user, time.Hour)))
	require.NoError(t, h.dc.Session.Restore(ctx))
	require.True(t, h.dc.Session.IsLoggedIn())
	require.Nil(t, h.dc.Session.User())
}

func TestGuardLoadsIdentityOfRestoredSessionForAdminRoutes(t *testing.T) {
	h := newHarness(t)
	restoreAs(t, h, fakebackend.User{ID: 1, Username: "admin", Role: "admin"})
	meta := RouteMeta{Name: "categories.create", RequiresAuth: true, RequiresAdmin: true}

	assert.Equal(t, Decision{Redirect: DefaultRoute}, h.dc.Guard.Evaluate(meta), "no profile loaded yet")

	assert.True(t, h.dc.Guard.Check(context.Background(), meta))
	assert.True(t, h.dc.Session.IsAdmin())
	assert.Equal(t, Decision{Allow: true}, h.dc.Guard.Evaluate(meta))
	assert.Empty(t, h.nav.Routes())

	assert.True(t, h.dc.Guard.Check(context.Background(), meta))
	assert.Equal(t, 1, h.backend.Count(http.MethodGet, "/users/profile"))
}

func TestGuardRestoredRegularUserIsSentToDefaultRoute(t *testing.T) {
	h := newHarness(t)
	restoreAs(t, h, fakebackend.User{ID: 2, Username: "alice", Role: "user"})

	assert.False(t, h.dc.Guard.Check(context.Background(), RouteMeta{RequiresAuth: true, RequiresAdmin: true}))
	assert.True(t, h.dc.Session.IsLoggedIn())
	assert.Equal(t, []string{DefaultRoute}, h.nav.Routes())
}

func TestGuardRestoredSessionSkipsIdentityForRegularRoutes(t *testing.T) {
	h := newHarness(t)
	restoreAs(t, h, fakebackend.User{ID: 1, Username: "admin", Role: "admin"})

	assert.True(t, h.dc.Guard.Check(context.Background(), RouteMeta{RequiresAuth: true}))
	assert.Zero(t, h.backend.Count(http.MethodGet, "/users/profile"))
}

func TestGuardRevokedRestoredSessionRedirectsToLoginOnce(t *testing.T) {
	h := newHarness(t)
	restoreAs(t, h, fakebackend.User{ID: 1, Username: "admin", Role: "admin"})
	h.backend.Revoke(h.dc.Session.Token())

	assert.False(t, h.dc.Guard.Check(context.Background(), RouteMeta{RequiresAuth: true, RequiresAdmin: true}))
	assert.False(t, h.dc.Session.IsLoggedIn())
	assert.Empty(t, h.storedToken(t))
	assert.Equal(t, []string{DefaultLoginRoute}, h.nav.Routes())
}

func TestGuardIdentityFailureDeniesAdminRoute(t *testing.T) {
	h := newHarness(t)
	restoreAs(t, h, fakebackend.User{ID: 1, Username: "admin", Role: "admin"})
	h.backend.Override(http.MethodGet, "/users/profile", fakebackend.Response{Status: http.StatusInternalServerError})

	assert.False(t, h.dc.Guard.Check(context.Background(), RouteMeta{RequiresAuth: true, RequiresAdmin: true}))
	assert.False(t, h.dc.Session.IsLoggedIn())
	assert.Equal(t, []string{DefaultLoginRoute}, h.nav.Routes())
}
