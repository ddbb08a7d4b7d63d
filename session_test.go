package doclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-doclient/internal/fakebackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionLoginStoresTokenAndProfile(t *testing.T) {
	h := newHarness(t)
	h.backend.Override(http.MethodPost, "/auth/login", fakebackend.Response{
		Body: map[string]any{
			"access_token": "t1",
			"user":         map[string]any{"id": 1, "username": "a", "role": "admin"},
		},
	})

	s := h.dc.Session
	require.NoError(t, s.Login(context.Background(), "a", "pw"))

	assert.Equal(t, "t1", s.Token())
	assert.True(t, s.IsLoggedIn())
	assert.True(t, s.IsAdmin())
	assert.Equal(t, StateAuthenticated, s.State())
	assert.Empty(t, s.LastError())
	assert.False(t, s.IsLoading())

	user := s.User()
	require.NotNil(t, user)
	assert.Equal(t, "1", user.ID)
	assert.Equal(t, "a", user.Username)
	assert.Equal(t, "t1", h.storedToken(t))

	req, ok := h.backend.LastRequest(http.MethodPost, "/auth/login")
	require.True(t, ok)
	assert.JSONEq(t, `{"username":"a","password":"pw"}`, string(req.Body))
	assert.Equal(t, "application/json", req.ContentType)
}

func TestSessionLoginDefaultsRole(t *testing.T) {
	h := newHarness(t)
	h.backend.Override(http.MethodPost, "/auth/login", fakebackend.Response{
		Body: map[string]any{
			"access_token": "t2",
			"user":         map[string]any{"id": 7, "username": "b"},
		},
	})

	s := h.dc.Session
	require.NoError(t, s.Login(context.Background(), "b", "pw"))
	assert.Equal(t, RoleUser, s.User().Role)
	assert.False(t, s.IsAdmin())
}

func TestSessionLoginFailureUsesServerMessage(t *testing.T) {
	h := newHarness(t)

	s := h.dc.Session
	err := s.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)

	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, "bad credentials", s.LastError())
	assert.Empty(t, s.Token())
	assert.Nil(t, s.User())
	assert.False(t, s.IsLoggedIn())
	assert.Equal(t, StateAnonymous, s.State())
	assert.Empty(t, h.storedToken(t))
	assert.Empty(t, h.nav.Routes(), "a rejected login does not redirect to the login view")
	assert.Contains(t, h.activity.Types(), ActivityEventTeardown)
}

func TestSessionLoginFailureFallsBackToGenericMessage(t *testing.T) {
	h := newHarness(t)
	h.backend.Override(http.MethodPost, "/auth/login", fakebackend.Response{Status: http.StatusInternalServerError})

	s := h.dc.Session
	require.Error(t, s.Login(context.Background(), "admin", "admin123"))
	assert.Equal(t, MessageLoginFailed, s.LastError())
	assert.False(t, s.IsLoggedIn())
}

func TestSessionLoginWithoutTokenFails(t *testing.T) {
	h := newHarness(t)
	h.backend.Override(http.MethodPost, "/auth/login", fakebackend.Response{
		Body: map[string]any{"user": map[string]any{"id": 1, "username": "a"}},
	})

	s := h.dc.Session
	err := s.Login(context.Background(), "a", "pw")
	require.Error(t, err)
	assert.Equal(t, MessageLoginFailed, s.LastError())
	assert.Nil(t, s.User())
}

func TestSessionLoginFailureNeverLeavesPartialSession(t *testing.T) {
	failures := []fakebackend.Response{
		{Status: http.StatusUnauthorized, Body: map[string]any{"message": "bad credentials"}},
		{Status: http.StatusBadRequest, Body: map[string]any{"message": "username and password are required"}},
		{Status: http.StatusInternalServerError, Raw: "not json"},
		{Status: http.StatusOK, Body: map[string]any{"access_token": ""}},
	}

	for _, failure := range failures {
		h := newHarness(t)
		h.login(t, "alice", "secret")
		require.True(t, h.dc.Session.IsLoggedIn())

		h.backend.Override(http.MethodPost, "/auth/login", failure)
		require.Error(t, h.dc.Session.Login(context.Background(), "alice", "secret"))

		assert.Empty(t, h.dc.Session.Token())
		assert.Nil(t, h.dc.Session.User())
		assert.Empty(t, h.storedToken(t))
	}
}

func TestSessionSuccessfulLoginPredicates(t *testing.T) {
	cases := []struct {
		username, password string
		admin              bool
	}{
		{"admin", "admin123", true},
		{"alice", "secret", false},
	}

	for _, tc := range cases {
		t.Run(tc.username, func(t *testing.T) {
			h := newHarness(t)
			h.login(t, tc.username, tc.password)

			s := h.dc.Session
			assert.True(t, s.IsLoggedIn())
			assert.Equal(t, tc.admin, s.IsAdmin())
			assert.Equal(t, tc.admin, s.User().Role == RoleAdmin)
		})
	}
}

func TestSessionLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", "secret")

	s := h.dc.Session
	s.Logout(context.Background())
	first := struct {
		state SessionState
		token string
		user  *UserProfile
	}{s.State(), s.Token(), s.User()}

	s.Logout(context.Background())
	assert.Equal(t, first.state, s.State())
	assert.Equal(t, first.token, s.Token())
	assert.Equal(t, first.user, s.User())

	assert.Equal(t, StateAnonymous, s.State())
	assert.Empty(t, s.Token())
	assert.Nil(t, s.User())
	assert.Empty(t, h.storedToken(t))

	assert.Equal(t, []ActivityEventType{ActivityEventLoginSuccess, ActivityEventLogout}, h.activity.Types())
}

func TestSessionLogoutMakesNoNetworkCall(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", "secret")
	before := len(h.backend.Requests())

	h.dc.Session.Logout(context.Background())
	assert.Len(t, h.backend.Requests(), before)
}

func TestSessionFetchIdentityWithoutToken(t *testing.T) {
	h := newHarness(t)

	profile, err := h.dc.Session.FetchIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, profile)
	assert.Empty(t, h.backend.Requests())
}

func TestSessionFetchIdentityMergesProfile(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", "secret")

	h.backend.Override(http.MethodGet, "/users/profile", fakebackend.Response{
		Body: map[string]any{"id": 2, "username": "alice", "role": "admin", "email": "a@example.com", "theme": "dark"},
	})

	profile, err := h.dc.Session.FetchIdentity(context.Background())
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, RoleAdmin, profile.Role)
	assert.Equal(t, "dark", profile.Extra["theme"])
	assert.True(t, h.dc.Session.IsAdmin())

	req, ok := h.backend.LastRequest(http.MethodGet, "/users/profile")
	require.True(t, ok)
	assert.Equal(t, "Bearer "+h.dc.Session.Token(), req.Authorization)
}

func TestSessionFetchIdentityUnwrapsUserEnvelope(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin", "admin123")

	profile, err := h.dc.Session.FetchIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", profile.Username)
	assert.True(t, profile.Can("category_manage"))
	require.NotNil(t, profile.CreatedAt)
	assert.Equal(t, 2024, profile.CreatedAt.Year())
}

func TestSessionFetchIdentityFailureLogsOut(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", "secret")

	h.backend.Override(http.MethodGet, "/users/profile", fakebackend.Response{
		Status: http.StatusInternalServerError,
		Body:   map[string]any{"message": "boom"},
	})

	profile, err := h.dc.Session.FetchIdentity(context.Background())
	require.Error(t, err)
	assert.Nil(t, profile)
	assert.Equal(t, "boom", FailureMessage(err))

	assert.False(t, h.dc.Session.IsLoggedIn())
	assert.Nil(t, h.dc.Session.User())
	assert.Empty(t, h.storedToken(t))
	assert.Contains(t, h.activity.Types(), ActivityEventIdentityFailure)
}

func TestSessionFetchIdentityUnauthorizedReportsLoggedOut(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", "secret")
	h.backend.Override(http.MethodGet, "/users/profile", fakebackend.Response{
		Status: http.StatusUnauthorized,
		Body:   map[string]any{"message": "token expired"},
	})

	_, err := h.dc.Session.FetchIdentity(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, h.dc.Session.IsLoggedIn())
	assert.Equal(t, []string{DefaultLoginRoute}, h.nav.Routes())

	event, ok := h.activity.Last(ActivityEventIdentityFailure)
	require.True(t, ok)
	assert.Equal(t, true, event.Metadata["logged_out"])
}

func TestSessionEnsureIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	profile, err := h.dc.Session.EnsureIdentity(ctx)
	require.NoError(t, err)
	assert.Nil(t, profile)
	assert.Zero(t, h.backend.Count(http.MethodGet, "/users/profile"))

	token := h.backend.IssueToken(fakebackend.User{ID: 1, Username: "admin", Role: "admin"}, time.Hour)
	require.NoError(t, h.store.Set(ctx, DefaultTokenKey, token))
	require.NoError(t, h.dc.Session.Restore(ctx))

	profile, err = h.dc.Session.EnsureIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin", profile.Username)
	assert.True(t, h.dc.Session.IsAdmin())

	_, err = h.dc.Session.EnsureIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.backend.Count(http.MethodGet, "/users/profile"))
}

func TestSessionChangePassword(t *testing.T) {
	h := newHarness(t)
	s := h.dc.Session
	ctx := context.Background()

	err := s.ChangePassword(ctx, PasswordChange{OldPassword: "secret", NewPassword: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, "request error: not logged in", s.LastError())
	assert.Zero(t, h.backend.Count(http.MethodPost, "/auth/change-password"))

	h.login(t, "alice", "secret")

	err = s.ChangePassword(ctx, PasswordChange{OldPassword: "secret", NewPassword: "secret"})
	require.Error(t, err)
	assert.Equal(t, FailureRequest, Classify(err))
	assert.Zero(t, h.backend.Count(http.MethodPost, "/auth/change-password"))

	err = s.ChangePassword(ctx, PasswordChange{OldPassword: "wrong", NewPassword: "s3cret"})
	require.Error(t, err)
	assert.Equal(t, "old password is incorrect", s.LastError())
	assert.True(t, s.IsLoggedIn())

	require.NoError(t, s.ChangePassword(ctx, PasswordChange{OldPassword: "secret", NewPassword: "s3cret"}))
	assert.Empty(t, s.LastError())
	assert.True(t, s.IsLoggedIn())
	assert.Contains(t, h.activity.Types(), ActivityEventPasswordChanged)

	require.Error(t, s.Login(ctx, "alice", "secret"))
	h.login(t, "alice", "s3cret")
}

func TestSessionUpdateProfile(t *testing.T) {
	h := newHarness(t)
	s := h.dc.Session
	ctx := context.Background()
	h.login(t, "alice", "secret")

	bad := "not-an-email"
	require.Error(t, s.UpdateProfile(ctx, ProfileUpdate{Email: &bad}))
	assert.Contains(t, s.LastError(), "request error")

	taken := "admin@example.com"
	require.Error(t, s.UpdateProfile(ctx, ProfileUpdate{Email: &taken}))
	assert.Equal(t, "email already in use", s.LastError())
	assert.Equal(t, "alice@example.com", s.User().Email)

	email := "alice@corp.example.com"
	require.NoError(t, s.UpdateProfile(ctx, ProfileUpdate{Email: &email}))
	assert.Equal(t, email, s.User().Email)
	assert.Empty(t, s.LastError())

	profile, err := s.FetchIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, email, profile.Email)
}

func TestSessionFetchIdentityDiscardedAfterNewLogin(t *testing.T) {
	h := newHarness(t)
	h.login(t, "alice", "secret")

	release := make(chan struct{})
	h.backend.Override(http.MethodGet, "/users/profile", fakebackend.Response{
		Status: http.StatusInternalServerError,
		Hold:   release,
	})

	done := make(chan error, 1)
	go func() {
		_, err := h.dc.Session.FetchIdentity(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		return h.backend.Count(http.MethodGet, "/users/profile") == 1
	}, time.Second, 5*time.Millisecond)

	h.login(t, "admin", "admin123")
	close(release)
	require.Error(t, <-done)

	assert.True(t, h.dc.Session.IsLoggedIn())
	assert.True(t, h.dc.Session.IsAdmin())
	assert.NotEmpty(t, h.storedToken(t))
}

func TestSessionRestoreLoadsDurableToken(t *testing.T) {
	backend := fakebackend.New()
	t.Cleanup(backend.Close)

	store := NewMemoryTokenStore()
	token := backend.IssueToken(fakebackend.User{ID: 2, Username: "alice", Role: "user"}, time.Hour)
	require.NoError(t, store.Set(context.Background(), "doclient.token", token))

	dc, err := New(Options{BaseURL: backend.URL(), TokenKey: "doclient.token"}, WithTokenStore(store))
	require.NoError(t, err)

	s := dc.Session
	require.NoError(t, s.Restore(context.Background()))
	assert.True(t, s.IsLoggedIn())
	assert.Nil(t, s.User())

	claims, err := s.Claims()
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.False(t, s.Expired())

	profile, err := s.FetchIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
}

func TestSessionRestoreWithoutTokenStaysAnonymous(t *testing.T) {
	store := &MockTokenStore{}
	store.On("Get", mock.Anything, DefaultTokenKey).Return("", nil).Once()

	s := NewSession(nil, Options{}, WithTokenStore(store))
	require.NoError(t, s.Restore(context.Background()))
	assert.False(t, s.IsLoggedIn())
	assert.Equal(t, StateAnonymous, s.State())
	store.AssertExpectations(t)
}

func TestSessionRestorePropagatesStoreError(t *testing.T) {
	store := &MockTokenStore{}
	store.On("Get", mock.Anything, DefaultTokenKey).Return("", errors.New("disk gone")).Once()

	s := NewSession(nil, Options{}, WithTokenStore(store))
	require.Error(t, s.Restore(context.Background()))
	assert.False(t, s.IsLoggedIn())
}

func TestSessionExpiredUsesClock(t *testing.T) {
	backend := fakebackend.New()
	t.Cleanup(backend.Close)

	token := backend.IssueToken(fakebackend.User{ID: 1, Username: "admin", Role: "admin"}, time.Minute)
	store := NewMemoryTokenStore()
	require.NoError(t, store.Set(context.Background(), DefaultTokenKey, token))

	later := time.Now().Add(time.Hour)
	s := NewSession(nil, Options{}, WithTokenStore(store), WithClock(func() time.Time { return later }))
	require.NoError(t, s.Restore(context.Background()))
	assert.True(t, s.Expired())
}

func TestSessionPersistErrorDoesNotFailLogin(t *testing.T) {
	store := &MockTokenStore{}
	store.On("Set", mock.Anything, DefaultTokenKey, mock.Anything).Return(errors.New("read only")).Once()

	h := newHarness(t, WithTokenStore(store))
	require.NoError(t, h.dc.Session.Login(context.Background(), "alice", "secret"))
	assert.True(t, h.dc.Session.IsLoggedIn())
	store.AssertExpectations(t)
}

func TestSessionRegister(t *testing.T) {
	h := newHarness(t)
	s := h.dc.Session

	require.NoError(t, s.Register(context.Background(), Registration{Username: "bob", Password: "pw", Email: "bob@example.com"}))
	assert.False(t, s.IsLoggedIn())
	h.login(t, "bob", "pw")

	err := s.Register(context.Background(), Registration{Username: "bob", Password: "pw"})
	require.Error(t, err)
	assert.Equal(t, "username already exists", s.LastError())

	err = s.Register(context.Background(), Registration{Username: "carol", Email: "nope"})
	require.Error(t, err)
	assert.Equal(t, FailureRequest, Classify(err))
	assert.Contains(t, s.LastError(), "request error")
	assert.Equal(t, 2, h.backend.Count(http.MethodPost, "/auth/register"))
}

func TestSessionsAreIndependent(t *testing.T) {
	a := newHarness(t)
	b := newHarness(t)

	a.login(t, "admin", "admin123")
	assert.True(t, a.dc.Session.IsLoggedIn())
	assert.False(t, b.dc.Session.IsLoggedIn())
}
