package doclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	loginPath   = "/auth/login"
	profilePath = "/users/profile"
)

var _ TokenSource = &Session{}
var _ Teardowner = &Session{}

// Session owns the bearer token and the user identity. Token absent implies
// user absent; every path that clears one clears both under the same lock.
//
// Each time the session is replaced (login, logout, teardown) its epoch moves
// forward. An identity refresh started under an older epoch is discarded, so
// a slow refresh can neither overwrite nor log out a newer session.
type Session struct {
	client     *Client
	store      TokenStore
	tokenKey   string
	loginRoute string
	navigator  Navigator
	activity   ActivitySink
	logger     Logger
	now        func() time.Time

	mu      sync.RWMutex
	token   string
	user    *UserProfile
	state   SessionState
	err     string
	loading int
	epoch   uint64
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	User        json.RawMessage `json:"user"`
}

// NewSession creates an anonymous session and binds it to the client, so the
// client's calls carry this session's token and a 401 tears it down.
func NewSession(client *Client, cfg Config, opts ...Option) *Session {
	o := newOptions(opts...)
	s := &Session{
		client:     client,
		store:      o.store,
		tokenKey:   cfg.GetTokenKey(),
		loginRoute: cfg.GetLoginRoute(),
		navigator:  o.navigator,
		activity:   o.activity,
		logger:     o.logger,
		now:        o.now,
		state:      StateAnonymous,
	}
	if client != nil {
		client.Bind(s, s)
	}
	return s
}

// Restore loads a token persisted by an earlier process. An absent key leaves
// the session anonymous. The profile is not loaded, call FetchIdentity for it.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.store.Get(ctx, s.tokenKey)
	if err != nil {
		s.logger.Error("session restore error: %v", err)
		return err
	}
	if token == "" {
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.user = nil
	s.epoch++
	s.setStateLocked(StateAuthenticated)
	s.mu.Unlock()

	s.logger.Debug("session restored from durable storage")
	return nil
}

// Login exchanges credentials for a token. Either field may be empty, the
// backend validates them. On failure the session ends anonymous and LastError
// holds the backend message or MessageLoginFailed.
func (s *Session) Login(ctx context.Context, username, password string) error {
	s.begin(StateAuthenticating)
	defer s.end()

	var res loginResponse
	err := s.client.Post(ctx, loginPath, loginRequest{Username: username, Password: password}, &res)
	if err == nil && res.AccessToken == "" {
		err = ErrMissingAccessToken
	}

	if err != nil {
		message := MessageLoginFailed
		if msg, ok := ServerMessage(err); ok {
			message = msg
		}

		s.mu.Lock()
		s.resetLocked()
		s.err = message
		s.mu.Unlock()

		s.forgetToken(ctx)
		s.logger.Warn("login failed for %q: %v", username, err)
		s.emit(ctx, ActivityEventLoginFailure, nil, map[string]any{
			"username": username,
			"error":    message,
		})
		return err
	}

	profile := MergeProfile(decodeObject(res.User))

	s.mu.Lock()
	s.token = res.AccessToken
	s.user = profile
	s.epoch++
	s.setStateLocked(StateAuthenticated)
	s.mu.Unlock()

	if err := s.store.Set(ctx, s.tokenKey, res.AccessToken); err != nil {
		s.logger.Error("login could not persist token: %v", err)
	}

	s.emit(ctx, ActivityEventLoginSuccess, profile, map[string]any{
		"role": profile.Role,
	})
	return nil
}

// Logout clears the token, the user and the durable token. It makes no
// network call and is idempotent.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	user := s.user
	active := s.token != "" || s.user != nil
	s.resetLocked()
	s.mu.Unlock()

	s.forgetToken(ctx)

	if active {
		s.emit(ctx, ActivityEventLogout, user, nil)
	}
}

// FetchIdentity refreshes the profile of the current session. Without a
// token it returns (nil, nil). On failure the session is logged out and the
// error is returned so the caller can decide how to react.
func (s *Session) FetchIdentity(ctx context.Context) (*UserProfile, error) {
	s.mu.RLock()
	token := s.token
	epoch := s.epoch
	s.mu.RUnlock()

	if token == "" {
		return nil, nil
	}

	s.begin("")
	defer s.end()

	var raw json.RawMessage
	if err := s.client.Get(ctx, profilePath, &raw); err != nil {
		s.mu.Lock()
		current := s.epoch == epoch
		user := s.user
		if current {
			s.resetLocked()
		}
		loggedOut := s.token == ""
		s.mu.Unlock()

		if current {
			s.forgetToken(ctx)
		}
		s.logger.Warn("identity refresh failed: %v", err)
		s.emit(ctx, ActivityEventIdentityFailure, user, map[string]any{
			"error":      err.Error(),
			"logged_out": loggedOut,
		})
		return nil, err
	}

	payload := decodeObject(raw)
	if nested, ok := payload["user"].(map[string]any); ok {
		payload = nested
	}
	profile := MergeProfile(payload)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("identity refresh discarded, session was replaced")
		return profile.Clone(), nil
	}
	s.user = profile
	s.setStateLocked(StateAuthenticated)
	s.mu.Unlock()

	s.emit(ctx, ActivityEventIdentityRefreshed, profile, nil)
	return profile.Clone(), nil
}

// EnsureIdentity returns the current profile, loading it first when a token
// is held without one, as after Restore. Errors are those of FetchIdentity.
func (s *Session) EnsureIdentity(ctx context.Context) (*UserProfile, error) {
	s.mu.RLock()
	token, user := s.token, s.user
	s.mu.RUnlock()

	if token == "" || user != nil {
		return user.Clone(), nil
	}
	return s.FetchIdentity(ctx)
}

// Teardown implements Teardowner. It clears the session like Logout and
// signals a navigation to the login route, unless a login is in progress.
func (s *Session) Teardown(ctx context.Context, reason error) {
	s.mu.Lock()
	user := s.user
	navigate := s.state != StateAuthenticating
	s.resetLocked()
	s.mu.Unlock()

	s.forgetToken(ctx)

	meta := map[string]any{}
	if reason != nil {
		meta["reason"] = reason.Error()
	}
	s.logger.Warn("session teardown: %v", reason)
	s.emit(ctx, ActivityEventTeardown, user, meta)

	if navigate {
		s.navigator.Navigate(ctx, s.loginRoute)
	}
}

// Token implements TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the current profile, nil when absent.
func (s *Session) User() *UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the display message of the last failed session action.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Session) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// IsLoggedIn reports whether a token is held.
func (s *Session) IsLoggedIn() bool {
	return s.Token() != ""
}

// IsAdmin reports whether a user is present with the admin role.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.IsAdmin()
}

// Can checks a permission granted on the current profile.
func (s *Session) Can(permission string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Can(permission)
}

// Claims decodes the claims of the current token.
func (s *Session) Claims() (*TokenClaims, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrMissingAccessToken
	}
	return ParseTokenClaims(token)
}

// Expired reports whether the current token carries an exp claim in the
// past. Tokens that cannot be decoded are left to the backend to reject.
func (s *Session) Expired() bool {
	claims, err := s.Claims()
	if err != nil {
		return false
	}
	return claims.ExpiredAt(s.now())
}

func (s *Session) begin(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading++
	s.err = ""
	if state != "" {
		s.setStateLocked(state)
	}
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading > 0 {
		s.loading--
	}
}

func (s *Session) resetLocked() {
	s.token = ""
	s.user = nil
	s.epoch++
	s.setStateLocked(StateAnonymous)
}

func (s *Session) setStateLocked(to SessionState) {
	if err := validateTransition(s.state, to); err != nil {
		s.logger.Warn("session state: %v", err)
	}
	s.state = to
}

func (s *Session) forgetToken(ctx context.Context) {
	if err := s.store.Delete(ctx, s.tokenKey); err != nil {
		s.logger.Error("could not remove durable token: %v", err)
	}
}

func (s *Session) emit(ctx context.Context, eventType ActivityEventType, user *UserProfile, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}
	if user != nil {
		event.UserID = user.ID
		event.Username = user.Username
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
