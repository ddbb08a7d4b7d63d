package doclient

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-doclient/internal/fakebackend"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Navigate(_ context.Context, route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// Last returns the most recent event of the given type.
func (s *recordingSink) Last(eventType ActivityEventType) (ActivityEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].EventType == eventType {
			return s.events[i], true
		}
	}
	return ActivityEvent{}, false
}

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockTokenStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockTokenStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type harness struct {
	backend  *fakebackend.Server
	dc       *Doclient
	store    TokenStore
	nav      *recordingNavigator
	activity *recordingSink
}

// newHarness wires a Doclient against a fresh fake backend. Extra options
// are applied after the harness defaults.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	backend := fakebackend.New()
	t.Cleanup(backend.Close)

	h := &harness{
		backend:  backend,
		store:    NewMemoryTokenStore(),
		nav:      &recordingNavigator{},
		activity: &recordingSink{},
	}

	all := append([]Option{
		WithTokenStore(h.store),
		WithNavigator(h.nav),
		WithActivitySink(h.activity),
	}, opts...)

	dc, err := New(Options{BaseURL: backend.URL(), PerPage: 10}, all...)
	require.NoError(t, err)
	h.dc = dc
	return h
}

func (h *harness) login(t *testing.T, username, password string) {
	t.Helper()
	require.NoError(t, h.dc.Session.Login(context.Background(), username, password))
}

func (h *harness) storedToken(t *testing.T) string {
	t.Helper()
	token, err := h.store.Get(context.Background(), DefaultTokenKey)
	require.NoError(t, err)
	return token
}
