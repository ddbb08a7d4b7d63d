package doclient

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenSource exposes the bearer token attached to outbound calls.
type TokenSource interface {
	Token() string
}

// Teardowner ends a session after the backend rejected its credentials.
type Teardowner interface {
	Teardown(ctx context.Context, reason error)
}

// TokenStore is the durable key value storage backing a session. Get returns
// an empty string and a nil error when the key is absent.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Navigator receives navigation requests, e.g. the redirect to the login view
// after an authorization failure.
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, route string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, route string) {
	if f == nil {
		return
	}
	f(ctx, route)
}

// Config holds client options
type Config interface {
	GetBaseURL() string
	GetTimeout() time.Duration
	GetTokenKey() string
	GetLoginRoute() string
	GetDefaultRoute() string
	GetUserAgent() string
	GetPerPage() int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] DOCLIENT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] DOCLIENT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] DOCLIENT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] DOCLIENT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

type noopNavigator struct{}

func (noopNavigator) Navigate(context.Context, string) {}

// memoryTokenStore keeps the token for the lifetime of the process only.
type memoryTokenStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryTokenStore returns a TokenStore that does not survive restarts.
func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{values: map[string]string{}}
}

func (m *memoryTokenStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *memoryTokenStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryTokenStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
