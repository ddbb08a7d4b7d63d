package doclient

import (
	"context"
)

var clientCtxKey = &contextKey{"doclient"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithContext sets the Doclient in the given context
func WithContext(ctx context.Context, dc *Doclient) context.Context {
	return context.WithValue(ctx, clientCtxKey, dc)
}

// FromContext finds the Doclient from the context.
func FromContext(ctx context.Context) (*Doclient, bool) {
	raw, ok := ctx.Value(clientCtxKey).(*Doclient)
	return raw, ok && raw != nil
}

// WithSession sets the Session in the given context
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

// SessionFromContext extracts the Session from the context. A Doclient stored
// with WithContext also provides its session.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if s, ok := ctx.Value(sessionCtxKey).(*Session); ok && s != nil {
		return s, true
	}
	if dc, ok := FromContext(ctx); ok && dc.Session != nil {
		return dc.Session, true
	}
	return nil, false
}
