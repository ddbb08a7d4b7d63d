package doclient

import (
	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_SESSION_STATE_TRANSITION"

// ErrInvalidTransition is returned when a session state change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// SessionState is the authentication state of a Session.
type SessionState string

const (
	StateAnonymous      SessionState = "anonymous"
	StateAuthenticating SessionState = "authenticating"
	StateAuthenticated  SessionState = "authenticated"
)

func (s SessionState) String() string {
	return string(s)
}

// sessionTransitions is the transition graph. Staying in the same state is
// always allowed.
var sessionTransitions = map[SessionState]map[SessionState]struct{}{
	StateAnonymous: {
		StateAuthenticating: {},
		// restored token or identity refresh
		StateAuthenticated: {},
	},
	StateAuthenticating: {
		StateAuthenticated: {},
		StateAnonymous:     {},
	},
	StateAuthenticated: {
		StateAuthenticating: {},
		StateAnonymous:      {},
	},
}

// validateTransition checks if the session may move from one state to another.
func validateTransition(from, to SessionState) error {
	if from == to {
		return nil
	}
	if _, ok := sessionTransitions[from][to]; ok {
		return nil
	}
	return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
		"from": from.String(),
		"to":   to.String(),
	})
}
