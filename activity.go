package doclient

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported session events.
type ActivityEventType string

const (
	ActivityEventLoginSuccess      ActivityEventType = "session.login.success"
	ActivityEventLoginFailure      ActivityEventType = "session.login.failure"
	ActivityEventLogout            ActivityEventType = "session.logout"
	ActivityEventTeardown          ActivityEventType = "session.teardown"
	ActivityEventIdentityRefreshed ActivityEventType = "session.identity.refreshed"
	ActivityEventIdentityFailure   ActivityEventType = "session.identity.failure"
	ActivityEventPasswordChanged   ActivityEventType = "session.password.changed"
	ActivityEventProfileUpdated    ActivityEventType = "session.profile.updated"
)

// ActivityEvent captures what happened to a session.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Username   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes session events for auditing or telemetry. Sinks run
// best effort, errors are logged and never fail the session action.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
