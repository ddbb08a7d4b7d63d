package activitymap

import (
	"context"
	"maps"
	"strings"
	"time"

	doclient "github.com/goliatone/go-doclient"
)

const (
	// MetadataKeyUsername stores the username of the session owner.
	MetadataKeyUsername = "username"
	// MetadataKeyOutcome is "failure" for failed session actions.
	MetadataKeyOutcome = "outcome"
)

const (
	defaultChannel    = "doclient"
	defaultObjectType = "session"
	defaultActorID    = "anonymous"
)

// Normalized is a transport agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	objectID      string
	actorFallback string
}

// Normalize converts a session event into the normalized shape.
func Normalize(event doclient.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.UserID), options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   options.objectID,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithChannel sets the channel of normalized records.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithObjectID tags records with the session they belong to, e.g. the
// backend base address or a token store key.
func WithObjectID(id string) Option {
	return func(opts *normalizeOptions) {
		opts.objectID = strings.TrimSpace(id)
	}
}

// WithActorFallback sets the actor id used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// Sink adapts fn to doclient.ActivitySink, normalizing every event first.
func Sink(fn func(Normalized) error, opts ...Option) doclient.ActivitySink {
	return doclient.ActivitySinkFunc(func(_ context.Context, event doclient.ActivityEvent) error {
		return fn(Normalize(event, opts...))
	})
}

func normalizeMetadata(event doclient.ActivityEvent) map[string]any {
	var metadata map[string]any
	if len(event.Metadata) > 0 {
		metadata = maps.Clone(event.Metadata)
	}

	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	if username := strings.TrimSpace(event.Username); username != "" {
		set(MetadataKeyUsername, username)
	}

	switch event.EventType {
	case doclient.ActivityEventLoginFailure, doclient.ActivityEventIdentityFailure:
		set(MetadataKeyOutcome, "failure")
	}

	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
