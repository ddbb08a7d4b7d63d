package doclient

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Doclient bundles one session with the stores and the guard that share it.
// Several Doclient values can coexist, each with its own session.
type Doclient struct {
	Client     *Client
	Session    *Session
	Documents  *DocumentStore
	Categories *CategoryStore
	Guard      *Guard
}

// New wires a client, a session, both resource stores and a guard for cfg.
// Configs exposing Validate are validated first.
func New(cfg Config, opts ...Option) (*Doclient, error) {
	if v, ok := cfg.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, goerrors.FromOzzoValidation(err, "invalid client options")
		}
	}

	client := NewClient(cfg, opts...)
	session := NewSession(client, cfg, opts...)

	return &Doclient{
		Client:     client,
		Session:    session,
		Documents:  NewDocumentStore(client, session, cfg, opts...),
		Categories: NewCategoryStore(client, cfg, opts...),
		Guard:      NewGuard(session, cfg, opts...),
	}, nil
}

// Option configures the components built by New and the New* constructors.
type Option func(*options)

type options struct {
	logger    Logger
	store     TokenStore
	navigator Navigator
	activity  ActivitySink
	transport http.RoundTripper
	tracer    trace.Tracer
	now       func() time.Time
}

func newOptions(opts ...Option) options {
	o := options{
		logger:    defLogger{},
		navigator: noopNavigator{},
		activity:  noopActivitySink{},
		transport: http.DefaultTransport,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.store == nil {
		o.store = NewMemoryTokenStore()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTokenStore sets the durable storage for the session token.
func WithTokenStore(store TokenStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithNavigator sets where redirects are signaled.
func WithNavigator(nav Navigator) Option {
	return func(o *options) {
		if nav != nil {
			o.navigator = nav
		}
	}
}

// WithActivitySink sets the sink that receives session events.
func WithActivitySink(sink ActivitySink) Option {
	return func(o *options) {
		o.activity = normalizeActivitySink(sink)
	}
}

// WithTransport sets the base transport wrapped by the interceptor.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithClock injects a custom clock, useful for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
