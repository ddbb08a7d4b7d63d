package doclient

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/go-doclient"

var _ http.RoundTripper = &Interceptor{}

// Interceptor wraps every outbound call. The request stage attaches the
// current bearer token, the response stage tears the session down when the
// backend answers 401. It owns no session state: it reads the token through a
// TokenSource and reacts through a Teardowner.
type Interceptor struct {
	base   http.RoundTripper
	tracer trace.Tracer
	logger Logger

	mu       sync.RWMutex
	tokens   TokenSource
	teardown Teardowner
}

// NewInterceptor wraps base, http.DefaultTransport when nil.
func NewInterceptor(base http.RoundTripper, opts ...Option) *Interceptor {
	o := newOptions(opts...)
	if base == nil {
		base = o.transport
	}
	return &Interceptor{
		base:   base,
		tracer: o.tracer,
		logger: o.logger,
	}
}

// Bind sets the token lookup and the teardown capability. Either may be nil.
func (i *Interceptor) Bind(tokens TokenSource, teardown Teardowner) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tokens = tokens
	i.teardown = teardown
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// mutated, and errors from the base transport are returned unchanged.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := i.tracer.Start(req.Context(), "doclient "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
		),
	)
	defer span.End()

	out := i.prepare(ctx, req)

	res, err := i.base.RoundTrip(out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.logger.Debug("%s %s failed: %v", req.Method, req.URL.Path, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	i.logger.Debug("%s %s -> %d (request id %s)", req.Method, req.URL.Path, res.StatusCode, out.Header.Get(requestIDHeader))

	if res.StatusCode == http.StatusUnauthorized {
		span.SetStatus(codes.Error, "unauthorized")
		i.onUnauthorized(ctx)
	}

	return res, nil
}

// prepare is the request stage. It performs no I/O.
func (i *Interceptor) prepare(ctx context.Context, req *http.Request) *http.Request {
	out := req.Clone(ctx)

	if out.Header.Get(requestIDHeader) == "" {
		out.Header.Set(requestIDHeader, uuid.NewString())
	}

	if token := i.token(); token != "" {
		out.Header.Set(authorizationHeader, bearer(token))
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	return out
}

func (i *Interceptor) onUnauthorized(ctx context.Context) {
	i.mu.RLock()
	teardown := i.teardown
	i.mu.RUnlock()

	if teardown == nil {
		i.logger.Warn("backend returned 401 but no session is bound")
		return
	}

	// the teardown must complete even if the caller gives up on the request
	teardown.Teardown(context.WithoutCancel(ctx), ErrUnauthorized)
}

func (i *Interceptor) token() string {
	i.mu.RLock()
	tokens := i.tokens
	i.mu.RUnlock()

	if tokens == nil {
		return ""
	}
	return tokens.Token()
}

func bearer(token string) string {
	return "Bearer " + token
}
