package doclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-print"
)

// Client issues calls against the backend. Every call goes through the
// Interceptor, so credentials are attached from the bound session at call
// time and a 401 tears the session down.
type Client struct {
	baseURL     string
	userAgent   string
	http        *http.Client
	interceptor *Interceptor
	logger      Logger
}

// CallOption customizes a single call.
type CallOption func(*callOptions)

type callOptions struct {
	header http.Header
	query  url.Values
}

// WithBearer attaches token explicitly, in addition to whatever the
// interceptor attaches.
func WithBearer(token string) CallOption {
	return func(o *callOptions) {
		if token != "" {
			o.header.Set(authorizationHeader, bearer(token))
		}
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		o.header.Set(key, value)
	}
}

// WithQuery adds query parameters to the call.
func WithQuery(values url.Values) CallOption {
	return func(o *callOptions) {
		for k, vs := range values {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// NewClient builds a Client for cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	o := newOptions(opts...)
	interceptor := NewInterceptor(o.transport, opts...)

	return &Client{
		baseURL:   cfg.GetBaseURL(),
		userAgent: cfg.GetUserAgent(),
		http: &http.Client{
			Timeout:   cfg.GetTimeout(),
			Transport: interceptor,
		},
		interceptor: interceptor,
		logger:      o.logger,
	}
}

// Bind wires the session capabilities into the client's interceptor.
func (c *Client) Bind(tokens TokenSource, teardown Teardowner) {
	c.interceptor.Bind(tokens, teardown)
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.Send(ctx, http.MethodGet, path, nil, "", out, opts...)
}

// Post encodes body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.sendJSON(ctx, http.MethodPost, path, body, out, opts...)
}

// Put encodes body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.sendJSON(ctx, http.MethodPut, path, body, out, opts...)
}

// Delete issues a DELETE and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.Send(ctx, http.MethodDelete, path, nil, "", out, opts...)
}

// Send issues a call with a raw body. An empty contentType keeps the JSON
// default. Error statuses come back as HTTP_STATUS errors carrying the body
// message, transport failures as NETWORK_ERROR or REQUEST_ERROR.
func (c *Client) Send(ctx context.Context, method, path string, body io.Reader, contentType string, out any, opts ...CallOption) error {
	res, err := c.do(ctx, method, path, body, contentType, opts...)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return newNetworkError(err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		return newStatusError(res.StatusCode, bodyMessage(raw))
	}

	c.logger.Debug("%s %s payload: %s", method, path, print.MaybePrettyJSON(decodeObject(raw)))
	decodeInto(raw, out)
	return nil
}

// Download streams the response body into w and returns the bytes written.
func (c *Client) Download(ctx context.Context, path string, w io.Writer, opts ...CallOption) (int64, error) {
	res, err := c.do(ctx, http.MethodGet, path, nil, "", opts...)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(res.Body)
		return 0, newStatusError(res.StatusCode, bodyMessage(raw))
	}

	n, err := io.Copy(w, res.Body)
	if err != nil {
		return n, newNetworkError(err)
	}
	return n, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any, opts ...CallOption) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return newRequestError(err)
		}
		reader = bytes.NewReader(payload)
	}
	return c.Send(ctx, method, path, reader, "", out, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, opts ...CallOption) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body, contentType, opts...)
	if err != nil {
		return nil, newRequestError(err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	return res, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string, opts ...CallOption) (*http.Request, error) {
	co := &callOptions{
		header: http.Header{},
		query:  url.Values{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(co)
		}
	}

	endpoint := c.endpoint(path)
	if len(co.query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + co.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = defaultContentType
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", defaultContentType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, vs := range co.header {
		req.Header[k] = vs
	}

	return req, nil
}

func (c *Client) endpoint(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// bodyMessage extracts the "message" field of an error body.
func bodyMessage(raw []byte) string {
	msg, _ := decodeObject(raw)["message"].(string)
	return msg
}

// decodeInto is tolerant: a body that does not match out leaves out as is.
func decodeInto(raw []byte, out any) {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return
	}
	if rm, ok := out.(*json.RawMessage); ok {
		*rm = append((*rm)[:0], raw...)
		return
	}
	_ = json.Unmarshal(raw, out)
}
