package doclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeHTTPStatus     = "HTTP_STATUS"
	TextCodeNetwork        = "NETWORK_ERROR"
	TextCodeRequest        = "REQUEST_ERROR"
	TextCodeMissingToken   = "MISSING_ACCESS_TOKEN"
	TextCodeMalformedToken = "MALFORMED_TOKEN"
)

// Display messages stored on the stores when an action fails.
const (
	MessageNetworkError     = "network error: unable to reach the server"
	MessageLoginFailed      = "login failed, check username and password"
	MessageFetchDocuments   = "failed to fetch documents"
	MessageFetchDocument    = "failed to fetch document"
	MessageFetchCategories  = "failed to fetch categories"
	MessagePreviewDocument  = "failed to preview document"
	messageRequestErrorFmt  = "request error: %s"
	messageStatusFailureFmt = "operation failed: HTTP %d"
)

// ErrMissingAccessToken is returned when a login response carries no token.
var ErrMissingAccessToken = goerrors.New("login response did not include an access token", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoSession is returned by account actions called without a token.
var ErrNoSession = goerrors.New(fmt.Sprintf(messageRequestErrorFmt, "not logged in"), goerrors.CategoryAuth).
	WithTextCode(TextCodeRequest).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthorized is the teardown reason reported by the interceptor.
var ErrUnauthorized = goerrors.New("backend rejected the session credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeHTTPStatus).
	WithCode(http.StatusUnauthorized)

// FailureKind is the bucket a failed call falls into.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureResponse means the server answered with an error status.
	FailureResponse
	// FailureNetwork means the request was sent but no response arrived.
	FailureNetwork
	// FailureRequest means the request could not be built or sent.
	FailureRequest
)

func (k FailureKind) String() string {
	switch k {
	case FailureResponse:
		return "response"
	case FailureNetwork:
		return "network"
	case FailureRequest:
		return "request"
	default:
		return "none"
	}
}

func newStatusError(status int, serverMessage string) *goerrors.Error {
	message := serverMessage
	if message == "" {
		message = fmt.Sprintf(messageStatusFailureFmt, status)
	}

	return statusBaseError(status, message).
		WithTextCode(TextCodeHTTPStatus).
		WithCode(status).
		WithMetadata(map[string]any{
			"status":         status,
			"server_message": serverMessage,
		})
}

func newNetworkError(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, MessageNetworkError).
		WithTextCode(TextCodeNetwork)
}

func newRequestError(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, fmt.Sprintf(messageRequestErrorFmt, err.Error())).
		WithTextCode(TextCodeRequest)
}

// newValidationError turns an ozzo validation failure into a request error
// listing the offending fields.
func newValidationError(err error) *goerrors.Error {
	return goerrors.FromOzzoValidation(err, fmt.Sprintf(messageRequestErrorFmt, err.Error())).
		WithTextCode(TextCodeRequest)
}

// transportError sorts an http.Client.Do failure into the network or the
// request bucket.
func transportError(err error) *goerrors.Error {
	inner := err
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) && urlErr.Err != nil {
		inner = urlErr.Err
	}

	var netErr net.Error
	switch {
	case stderrors.As(inner, &netErr),
		stderrors.Is(inner, io.EOF),
		stderrors.Is(inner, io.ErrUnexpectedEOF),
		stderrors.Is(inner, context.DeadlineExceeded),
		stderrors.Is(inner, context.Canceled):
		return newNetworkError(err)
	default:
		return newRequestError(err)
	}
}

func statusBaseError(status int, message string) *goerrors.Error {
	switch status {
	case http.StatusUnauthorized:
		return goerrors.New(message, goerrors.CategoryAuth)
	case http.StatusForbidden:
		return goerrors.New(message, goerrors.CategoryAuthz)
	case http.StatusNotFound:
		return goerrors.New(message, goerrors.CategoryNotFound)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return goerrors.New(message, goerrors.CategoryValidation)
	case http.StatusConflict:
		return goerrors.New(message, goerrors.CategoryConflict)
	case http.StatusTooManyRequests:
		return goerrors.New(message, goerrors.CategoryRateLimit)
	default:
		return goerrors.New(message, goerrors.CategoryOperation)
	}
}

// StatusCode returns the HTTP status carried by err, or 0 when the server
// never answered.
func StatusCode(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != TextCodeHTTPStatus {
		return 0
	}
	return richErr.Code
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// ServerMessage returns the message the backend put in the error body.
func ServerMessage(err error) (string, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return "", false
	}
	msg, ok := richErr.Metadata["server_message"].(string)
	if !ok || msg == "" {
		return "", false
	}
	return msg, true
}

// Classify returns the bucket err falls into.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.TextCode {
		case TextCodeHTTPStatus:
			return FailureResponse
		case TextCodeNetwork:
			return FailureNetwork
		}
	}
	return FailureRequest
}

// FailureMessage is the single display message stored for a failed mutation:
// the server message or "operation failed: HTTP <status>", the fixed network
// text, or the local request error text.
func FailureMessage(err error) string {
	switch Classify(err) {
	case FailureNone:
		return ""
	case FailureResponse:
		if msg, ok := ServerMessage(err); ok {
			return msg
		}
		return fmt.Sprintf(messageStatusFailureFmt, StatusCode(err))
	case FailureNetwork:
		return MessageNetworkError
	default:
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeRequest {
			return richErr.Message
		}
		return fmt.Sprintf(messageRequestErrorFmt, err.Error())
	}
}

// fetchMessage is the display message stored for a failed read: the server
// message when present, else the fallback.
func fetchMessage(err error, fallback string) string {
	if msg, ok := ServerMessage(err); ok {
		return msg
	}
	return fallback
}
