package doclient

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultTokenKey     = "token"
	DefaultLoginRoute   = "/login"
	DefaultRoute        = "/"
	DefaultPerPage      = 20
	DefaultUserAgent    = "go-doclient"
	defaultContentType  = "application/json"
	authorizationHeader = "Authorization"
	requestIDHeader     = "X-Request-ID"
)

var _ Config = Options{}

// Options is the plain struct implementation of Config. Zero values fall
// back to the package defaults.
type Options struct {
	BaseURL      string        `mapstructure:"base_url" json:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
	TokenKey     string        `mapstructure:"token_key" json:"token_key"`
	LoginRoute   string        `mapstructure:"login_route" json:"login_route"`
	DefaultRoute string        `mapstructure:"default_route" json:"default_route"`
	UserAgent    string        `mapstructure:"user_agent" json:"user_agent"`
	PerPage      int           `mapstructure:"per_page" json:"per_page"`
}

func (o Options) GetBaseURL() string {
	return strings.TrimRight(o.BaseURL, "/")
}

func (o Options) GetTimeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o Options) GetTokenKey() string {
	if o.TokenKey == "" {
		return DefaultTokenKey
	}
	return o.TokenKey
}

func (o Options) GetLoginRoute() string {
	if o.LoginRoute == "" {
		return DefaultLoginRoute
	}
	return o.LoginRoute
}

func (o Options) GetDefaultRoute() string {
	if o.DefaultRoute == "" {
		return DefaultRoute
	}
	return o.DefaultRoute
}

func (o Options) GetUserAgent() string {
	if o.UserAgent == "" {
		return DefaultUserAgent
	}
	return o.UserAgent
}

func (o Options) GetPerPage() int {
	if o.PerPage <= 0 {
		return DefaultPerPage
	}
	return o.PerPage
}

// Validate checks the options before a client is built from them.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.BaseURL, validation.Required, is.URL),
		validation.Field(&o.PerPage, validation.Min(0), validation.Max(500)),
		validation.Field(&o.LoginRoute, validation.Length(0, 200)),
		validation.Field(&o.DefaultRoute, validation.Length(0, 200)),
	)
}
