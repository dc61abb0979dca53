// Package apps holds the per-application configuration of the issuance
// server: signing secrets, token lifetimes and access policy. Configuration is
// loaded once at startup and treated as immutable afterwards.
package apps

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Defaults applied to apps that leave the corresponding field unset.
const (
	DefaultRefreshTokenTTL = Duration(7 * 24 * time.Hour)
	DefaultAuthTokenTTL    = Duration(10 * time.Minute)
	DefaultMaxRenewDelay   = Duration(7 * 24 * time.Hour)
)

// UserCheckFunc is an optional per-app predicate consulted after the static
// allow/deny lists. It may hit external systems, hence the context.
type UserCheckFunc func(ctx context.Context, email string) (bool, error)

// App is the configuration of one tenant application.
type App struct {
	// Origin is the canonical origin the app's tokens are scoped to,
	// e.g. "https://app.example.com".
	Origin string `yaml:"origin"`

	// RefreshSecret signs refresh tokens. The client password is appended to
	// it before signing, so the secret alone cannot validate a refresh token.
	RefreshSecret string `yaml:"refresh_secret"`

	// AuthSecret signs short-lived auth tokens. Empty means the app does not
	// issue auth tokens.
	AuthSecret string `yaml:"auth_secret"`

	RefreshTokenTTL Duration `yaml:"refresh_token_ttl"`
	AuthTokenTTL    Duration `yaml:"auth_token_ttl"`

	// MaxRenew is the renewal budget stamped into refresh tokens. Zero
	// disables renewal entirely.
	MaxRenew int `yaml:"max_renew"`

	// MaxRenewDelay is how long after expiry a refresh token is still
	// accepted for renewal.
	MaxRenewDelay Duration `yaml:"max_renew_delay"`

	// AllowedOrigins lists the origins allowed to call the server on behalf
	// of this app. Nil means only the app origin itself.
	AllowedOrigins []string `yaml:"allowed_origins"`

	UsersAllowList []string `yaml:"users_allow_list"`
	UsersDenyList  []string `yaml:"users_deny_list"`

	// UserCheck cannot come from the config file; it is wired in code.
	UserCheck UserCheckFunc `yaml:"-"`
}

// Registry is the immutable set of configured apps.
type Registry struct {
	apps []App
}

// NewRegistry validates the app list and applies defaults.
func NewRegistry(list []App) (*Registry, error) {
	apps := make([]App, 0, len(list))
	for i, app := range list {
		if app.Origin == "" {
			return nil, errors.Errorf("app %d: origin is required", i)
		}
		if app.RefreshSecret == "" {
			return nil, errors.Errorf("app %q: refresh_secret is required", app.Origin)
		}
		if app.RefreshTokenTTL == 0 {
			app.RefreshTokenTTL = DefaultRefreshTokenTTL
		}
		if app.AuthTokenTTL == 0 {
			app.AuthTokenTTL = DefaultAuthTokenTTL
		}
		if app.MaxRenewDelay == 0 {
			app.MaxRenewDelay = DefaultMaxRenewDelay
		}
		apps = append(apps, app)
	}
	return &Registry{apps: apps}, nil
}

// FindByOrigin returns the app whose canonical origin matches exactly.
func (r *Registry) FindByOrigin(origin string) (*App, bool) {
	for i := range r.apps {
		if r.apps[i].Origin == origin {
			return &r.apps[i], true
		}
	}
	return nil, false
}

// FindByCallback resolves the app owning the origin of a callback URL.
func (r *Registry) FindByCallback(callback string) (*App, bool) {
	origin, err := OriginOf(callback)
	if err != nil {
		return nil, false
	}
	return r.FindByOrigin(origin)
}

// Apps returns the configured apps, mostly for logging at startup.
func (r *Registry) Apps() []App {
	return r.apps
}

// OriginOf extracts the scheme://host[:port] origin of a URL.
func OriginOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("URL %q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
