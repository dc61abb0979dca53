package apps_test

import (
	"context"
	"testing"
	"time"

	"github.com/etienne-dldc/lomasi/apps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func testApp() apps.App {
	return apps.App{
		Origin:        "https://app.example.com",
		RefreshSecret: "refresh-secret",
		AuthSecret:    "auth-secret",
	}
}

func TestNewRegistryDefaults(t *testing.T) {
	registry, err := apps.NewRegistry([]apps.App{testApp()})
	require.NoError(t, err)

	app, ok := registry.FindByOrigin("https://app.example.com")
	require.True(t, ok)
	assert.Equal(t, apps.DefaultRefreshTokenTTL, app.RefreshTokenTTL)
	assert.Equal(t, apps.DefaultAuthTokenTTL, app.AuthTokenTTL)
	assert.Equal(t, apps.DefaultMaxRenewDelay, app.MaxRenewDelay)
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := apps.NewRegistry([]apps.App{{RefreshSecret: "s"}})
	assert.Error(t, err)

	_, err = apps.NewRegistry([]apps.App{{Origin: "https://app.example.com"}})
	assert.Error(t, err)
}

func TestFindByCallback(t *testing.T) {
	registry, err := apps.NewRegistry([]apps.App{testApp()})
	require.NoError(t, err)

	app, ok := registry.FindByCallback("https://app.example.com/login?token={{TOKEN}}")
	require.True(t, ok)
	assert.Equal(t, "https://app.example.com", app.Origin)

	_, ok = registry.FindByCallback("https://other.example.com/login")
	assert.False(t, ok)

	_, ok = registry.FindByCallback("::not a url::")
	assert.False(t, ok)
}

func TestOriginOf(t *testing.T) {
	origin, err := apps.OriginOf("https://app.example.com:8443/deep/path?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com:8443", origin)

	_, err = apps.OriginOf("/relative/path")
	assert.Error(t, err)
}

func TestCheckOrigin(t *testing.T) {
	app := testApp()

	// No allow-list: only the app origin itself passes.
	assert.NoError(t, apps.CheckOrigin(strPtr("https://app.example.com"), &app))
	assert.ErrorIs(t, apps.CheckOrigin(strPtr("https://evil.example.com"), &app), apps.ErrInvalidOrigin)
	assert.ErrorIs(t, apps.CheckOrigin(nil, &app), apps.ErrMissingOrigin)

	app.AllowedOrigins = []string{"https://admin.example.com"}
	assert.NoError(t, apps.CheckOrigin(strPtr("https://admin.example.com"), &app))
	// An explicit allow-list replaces the implicit app-origin rule.
	assert.ErrorIs(t, apps.CheckOrigin(strPtr("https://app.example.com"), &app), apps.ErrInvalidOrigin)
}

func TestCheckUser(t *testing.T) {
	ctx := context.Background()
	app := testApp()

	assert.NoError(t, apps.CheckUser(ctx, "anyone@example.com", &app))

	app.UsersDenyList = []string{"spam@example.com"}
	assert.ErrorIs(t, apps.CheckUser(ctx, "spam@example.com", &app), apps.ErrUnauthorizedUser)
	assert.NoError(t, apps.CheckUser(ctx, "fine@example.com", &app))

	app.UsersAllowList = []string{"vip@example.com"}
	assert.NoError(t, apps.CheckUser(ctx, "vip@example.com", &app))
	assert.ErrorIs(t, apps.CheckUser(ctx, "fine@example.com", &app), apps.ErrUnauthorizedUser)

	// Deny list wins even over the allow list.
	app.UsersAllowList = []string{"spam@example.com"}
	assert.ErrorIs(t, apps.CheckUser(ctx, "spam@example.com", &app), apps.ErrUnauthorizedUser)
}

func TestCheckUserPredicate(t *testing.T) {
	ctx := context.Background()
	app := testApp()
	app.UserCheck = func(ctx context.Context, email string) (bool, error) {
		return email == "ok@example.com", nil
	}

	assert.NoError(t, apps.CheckUser(ctx, "ok@example.com", &app))
	assert.ErrorIs(t, apps.CheckUser(ctx, "nope@example.com", &app), apps.ErrUnauthorizedUser)
}

func TestLoadYAML(t *testing.T) {
	registry, err := apps.Load([]byte(`
apps:
  - origin: "https://app.example.com"
    refresh_secret: "refresh"
    auth_secret: "auth"
    refresh_token_ttl: "7d"
    auth_token_ttl: "10m"
    max_renew: 5
    max_renew_delay: 3600
    allowed_origins:
      - "https://app.example.com"
      - "https://admin.example.com"
    users_deny_list:
      - "spam@example.com"
`))
	require.NoError(t, err)

	app, ok := registry.FindByOrigin("https://app.example.com")
	require.True(t, ok)
	assert.Equal(t, 7*24*time.Hour, app.RefreshTokenTTL.Std())
	assert.Equal(t, 10*time.Minute, app.AuthTokenTTL.Std())
	assert.Equal(t, time.Hour, app.MaxRenewDelay.Std())
	assert.Equal(t, 5, app.MaxRenew)
	assert.Len(t, app.AllowedOrigins, 2)
}

func TestLoadEmpty(t *testing.T) {
	_, err := apps.Load([]byte("apps: []"))
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	d, err := apps.ParseDuration("2d")
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, d.Std())

	d, err = apps.ParseDuration("90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d.Std())

	_, err = apps.ParseDuration("eventually")
	assert.Error(t, err)
}
