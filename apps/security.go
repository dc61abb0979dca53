package apps

import (
	"context"
	"slices"

	"github.com/pkg/errors"
)

var (
	// ErrMissingOrigin means the request carried no origin header at all.
	ErrMissingOrigin = errors.New("missing origin")
	// ErrInvalidOrigin means the calling origin is not allowed for this app.
	ErrInvalidOrigin = errors.New("invalid origin")
	// ErrUnauthorizedUser means the access policy rejects this email.
	ErrUnauthorizedUser = errors.New("unauthorized user")
)

// CheckOrigin verifies a transport-level origin against the app's allow-list.
// origin is nil when the request carried no Origin header.
func CheckOrigin(origin *string, app *App) error {
	if origin == nil {
		return ErrMissingOrigin
	}
	if app.AllowedOrigins == nil {
		// no setting => allow only the app origin
		if app.Origin != *origin {
			return ErrInvalidOrigin
		}
		return nil
	}
	if !slices.Contains(app.AllowedOrigins, *origin) {
		return ErrInvalidOrigin
	}
	return nil
}

// CheckUser runs the app's user policy: deny list first, then allow list,
// then the optional predicate.
func CheckUser(ctx context.Context, email string, app *App) error {
	if slices.Contains(app.UsersDenyList, email) {
		return ErrUnauthorizedUser
	}
	if app.UsersAllowList != nil && !slices.Contains(app.UsersAllowList, email) {
		return ErrUnauthorizedUser
	}
	if app.UserCheck != nil {
		ok, err := app.UserCheck(ctx, email)
		if err != nil {
			return errors.Wrap(err, "user check failed")
		}
		if !ok {
			return ErrUnauthorizedUser
		}
	}
	return nil
}
