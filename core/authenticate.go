package core

import (
	"context"

	"github.com/etienne-dldc/lomasi/apps"
	"github.com/etienne-dldc/lomasi/token"
	"github.com/pkg/errors"
)

// Authenticate exchanges a valid refresh token plus its password for a
// short-lived auth token. The incoming token's app claim is read without
// verification to pick the app config; nothing is trusted until the salted
// signature checks out.
func (s *Service) Authenticate(ctx context.Context, origin *string, req AuthenticateRequest) AuthenticateResult {
	return guard(s.logger, "authenticate", func(message string) AuthenticateResult {
		return AuthenticateResult{Type: KindInternalError, Message: message}
	}, func() AuthenticateResult {
		return s.authenticate(ctx, origin, req)
	})
}

func (s *Service) authenticate(ctx context.Context, origin *string, req AuthenticateRequest) AuthenticateResult {
	unverified, err := token.Decode(req.Token)
	if err != nil {
		return AuthenticateResult{Type: KindInvalidTokenOrPassword}
	}

	appOrigin, err := apps.OriginOf(unverified.App)
	if err != nil {
		return AuthenticateResult{Type: KindInvalidOrigin}
	}
	app, ok := s.registry.FindByOrigin(appOrigin)
	if !ok {
		return AuthenticateResult{Type: KindInvalidOrigin}
	}

	if app.AuthSecret == "" {
		return AuthenticateResult{Type: KindAuthTokenNotConfigured}
	}

	if !s.skipOriginCheck {
		if err := apps.CheckOrigin(origin, app); err != nil {
			return AuthenticateResult{Type: originKind(err)}
		}
	}

	verified, err := token.Verify(req.Token, app.RefreshSecret+req.Password)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return AuthenticateResult{Type: KindTokenExpired}
		}
		return AuthenticateResult{Type: KindInvalidTokenOrPassword}
	}

	if err := apps.CheckUser(ctx, verified.Email, app); err != nil {
		if errors.Is(err, apps.ErrUnauthorizedUser) {
			return AuthenticateResult{Type: KindUnauthorizedUser}
		}
		s.logger.Error().Err(err).Str("op", "authenticate").Msg("user check failed")
		return AuthenticateResult{Type: KindInternalError, Message: err.Error()}
	}

	// Auth tokens are plain bearer tokens scoped to one session; they are not
	// password-salted.
	minted, err := token.Sign(token.Data{
		Email: verified.Email,
		App:   app.Origin,
	}, app.AuthSecret, app.AuthTokenTTL.Std())
	if err != nil {
		return AuthenticateResult{Type: KindInternalError, Message: err.Error()}
	}

	return AuthenticateResult{Type: KindAuthorized, Token: minted}
}

// Validate runs the same checks as Authenticate but discards the minted
// token. Resource servers use it when they only need a pass/fail answer.
func (s *Service) Validate(ctx context.Context, origin *string, req AuthenticateRequest) ValidateResult {
	res := s.Authenticate(ctx, origin, req)
	if res.Type == KindAuthorized {
		return ValidateResult{Type: KindValidated}
	}
	return ValidateResult{Type: res.Type, Message: res.Message}
}
