package core

import (
	"context"
	"net/url"
	"strings"

	"github.com/etienne-dldc/lomasi/apps"
	"github.com/etienne-dldc/lomasi/mail"
	"github.com/etienne-dldc/lomasi/token"
	"github.com/pkg/errors"
)

// tokenPlaceholder is substituted in callback URL templates with the
// URL-encoded minted token.
const tokenPlaceholder = "{{TOKEN}}"

// Login resolves the app owning the callback origin, checks the access
// policy, signs a refresh token salted with the caller's password and mails
// the resulting magic link. The password is never stored: it only contributes
// to the signing secret, so a later Authenticate succeeds only when the same
// password is supplied again.
func (s *Service) Login(ctx context.Context, origin *string, req LoginRequest) LoginResult {
	return guard(s.logger, "login", func(message string) LoginResult {
		return LoginResult{Type: KindInternalError, Message: message}
	}, func() LoginResult {
		return s.login(ctx, origin, req)
	})
}

func (s *Service) login(ctx context.Context, origin *string, req LoginRequest) LoginResult {
	app, ok := s.registry.FindByCallback(req.Callback)
	if !ok {
		return LoginResult{Type: KindUnauthorizedOrigin, Message: "Callback origin not allowed"}
	}

	if !s.skipOriginCheck {
		if err := apps.CheckOrigin(origin, app); err != nil {
			return LoginResult{Type: originKind(err)}
		}
	}

	if err := apps.CheckUser(ctx, req.Email, app); err != nil {
		if errors.Is(err, apps.ErrUnauthorizedUser) {
			return LoginResult{Type: KindUnauthorizedUser}
		}
		s.logger.Error().Err(err).Str("op", "login").Msg("user check failed")
		return LoginResult{Type: KindInternalError, Message: err.Error()}
	}

	signed, err := token.Sign(token.Data{
		Email: req.Email,
		App:   app.Origin,
		Renew: app.MaxRenew,
	}, app.RefreshSecret+req.Password, app.RefreshTokenTTL.Std())
	if err != nil {
		return LoginResult{Type: KindInternalError, Message: err.Error()}
	}

	link := strings.Replace(req.Callback, tokenPlaceholder, url.QueryEscape(signed), 1)

	if err := s.mailer.SendMail(ctx, mail.LoginMessage(req.Email, link, app.Origin)); err != nil {
		s.logger.Error().Err(err).Str("op", "login").Str("email", req.Email).Msg("mail delivery failed")
		return LoginResult{Type: KindInternalError, Message: err.Error()}
	}

	return LoginResult{Type: KindMailSend, Message: "check your mail"}
}
