package core

import (
	"context"
	"net/url"
	"strings"

	"github.com/etienne-dldc/lomasi/apps"
	"github.com/etienne-dldc/lomasi/token"
	"github.com/pkg/errors"
)

// Renew accepts an expired refresh token (its salted signature is still
// checked, only exp is ignored) and mints a replacement with the renewal
// budget decremented. The budget bounds how many times a session can extend
// itself without a fresh mail round-trip; MaxRenewDelay bounds how long after
// expiry renewal stays possible at all.
func (s *Service) Renew(ctx context.Context, origin *string, req RenewRequest) RenewResult {
	return guard(s.logger, "renew", func(message string) RenewResult {
		return RenewResult{Type: KindInternalError, Message: message}
	}, func() RenewResult {
		return s.renew(ctx, origin, req)
	})
}

func (s *Service) renew(ctx context.Context, origin *string, req RenewRequest) RenewResult {
	app, ok := s.registry.FindByCallback(req.Callback)
	if !ok {
		return RenewResult{Type: KindUnauthorizedOrigin, Message: "Callback origin not allowed"}
	}

	if !s.skipOriginCheck {
		if err := apps.CheckOrigin(origin, app); err != nil {
			return RenewResult{Type: originKind(err)}
		}
	}

	prev, err := token.VerifyIgnoreExpiry(req.Token, app.RefreshSecret+req.Password)
	if err != nil {
		return RenewResult{Type: KindInvalidTokenOrPassword}
	}

	if prev.Renew == 0 {
		return RenewResult{Type: KindRenewalLimitReached}
	}

	renewDeadline := prev.ExpiresAt + int64(app.MaxRenewDelay.Std().Seconds())
	if token.NowFunc().Unix() > renewDeadline {
		return RenewResult{Type: KindTokenTooOld}
	}

	if err := apps.CheckUser(ctx, prev.Email, app); err != nil {
		if errors.Is(err, apps.ErrUnauthorizedUser) {
			return RenewResult{Type: KindUnauthorizedUser}
		}
		s.logger.Error().Err(err).Str("op", "renew").Msg("user check failed")
		return RenewResult{Type: KindInternalError, Message: err.Error()}
	}

	renew := prev.Renew - 1
	if renew < 0 {
		renew = 0
	}
	minted, err := token.Sign(token.Data{
		Email: prev.Email,
		App:   app.Origin,
		Renew: renew,
	}, app.RefreshSecret+req.Password, app.RefreshTokenTTL.Std())
	if err != nil {
		return RenewResult{Type: KindInternalError, Message: err.Error()}
	}

	link := strings.Replace(req.Callback, tokenPlaceholder, url.QueryEscape(minted), 1)

	return RenewResult{Type: KindRenewed, Token: minted, Link: link}
}
