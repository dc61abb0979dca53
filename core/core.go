// Package core implements the issuance protocol: Login mails a password-salted
// refresh token, Authenticate exchanges it for a short-lived auth token,
// Validate performs the same check without minting, and Renew extends an
// expired refresh token within its renewal budget.
//
// Every operation is a pure function of the request plus the immutable app
// configuration, so the service is safe under arbitrary request parallelism.
package core

import (
	"fmt"

	"github.com/etienne-dldc/lomasi/apps"
	"github.com/etienne-dldc/lomasi/mail"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service executes the protocol operations against a fixed app registry.
// All time comparisons go through token.NowFunc so signing, verification and
// the renewal deadline share one clock.
type Service struct {
	registry        *apps.Registry
	mailer          mail.Mailer
	skipOriginCheck bool
	logger          zerolog.Logger
}

// Option modifies the Service during construction.
type Option func(*Service)

// WithSkipOriginCheck disables origin-header checking globally. Meant for
// tests and local development only.
func WithSkipOriginCheck(skip bool) Option {
	return func(s *Service) {
		s.skipOriginCheck = skip
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New initializes a Service with required dependencies.
func New(registry *apps.Registry, mailer mail.Mailer, options ...Option) (*Service, error) {
	if registry == nil {
		return nil, errors.New("[core.New] registry is required")
	}
	if mailer == nil {
		return nil, errors.New("[core.New] mailer is required")
	}
	s := &Service{
		registry: registry,
		mailer:   mailer,
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// guard runs fn and converts a panic into an InternalError result via
// onPanic. Unexpected failures must never crash the caller and must never
// leak a stack trace to the client.
func guard[T any](logger zerolog.Logger, op string, onPanic func(message string) T, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("op", op).Interface("panic", r).Msg("recovered from panic")
			out = onPanic(fmt.Sprint(r))
		}
	}()
	return fn()
}

func originKind(err error) Kind {
	switch {
	case errors.Is(err, apps.ErrMissingOrigin):
		return KindMissingOrigin
	default:
		return KindInvalidOrigin
	}
}
