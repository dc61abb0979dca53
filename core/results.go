package core

// Kind discriminates the result variants of the protocol operations. The
// string values are the wire-level "type" field of every JSON response, so
// clients can switch on them directly.
type Kind string

const (
	// Success kinds.
	KindMailSend   Kind = "MailSend"
	KindAuthorized Kind = "Authorized"
	KindValidated  Kind = "Validated"
	KindRenewed    Kind = "Renewed"

	// Configuration and authorization rejections.
	KindMissingOrigin          Kind = "MissingOrigin"
	KindInvalidOrigin          Kind = "InvalidOrigin"
	KindUnauthorizedOrigin     Kind = "UnauthorizedOrigin"
	KindUnauthorizedUser       Kind = "UnauthorizedUser"
	KindAuthTokenNotConfigured Kind = "AuthTokenNotConfigured"

	// Credential rejections. Expired is distinct from invalid so clients can
	// offer renewal instead of asking for the password again.
	KindInvalidTokenOrPassword Kind = "InvalidTokenOrPassword"
	KindTokenExpired           Kind = "TokenExpired"
	KindRenewalLimitReached    Kind = "RenewalLimitReached"
	KindTokenTooOld            Kind = "TokenTooOld"

	// Anything unexpected.
	KindInternalError Kind = "InternalError"
)

// Success reports whether the kind is one of the success variants.
func (k Kind) Success() bool {
	switch k {
	case KindMailSend, KindAuthorized, KindValidated, KindRenewed:
		return true
	}
	return false
}

// LoginRequest is the body of the login operation. Callback is a URL template
// containing the literal substring {{TOKEN}}.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Callback string `json:"callback"`
}

// AuthenticateRequest is the body of the authenticate and validate operations.
type AuthenticateRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// RenewRequest is the body of the renew operation. The password is needed to
// check the salted signature of the expired refresh token.
type RenewRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
	Callback string `json:"callback"`
}

// LoginResult is the outcome of the login operation.
type LoginResult struct {
	Type    Kind   `json:"type"`
	Message string `json:"message,omitempty"`
}

// AuthenticateResult is the outcome of the authenticate operation. Token is
// set only when Type is Authorized.
type AuthenticateResult struct {
	Type    Kind   `json:"type"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidateResult is the outcome of the validate operation.
type ValidateResult struct {
	Type    Kind   `json:"type"`
	Message string `json:"message,omitempty"`
}

// RenewResult is the outcome of the renew operation. Token and Link are set
// only when Type is Renewed.
type RenewResult struct {
	Type    Kind   `json:"type"`
	Token   string `json:"token,omitempty"`
	Link    string `json:"link,omitempty"`
	Message string `json:"message,omitempty"`
}
