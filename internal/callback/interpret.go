package callback

import (
	"net/url"

	"hallpass/internal/store"
	"hallpass/pkg/logging"
)

// Kind tags the classification of a provider callback.
type Kind int

const (
	// KindAuthorized means the callback carried a valid code for the
	// stored login attempt.
	KindAuthorized Kind = iota

	// KindProviderError means the provider reported an error parameter.
	KindProviderError

	// KindMissingCode means the callback carried neither error nor code.
	KindMissingCode

	// KindSessionExpired means no login attempt was stored for this callback.
	KindSessionExpired

	// KindStateMismatch means the echoed state did not match the stored
	// attempt. Treated as a security event.
	KindStateMismatch
)

// String returns the string representation of the outcome kind.
func (k Kind) String() string {
	switch k {
	case KindAuthorized:
		return "authorized"
	case KindProviderError:
		return "provider_error"
	case KindMissingCode:
		return "missing_code"
	case KindSessionExpired:
		return "session_expired"
	case KindStateMismatch:
		return "state_mismatch"
	default:
		return "unknown"
	}
}

// ErrorCategory classifies provider error codes for surfacing.
type ErrorCategory int

const (
	// CategoryUserDeclined is a benign cancellation (access_denied); it is
	// surfaced verbatim to the user and not logged as an anomaly.
	CategoryUserDeclined ErrorCategory = iota

	// CategoryConfiguration indicates client/provider misconfiguration,
	// surfaced distinctly so operators can tell it from end-user mistakes.
	CategoryConfiguration

	// CategoryUnknown covers error codes outside the mapped set.
	CategoryUnknown
)

// Outcome is the classified result of one provider callback.
type Outcome struct {
	Kind Kind

	// Code and Verifier are set when Kind is KindAuthorized.
	Code     string
	Verifier string

	// RedirectTarget is the optional post-login destination carried through
	// the login attempt.
	RedirectTarget string

	// ErrorCode, ErrorDescription, and Category are set when Kind is
	// KindProviderError.
	ErrorCode        string
	ErrorDescription string
	Category         ErrorCategory
}

// configurationErrorCodes are the provider error codes that indicate
// misconfiguration rather than user action.
var configurationErrorCodes = map[string]bool{
	"invalid_request":           true,
	"unauthorized_client":       true,
	"unsupported_response_type": true,
	"invalid_scope":             true,
}

// Categorize maps a provider error code to its surfacing category.
func Categorize(errorCode string) ErrorCategory {
	switch {
	case errorCode == "access_denied":
		return CategoryUserDeclined
	case configurationErrorCodes[errorCode]:
		return CategoryConfiguration
	default:
		return CategoryUnknown
	}
}

// Interpret classifies the query parameters of a provider callback against
// the stored login attempt. attempt is the one-shot result of
// ExchangeStore.Take and may be nil; consuming it there already guarantees
// the attempt cannot be replayed whatever the outcome.
//
// Decision order: provider error, missing code, missing attempt, state
// mismatch, authorized.
func Interpret(query url.Values, attempt *store.Attempt) *Outcome {
	if errCode := query.Get("error"); errCode != "" {
		outcome := &Outcome{
			Kind:             KindProviderError,
			ErrorCode:        errCode,
			ErrorDescription: query.Get("error_description"),
			Category:         Categorize(errCode),
		}
		if outcome.Category != CategoryUserDeclined {
			logging.Warn("Callback", "Provider returned error=%s description=%q",
				errCode, outcome.ErrorDescription)
		}
		return outcome
	}

	code := query.Get("code")
	if code == "" {
		return &Outcome{Kind: KindMissingCode}
	}

	if attempt == nil {
		logging.Warn("Callback", "Callback received with no stored login attempt")
		return &Outcome{Kind: KindSessionExpired}
	}

	if query.Get("state") != attempt.State {
		logging.Warn("Callback", "SECURITY_AUDIT: state mismatch on callback, possible CSRF (expected_len=%d received_len=%d)",
			len(attempt.State), len(query.Get("state")))
		return &Outcome{Kind: KindStateMismatch}
	}

	return &Outcome{
		Kind:           KindAuthorized,
		Code:           code,
		Verifier:       attempt.Verifier,
		RedirectTarget: attempt.RedirectTarget,
	}
}

// Message returns the user-facing description for a non-authorized outcome.
func (o *Outcome) Message() string {
	switch o.Kind {
	case KindProviderError:
		switch o.Category {
		case CategoryUserDeclined:
			return "Sign-in was cancelled."
		case CategoryConfiguration:
			if o.ErrorDescription != "" {
				return "The identity provider rejected the sign-in request (" + o.ErrorCode + "): " + o.ErrorDescription
			}
			return "The identity provider rejected the sign-in request (" + o.ErrorCode + "). Check the client configuration."
		default:
			if o.ErrorDescription != "" {
				return "Sign-in failed: " + o.ErrorDescription
			}
			return "Sign-in failed (" + o.ErrorCode + ")."
		}
	case KindMissingCode:
		return "The identity provider did not return an authorization code."
	case KindSessionExpired:
		return "The sign-in attempt expired. Please try again."
	case KindStateMismatch:
		return "The sign-in response could not be verified. Please try again."
	default:
		return ""
	}
}
