package callback

import (
	"net/url"
	"testing"

	"hallpass/internal/store"

	"github.com/stretchr/testify/assert"
)

func storedAttempt() *store.Attempt {
	return &store.Attempt{
		Verifier: "the-verifier",
		State:    "the-state",
	}
}

func TestInterpret_Authorized(t *testing.T) {
	query := url.Values{
		"code":  {"auth-code"},
		"state": {"the-state"},
	}

	outcome := Interpret(query, storedAttempt())
	assert.Equal(t, KindAuthorized, outcome.Kind)
	assert.Equal(t, "auth-code", outcome.Code)
	assert.Equal(t, "the-verifier", outcome.Verifier)
}

func TestInterpret_StateMismatch(t *testing.T) {
	// Mismatched state is rejected even with a valid-looking code.
	query := url.Values{
		"code":  {"auth-code"},
		"state": {"forged-state"},
	}

	outcome := Interpret(query, storedAttempt())
	assert.Equal(t, KindStateMismatch, outcome.Kind)
	assert.Empty(t, outcome.Code)
}

func TestInterpret_SessionExpired(t *testing.T) {
	query := url.Values{
		"code":  {"ABC"},
		"state": {"X"},
	}

	outcome := Interpret(query, nil)
	assert.Equal(t, KindSessionExpired, outcome.Kind)
}

func TestInterpret_MissingCode(t *testing.T) {
	outcome := Interpret(url.Values{"state": {"the-state"}}, storedAttempt())
	assert.Equal(t, KindMissingCode, outcome.Kind)
}

func TestInterpret_ProviderError(t *testing.T) {
	tests := []struct {
		errorCode string
		category  ErrorCategory
	}{
		{"access_denied", CategoryUserDeclined},
		{"invalid_request", CategoryConfiguration},
		{"unauthorized_client", CategoryConfiguration},
		{"unsupported_response_type", CategoryConfiguration},
		{"invalid_scope", CategoryConfiguration},
		{"server_error", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.errorCode, func(t *testing.T) {
			query := url.Values{
				"error": {tt.errorCode},
				"state": {"the-state"},
			}

			outcome := Interpret(query, storedAttempt())
			assert.Equal(t, KindProviderError, outcome.Kind)
			assert.Equal(t, tt.errorCode, outcome.ErrorCode)
			assert.Equal(t, tt.category, outcome.Category)
		})
	}
}

func TestInterpret_ProviderErrorTakesPrecedenceOverCode(t *testing.T) {
	query := url.Values{
		"error": {"access_denied"},
		"code":  {"should-be-ignored"},
		"state": {"the-state"},
	}

	outcome := Interpret(query, storedAttempt())
	assert.Equal(t, KindProviderError, outcome.Kind)
	assert.Empty(t, outcome.Code)
}

func TestOutcomeMessage(t *testing.T) {
	tests := []struct {
		name    string
		outcome *Outcome
		want    string
	}{
		{
			name:    "user declined",
			outcome: &Outcome{Kind: KindProviderError, ErrorCode: "access_denied", Category: CategoryUserDeclined},
			want:    "Sign-in was cancelled.",
		},
		{
			name: "configuration error with description",
			outcome: &Outcome{
				Kind: KindProviderError, ErrorCode: "invalid_scope",
				ErrorDescription: "scope not allowed", Category: CategoryConfiguration,
			},
			want: "The identity provider rejected the sign-in request (invalid_scope): scope not allowed",
		},
		{
			name:    "unknown provider error",
			outcome: &Outcome{Kind: KindProviderError, ErrorCode: "server_error", Category: CategoryUnknown},
			want:    "Sign-in failed (server_error).",
		},
		{
			name:    "missing code",
			outcome: &Outcome{Kind: KindMissingCode},
			want:    "The identity provider did not return an authorization code.",
		},
		{
			name:    "session expired",
			outcome: &Outcome{Kind: KindSessionExpired},
			want:    "The sign-in attempt expired. Please try again.",
		},
		{
			name:    "state mismatch",
			outcome: &Outcome{Kind: KindStateMismatch},
			want:    "The sign-in response could not be verified. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.outcome.Message())
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "authorized", KindAuthorized.String())
	assert.Equal(t, "state_mismatch", KindStateMismatch.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
