// Package apierrors converts the backend's heterogeneous error payloads
// (plain string, {"detail": ...}, array of strings, field→messages map)
// into a closed set of abstract kinds. The rendering layer localizes a
// Kind; raw backend text only escapes through the Unknown fallback, kept
// for diagnostic display.
package apierrors

// Kind identifies one abstract error condition.
type Kind string

const (
	// Backend business-rule kinds, produced from response bodies.
	KindInvalidCredentials  Kind = "invalid_credentials"
	KindEmailNotVerified    Kind = "email_not_verified"
	KindUsernameTaken       Kind = "username_taken"
	KindEmailTaken          Kind = "email_taken"
	KindPasswordTooShort    Kind = "password_too_short"
	KindPasswordTooCommon   Kind = "password_too_common"
	KindPasswordAllNumeric  Kind = "password_all_numeric"
	KindPasswordMismatch    Kind = "password_mismatch"
	KindInvalidEmailFormat  Kind = "invalid_email_format"
	KindFieldBlank          Kind = "field_blank"
	KindContactLimitReached Kind = "contact_limit_reached"
	KindPlanInactive        Kind = "plan_inactive"
	KindResetLinkInvalid    Kind = "reset_link_invalid"

	// Transport-level kinds, surfaced by the transport and the refresh
	// coordinator rather than by body normalization.
	KindSessionExpired  Kind = "session_expired"
	KindSessionInvalid  Kind = "session_invalid"
	KindCSRFUnavailable Kind = "csrf_unavailable"
	KindNetwork         Kind = "network_error"

	KindUnknown Kind = "unknown"
)

// Record is one normalized error. Field is set only when the error is
// attributable to a specific form input. Raw preserves the original text
// for the Unknown fallback. Max and Plan are populated only for
// KindContactLimitReached.
type Record struct {
	Kind  Kind
	Field string
	Raw   string
	Max   int
	Plan  string
}
