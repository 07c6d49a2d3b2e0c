// Package account covers the self-service account endpoints: registration,
// password reset, verification-email resend and account deletion. All
// requests go through a transport.Sender, so wiring the refresh manager in
// gives them automatic auth recovery.
package account

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-session-client/apierrors"
	"github.com/jrsteele09/go-session-client/transport"
)

const (
	registrationPath       = "/api/users/registration/"
	passwordResetPath      = "/api/users/reset-password/"
	resetConfirmPath       = "/api/users/reset-password-confirm/"
	resendVerificationPath = "/api/users/resend-verification/"
	deleteAccountPath      = "/api/users/delete-account/"
)

// RegistrationParams carries the sign-up form. Both password fields are
// submitted; the backend owns validation and mismatch detection.
type RegistrationParams struct {
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

// ResetConfirmParams finalizes a password reset from the emailed link.
type ResetConfirmParams struct {
	UID          string `json:"uid"`
	Token        string `json:"token"`
	NewPassword1 string `json:"new_password1"`
	NewPassword2 string `json:"new_password2"`
}

type emailRequest struct {
	Email string `json:"email"`
}

// Client issues account requests.
type Client struct {
	sender transport.Sender
}

// NewClient creates an account client over the given sender.
func NewClient(sender transport.Sender) (*Client, error) {
	if sender == nil {
		return nil, errors.New("[account.NewClient] sender is required")
	}
	return &Client{sender: sender}, nil
}

// Register creates a new account. The username is canonicalized to lower
// case, matching what login submits.
func (c *Client) Register(ctx context.Context, params RegistrationParams) error {
	params.Username = strings.ToLower(strings.TrimSpace(params.Username))
	_, err := c.sender.Send(ctx, http.MethodPost, registrationPath, params)
	return normalized(err, "[Client.Register]")
}

// RequestPasswordReset asks the backend to email a reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := c.sender.Send(ctx, http.MethodPost, passwordResetPath, emailRequest{Email: email})
	return normalized(err, "[Client.RequestPasswordReset]")
}

// ConfirmPasswordReset sets the new password using the uid/token pair from
// the emailed link. A rejected or stale link surfaces as
// KindResetLinkInvalid rather than a session-level kind: the user is not
// logged in during this flow, they just need a fresh link.
func (c *Client) ConfirmPasswordReset(ctx context.Context, params ResetConfirmParams) error {
	_, err := c.sender.Send(ctx, http.MethodPost, resetConfirmPath, params)
	if err == nil {
		return nil
	}

	var httpErr *transport.HTTPError
	if !errors.As(err, &httpErr) {
		return errors.Wrap(err, "[Client.ConfirmPasswordReset]")
	}

	apiErr := apierrors.FromResponse(httpErr.Status, httpErr.Body)
	for i, record := range apiErr.Records {
		if record.Kind != apierrors.KindUnknown {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(record.Raw)) {
		case "invalid or expired token.", "invalid user.":
			apiErr.Records[i].Kind = apierrors.KindResetLinkInvalid
		}
	}
	return apiErr
}

// ResendVerification requests another verification email.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	_, err := c.sender.Send(ctx, http.MethodPost, resendVerificationPath, emailRequest{Email: email})
	return normalized(err, "[Client.ResendVerification]")
}

// DeleteAccount permanently removes the authenticated user's account.
func (c *Client) DeleteAccount(ctx context.Context) error {
	_, err := c.sender.Send(ctx, http.MethodDelete, deleteAccountPath, nil)
	return normalized(err, "[Client.DeleteAccount]")
}

// normalized converts an HTTPError into a normalized *apierrors.Error and
// passes every other error (network, session) through with context.
func normalized(err error, op string) error {
	if err == nil {
		return nil
	}
	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) {
		return apierrors.FromResponse(httpErr.Status, httpErr.Body)
	}
	return errors.Wrap(err, op)
}
