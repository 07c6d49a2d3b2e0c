// Package billing starts checkout sessions. Fire-and-forget: the client
// obtains a redirect URL and hands it to the rendering layer, which owns
// all navigation.
package billing

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-session-client/apierrors"
	"github.com/jrsteele09/go-session-client/transport"
)

const checkoutPath = "/api/billing/checkout/"

type checkoutRequest struct {
	Plan string `json:"plan"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// Client issues billing requests.
type Client struct {
	sender transport.Sender
}

// NewClient creates a billing client over the given sender.
func NewClient(sender transport.Sender) (*Client, error) {
	if sender == nil {
		return nil, errors.New("[billing.NewClient] sender is required")
	}
	return &Client{sender: sender}, nil
}

// CreateCheckoutSession starts checkout for the named plan and returns the
// URL the user should be redirected to.
func (c *Client) CreateCheckoutSession(ctx context.Context, plan string) (string, error) {
	resp, err := c.sender.Send(ctx, http.MethodPost, checkoutPath, checkoutRequest{Plan: plan})
	if err != nil {
		var httpErr *transport.HTTPError
		if errors.As(err, &httpErr) {
			return "", apierrors.FromResponse(httpErr.Status, httpErr.Body)
		}
		return "", errors.Wrap(err, "[Client.CreateCheckoutSession]")
	}

	var body checkoutResponse
	if err := resp.JSON(&body); err != nil {
		return "", errors.Wrap(err, "[Client.CreateCheckoutSession] decode response")
	}
	if body.URL == "" {
		return "", errors.New("[Client.CreateCheckoutSession] response missing redirect URL")
	}
	return body.URL, nil
}
