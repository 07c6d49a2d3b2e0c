// Package alerts triggers emergency alerts. Triggering fans the message
// out to every stored contact on the backend side, so the client's only
// job is the authenticated POST and surfacing a plan-inactive rejection.
package alerts

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-session-client/apierrors"
	"github.com/jrsteele09/go-session-client/transport"
)

const triggerPath = "/api/emergency/trigger/"

type triggerRequest struct {
	Message string `json:"message"`
}

type triggerResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

// Client issues alert requests. It should be built over the refresh
// manager: an alert is exactly the request that must not die on a stale
// access token.
type Client struct {
	sender transport.Sender
}

// NewClient creates an alerts client over the given sender.
func NewClient(sender transport.Sender) (*Client, error) {
	if sender == nil {
		return nil, errors.New("[alerts.NewClient] sender is required")
	}
	return &Client{sender: sender}, nil
}

// Trigger fires an emergency alert carrying the given message and returns
// the backend-assigned alert ID. An account whose plan cannot send alerts
// comes back as a normalized record of KindPlanInactive.
func (c *Client) Trigger(ctx context.Context, message string) (int64, error) {
	resp, err := c.sender.Send(ctx, http.MethodPost, triggerPath, triggerRequest{Message: message})
	if err != nil {
		var httpErr *transport.HTTPError
		if errors.As(err, &httpErr) {
			return 0, apierrors.FromResponse(httpErr.Status, httpErr.Body)
		}
		return 0, errors.Wrap(err, "[Client.Trigger]")
	}

	var body triggerResponse
	if err := resp.JSON(&body); err != nil {
		return 0, errors.Wrap(err, "[Client.Trigger] decode response")
	}
	if body.ID == 0 {
		return 0, errors.New("[Client.Trigger] response missing alert id")
	}
	return body.ID, nil
}
