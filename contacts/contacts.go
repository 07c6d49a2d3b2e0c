// Package contacts manages the user's emergency contact list.
package contacts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-session-client/apierrors"
	"github.com/jrsteele09/go-session-client/transport"
)

const contactsPath = "/api/emergency/contacts/"

// Contact is one emergency contact as the backend stores it.
type Contact struct {
	ID           int64  `json:"id,omitempty"`
	Name         string `json:"name"`
	PhoneNumber  string `json:"phone_number"`
	Relationship string `json:"relationship,omitempty"`
}

// Client issues contact requests. It should be built over the refresh
// manager: listing and editing contacts is the screen users sit on long
// enough for access tokens to expire under them.
type Client struct {
	sender transport.Sender
}

// NewClient creates a contacts client over the given sender.
func NewClient(sender transport.Sender) (*Client, error) {
	if sender == nil {
		return nil, errors.New("[contacts.NewClient] sender is required")
	}
	return &Client{sender: sender}, nil
}

// List returns all of the user's contacts.
func (c *Client) List(ctx context.Context) ([]Contact, error) {
	resp, err := c.sender.Send(ctx, http.MethodGet, contactsPath, nil)
	if err != nil {
		return nil, normalized(err, "[Client.List]")
	}

	var list []Contact
	if err := resp.JSON(&list); err != nil {
		return nil, errors.Wrap(err, "[Client.List] decode contacts")
	}
	return list, nil
}

// Create adds a contact and returns the stored version, backend-assigned
// ID included. A plan-limit rejection comes back as a normalized record of
// KindContactLimitReached carrying the limit and plan name.
func (c *Client) Create(ctx context.Context, contact Contact) (*Contact, error) {
	contact.ID = 0
	resp, err := c.sender.Send(ctx, http.MethodPost, contactsPath, contact)
	if err != nil {
		return nil, normalized(err, "[Client.Create]")
	}

	var created Contact
	if err := resp.JSON(&created); err != nil {
		return nil, errors.Wrap(err, "[Client.Create] decode contact")
	}
	if created.ID == 0 || created.PhoneNumber == "" {
		return nil, errors.New("[Client.Create] backend returned incomplete contact")
	}
	return &created, nil
}

// Delete removes a contact by ID.
func (c *Client) Delete(ctx context.Context, id int64) error {
	path := fmt.Sprintf("%s%d/", contactsPath, id)
	_, err := c.sender.Send(ctx, http.MethodDelete, path, nil)
	return normalized(err, "[Client.Delete]")
}

func normalized(err error, op string) error {
	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) {
		return apierrors.FromResponse(httpErr.Status, httpErr.Body)
	}
	return errors.Wrap(err, op)
}
