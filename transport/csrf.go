package transport

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// csrfPath is the dedicated issuing endpoint; it returns the token in the
// JSON body and, as Django does, also sets the fallback cookie.
const csrfPath = "/api/csrf/"

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// CSRFCoordinator fetches and caches the CSRF token required on unsafe
// requests under the cookie strategy. Concurrent callers before the first
// fetch completes share one network request.
type CSRFCoordinator struct {
	client     *Client
	cookieName string
	group      singleflight.Group
}

// EnsureToken returns the cached token, fetching it once if absent. The
// token is read from the issuing endpoint's JSON body, falling back to the
// named cookie; ErrCSRFUnavailable when neither source yields one.
func (cc *CSRFCoordinator) EnsureToken(ctx context.Context) (string, error) {
	if token, ok := cc.client.store.CSRFToken(); ok {
		return token, nil
	}

	value, err, _ := cc.group.Do("csrf", func() (any, error) {
		// A caller that queued behind the winning fetch sees the cache.
		if token, ok := cc.client.store.CSRFToken(); ok {
			return token, nil
		}
		return cc.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (cc *CSRFCoordinator) fetch(ctx context.Context) (string, error) {
	var token string

	// csrfPath is a safe GET, so this never recurses into EnsureToken.
	resp, err := cc.client.Send(ctx, http.MethodGet, csrfPath, nil)
	if err == nil {
		var body csrfResponse
		if jsonErr := resp.JSON(&body); jsonErr == nil {
			token = body.CSRFToken
		}
	}

	if token == "" {
		token = cc.cookieToken()
	}
	if token == "" {
		if err != nil {
			return "", errors.Wrapf(ErrCSRFUnavailable, "[CSRFCoordinator.EnsureToken] fetch failed: %v", err)
		}
		return "", errors.Wrap(ErrCSRFUnavailable, "[CSRFCoordinator.EnsureToken] no token in body or cookie")
	}

	cc.client.store.SetCSRFToken(token)
	return token, nil
}

// Invalidate drops the cached token so the next unsafe request fetches a
// fresh one. Called after the backend rejects the current token.
func (cc *CSRFCoordinator) Invalidate() {
	cc.client.store.SetCSRFToken("")
}

func (cc *CSRFCoordinator) cookieToken() string {
	jar := cc.client.httpClient.Jar
	if jar == nil {
		return ""
	}
	for _, cookie := range jar.Cookies(cc.client.baseURL) {
		if cookie.Name == cc.cookieName {
			return cookie.Value
		}
	}
	return ""
}
