// Package refresh recovers from authentication failures. A request that
// comes back 401 triggers exactly one recovery attempt (a token refresh,
// or a session re-probe under the cookie strategy) and is replayed at most
// once; a second 401 ends the session. Recovery is single-flight: however
// many requests fail concurrently, one attempt runs and everyone awaits
// its outcome.
package refresh

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-session-client/creds"
	"github.com/jrsteele09/go-session-client/transport"
)

const (
	refreshPath = "/api/users/auth/refresh/"
	recoveryKey = "recovery"
)

var (
	// ErrSessionExpired means recovery failed or the replay was rejected
	// again; the credential store has been cleared and the session forced
	// unauthenticated. The rendering layer owns any navigation.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionInvalid means the backend rejected the request's CSRF
	// material. Same side effects as ErrSessionExpired.
	ErrSessionInvalid = errors.New("session invalid")
)

// ProbeFunc re-checks whether the backend still recognizes the session.
// Under the cookie strategy the session manager's status probe is wired in
// here.
type ProbeFunc func(ctx context.Context) error

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// The backend may rotate the refresh token; when it does not, the old one
// stays valid.
type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Manager wraps the transport with automatic recovery. It implements
// transport.Sender, so feature clients use it interchangeably with the raw
// transport.
type Manager struct {
	transport *transport.Client
	store     *creds.Store
	log       zerolog.Logger
	group     singleflight.Group

	hookLock  sync.RWMutex
	probe     ProbeFunc
	onExpired func()
}

var _ transport.Sender = (*Manager)(nil)

// ManagerOption modifies the Manager during construction.
type ManagerOption func(*Manager)

// WithLogger sets the logger; the default discards everything.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a recovery coordinator over the given transport and
// credential store.
func NewManager(t *transport.Client, store *creds.Store, options ...ManagerOption) (*Manager, error) {
	if t == nil {
		return nil, errors.New("[refresh.NewManager] transport is required")
	}
	if store == nil {
		return nil, errors.New("[refresh.NewManager] credential store is required")
	}

	m := &Manager{
		transport: t,
		store:     store,
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// SetProbe wires the cookie-strategy recovery path. The session manager
// registers its status probe here during construction.
func (m *Manager) SetProbe(probe ProbeFunc) {
	m.hookLock.Lock()
	defer m.hookLock.Unlock()

	m.probe = probe
}

// SetSessionExpiredHook registers the callback run after the store has
// been cleared on unrecoverable failure; the session manager uses it to
// flip itself unauthenticated.
func (m *Manager) SetSessionExpiredHook(hook func()) {
	m.hookLock.Lock()
	defer m.hookLock.Unlock()

	m.onExpired = hook
}

// Send issues the request through the transport and intervenes on
// authentication failures: one recovery, one replay, then give up with
// ErrSessionExpired. A 403 carrying a CSRF rejection becomes
// ErrSessionInvalid immediately.
func (m *Manager) Send(ctx context.Context, method, path string, body any) (*transport.Response, error) {
	return m.send(ctx, method, path, body, false)
}

func (m *Manager) send(ctx context.Context, method, path string, body any, retried bool) (*transport.Response, error) {
	resp, err := m.transport.Send(ctx, method, path, body)
	if err == nil {
		return resp, nil
	}

	var httpErr *transport.HTTPError
	if !errors.As(err, &httpErr) {
		return nil, err
	}

	switch {
	case httpErr.Status == http.StatusUnauthorized:
		if retried {
			// The replay itself was rejected; retries are bounded to one.
			m.expire()
			return nil, errors.Wrapf(ErrSessionExpired, "[Manager.Send] %s %s rejected after recovery", method, path)
		}
		if recErr := m.recover(ctx); recErr != nil {
			if ctx.Err() != nil {
				// Abandoned caller: give up without consuming the replay
				// slot or touching the session.
				return nil, recErr
			}
			return nil, errors.Wrapf(ErrSessionExpired, "[Manager.Send] recovery failed: %v", recErr)
		}
		return m.send(ctx, method, path, body, true)

	case httpErr.Status == http.StatusForbidden && isCSRFRejection(httpErr.Body):
		m.transport.CSRF().Invalidate()
		m.expire()
		return nil, errors.Wrapf(ErrSessionInvalid, "[Manager.Send] csrf rejected on %s %s", method, path)
	}

	return nil, err
}

// recover funnels concurrent callers into one recovery attempt. The
// attempt runs detached from the triggering request's context so an
// abandoned caller cannot fail recovery for the others.
func (m *Manager) recover(ctx context.Context) error {
	ch := m.group.DoChan(recoveryKey, func() (any, error) {
		return nil, m.doRecover(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-ch:
		return result.Err
	}
}

func (m *Manager) doRecover(ctx context.Context) error {
	var err error
	switch m.store.Strategy() {
	case creds.StrategyToken:
		err = m.refreshAccessToken(ctx)
	case creds.StrategyCookie:
		err = m.reprobe(ctx)
	}

	if err != nil {
		m.log.Warn().Err(err).Msg("session recovery failed")
		m.expire()
		return err
	}
	return nil
}

func (m *Manager) refreshAccessToken(ctx context.Context) error {
	token, ok := m.store.Token()
	if !ok || token.RefreshToken == "" {
		return errors.New("[Manager.recover] no refresh token held")
	}

	resp, err := m.transport.Send(ctx, http.MethodPost, refreshPath, refreshRequest{Refresh: token.RefreshToken})
	if err != nil {
		return errors.Wrap(err, "[Manager.recover] refresh endpoint")
	}

	var body refreshResponse
	if err := resp.JSON(&body); err != nil {
		return errors.Wrap(err, "[Manager.recover] decode refresh response")
	}
	if body.Access == "" {
		return errors.New("[Manager.recover] refresh response missing access token")
	}

	refreshToken := body.Refresh
	if refreshToken == "" {
		refreshToken = token.RefreshToken
	}
	m.store.SetToken(&oauth2.Token{AccessToken: body.Access, RefreshToken: refreshToken, TokenType: "Bearer"})
	return nil
}

func (m *Manager) reprobe(ctx context.Context) error {
	m.hookLock.RLock()
	probe := m.probe
	m.hookLock.RUnlock()

	if probe == nil {
		return errors.New("[Manager.recover] no status probe configured")
	}
	return probe(ctx)
}

func (m *Manager) expire() {
	m.store.Clear()

	m.hookLock.RLock()
	hook := m.onExpired
	m.hookLock.RUnlock()

	if hook != nil {
		hook()
	}
}

// isCSRFRejection recognizes Django's CSRF failure payload, which phrases
// the reason in the detail field.
func isCSRFRejection(body []byte) bool {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(payload.Detail), "csrf")
}
