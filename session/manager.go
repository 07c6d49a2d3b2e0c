package session

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-session-client/apierrors"
	"github.com/jrsteele09/go-session-client/creds"
	"github.com/jrsteele09/go-session-client/refresh"
	"github.com/jrsteele09/go-session-client/transport"
)

const (
	loginPath  = "/api/users/auth/login/"
	logoutPath = "/api/auth/logout/"
	mePath     = "/api/users/me/"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type identityResponse struct {
	PK              int64  `json:"pk"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	IsAuthenticated bool   `json:"is_authenticated"`
}

// Manager is the authentication state machine. It mutates the session
// snapshot only under its lock and only wholesale, so a reader never sees
// credentials stored without the authenticated flag, or the reverse.
type Manager struct {
	transport *transport.Client
	store     *creds.Store
	log       zerolog.Logger

	lock        sync.RWMutex
	session     Session
	initialized bool
}

// ManagerOption modifies the Manager during construction.
type ManagerOption func(*Manager)

// WithLogger sets the logger; the default discards everything.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates the state machine and wires itself into the recovery
// coordinator: an unrecoverable auth failure flips the session
// unauthenticated, and under the cookie strategy the identity probe serves
// as the recovery path.
func NewManager(t *transport.Client, store *creds.Store, recovery *refresh.Manager, options ...ManagerOption) (*Manager, error) {
	if t == nil {
		return nil, errors.New("[session.NewManager] transport is required")
	}
	if store == nil {
		return nil, errors.New("[session.NewManager] credential store is required")
	}

	m := &Manager{
		transport: t,
		store:     store,
		log:       zerolog.Nop(),
		session:   Session{Phase: PhaseUninitialized},
	}
	for _, opt := range options {
		opt(m)
	}

	if recovery != nil {
		recovery.SetSessionExpiredHook(m.Invalidate)
		if store.Strategy() == creds.StrategyCookie {
			recovery.SetProbe(func(ctx context.Context) error {
				_, err := m.CheckStatus(ctx)
				return err
			})
		}
	}

	return m, nil
}

// Current returns the session snapshot for UI gating.
func (m *Manager) Current() Session {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.session
}

// Initialize establishes the starting belief, once. Token strategy: decode
// the stored access token locally, no network call; an undecodable token
// is cleared. Cookie strategy: probe the identity endpoint; any failure,
// network included, means unauthenticated rather than a guess in the
// user's favor.
// Subsequent calls return the current snapshot untouched.
func (m *Manager) Initialize(ctx context.Context) Session {
	m.lock.Lock()
	if m.initialized {
		current := m.session
		m.lock.Unlock()
		return current
	}
	m.initialized = true
	m.session.Phase = PhaseInitializing
	m.lock.Unlock()

	var user *User
	switch m.store.Strategy() {
	case creds.StrategyToken:
		if token, ok := m.store.Token(); ok {
			decoded, err := decodeIdentity(token.AccessToken)
			if err != nil {
				m.log.Warn().Err(err).Msg("stored access token undecodable, clearing")
				m.store.Clear()
			} else {
				user = decoded
			}
		}
	case creds.StrategyCookie:
		probed, err := m.CheckStatus(ctx)
		if err != nil {
			m.log.Debug().Err(err).Msg("identity probe failed during initialize")
		} else {
			user = probed
		}
	}

	m.lock.Lock()
	m.session = Session{Phase: PhaseReady, IsAuthenticated: user != nil, User: user}
	current := m.session
	m.lock.Unlock()
	return current
}

// Login submits credentials and, on success, stores the returned tokens
// (token strategy) or re-probes identity (cookie strategy) before the
// session flips authenticated. Failures leave the session exactly as it
// was and surface as a normalized *apierrors.Error or a transport error.
// The username is canonicalized to lower case before submission.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))

	resp, err := m.transport.Send(ctx, http.MethodPost, loginPath, loginRequest{Username: username, Password: password})
	if err != nil {
		var httpErr *transport.HTTPError
		if errors.As(err, &httpErr) {
			return apierrors.FromResponse(httpErr.Status, httpErr.Body)
		}
		return errors.Wrap(err, "[Manager.Login] submit credentials")
	}

	var user *User
	var token *oauth2.Token

	switch m.store.Strategy() {
	case creds.StrategyToken:
		var pair tokenPairResponse
		if err := resp.JSON(&pair); err != nil {
			return errors.Wrap(err, "[Manager.Login] decode login response")
		}
		if pair.Access == "" || pair.Refresh == "" {
			return errors.New("[Manager.Login] login response missing token pair")
		}
		user, err = decodeIdentity(pair.Access)
		if err != nil {
			return errors.Wrap(err, "[Manager.Login] returned access token undecodable")
		}
		token = &oauth2.Token{AccessToken: pair.Access, RefreshToken: pair.Refresh, TokenType: "Bearer"}
	case creds.StrategyCookie:
		user, err = m.CheckStatus(ctx)
		if err != nil {
			return errors.Wrap(err, "[Manager.Login] identity probe after login")
		}
	}

	// Nothing was stored until here; store and swap together so no
	// partial transition is observable.
	if token != nil {
		m.store.SetToken(token)
	}
	m.lock.Lock()
	m.session.IsAuthenticated = true
	m.session.User = user
	m.lock.Unlock()

	m.log.Info().Str("username", username).Msg("logged in")
	return nil
}

// Logout notifies the backend best-effort (cookie strategy only), then
// unconditionally discards all credential material and flips the session
// unauthenticated, whether or not the notification succeeded.
func (m *Manager) Logout(ctx context.Context) {
	if m.store.Strategy() == creds.StrategyCookie {
		if _, err := m.transport.Send(ctx, http.MethodPost, logoutPath, nil); err != nil {
			m.log.Warn().Err(err).Msg("logout notification failed")
		}
	}

	m.store.Clear()
	m.Invalidate()
	m.log.Info().Msg("logged out")
}

// CheckStatus probes the identity endpoint. Read-only: it reports who the
// backend thinks we are and never mutates credentials or the session.
func (m *Manager) CheckStatus(ctx context.Context) (*User, error) {
	resp, err := m.transport.Send(ctx, http.MethodGet, mePath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.CheckStatus] identity probe")
	}

	var identity identityResponse
	if err := resp.JSON(&identity); err != nil {
		return nil, errors.Wrap(err, "[Manager.CheckStatus] decode identity payload")
	}
	if identity.Username == "" {
		return nil, errors.New("[Manager.CheckStatus] malformed identity payload")
	}

	return &User{ID: identity.PK, Username: identity.Username, Email: identity.Email}, nil
}

// Invalidate forces the session unauthenticated without touching the
// phase. The refresh coordinator calls this after an unrecoverable
// failure; the credential store is cleared by whoever decided to expire.
func (m *Manager) Invalidate() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.session.IsAuthenticated = false
	m.session.User = nil
}
