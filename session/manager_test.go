package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-client/apierrors"
	"github.com/jrsteele09/go-session-client/creds"
	"github.com/jrsteele09/go-session-client/creds/storage"
	"github.com/jrsteele09/go-session-client/internal/utils"
	"github.com/jrsteele09/go-session-client/refresh"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/jrsteele09/go-session-client/transport"
)

const (
	testUserID   = int64(7)
	testUsername = "alice"
	testEmail    = "alice@example.com"
	testPassword = "password123"
)

type testFixture struct {
	manager  *session.Manager
	store    *creds.Store
	durable  *storage.Memory
	recovery *refresh.Manager
	requests atomic.Int32
}

func setupTestFixture(t *testing.T, strategy creds.Strategy, durable *storage.Memory, handler http.Handler) *testFixture {
	t.Helper()

	f := &testFixture{durable: durable}
	if f.durable == nil {
		f.durable = storage.NewMemory()
	}

	counting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		handler.ServeHTTP(w, r)
	})
	server := httptest.NewServer(counting)
	t.Cleanup(server.Close)

	f.store = creds.NewStore(strategy, f.durable)

	client, err := transport.New(server.URL, f.store)
	require.NoError(t, err)

	f.recovery, err = refresh.NewManager(client, f.store)
	require.NoError(t, err)

	f.manager, err = session.NewManager(client, f.store, f.recovery)
	require.NoError(t, err)

	return f
}

func signedAccessToken(t *testing.T, username string) string {
	t.Helper()

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"user_id":  testUserID,
		"username": username,
		"email":    testEmail,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func identityHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pk":               testUserID,
			"username":         testUsername,
			"email":            testEmail,
			"is_authenticated": true,
		})
	}
}

func TestInitialize_TokenStrategyDecodesClaimsWithoutNetwork(t *testing.T) {
	durable := storage.NewMemory()
	durable.Set(creds.AccessTokenKey, signedAccessToken(t, testUsername))
	durable.Set(creds.RefreshTokenKey, "refresh-1")

	f := setupTestFixture(t, creds.StrategyToken, durable, http.NotFoundHandler())

	snapshot := f.manager.Initialize(context.Background())

	require.Equal(t, session.PhaseReady, snapshot.Phase)
	require.True(t, snapshot.IsAuthenticated)
	require.Equal(t, testUsername, utils.Value(snapshot.User).Username)
	require.Equal(t, testEmail, utils.Value(snapshot.User).Email)
	require.Equal(t, testUserID, utils.Value(snapshot.User).ID)
	require.Zero(t, f.requests.Load(), "token-strategy initialize must not touch the network")
}

func TestInitialize_TokenStrategyClearsUndecodableToken(t *testing.T) {
	durable := storage.NewMemory()
	durable.Set(creds.AccessTokenKey, "not-a-jwt")
	durable.Set(creds.RefreshTokenKey, "refresh-1")

	f := setupTestFixture(t, creds.StrategyToken, durable, http.NotFoundHandler())

	snapshot := f.manager.Initialize(context.Background())

	require.Equal(t, session.PhaseReady, snapshot.Phase)
	require.False(t, snapshot.IsAuthenticated)
	require.Nil(t, snapshot.User)

	_, ok := f.store.Token()
	require.False(t, ok)
	_, ok = durable.Get(creds.AccessTokenKey)
	require.False(t, ok)
}

func TestInitialize_TokenStrategyEmptyStore(t *testing.T) {
	f := setupTestFixture(t, creds.StrategyToken, nil, http.NotFoundHandler())

	snapshot := f.manager.Initialize(context.Background())

	require.Equal(t, session.PhaseReady, snapshot.Phase)
	require.False(t, snapshot.IsAuthenticated)
}

func TestInitialize_CookieStrategyProbesIdentity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me/", identityHandler(t))
	f := setupTestFixture(t, creds.StrategyCookie, nil, mux)

	snapshot := f.manager.Initialize(context.Background())

	require.True(t, snapshot.IsAuthenticated)
	require.Equal(t, testUsername, utils.Value(snapshot.User).Username)
}

func TestInitialize_CookieStrategyFailsSafe(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "Authentication credentials were not provided."}`))
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{`))
		}},
		{"empty identity", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t, creds.StrategyCookie, nil, tc.handler)

			snapshot := f.manager.Initialize(context.Background())

			require.Equal(t, session.PhaseReady, snapshot.Phase)
			require.False(t, snapshot.IsAuthenticated)
			require.Nil(t, snapshot.User)
		})
	}
}

func TestInitialize_RunsOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me/", identityHandler(t))
	f := setupTestFixture(t, creds.StrategyCookie, nil, mux)

	first := f.manager.Initialize(context.Background())
	second := f.manager.Initialize(context.Background())

	require.Equal(t, first, second)
	require.Equal(t, int32(1), f.requests.Load())
}

func TestLogin_TokenStrategyRoundTrip(t *testing.T) {
	var submitted map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access":  signedAccessToken(t, testUsername),
			"refresh": "refresh-1",
		})
	})
	f := setupTestFixture(t, creds.StrategyToken, nil, mux)

	// Mixed-case input is canonicalized before submission.
	require.NoError(t, f.manager.Login(context.Background(), "Alice", testPassword))
	require.Equal(t, testUsername, submitted["username"])

	snapshot := f.manager.Current()
	require.True(t, snapshot.IsAuthenticated)
	require.Equal(t, testUsername, utils.Value(snapshot.User).Username)

	token, ok := f.store.Token()
	require.True(t, ok)
	require.Equal(t, "refresh-1", token.RefreshToken)

	persisted, ok := f.durable.Get(creds.RefreshTokenKey)
	require.True(t, ok)
	require.Equal(t, "refresh-1", persisted)
}

func TestLogin_InvalidCredentialsLeaveSessionUntouched(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "No active account found with the given credentials"}`))
	})
	f := setupTestFixture(t, creds.StrategyToken, nil, mux)

	err := f.manager.Login(context.Background(), testUsername, "wrong")

	var apiErr *apierrors.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apierrors.KindInvalidCredentials, apiErr.Primary().Kind)

	require.False(t, f.manager.Current().IsAuthenticated)
	_, ok := f.store.Token()
	require.False(t, ok)
}

func TestLogin_CookieStrategyReprobes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": "csrf-1"})
	})
	mux.HandleFunc("/api/users/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/users/me/", identityHandler(t))
	f := setupTestFixture(t, creds.StrategyCookie, nil, mux)

	require.NoError(t, f.manager.Login(context.Background(), testUsername, testPassword))

	snapshot := f.manager.Current()
	require.True(t, snapshot.IsAuthenticated)
	require.Equal(t, testUserID, utils.Value(snapshot.User).ID)
}

func TestLogout_ClearsEverythingEvenWhenBackendFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": "csrf-1"})
	})
	mux.HandleFunc("/api/users/me/", identityHandler(t))
	mux.HandleFunc("/api/auth/logout/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	f := setupTestFixture(t, creds.StrategyCookie, nil, mux)

	f.manager.Initialize(context.Background())
	require.True(t, f.manager.Current().IsAuthenticated)

	f.manager.Logout(context.Background())

	snapshot := f.manager.Current()
	require.False(t, snapshot.IsAuthenticated)
	require.Nil(t, snapshot.User)
	_, ok := f.store.CSRFToken()
	require.False(t, ok)
}

func TestLogout_TokenStrategyDiscardsPairLocally(t *testing.T) {
	durable := storage.NewMemory()
	durable.Set(creds.AccessTokenKey, signedAccessToken(t, testUsername))
	durable.Set(creds.RefreshTokenKey, "refresh-1")
	f := setupTestFixture(t, creds.StrategyToken, durable, http.NotFoundHandler())

	f.manager.Initialize(context.Background())
	require.True(t, f.manager.Current().IsAuthenticated)

	f.manager.Logout(context.Background())

	require.False(t, f.manager.Current().IsAuthenticated)
	_, ok := f.store.Token()
	require.False(t, ok)
	_, ok = durable.Get(creds.AccessTokenKey)
	require.False(t, ok)
	// No backend notification under the token strategy.
	require.Zero(t, f.requests.Load())
}

func TestSessionExpiry_FlipsSessionUnauthenticated(t *testing.T) {
	durable := storage.NewMemory()
	durable.Set(creds.AccessTokenKey, signedAccessToken(t, testUsername))
	durable.Set(creds.RefreshTokenKey, "refresh-1")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Token is invalid or expired"}`))
	})
	mux.HandleFunc("/api/emergency/contacts/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Given token not valid for any token type"}`))
	})
	f := setupTestFixture(t, creds.StrategyToken, durable, mux)

	f.manager.Initialize(context.Background())
	require.True(t, f.manager.Current().IsAuthenticated)

	_, err := f.recovery.Send(context.Background(), http.MethodGet, "/api/emergency/contacts/", nil)
	require.ErrorIs(t, err, refresh.ErrSessionExpired)

	// The coordinator's expiry hook transitioned the session.
	snapshot := f.manager.Current()
	require.False(t, snapshot.IsAuthenticated)
	require.Nil(t, snapshot.User)
	_, ok := f.store.Token()
	require.False(t, ok)
}
