package transport_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-client/creds"
	"github.com/jrsteele09/go-session-client/transport"
)

func TestEnsureToken_ConcurrentCallersShareOneFetch(t *testing.T) {
	var fetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": "csrf-1"})
	})
	f := setupTestFixture(t, creds.StrategyCookie, mux)

	const callers = 4
	tokens := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = f.client.CSRF().EnsureToken(context.Background())
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), fetches.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "csrf-1", tokens[i])
	}
}

func TestEnsureToken_CachedAfterFirstCall(t *testing.T) {
	var fetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": "csrf-1"})
	})
	f := setupTestFixture(t, creds.StrategyCookie, mux)

	for i := 0; i < 3; i++ {
		token, err := f.client.CSRF().EnsureToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, "csrf-1", token)
	}
	require.Equal(t, int32(1), fetches.Load())
}

func TestEnsureToken_CookieFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		// Body omits the token; the cookie is the only source.
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "from-cookie", Path: "/"})
		_, _ = w.Write([]byte(`{}`))
	})
	f := setupTestFixture(t, creds.StrategyCookie, mux)

	token, err := f.client.CSRF().EnsureToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "from-cookie", token)
}

func TestEnsureToken_UnavailableWhenNoSourceYields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	f := setupTestFixture(t, creds.StrategyCookie, mux)

	_, err := f.client.CSRF().EnsureToken(context.Background())
	require.ErrorIs(t, err, transport.ErrCSRFUnavailable)
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	var fetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		n := fetches.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": fmt.Sprintf("csrf-%d", n)})
	})
	f := setupTestFixture(t, creds.StrategyCookie, mux)

	token, err := f.client.CSRF().EnsureToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "csrf-1", token)

	f.client.CSRF().Invalidate()

	token, err = f.client.CSRF().EnsureToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "csrf-2", token)
	require.Equal(t, int32(2), fetches.Load())
}
