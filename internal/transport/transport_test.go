package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidflow-dev/vidflow/internal/models"
	"github.com/vidflow-dev/vidflow/internal/tokenstore"
)

// refreshVia returns a RefreshFunc posting to the test server
func refreshVia(baseURL string) RefreshFunc {
	return func(ctx context.Context, refreshToken string) (models.TokenPair, error) {
		body := strings.NewReader(`{"refresh":"` + refreshToken + `"}`)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/token/refresh/", body)
		if err != nil {
			return models.TokenPair{}, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return models.TokenPair{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return models.TokenPair{}, errors.New(resp.Status)
		}
		var pair models.TokenPair
		err = json.NewDecoder(resp.Body).Decode(&pair)
		return pair, err
	}
}

func newTestClient(t *testing.T, baseURL string, tokens tokenstore.Store, onExpired func()) *http.Client {
	t.Helper()
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: New(Config{
			Tokens:           tokens,
			Refresh:          refreshVia(baseURL),
			OnSessionExpired: onExpired,
			Logger:           zerolog.Nop(),
		}),
	}
}

func TestAuthTransport_AttachesBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Save(models.TokenPair{Access: "abc", Refresh: "r"}))

	resp, err := newTestClient(t, srv.URL, tokens, nil).Get(srv.URL + "/video/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestAuthTransport_PublicRequestsSkipCredentials(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh/" {
			refreshCalls.Add(1)
		}
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Save(models.TokenPair{Access: "abc", Refresh: "r"}))

	expired := false
	client := newTestClient(t, srv.URL, tokens, func() { expired = true })

	req, err := http.NewRequestWithContext(WithoutAuth(context.Background()), http.MethodPost, srv.URL+"/login/", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, refreshCalls.Load())
	assert.False(t, expired)
}

func TestAuthTransport_OtherErrorsPassThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"nope"}`))
	}))
	defer srv.Close()

	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Save(models.TokenPair{Access: "abc", Refresh: "r"}))

	resp, err := newTestClient(t, srv.URL, tokens, nil).Get(srv.URL + "/video/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"nope"}`, string(body))
}

func TestAuthTransport_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const callers = 3

	var (
		refreshCalls atomic.Int32
		rejected     atomic.Int32
		retried      atomic.Int32
		release      = make(chan struct{})
		releaseOnce  sync.Once
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/refresh/":
			refreshCalls.Add(1)
			// keep the refresh pending until every caller has seen its 401
			select {
			case <-release:
			case <-time.After(5 * time.Second):
				w.WriteHeader(http.StatusGatewayTimeout)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"access": "new-access"})
		case "/video/":
			if r.Header.Get("Authorization") == "Bearer new-access" {
				retried.Add(1)
				w.WriteHeader(http.StatusOK)
				return
			}
			if rejected.Add(1) == callers {
				releaseOnce.Do(func() { close(release) })
			}
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Save(models.TokenPair{Access: "old-access", Refresh: "refresh-1"}))

	expired := atomic.Bool{}
	client := newTestClient(t, srv.URL, tokens, func() { expired.Store(true) })

	var wg sync.WaitGroup
	statuses := make([]int, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(srv.URL + "/video/")
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), refreshCalls.Load(), "exactly one refresh call")
	assert.Equal(t, int32(callers), retried.Load(), "every request retried with the new token")
	for i, status := range statuses {
		assert.Equal(t, http.StatusOK, status, "request %d", i)
	}
	assert.False(t, expired.Load())

	pair, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, models.TokenPair{Access: "new-access", Refresh: "refresh-1"}, pair)
}

func TestAuthTransport_RefreshFailureExpiresSession(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh/" {
			refreshCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
	}))
	defer srv.Close()

	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Save(models.TokenPair{Access: "old", Refresh: "revoked"}))

	expiredCalls := 0
	resp, err := newTestClient(t, srv.URL, tokens, func() { expiredCalls++ }).Get(srv.URL + "/user/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Token is invalid or expired"}`, string(body), "original 401 is returned")
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, 1, expiredCalls)
}

func TestAuthTransport_RejectedRetryExpiresSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh/" {
			json.NewEncoder(w).Encode(map[string]string{"access": "b"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Save(models.TokenPair{Access: "a", Refresh: "r"}))

	expiredCalls := 0
	client := newTestClient(t, srv.URL, tokens, func() {
		expiredCalls++
		_ = tokens.Clear()
	})

	resp, err := client.Get(srv.URL + "/user/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, expiredCalls)
	_, err = tokens.Load()
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestAuthTransport_ConcurrentFailureExpiresOnce(t *testing.T) {
	const callers = 3

	var (
		rejected    atomic.Int32
		release     = make(chan struct{})
		releaseOnce sync.Once
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh/" {
			select {
			case <-release:
			case <-time.After(5 * time.Second):
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if rejected.Add(1) == callers {
			releaseOnce.Do(func() { close(release) })
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Save(models.TokenPair{Access: "old", Refresh: "revoked"}))

	var expiredCalls atomic.Int32
	client := newTestClient(t, srv.URL, tokens, func() {
		expiredCalls.Add(1)
		_ = tokens.Clear()
	})

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(srv.URL + "/video/")
			if assert.NoError(t, err) {
				resp.Body.Close()
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), expiredCalls.Load())
}

func TestAuthTransport_NoRefreshTokenExpiresSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	expired := false
	resp, err := newTestClient(t, srv.URL, tokenstore.NewMemory(), func() { expired = true }).Get(srv.URL + "/user/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, expired)
}

func TestAuthTransport_ReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh/" {
			json.NewEncoder(w).Encode(map[string]string{"access": "fresh", "refresh": "rotated"})
			return
		}
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Save(models.TokenPair{Access: "stale", Refresh: "r1"}))

	// a reader without GetBody forces the transport to buffer
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/video/", io.NopCloser(strings.NewReader(`{"title":"x"}`)))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := newTestClient(t, srv.URL, tokens, nil).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{`{"title":"x"}`, `{"title":"x"}`}, bodies)

	pair, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, models.TokenPair{Access: "fresh", Refresh: "rotated"}, pair)
}

// swapOnSend stores a new token pair right after the first request leaves,
// as if another caller's refresh finished while it was in flight
type swapOnSend struct {
	base   http.RoundTripper
	tokens tokenstore.Store
	once   sync.Once
}

func (s *swapOnSend) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.base.RoundTrip(req)
	s.once.Do(func() {
		_ = s.tokens.Save(models.TokenPair{Access: "already-fresh", Refresh: "r2"})
	})
	return resp, err
}

func TestAuthTransport_LateUnauthorizedUsesCompletedRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh/" {
			refreshCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"access": "unexpected"})
			return
		}
		if r.Header.Get("Authorization") == "Bearer already-fresh" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Save(models.TokenPair{Access: "old", Refresh: "r1"}))

	client := &http.Client{Transport: New(Config{
		Base:    &swapOnSend{base: http.DefaultTransport, tokens: tokens},
		Tokens:  tokens,
		Refresh: refreshVia(srv.URL),
		Logger:  zerolog.Nop(),
	})}

	resp, err := client.Get(srv.URL + "/video/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, refreshCalls.Load())
}
