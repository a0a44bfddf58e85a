// Package transport implements the request authorization layer.
//
// AuthTransport attaches the stored bearer token to every outgoing request and
// recovers from 401 responses with a single coalesced token refresh: however
// many requests observe the 401 concurrently, one refresh call is made and all
// of them are retried with its result.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vidflow-dev/vidflow/internal/models"
	"github.com/vidflow-dev/vidflow/internal/tokenstore"
)

const (
	bearerPrefix          = "Bearer "
	defaultRefreshTimeout = 15 * time.Second
)

var (
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrRefreshFailed  = errors.New("token refresh failed")
)

// RefreshFunc exchanges a refresh token for a new pair. An empty Refresh in
// the result keeps the current refresh token.
type RefreshFunc func(ctx context.Context, refreshToken string) (models.TokenPair, error)

type skipAuthKey struct{}

// WithoutAuth marks requests made with ctx as public: no credentials are
// attached and a 401 is returned to the caller as is
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipAuthKey{}, true)
}

func skipAuth(ctx context.Context) bool {
	skip, _ := ctx.Value(skipAuthKey{}).(bool)
	return skip
}

// Config configures an AuthTransport
type Config struct {
	// Base performs the actual requests. Defaults to http.DefaultTransport.
	Base   http.RoundTripper
	Tokens tokenstore.Store
	// Refresh is called at most once per refresh token, however many requests
	// are waiting on it
	Refresh RefreshFunc
	// OnSessionExpired is called when a 401 cannot be recovered from
	OnSessionExpired func()
	RefreshTimeout   time.Duration
	Logger           zerolog.Logger
}

// AuthTransport is an http.RoundTripper applying the credential policy
type AuthTransport struct {
	base           http.RoundTripper
	tokens         tokenstore.Store
	refresh        RefreshFunc
	onExpired      func()
	refreshTimeout time.Duration
	logger         zerolog.Logger

	// mu orders "load the current pair then join a refresh" against the
	// refresh saving its result, so a caller never starts a second refresh
	// with a token that was already exchanged
	mu    sync.Mutex
	group singleflight.Group

	// the access token the expiry hook last fired for, guarded by mu
	expired      bool
	expiredToken string
}

// New creates an AuthTransport
func New(cfg Config) *AuthTransport {
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}

	return &AuthTransport{
		base:           base,
		tokens:         cfg.Tokens,
		refresh:        cfg.Refresh,
		onExpired:      cfg.OnSessionExpired,
		refreshTimeout: timeout,
		logger:         cfg.Logger,
	}
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if skipAuth(req.Context()) {
		return t.base.RoundTrip(req)
	}

	req, err := replayable(req)
	if err != nil {
		return nil, err
	}

	sent, err := t.currentAccess()
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(withBearer(req, sent))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	fresh, err := t.freshToken(req.Context(), sent)
	if err != nil {
		t.logger.Debug().Err(err).Str("path", req.URL.Path).Msg("Unauthorized response could not be recovered")
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.expireOnce(sent)
		}
		return resp, nil
	}

	// The original 401 is discarded in favour of the retry
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}

	resp, err = t.base.RoundTrip(withBearer(retry, fresh))
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		t.logger.Debug().Str("path", req.URL.Path).Msg("Refreshed access token was rejected")
		t.expireOnce(fresh)
	}
	return resp, err
}

func (t *AuthTransport) currentAccess() (string, error) {
	pair, err := t.tokens.Load()
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}
	return pair.Access, nil
}

// freshToken returns an access token different from sent, refreshing at most
// once for all concurrent callers
func (t *AuthTransport) freshToken(ctx context.Context, sent string) (string, error) {
	t.mu.Lock()
	pair, err := t.tokens.Load()
	if err != nil {
		t.mu.Unlock()
		if errors.Is(err, tokenstore.ErrNotFound) {
			return "", ErrNoRefreshToken
		}
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}
	if pair.Access != "" && pair.Access != sent {
		// a refresh finished while this request was in flight
		t.mu.Unlock()
		return pair.Access, nil
	}
	if pair.Refresh == "" || t.refresh == nil {
		t.mu.Unlock()
		return "", ErrNoRefreshToken
	}

	ch := t.group.DoChan(pair.Refresh, func() (any, error) {
		return t.doRefresh(ctx, pair.Refresh)
	})
	t.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *AuthTransport) doRefresh(ctx context.Context, refreshToken string) (string, error) {
	// the refresh outlives the caller that happened to start it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.refreshTimeout)
	defer cancel()

	t.logger.Debug().Msg("Refreshing access token")

	next, err := t.refresh(WithoutAuth(ctx), refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if next.Access == "" {
		return "", fmt.Errorf("%w: empty access token", ErrRefreshFailed)
	}
	if next.Refresh == "" {
		next.Refresh = refreshToken
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tokens.Save(next); err != nil {
		return "", fmt.Errorf("failed to save refreshed token: %w", err)
	}

	t.logger.Debug().Msg("Access token refreshed")
	return next.Access, nil
}

// expireOnce fires the expiry hook unless it already fired for token. All
// requests rejected with the same credentials end the session once.
func (t *AuthTransport) expireOnce(token string) {
	t.mu.Lock()
	if t.expired && t.expiredToken == token {
		t.mu.Unlock()
		return
	}
	t.expired, t.expiredToken = true, token
	t.mu.Unlock()

	if t.onExpired != nil {
		t.onExpired()
	}
}

func withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	if token != "" {
		r.Header.Set("Authorization", bearerPrefix+token)
	} else {
		r.Header.Del("Authorization")
	}
	return r
}

// replayable returns a copy of req whose body can be read again for a retry
func replayable(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return req, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}

	r := req.Clone(req.Context())
	r.Body = io.NopCloser(bytes.NewReader(data))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return r, nil
}

func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.GetBody == nil {
		return r, nil
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	r.Body = body
	return r, nil
}
