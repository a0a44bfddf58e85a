package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidflow-dev/vidflow/internal/apierror"
)

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login/", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Password != "password123" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail": "Invalid email or password."}`))
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"access":  "access-token",
			"refresh": "refresh-token",
			"user":    map[string]any{"id": "u1", "email": req.Email},
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/")

	t.Run("success", func(t *testing.T) {
		resp, err := c.Login(context.Background(), LoginRequest{Email: "a@example.com", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, "access-token", resp.Access)
		assert.Equal(t, "refresh-token", resp.Refresh)
		require.NotNil(t, resp.User)
		assert.Equal(t, "a@example.com", resp.User.Email)
	})

	t.Run("rejected", func(t *testing.T) {
		_, err := c.Login(context.Background(), LoginRequest{Email: "a@example.com", Password: "wrong"})
		require.Error(t, err)

		var apiErr *apierror.Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, apierror.KindMessage, apiErr.Kind)
		assert.Equal(t, "Invalid email or password.", apiErr.Display())
		assert.True(t, apierror.IsUnauthorized(err))
	})
}

func TestClient_PathSegmentsAreEscaped(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"success": true, "message": "Account activated."}`))
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Activate(context.Background(), "01HX/uid", "tok en")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "/activate/01HX%2Fuid/tok%20en/", gotPath)
}

func TestClient_Videos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/video/", r.URL.Path)
		w.Write([]byte(`[
			{"id": "v1", "title": "First", "category": "Action", "created_at": "2026-10-10T12:00:00Z"},
			{"id": "v2", "title": "Second"}
		]`))
	}))
	defer srv.Close()

	videos, err := New(srv.URL).Videos(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "Action", videos[0].Category)
	require.NotNil(t, videos[0].CreatedAt)
	assert.Nil(t, videos[1].CreatedAt)
}

func TestClient_ValidationErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"email": ["A user with that email already exists."], "password": "Too short."}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Register(context.Background(), RegisterRequest{Email: "a@example.com"})

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindFields, apiErr.Kind)
	assert.Equal(t, []string{"A user with that email already exists.", "Too short."}, apiErr.Messages())
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).CurrentUser(context.Background())

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindTransport, apiErr.Kind)
}

func TestClient_StreamURL(t *testing.T) {
	c := New("https://api.example.com/api/")
	assert.Equal(t, "https://api.example.com/api/video/v1/720p/index.m3u8", c.StreamURL("v1", "720p"))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_WithTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	var seen int
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen++
		r = r.Clone(r.Context())
		r.Header.Set("Authorization", "Bearer abc")
		return http.DefaultTransport.RoundTrip(r)
	})

	c := New(srv.URL, WithTimeout(5*time.Second), WithTransport(rt))
	videos, err := c.Videos(context.Background())
	require.NoError(t, err)
	assert.Empty(t, videos)
	assert.Equal(t, 1, seen)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
}
