package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vidflow-dev/vidflow/internal/apierror"
	"github.com/vidflow-dev/vidflow/internal/models"
	"github.com/vidflow-dev/vidflow/internal/transport"
)

const defaultTimeout = 30 * time.Second

// Client represents an HTTP client for the vidflow API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithTimeout bounds every request, retries included
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithTransport sets the round tripper requests go through
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// New creates a new API client. baseURL includes the API prefix, e.g.
// "http://localhost:8000/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=8"`
	ConfirmedPassword string `json:"confirmed_password" validate:"required,eqfield=Password"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	Success bool         `json:"success"`
	Data    *models.User `json:"data"`
	Message string       `json:"message"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *models.User `json:"user"`
}

// PasswordResetRequest starts the password reset flow
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordConfirmRequest sets the new password
type PasswordConfirmRequest struct {
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// MessageResponse is returned by endpoints that only report an outcome
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Register creates an account. It does not log the user in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.do(transport.WithoutAuth(ctx), http.MethodPost, "/register/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges credentials for a token pair
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(transport.WithoutAuth(ctx), http.MethodPost, "/login/", req, &resp); err != nil {
		return nil, err
	}
	if resp.Access == "" {
		return nil, fmt.Errorf("login response did not include an access token")
	}
	return &resp, nil
}

// CurrentUser fetches the protected user endpoint
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/user/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RequestPasswordReset asks the API to mail a reset link
func (c *Client) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.do(transport.WithoutAuth(ctx), http.MethodPost, "/password_reset/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmPasswordReset sets a new password using the mailed uid and token
func (c *Client) ConfirmPasswordReset(ctx context.Context, uid, token string, req PasswordConfirmRequest) (*MessageResponse, error) {
	var resp MessageResponse
	path := fmt.Sprintf("/password_confirm/%s/%s/", url.PathEscape(uid), url.PathEscape(token))
	if err := c.do(transport.WithoutAuth(ctx), http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Activate confirms an account using the mailed uid and token
func (c *Client) Activate(ctx context.Context, uid, token string) (*MessageResponse, error) {
	var resp MessageResponse
	path := fmt.Sprintf("/activate/%s/%s/", url.PathEscape(uid), url.PathEscape(token))
	if err := c.do(transport.WithoutAuth(ctx), http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshToken exchanges a refresh token for a new access token. The returned
// Refresh is empty when the API does not rotate refresh tokens.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	var pair models.TokenPair
	err := c.do(transport.WithoutAuth(ctx), http.MethodPost, "/token/refresh/", refreshRequest{Refresh: refreshToken}, &pair)
	return pair, err
}

// Videos lists the catalog
func (c *Client) Videos(ctx context.Context) ([]models.Video, error) {
	var videos []models.Video
	if err := c.do(ctx, http.MethodGet, "/video/", nil, &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// StreamURL returns the adaptive-streaming manifest URL of a video
func (c *Client) StreamURL(videoID, resolution string) string {
	return fmt.Sprintf("%s/video/%s/%s/index.m3u8", c.baseURL, url.PathEscape(videoID), url.PathEscape(resolution))
}

// do sends a JSON request and decodes a JSON response into out. Failures are
// returned as *apierror.Error.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierror.FromTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierror.FromTransport(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierror.FromResponse(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
