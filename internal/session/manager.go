package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vidflow-dev/vidflow/internal/apierror"
	"github.com/vidflow-dev/vidflow/internal/cli/client"
	"github.com/vidflow-dev/vidflow/internal/models"
	"github.com/vidflow-dev/vidflow/internal/tokenstore"
	"github.com/vidflow-dev/vidflow/internal/transport"
)

// Options configures a Manager
type Options struct {
	// BaseURL of the API, including its prefix
	BaseURL string
	Tokens  tokenstore.Store
	// Transport performs the network calls under the authorization layer.
	// Defaults to http.DefaultTransport.
	Transport      http.RoundTripper
	Timeout        time.Duration
	RefreshTimeout time.Duration
	Logger         zerolog.Logger
	// OnSessionExpired runs after an unrecoverable 401 cleared the session,
	// the place to send the user back to the login screen
	OnSessionExpired func()
}

// Manager is the single source of truth for "is there a usable session". It
// owns the session Store and is the only component that writes to it.
type Manager struct {
	api       *client.Client
	state     *Store
	tokens    tokenstore.Store
	logger    zerolog.Logger
	onExpired func()
}

// NewManager wires the API client behind an authorization layer that reports
// back to the returned Manager
func NewManager(opts Options) *Manager {
	tokens := opts.Tokens
	if tokens == nil {
		tokens = tokenstore.NewMemory()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	m := &Manager{
		state:     NewStore(),
		tokens:    tokens,
		logger:    opts.Logger,
		onExpired: opts.OnSessionExpired,
	}

	authTransport := transport.New(transport.Config{
		Base:   opts.Transport,
		Tokens: tokens,
		Refresh: func(ctx context.Context, refreshToken string) (models.TokenPair, error) {
			return m.api.RefreshToken(ctx, refreshToken)
		},
		OnSessionExpired: m.HandleSessionExpired,
		RefreshTimeout:   opts.RefreshTimeout,
		Logger:           opts.Logger,
	})

	m.api = client.New(opts.BaseURL,
		client.WithTimeout(timeout),
		client.WithTransport(authTransport),
	)

	return m
}

// API returns the authorized API client for other components
func (m *Manager) API() *client.Client {
	return m.api
}

// Register creates an account. Registration does not log the user in.
func (m *Manager) Register(ctx context.Context, req client.RegisterRequest) models.Envelope[models.User] {
	resp, err := m.api.Register(ctx, req)
	if err != nil {
		return failure[models.User](m.logger, "register", err)
	}

	m.logger.Info().Str("email", req.Email).Msg("Account registered")

	message := resp.Message
	if message == "" {
		message = "Registration successful"
	}
	return models.OK(resp.Data, message)
}

// Login authenticates and stores the returned tokens and user. On failure the
// session is left untouched.
func (m *Manager) Login(ctx context.Context, email, password string) models.Envelope[models.User] {
	resp, err := m.api.Login(ctx, client.LoginRequest{Email: email, Password: password})
	if err != nil {
		return failure[models.User](m.logger, "login", err)
	}

	if err := m.tokens.Save(models.TokenPair{Access: resp.Access, Refresh: resp.Refresh}); err != nil {
		m.logger.Error().Err(err).Msg("Failed to store credentials")
		return models.Fail[models.User]("Failed to store credentials: " + err.Error())
	}

	m.state.SetAuthenticated(resp.User)
	m.logger.Info().Str("email", email).Msg("Logged in")

	return models.OK(cloneUser(resp.User), "Login successful")
}

// ValidateSession probes the protected user endpoint. Any 2xx confirms the
// session; any error, network failures included, clears it. The probe body
// is handed to the caller but not stored.
func (m *Manager) ValidateSession(ctx context.Context) models.Envelope[models.User] {
	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		m.clear()
		return failure[models.User](m.logger, "validate session", err)
	}

	m.state.Confirm()
	return models.OK(user, "Session is valid")
}

// Logout forgets the stored credentials and resets the session. No server call
// is made.
func (m *Manager) Logout() {
	m.clear()
	m.logger.Info().Msg("Logged out")
}

// ForgotPassword requests a password reset email
func (m *Manager) ForgotPassword(ctx context.Context, email string) models.Envelope[client.MessageResponse] {
	resp, err := m.api.RequestPasswordReset(ctx, client.PasswordResetRequest{Email: email})
	if err != nil {
		return failure[client.MessageResponse](m.logger, "forgot password", err)
	}
	return models.OK(resp, resp.Message)
}

// ResetPassword sets a new password with the uid and token from the reset email
func (m *Manager) ResetPassword(ctx context.Context, uid, token, newPassword, confirmPassword string) models.Envelope[client.MessageResponse] {
	resp, err := m.api.ConfirmPasswordReset(ctx, uid, token, client.PasswordConfirmRequest{
		NewPassword:     newPassword,
		ConfirmPassword: confirmPassword,
	})
	if err != nil {
		return failure[client.MessageResponse](m.logger, "reset password", err)
	}
	return models.OK(resp, resp.Message)
}

// ActivateAccount confirms an account with the uid and token from the activation email
func (m *Manager) ActivateAccount(ctx context.Context, uid, token string) models.Envelope[client.MessageResponse] {
	resp, err := m.api.Activate(ctx, uid, token)
	if err != nil {
		return failure[client.MessageResponse](m.logger, "activate account", err)
	}
	return models.OK(resp, resp.Message)
}

// IsAuthenticated returns the last-known state without a network call
func (m *Manager) IsAuthenticated() bool {
	return m.state.Get().Authenticated
}

// CurrentUser returns the last-known user, nil when unknown
func (m *Manager) CurrentUser() *models.User {
	return cloneUser(m.state.Get().User)
}

// Subscribe streams session transitions, see Store.Subscribe
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	return m.state.Subscribe()
}

// Restore marks the session authenticated when credentials survived from a
// previous run. It does not check them; call ValidateSession for that.
func (m *Manager) Restore() bool {
	pair, err := m.tokens.Load()
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			m.logger.Warn().Err(err).Msg("Failed to load stored credentials")
		}
		return false
	}
	if pair.Access == "" {
		return false
	}

	m.state.Confirm()
	return true
}

// HandleSessionExpired clears the session after the authorization layer gave
// up on a 401, then notifies OnSessionExpired
func (m *Manager) HandleSessionExpired() {
	m.logger.Warn().Msg("Session expired")
	m.clear()
	if m.onExpired != nil {
		m.onExpired()
	}
}

func (m *Manager) clear() {
	if err := m.tokens.Clear(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to clear stored credentials")
	}
	m.state.Clear()
}

// failure normalizes err into a failed envelope. Structured field errors
// populate Errors; anything else carries only Message.
func failure[T any](logger zerolog.Logger, op string, err error) models.Envelope[T] {
	apiErr := apierror.From(err)

	logger.Debug().
		Err(err).
		Str("op", op).
		Int("status", apiErr.Status).
		Msg("Request failed")

	if apiErr.Kind == apierror.KindFields {
		return models.Fail[T](apiErr.Display(), apiErr.Messages()...)
	}
	return models.Fail[T](apiErr.Display())
}
