package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/vidflow-dev/vidflow/internal/apierror"
	"github.com/vidflow-dev/vidflow/internal/cli/client"
	"github.com/vidflow-dev/vidflow/internal/cli/userconfig"
	"github.com/vidflow-dev/vidflow/internal/forms"
	"github.com/vidflow-dev/vidflow/internal/logger"
	"github.com/vidflow-dev/vidflow/internal/models"
	"github.com/vidflow-dev/vidflow/internal/session"
	"github.com/vidflow-dev/vidflow/internal/tokenstore"
)

// Environment variables read by the commands
const (
	envEmail    = "VIDFLOW_EMAIL"
	envPassword = "VIDFLOW_PASSWORD"
	envLogLevel = "VIDFLOW_LOG_LEVEL"
)

// errNotAuthenticated is returned when a command needs a session and there is none
var errNotAuthenticated = tokenstore.ErrNotFound

// errInvalidInput is returned after field errors have been printed
var errInvalidInput = errors.New("invalid input")

// Globals carries the root flags and the wiring shared by all commands
type Globals struct {
	APIURL   string
	LogLevel string

	// OpenSession builds the session manager; replaced in tests
	OpenSession func(g *Globals) (*session.Manager, error)
	// ReadPassword prompts for a secret; replaced in tests
	ReadPassword func(out io.Writer, label string) (string, error)
}

// NewGlobals returns Globals wired to the OS keyring and terminal
func NewGlobals() *Globals {
	return &Globals{
		OpenSession:  openSession,
		ReadPassword: readPassword,
	}
}

func (g *Globals) session() (*session.Manager, error) {
	if g.OpenSession == nil {
		return openSession(g)
	}
	return g.OpenSession(g)
}

func (g *Globals) readPassword(out io.Writer, label string) (string, error) {
	if g.ReadPassword == nil {
		return readPassword(out, label)
	}
	return g.ReadPassword(out, label)
}

// accountService is the part of session.Manager the account commands use
type accountService interface {
	Register(ctx context.Context, req client.RegisterRequest) models.Envelope[models.User]
	Login(ctx context.Context, email, password string) models.Envelope[models.User]
	Logout()
	ValidateSession(ctx context.Context) models.Envelope[models.User]
	ForgotPassword(ctx context.Context, email string) models.Envelope[client.MessageResponse]
	ResetPassword(ctx context.Context, uid, token, newPassword, confirmPassword string) models.Envelope[client.MessageResponse]
	ActivateAccount(ctx context.Context, uid, token string) models.Envelope[client.MessageResponse]
	Restore() bool
}

// videoAPI is the part of the API client the catalog commands use
type videoAPI interface {
	Videos(ctx context.Context) ([]models.Video, error)
	StreamURL(videoID, resolution string) string
}

// openSession wires a Manager to the configured API and the OS keyring and
// restores stored credentials
func openSession(g *Globals) (*session.Manager, error) {
	apiURL, err := userconfig.ResolveAPIURL(g.APIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := g.LogLevel
	if level == "" {
		level = os.Getenv(envLogLevel)
	}
	if level == "" {
		level = "warn"
	}

	m := session.NewManager(session.Options{
		BaseURL: apiURL,
		Tokens:  tokenstore.NewKeyring(apiURL),
		Logger:  logger.New(level, "console", os.Stderr),
	})
	m.Restore()
	return m, nil
}

// readPassword reads a secret from the terminal without echo
func readPassword(out io.Writer, label string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("%s is required in non-interactive mode (use --password flag or %s env var)", label, envPassword)
	}

	fmt.Fprintf(out, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(out) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

// validate runs the form rules and prints field errors
func validate(out io.Writer, form any) error {
	err := forms.New().Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs forms.Errors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		fmt.Fprintf(out, "  ✗ %s: %s\n", fe.Field, fe.Message)
	}
	return errInvalidInput
}

// envelopeError turns a failed envelope into an error, printing field errors
// one per line
func envelopeError[T any](out io.Writer, action string, res models.Envelope[T]) error {
	if res.Success {
		return nil
	}
	if len(res.Errors) > 1 {
		for _, e := range res.Errors {
			fmt.Fprintf(out, "  ✗ %s\n", e)
		}
	}
	return fmt.Errorf("%s: %s", action, res.Message)
}

// authError maps an unauthorized API failure to the login hint
func authError(action string, err error) error {
	if apierror.IsUnauthorized(err) {
		return errNotAuthenticated
	}
	return fmt.Errorf("%s: %s", action, apierror.From(err).Display())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
