package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vidflow-dev/vidflow/internal/auth"
	"github.com/vidflow-dev/vidflow/internal/models"
)

const (
	bearerPrefix = "Bearer "
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrUserNotFound      = errors.New("user not found")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// respondWithError aborts with a {"detail": message} body, the shape clients
// display as is
func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.AbortWithStatusJSON(statusCode, gin.H{"detail": message})
}

// JWTAuthMiddleware requires a valid access token
func (s *Server) JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			var message string
			switch err {
			case ErrMissingAuthHeader:
				message = "Authentication credentials were not provided."
			case ErrInvalidAuthFormat:
				message = "Invalid authorization header format"
			case ErrEmptyToken:
				message = "Empty token"
			}
			respondWithError(c, s.logger, http.StatusUnauthorized, err, message)
			return
		}

		claims, err := s.issuer.Validate(token, auth.AccessToken)
		if err != nil {
			respondWithError(c, s.logger, http.StatusUnauthorized, err, "Token is invalid or expired")
			return
		}

		// Verify user still exists and may sign in
		var account models.Account
		if err := models.FindByID(s.db, claims.UserID, &account); err != nil {
			respondWithError(c, s.logger, http.StatusUnauthorized, ErrUserNotFound, "User not found")
			return
		}
		if !account.IsActive {
			respondWithError(c, s.logger, http.StatusUnauthorized, ErrInvalidToken, "User is inactive")
			return
		}

		setSession(c, &auth.SessionData{
			UserID: account.ID,
			Email:  account.Email,
		})

		c.Next()
	}
}
