package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vidflow-dev/vidflow/internal/auth"
	"github.com/vidflow-dev/vidflow/internal/forms"
	"github.com/vidflow-dev/vidflow/internal/models"
)

// Client visible messages
const (
	msgEmailTaken        = "A user with that email already exists."
	msgInvalidLogin      = "Invalid email or password."
	msgInactive          = "Account is not activated. Check your email for the activation link."
	msgInvalidLink       = "Invalid or expired link."
	msgInvalidRefresh    = "Token is invalid or expired"
	msgInternal          = "Internal server error"
	msgRegistered        = "Registration successful. Check your email to activate your account."
	msgResetSent         = "If an account exists for this email, a password reset link has been sent."
	msgPasswordReset     = "Password has been reset."
	msgAccountActivated  = "Account activated. You can now log in."
	msgAlreadyActivated  = "Account is already active."
	msgInvalidBody       = "Invalid request body"
	validationFieldEmail = "email"
)

// RegisterRequest is the body of POST /register/
type RegisterRequest struct {
	Email             string `json:"email" validate:"required,email,max=254"`
	Password          string `json:"password" validate:"required,min=8,max=128"`
	ConfirmedPassword string `json:"confirmed_password" validate:"required,eqfield=Password"`
	FirstName         string `json:"first_name" validate:"max=150"`
	LastName          string `json:"last_name" validate:"max=150"`
}

// RegisterResponse is the envelope returned by POST /register/
type RegisterResponse struct {
	Success bool         `json:"success"`
	Data    *models.User `json:"data"`
	Message string       `json:"message"`
}

// LoginRequest is the body of POST /login/
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the token pair and the signed in user
type LoginResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *models.User `json:"user"`
}

// RefreshRequest is the body of POST /token/refresh/
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// RefreshResponse carries the new access token. Refresh tokens are not rotated.
type RefreshResponse struct {
	Access string `json:"access"`
}

// PasswordResetRequest is the body of POST /password_reset/
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordConfirmRequest is the body of POST /password_confirm/{uid}/{token}/
type PasswordConfirmRequest struct {
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// MessageResponse reports the outcome of an action
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// bind decodes and validates the JSON body. On failure the response has been
// written and false is returned.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.logger.Warn().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"detail": msgInvalidBody})
		return false
	}

	if err := s.validator.Struct(req); err != nil {
		var fieldErrs forms.Errors
		if errors.As(err, &fieldErrs) {
			c.JSON(http.StatusBadRequest, fieldErrs.Map())
			return false
		}
		s.logger.Error().Err(err).Msg("Request validation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return false
	}
	return true
}

// isUniqueViolation reports whether err comes from a unique constraint
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if !s.bind(c, &req) {
		return
	}
	email := normalizeEmail(req.Email)

	var count int64
	if err := s.db.Model(&models.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to check email")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{validationFieldEmail: []string{msgEmailTaken}})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	}

	var token string
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		t, err := s.createActionToken(tx, account.ID, models.PurposeActivation)
		if err != nil {
			return err
		}
		token = t
		return nil
	})
	if isUniqueViolation(err) {
		// lost a race with a concurrent registration
		c.JSON(http.StatusBadRequest, gin.H{validationFieldEmail: []string{msgEmailTaken}})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to register account")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}

	s.sendLink(c, account, models.PurposeActivation, token)

	s.logger.Info().Str("user_id", account.ID).Str("email", account.Email).Msg("Account registered")

	c.JSON(http.StatusCreated, RegisterResponse{
		Success: true,
		Data:    account.ToUser(),
		Message: msgRegistered,
	})
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if !s.bind(c, &req) {
		return
	}

	var account models.Account
	if err := s.db.Where("email = ?", normalizeEmail(req.Email)).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": msgInvalidLogin})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}

	if err := auth.VerifyPassword(req.Password, account.PasswordHash); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": msgInvalidLogin})
		return
	}

	if !account.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": msgInactive})
		return
	}

	pair, err := s.issuer.IssuePair(account.ID, account.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}

	s.logger.Info().Str("user_id", account.ID).Str("email", account.Email).Msg("User logged in")

	c.JSON(http.StatusOK, LoginResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    account.ToUser(),
	})
}

func (s *Server) refreshToken(c *gin.Context) {
	var req RefreshRequest
	if !s.bind(c, &req) {
		return
	}

	claims, err := s.issuer.Validate(req.Refresh, auth.RefreshToken)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Rejected refresh token")
		c.JSON(http.StatusUnauthorized, gin.H{"detail": msgInvalidRefresh})
		return
	}

	var account models.Account
	if err := models.FindByID(s.db, claims.UserID, &account); err != nil || !account.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": msgInvalidRefresh})
		return
	}

	access, err := s.issuer.IssueAccess(account.ID, account.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{Access: access})
}

func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
		return
	}

	var account models.Account
	if err := models.FindByID(s.db, sessionData.UserID, &account); err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}

	c.JSON(http.StatusOK, account.ToUser())
}

func (s *Server) requestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if !s.bind(c, &req) {
		return
	}

	// the response is identical whether or not the account exists
	respond := func() {
		c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msgResetSent})
	}

	var account models.Account
	if err := s.db.Where("email = ?", normalizeEmail(req.Email)).First(&account).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error().Err(err).Msg("Failed to find user")
		}
		respond()
		return
	}

	token, err := s.createActionToken(s.db, account.ID, models.PurposePasswordReset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", account.ID).Msg("Failed to create reset token")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}

	s.sendLink(c, &account, models.PurposePasswordReset, token)
	respond()
}

func (s *Server) confirmPasswordReset(c *gin.Context) {
	var req PasswordConfirmRequest
	if !s.bind(c, &req) {
		return
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
		return
	}

	err = s.consumeActionToken(c.Param("uid"), c.Param("token"), models.PurposePasswordReset, func(tx *gorm.DB, account *models.Account) error {
		return tx.Model(account).Update("password_hash", passwordHash).Error
	})
	if err != nil {
		s.respondLinkError(c, err)
		return
	}

	s.logger.Info().Str("user_id", c.Param("uid")).Msg("Password reset")
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msgPasswordReset})
}

func (s *Server) activate(c *gin.Context) {
	uid := c.Param("uid")

	var account models.Account
	if err := models.FindByID(s.db, uid, &account); err == nil && account.IsActive {
		c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msgAlreadyActivated})
		return
	}

	err := s.consumeActionToken(uid, c.Param("token"), models.PurposeActivation, func(tx *gorm.DB, account *models.Account) error {
		return tx.Model(account).Update("is_active", true).Error
	})
	if err != nil {
		s.respondLinkError(c, err)
		return
	}

	s.logger.Info().Str("user_id", uid).Msg("Account activated")
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msgAccountActivated})
}

func (s *Server) respondLinkError(c *gin.Context, err error) {
	if errors.Is(err, errInvalidLink) {
		c.JSON(http.StatusBadRequest, msgInvalidLink)
		return
	}
	s.logger.Error().Err(err).Msg("Failed to consume link")
	c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
}
