package server

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vidflow-dev/vidflow/internal/auth"
	"github.com/vidflow-dev/vidflow/internal/models"
)

var errInvalidLink = errors.New("invalid or expired link")

// createActionToken stores the hash of a new one-time token and returns the
// token itself for the emailed link
func (s *Server) createActionToken(tx *gorm.DB, accountID, purpose string) (string, error) {
	token, hash, err := auth.NewActionToken()
	if err != nil {
		return "", err
	}

	record := &models.ActionToken{
		AccountID: accountID,
		Purpose:   purpose,
		TokenHash: hash,
		ExpiresAt: s.clock.Now().Add(s.config.Auth.ActionTokenTTL),
	}
	if err := tx.Create(record).Error; err != nil {
		return "", fmt.Errorf("failed to store %s token: %w", purpose, err)
	}
	return token, nil
}

// consumeActionToken checks a link's uid and token, marks the token used and
// runs apply in the same transaction. Any mismatch yields errInvalidLink.
func (s *Server) consumeActionToken(uid, token, purpose string, apply func(tx *gorm.DB, account *models.Account) error) error {
	now := s.clock.Now()

	return s.db.Transaction(func(tx *gorm.DB) error {
		var record models.ActionToken
		err := tx.Where("token_hash = ? AND purpose = ?", auth.HashActionToken(token), purpose).First(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errInvalidLink
			}
			return fmt.Errorf("failed to find token: %w", err)
		}

		if record.AccountID != uid || record.UsedAt != nil || !now.Before(record.ExpiresAt) {
			return errInvalidLink
		}

		var account models.Account
		if err := models.FindByID(tx, uid, &account); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errInvalidLink
			}
			return fmt.Errorf("failed to find account: %w", err)
		}

		// conditional update so a concurrent use of the same token loses
		res := tx.Model(&models.ActionToken{}).
			Where("id = ? AND used_at IS NULL", record.ID).
			Update("used_at", now)
		if res.Error != nil {
			return fmt.Errorf("failed to mark token used: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errInvalidLink
		}

		return apply(tx, &account)
	})
}

// purgeActionTokens deletes tokens that are used or expired
func (s *Server) purgeActionTokens() (int64, error) {
	res := s.db.
		Where("used_at IS NOT NULL OR expires_at <= ?", s.clock.Now()).
		Delete(&models.ActionToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge action tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
