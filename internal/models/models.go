package models

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// User is the identity returned by the API for the logged-in account
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

// Video is a catalog entry as listed by GET /video/
type Video struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	Category    string     `json:"category,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Resolutions []string   `json:"resolutions,omitempty"`
}

// TokenPair holds the bearer credential material
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Envelope is the uniform result every session operation hands back to callers.
// A failed envelope carries Errors when the upstream payload was structured and
// only Message otherwise.
type Envelope[T any] struct {
	Success bool     `json:"success"`
	Data    *T       `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// OK builds a successful envelope
func OK[T any](data *T, message string) Envelope[T] {
	return Envelope[T]{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// Fail builds a failed envelope
func Fail[T any](message string, errs ...string) Envelope[T] {
	return Envelope[T]{
		Success: false,
		Message: message,
		Errors:  errs,
	}
}

// BaseModel provides common fields and auto-generated ULID for all persisted models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Account is a user row of the reference API
type Account struct {
	BaseModel
	Email        string    `json:"email" gorm:"unique;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:false"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ToUser converts the row into its wire representation
func (a *Account) ToUser() *User {
	active := a.IsActive
	return &User{
		ID:        a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		IsActive:  &active,
	}
}

// Action token purposes
const (
	PurposeActivation    = "activation"
	PurposePasswordReset = "password_reset"
)

// ActionToken is a one-time token mailed to the user (activation, password reset).
// Only the SHA-256 of the token is stored.
type ActionToken struct {
	BaseModel
	AccountID string     `json:"account_id" gorm:"not null;index"`
	Purpose   string     `json:"purpose" gorm:"not null"`
	TokenHash string     `json:"-" gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null;index"`
	UsedAt    *time.Time `json:"used_at"`
}

// VideoRecord is a catalog row of the reference API
type VideoRecord struct {
	BaseModel
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`
	Thumbnail   string `json:"thumbnail"`
	Category    string `json:"category"`
	Resolutions string `json:"resolutions"` // comma separated, e.g. "480p,720p,1080p"
}

// ToVideo converts the row into its wire representation
func (v *VideoRecord) ToVideo() Video {
	created := v.CreatedAt
	out := Video{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Thumbnail:   v.Thumbnail,
		Category:    v.Category,
		CreatedAt:   &created,
	}
	for _, r := range strings.Split(v.Resolutions, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out.Resolutions = append(out.Resolutions, r)
		}
	}
	return out
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&Account{}, &ActionToken{}, &VideoRecord{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
