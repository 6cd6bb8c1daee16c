package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the persisted user account. Password hash, refresh token and
// version never leave the service: their json tags are "-".
type Account struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"                                                  json:"id"`
	UserName     string     `gorm:"not null;index:idx_accounts_user_name,unique,where:is_deleted = false" json:"userName"`
	Email        string     `gorm:"not null;index:idx_accounts_email,unique,where:is_deleted = false"     json:"email"`
	PasswordHash string     `gorm:"not null"                                                              json:"-"`
	RefreshToken string     `gorm:"not null;default:''"                                                   json:"-"`
	Version      int        `gorm:"not null;default:0"                                                    json:"-"`
	IsDeleted    bool       `gorm:"not null;default:false;index"                                          json:"isDeleted"`
	DeletedAt    *time.Time `json:"deletedAt"`
	CreatedAt    time.Time  `gorm:"not null"                                                              json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"not null"                                                              json:"updatedAt"`
}

// SecretColumns are excluded whenever an account is read for a response.
var SecretColumns = []string{"password_hash", "refresh_token", "version"}

// Redacted returns a copy with every secret field cleared.
func (a Account) Redacted() Account {
	a.PasswordHash = ""
	a.RefreshToken = ""
	a.Version = 0
	return a
}
