package transport

import (
	"time"

	"github.com/Skotchmaster/accounts/internal/models"
)

type CreateAccountRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateAccountRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Account is the only shape in which an account leaves the service.
type Account struct {
	ID        string     `json:"id"`
	UserName  string     `json:"userName"`
	Email     string     `json:"email"`
	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func AccountFromModel(m models.Account) Account {
	return Account{
		ID:        m.ID.String(),
		UserName:  m.UserName,
		Email:     m.Email,
		IsDeleted: m.IsDeleted,
		DeletedAt: m.DeletedAt,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type LoginResponse struct {
	User         Account `json:"user"`
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
}

type SearchResponse struct {
	Accounts []Account `json:"accounts"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Size     int       `json:"size"`
}

type Envelope struct {
	Status  int    `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type AccountEvent struct {
	Type      string    `json:"type"`
	AccountID string    `json:"accountId"`
	UserName  string    `json:"userName"`
	At        time.Time `json:"at"`
}
