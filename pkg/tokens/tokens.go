package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers expiry, signature mismatch, wrong type and
// malformed payloads alike.
var ErrInvalidToken = errors.New("invalid token")

type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

type AccessClaims struct {
	Type     TokenType `json:"typ"`
	UserName string    `json:"userName,omitempty"`
	Email    string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Engine signs and verifies session tokens. Access and refresh tokens are
// signed with separate secrets.
type Engine struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	now func() time.Time
}

func NewEngine(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *Engine {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Engine{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (e *Engine) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

func (e *Engine) secret(typ TokenType) ([]byte, error) {
	switch typ {
	case TypeAccess:
		return e.AccessSecret, nil
	case TypeRefresh:
		return e.RefreshSecret, nil
	}
	return nil, fmt.Errorf("unknown token type %q", typ)
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	}
}
