package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func (e *Engine) IssueAccessToken(accountID string, claims AccessClaims) (string, time.Time, error) {
	now := e.clock()
	exp := now.Add(e.AccessTTL)

	claims.Type = TypeAccess
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.AccessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func AccessClaimsFromToken(tokenStr string, accessSecret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, keyFunc(accessSecret))
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != TypeAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
