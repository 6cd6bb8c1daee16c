package tokens

// Claims is the part of a verified token callers act on.
type Claims struct {
	Type     TokenType
	Subject  string
	ID       string
	UserName string
	Email    string
}

// Verify checks signature, expiry and type. Every failure is ErrInvalidToken.
func (e *Engine) Verify(token string, expected TokenType) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	secret, err := e.secret(expected)
	if err != nil {
		return nil, ErrInvalidToken
	}

	switch expected {
	case TypeAccess:
		c, err := AccessClaimsFromToken(token, secret)
		if err != nil {
			return nil, err
		}
		return &Claims{Type: c.Type, Subject: c.Subject, ID: c.ID, UserName: c.UserName, Email: c.Email}, nil
	default:
		c, err := RefreshClaimsFromToken(token, secret)
		if err != nil {
			return nil, err
		}
		return &Claims{Type: c.Type, Subject: c.Subject, ID: c.ID}, nil
	}
}
