package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/accounts/internal/models"
	"github.com/Skotchmaster/accounts/internal/repo"
	"github.com/Skotchmaster/accounts/pkg/cookies"
	"github.com/Skotchmaster/accounts/pkg/logging"
	"github.com/Skotchmaster/accounts/pkg/tokens"
)

// Keys under which an authenticated request carries its caller.
const (
	CtxAccount   = "account"
	CtxAccountID = "account_id"
)

const bearerPrefix = "Bearer "

// errUnauthorized is the one rejection, whatever check failed.
var errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")

type AccountFinder interface {
	FindByID(ctx context.Context, id uuid.UUID, opts ...repo.Option) (*models.Account, error)
}

type Session struct {
	Tokens   *tokens.Engine
	Accounts AccountFinder
}

func NewSession(engine *tokens.Engine, accounts AccountFinder) *Session {
	return &Session{Tokens: engine, Accounts: accounts}
}

// RequireAuth lets the request through only with a valid access token for
// a live account.
func (m *Session) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("mw", "require_auth")

		raw := accessToken(c)
		if raw == "" {
			return errUnauthorized
		}

		claims, err := m.Tokens.Verify(raw, tokens.TypeAccess)
		if err != nil {
			l.Debug("access_token_rejected", "error", err)
			clearAuthCookies(c)
			return errUnauthorized
		}
		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			l.Debug("access_token_rejected", "reason", "subject is not a uuid")
			clearAuthCookies(c)
			return errUnauthorized
		}

		acc, err := m.Accounts.FindByID(ctx, id, repo.WithoutSecrets())
		if err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				l.Error("account_lookup_failed", "error", err)
			}
			clearAuthCookies(c)
			return errUnauthorized
		}

		redacted := acc.Redacted()
		c.Set(CtxAccount, &redacted)
		c.Set(CtxAccountID, redacted.ID)
		return next(c)
	}
}

// accessToken reads the cookie first and falls back to the Authorization header.
func accessToken(c echo.Context) string {
	if ck, err := c.Cookie(cookies.AccessToken); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(h[len(bearerPrefix):])
	}
	return ""
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(cookies.Delete(cookies.AccessToken, "/"))
	c.SetCookie(cookies.Delete(cookies.RefreshToken, "/"))
}

// Account returns the caller stored by RequireAuth.
func Account(c echo.Context) (*models.Account, bool) {
	acc, ok := c.Get(CtxAccount).(*models.Account)
	return acc, ok && acc != nil
}

func AccountID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(CtxAccountID).(uuid.UUID)
	return id, ok
}
