package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/accounts/internal/middleware"
	"github.com/Skotchmaster/accounts/internal/service"
	"github.com/Skotchmaster/accounts/internal/transport"
	"github.com/Skotchmaster/accounts/pkg/cookies"
	"github.com/Skotchmaster/accounts/pkg/logging"
)

var errInvalidBody = echo.NewHTTPError(http.StatusBadRequest, "invalid body")

type AccountHTTP struct {
	Svc *service.AccountService
}

func (h *AccountHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "accounts_register")

	var req transport.CreateAccountRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return errInvalidBody
	}

	acc, err := h.Svc.Create(ctx, req)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, transport.AccountFromModel(*acc), "account created")
}

func (h *AccountHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "accounts_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return errInvalidBody
	}

	res, err := h.Svc.Login(ctx, req)
	if err != nil {
		return err
	}
	setAuthCookies(c, res)

	return ok(c, http.StatusOK, transport.LoginResponse{
		User:         transport.AccountFromModel(res.Account),
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}, "logged in")
}

// Refresh takes the refresh token from its cookie, or from the body when
// there is no cookie.
func (h *AccountHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req transport.RefreshRequest
	if ck, err := c.Cookie(cookies.RefreshToken); err == nil && ck.Value != "" {
		req.RefreshToken = ck.Value
	} else if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	res, err := h.Svc.Refresh(ctx, req)
	if err != nil {
		clearAuthCookies(c)
		return err
	}
	setAuthCookies(c, res)

	return ok(c, http.StatusOK, transport.LoginResponse{
		User:         transport.AccountFromModel(res.Account),
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}, "session refreshed")
}

// The :id path parameter of the protected routes is not trusted; every
// operation acts on the authenticated caller.

func (h *AccountHTTP) Logout(c echo.Context) error {
	id, found := middleware.AccountID(c)
	if !found {
		return echo.ErrUnauthorized
	}
	if err := h.Svc.Logout(c.Request().Context(), id); err != nil {
		return err
	}

	clearAuthCookies(c)
	return ok(c, http.StatusOK, nil, "logged out")
}

func (h *AccountHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "accounts_update")

	id, found := middleware.AccountID(c)
	if !found {
		return echo.ErrUnauthorized
	}

	var req transport.UpdateAccountRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_error", "status", 400, "error", err)
		return errInvalidBody
	}

	acc, err := h.Svc.Update(ctx, id, req)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, transport.AccountFromModel(*acc), "account updated")
}

func (h *AccountHTTP) Delete(c echo.Context) error {
	id, found := middleware.AccountID(c)
	if !found {
		return echo.ErrUnauthorized
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}

	clearAuthCookies(c)
	return ok(c, http.StatusOK, nil, "account deleted")
}

func (h *AccountHTTP) Search(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))

	res, err := h.Svc.Search(c.Request().Context(), service.SearchRequest{
		Query: c.QueryParam("q"),
		Page:  page,
		Size:  size,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, res, "")
}

func setAuthCookies(c echo.Context, res *service.LoginResult) {
	c.SetCookie(cookies.Create(cookies.AccessToken, res.AccessToken, "/", res.AccessExp))
	c.SetCookie(cookies.Create(cookies.RefreshToken, res.RefreshToken, "/", res.RefreshExp))
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(cookies.Delete(cookies.AccessToken, "/"))
	c.SetCookie(cookies.Delete(cookies.RefreshToken, "/"))
}
