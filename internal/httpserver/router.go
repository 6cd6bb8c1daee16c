package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Skotchmaster/accounts/internal/middleware"
	loggingmw "github.com/Skotchmaster/accounts/pkg/middleware/logging"
)

type Deps struct {
	AccountHandler *AccountHTTP
	Session        *middleware.Session
	// Ready reports whether the service can take traffic. Nil means always.
	Ready func(ctx context.Context) error
}

// New returns an echo instance with the common middleware stack and the
// uniform error envelope.
func New(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(
		echomw.Recover(),
		echomw.RequestID(),
		echomw.Secure(),
		extractTraceContext,
		loggingmw.RequestLogger(logger),
	)
	return e
}

// extractTraceContext continues a trace started by the caller, if any.
func extractTraceContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	e.POST("/register", d.AccountHandler.Register)
	e.POST("/login", d.AccountHandler.Login)
	e.POST("/refresh", d.AccountHandler.Refresh)

	private := e.Group("")
	private.Use(d.Session.RequireAuth)

	private.POST("/logout", d.AccountHandler.Logout)
	private.PUT("/update/:id", d.AccountHandler.Update)
	private.DELETE("/delete/:id", d.AccountHandler.Delete)
	private.GET("/accounts/search", d.AccountHandler.Search)
}
