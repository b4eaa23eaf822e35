package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/todo_service/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/todo_service/internal/middleware/logging"
	"github.com/Skotchmaster/todo_service/internal/transport"
)

type Pinger func(ctx context.Context) error

type Deps struct {
	Accounts    *AccountsHTTP
	Todos       *TodosHTTP
	Gate        *auth.Gate
	Ready       Pinger
	Logger      *slog.Logger
	CORSOrigins []string
}

// New builds the echo instance with middleware, error handling and routes.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(d.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)

	accounts := e.Group("/accounts")
	accounts.POST("/register", d.Accounts.Register)
	accounts.POST("/login", d.Accounts.Login)
	accounts.POST("/token/refresh", d.Accounts.Refresh)
	accounts.GET("/profile", d.Accounts.Profile, d.Gate.RequireAuth)
	accounts.PUT("/profile", d.Accounts.UpdateProfile, d.Gate.RequireAuth)

	todos := e.Group("/todos", d.Gate.RequireAuth)
	todos.GET("", d.Todos.List)
	todos.POST("", d.Todos.Create)
	todos.GET("/search", d.Todos.Search)
	todos.GET("/:id", d.Todos.Get)
	todos.PUT("/:id", d.Todos.Update)
	todos.DELETE("/:id", d.Todos.Delete)
	todos.PATCH("/:id/toggle", d.Todos.Toggle)
}

func (d *Deps) ready(c echo.Context) error {
	if d.Ready == nil {
		return c.NoContent(http.StatusOK)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := d.Ready(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, transport.ErrorResponse{Error: "database unavailable"})
	}
	return c.NoContent(http.StatusOK)
}
