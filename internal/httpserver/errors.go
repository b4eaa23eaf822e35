package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/todo_service/internal/service"
	"github.com/Skotchmaster/todo_service/internal/transport"
)

const (
	msgInvalidJSON        = "Invalid JSON"
	msgNotFound           = "Not found."
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidRefresh     = "Token is invalid or expired"
	msgInternal           = "Internal server error"
)

// HTTPErrorHandler renders every error as {"error": "..."}; 5xx details stay
// in the log.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := msgInternal
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if code < http.StatusInternalServerError {
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, transport.ErrorResponse{Error: msg})
	}
	if err != nil {
		c.Logger().Error(err)
	}
}

// fail maps a service error to a response and logs it under event.
func fail(c echo.Context, l *slog.Logger, event string, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		l.Warn(event, "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, verr.Fields)
	case errors.Is(err, transport.ErrInvalidJSON):
		l.Warn(event, "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidJSON)
	case errors.Is(err, service.ErrNotFound):
		l.Warn(event, "status", 404, "error", err)
		return echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	case errors.Is(err, service.ErrInvalidCredentials):
		l.Warn(event, "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, service.ErrInvalidToken):
		l.Warn(event, "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidRefresh)
	}
	l.Error(event, "status", 500, "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}
