package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/todo_service/internal/logging"
	"github.com/Skotchmaster/todo_service/internal/middleware/auth"
	"github.com/Skotchmaster/todo_service/internal/service"
	"github.com/Skotchmaster/todo_service/internal/transport"
)

type AccountsHTTP struct {
	Svc *service.AccountService
}

func (h *AccountsHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "accounts_register")

	var req transport.RegisterRequest
	if err := transport.DecodeStrict(c.Request().Body, &req); err != nil {
		return fail(c, l, "register_error", err)
	}

	user, err := h.Svc.Register(ctx, req.Input())
	if err != nil {
		return fail(c, l, "register_error", err)
	}
	pair, err := h.Svc.IssueTokens(user)
	if err != nil {
		return fail(c, l, "register_error", err)
	}

	l.Info("register_successful", "user_id", user.ID)
	return c.JSON(http.StatusCreated, transport.NewAuthResponse("User registered successfully", user, pair))
}

func (h *AccountsHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "accounts_login")

	var req transport.LoginRequest
	if err := transport.DecodeStrict(c.Request().Body, &req); err != nil {
		return fail(c, l, "login_error", err)
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return fail(c, l, "login_error", err)
	}

	l.Info("login_successful", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, transport.NewAuthResponse("Login successful", res.User, res.Tokens))
}

func (h *AccountsHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "accounts_refresh")

	var req transport.RefreshRequest
	if err := transport.DecodeStrict(c.Request().Body, &req); err != nil {
		return fail(c, l, "refresh_error", err)
	}

	access, _, err := h.Svc.RefreshAccess(ctx, req.Refresh)
	if err != nil {
		return fail(c, l, "refresh_error", err)
	}
	return c.JSON(http.StatusOK, transport.RefreshResponse{Access: access})
}

func (h *AccountsHTTP) Profile(c echo.Context) error {
	user, ok := auth.UserFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AccountsHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "accounts_update_profile")

	user, ok := auth.UserFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	var patch transport.ProfilePatch
	if err := transport.DecodeStrict(c.Request().Body, &patch); err != nil {
		return fail(c, l, "update_profile_error", err)
	}

	updated, err := h.Svc.UpdateProfile(ctx, user.ID, patch.Input())
	if err != nil {
		return fail(c, l, "update_profile_error", err)
	}
	return c.JSON(http.StatusOK, updated)
}
