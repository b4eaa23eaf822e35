package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/todo_service/internal/logging"
	"github.com/Skotchmaster/todo_service/internal/models"
	"github.com/Skotchmaster/todo_service/internal/service"
)

var (
	ErrUnauthenticated = errors.New("authentication credentials were not provided")
	ErrInvalidToken    = errors.New("token is invalid or expired")
)

const userKey = "auth_user"

type AccessValidator interface {
	ValidateAccess(token string) (uuid.UUID, error)
}

type UserResolver interface {
	ActiveUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Gate turns an Authorization header into a user. It never looks at
// cookies or query parameters.
type Gate struct {
	Tokens AccessValidator
	Users  UserResolver
}

func NewGate(tokens AccessValidator, users UserResolver) *Gate {
	return &Gate{Tokens: tokens, Users: users}
}

// Authenticate returns the active user behind a bearer token. Failures are
// ErrUnauthenticated or ErrInvalidToken; any other error comes from the store.
func (g *Gate) Authenticate(ctx context.Context, h http.Header) (*models.User, error) {
	raw := strings.TrimSpace(h.Get(echo.HeaderAuthorization))
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	if strings.ContainsAny(token, " \t") {
		return nil, ErrInvalidToken
	}

	userID, err := g.Tokens.ValidateAccess(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := g.Users.ActiveUser(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (g *Gate) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("mw", "require_auth")

		user, err := g.Authenticate(ctx, c.Request().Header)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnauthenticated):
			l.Warn("auth_error", "status", 401, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
		case errors.Is(err, ErrInvalidToken):
			l.Warn("auth_error", "status", 401, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "Given token not valid for any token type")
		default:
			l.Error("auth_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
		}

		c.Set(userKey, user)
		ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With("user_id", user.ID.String()))
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// UserFrom returns the user stored by RequireAuth.
func UserFrom(c echo.Context) (*models.User, bool) {
	u, ok := c.Get(userKey).(*models.User)
	return u, ok && u != nil
}
