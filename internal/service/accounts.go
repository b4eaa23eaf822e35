package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Skotchmaster/todo_service/internal/events"
	"github.com/Skotchmaster/todo_service/internal/hash"
	"github.com/Skotchmaster/todo_service/internal/logging"
	"github.com/Skotchmaster/todo_service/internal/models"
	"github.com/Skotchmaster/todo_service/internal/repo"
	"github.com/Skotchmaster/todo_service/internal/tokens"
)

const (
	maxUsernameLen = 150
	maxNameLen     = 150
	maxEmailLen    = 254
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

type CredentialStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string, exclude uuid.UUID) (bool, error)
	UpdateUser(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error)
}

type AccountService struct {
	Users  CredentialStore
	Tokens *tokens.Service
	Events events.Publisher
	Now    func() time.Time
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm *string
	FirstName       string
	LastName        string
}

type ProfileInput struct {
	Email     *string
	FirstName *string
	LastName  *string
}

type LoginResult struct {
	User   *models.User
	Tokens *tokens.Pair
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "accounts.register")

	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	verr := &ValidationError{}
	validateUsername(verr, in.Username)
	validateEmail(verr, in.Email)
	validateName(verr, "first_name", in.FirstName)
	validateName(verr, "last_name", in.LastName)
	if in.Password == "" {
		verr.Add("password", msgRequired)
	} else {
		for _, p := range hash.PasswordProblems(in.Password, in.Username) {
			verr.Add("password", p)
		}
	}
	if in.PasswordConfirm != nil && *in.PasswordConfirm != in.Password {
		verr.Add("password_confirm", "Passwords do not match.")
	}

	if !verr.Has("username") {
		taken, err := s.Users.UsernameTaken(ctx, in.Username)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if taken {
			verr.Add("username", msgUsernameTaken)
		}
	}
	if in.Email != "" && !verr.Has("email") {
		taken, err := s.Users.EmailTaken(ctx, in.Email, uuid.Nil)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			verr.Add("email", msgEmailTaken)
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: pwHash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
		DateJoined:   s.now().UTC(),
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, s.duplicateError(ctx, in.Username, in.Email, uuid.Nil)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	l.Info("user_registered", "user_id", user.ID)
	publish(ctx, s.Events, events.TopicUsers, events.User(events.UserRegistered, user.ID, s.now()))
	return user, nil
}

// Authenticate returns the user for a matching username and password. Unknown
// users, wrong passwords and inactive accounts all yield (nil, nil).
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.Users.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			hash.BurnCompare(password)
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, nil
	}
	if !user.IsActive {
		return nil, nil
	}
	return user, nil
}

func (s *AccountService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "accounts.login")

	verr := &ValidationError{}
	if strings.TrimSpace(username) == "" {
		verr.Add("username", msgRequired)
	}
	if password == "" {
		verr.Add("password", msgRequired)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	user, err := s.Authenticate(ctx, strings.TrimSpace(username), password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		l.Warn("login_failed", "reason", "invalid credentials")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.Tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	publish(ctx, s.Events, events.TopicUsers, events.User(events.UserLoggedIn, user.ID, s.now()))
	return &LoginResult{User: user, Tokens: pair}, nil
}

func (s *AccountService) IssueTokens(user *models.User) (*tokens.Pair, error) {
	pair, err := s.Tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return pair, nil
}

// RefreshAccess exchanges a refresh token for a new access token. The owner
// must still exist and be active.
func (s *AccountService) RefreshAccess(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", time.Time{}, FieldError("refresh", msgRequired)
	}

	userID, err := s.Tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := s.ActiveUser(ctx, userID); err != nil {
		return "", time.Time{}, err
	}

	access, exp, err := s.Tokens.IssueAccess(userID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue access token: %w", err)
	}
	return access, exp, nil
}

func (s *AccountService) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.Users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// ActiveUser resolves a token subject. Missing and inactive users are both
// reported as ErrInvalidToken.
func (s *AccountService) ActiveUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}
	return user, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (*models.User, error) {
	verr := &ValidationError{}
	fields := make(map[string]any, 3)

	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		validateEmail(verr, email)
		if email != "" && !verr.Has("email") {
			taken, err := s.Users.EmailTaken(ctx, email, userID)
			if err != nil {
				return nil, fmt.Errorf("check email: %w", err)
			}
			if taken {
				verr.Add("email", msgEmailTaken)
			}
		}
		fields["email"] = email
	}
	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		validateName(verr, "first_name", v)
		fields["first_name"] = v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		validateName(verr, "last_name", v)
		fields["last_name"] = v
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	user, err := s.Users.UpdateUser(ctx, userID, fields)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		if errors.Is(err, repo.ErrDuplicate) {
			email, _ := fields["email"].(string)
			return nil, s.duplicateError(ctx, "", email, userID)
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// duplicateError names the unique field a write collided on after it raced
// past the pre-checks.
func (s *AccountService) duplicateError(ctx context.Context, username, email string, exclude uuid.UUID) error {
	if email != "" {
		taken, err := s.Users.EmailTaken(ctx, email, exclude)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return FieldError("email", msgEmailTaken)
		}
	}
	if username != "" {
		return FieldError("username", msgUsernameTaken)
	}
	return fmt.Errorf("update user: %w", repo.ErrDuplicate)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUsername(verr *ValidationError, username string) {
	switch {
	case username == "":
		verr.Add("username", msgRequired)
	case utf8.RuneCountInString(username) > maxUsernameLen:
		verr.Add("username", fmt.Sprintf("Ensure this field has no more than %d characters.", maxUsernameLen))
	case !usernamePattern.MatchString(username):
		verr.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
}

func validateEmail(verr *ValidationError, email string) {
	if email == "" {
		return
	}
	if len(email) > maxEmailLen {
		verr.Add("email", fmt.Sprintf("Ensure this field has no more than %d characters.", maxEmailLen))
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		verr.Add("email", "Enter a valid email address.")
	}
}

func validateName(verr *ValidationError, field, v string) {
	if utf8.RuneCountInString(v) > maxNameLen {
		verr.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", maxNameLen))
	}
}
