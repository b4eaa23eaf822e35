package transport

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/Skotchmaster/todo_service/internal/models"
	"github.com/Skotchmaster/todo_service/internal/service"
	"github.com/Skotchmaster/todo_service/internal/tokens"
)

type RegisterRequest struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	PasswordConfirm *string `json:"password_confirm"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
}

func (r RegisterRequest) Input() service.RegisterInput {
	return service.RegisterInput{
		Username:        r.Username,
		Email:           r.Email,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// ProfilePatch is the only shape PUT /accounts/profile accepts.
type ProfilePatch struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (p ProfilePatch) Input() service.ProfileInput {
	return service.ProfileInput{Email: p.Email, FirstName: p.FirstName, LastName: p.LastName}
}

type CreateTodoRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Completed   bool         `json:"completed"`
	Priority    string       `json:"priority"`
	DueDate     NullableTime `json:"due_date"`
}

func (r CreateTodoRequest) Input() (service.CreateTodoInput, error) {
	due, err := r.DueDate.Time()
	if err != nil {
		return service.CreateTodoInput{}, err
	}
	return service.CreateTodoInput{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		Priority:    models.Priority(r.Priority),
		DueDate:     due,
	}, nil
}

// TodoPatch is the body of PUT /todos/{id}. Absent fields keep their value.
type TodoPatch struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Completed   *bool        `json:"completed"`
	Priority    *string      `json:"priority"`
	DueDate     NullableTime `json:"due_date"`
}

func (p TodoPatch) Patch() (service.TodoPatch, error) {
	due, err := p.DueDate.Time()
	if err != nil {
		return service.TodoPatch{}, err
	}
	out := service.TodoPatch{
		Title:       p.Title,
		Description: p.Description,
		Completed:   p.Completed,
		DueDateSet:  p.DueDate.Set,
		DueDate:     due,
	}
	if p.Priority != nil {
		pr := models.Priority(*p.Priority)
		out.Priority = &pr
	}
	return out, nil
}

// NullableTime tells an absent due_date apart from an explicit null.
type NullableTime struct {
	Set bool
	raw json.RawMessage
}

func (n *NullableTime) UnmarshalJSON(b []byte) error {
	n.Set = true
	n.raw = append(n.raw[:0], b...)
	return nil
}

// Time parses the value as RFC 3339. Absent and null both return nil.
func (n NullableTime) Time() (*time.Time, error) {
	if !n.Set || bytes.Equal(n.raw, []byte("null")) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(n.raw, &s); err != nil {
		return nil, service.FieldError("due_date", msgBadDatetime)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, service.FieldError("due_date", msgBadDatetime)
	}
	return &t, nil
}

const msgBadDatetime = "Datetime has wrong format. Use RFC 3339, e.g. 2024-01-31T18:00:00Z."

type AuthResponse struct {
	Message string       `json:"message"`
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *models.User `json:"user"`
}

func NewAuthResponse(msg string, u *models.User, pair *tokens.Pair) AuthResponse {
	return AuthResponse{Message: msg, Access: pair.Access, Refresh: pair.Refresh, User: u}
}

type RefreshResponse struct {
	Access string `json:"access"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
