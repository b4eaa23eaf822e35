package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/todo_service/internal/events"
	"github.com/Skotchmaster/todo_service/internal/middleware/auth"
	"github.com/Skotchmaster/todo_service/internal/repo"
	"github.com/Skotchmaster/todo_service/internal/service"
	"github.com/Skotchmaster/todo_service/internal/tokens"
	"github.com/Skotchmaster/todo_service/pkg/db"
)

func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type testServer struct {
	e *echo.Echo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, db.Migrate(ctx, gdb))

	r := repo.New(gdb)
	r.Now = stepClock()
	tok := tokens.NewService([]byte("test-jwt-secret"), []byte("test-refresh-secret"), 15*time.Minute, 7*24*time.Hour)
	accounts := &service.AccountService{Users: r, Tokens: tok, Events: events.Nop{}}
	todos := &service.TodoService{Store: r, Events: events.Nop{}}

	e := New(&Deps{
		Accounts: &AccountsHTTP{Svc: accounts},
		Todos:    &TodosHTTP{Svc: todos},
		Gate:     auth.NewGate(tok, accounts),
		Ready:    func(ctx context.Context) error { return db.Ping(ctx, gdb) },
		Logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	return &testServer{e: e}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type authBody struct {
	Message string         `json:"message"`
	Access  string         `json:"access"`
	Refresh string         `json:"refresh"`
	User    map[string]any `json:"user"`
}

type todoBody struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Completed   bool    `json:"completed"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func (s *testServer) register(t *testing.T, username string) authBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/accounts/register/", "",
		`{"username":"`+username+`","password":"Secur3Pass!","password_confirm":"Secur3Pass!","email":"`+username+`@x.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authBody](t, rec)
}

func TestEndToEnd_RegisterCreateToggleIsolation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/accounts/register/", "", `{"username":"al","password":"Secur3Pass!","email":"a@x.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	al := decode[authBody](t, rec)
	require.NotEmpty(t, al.Access)
	require.NotEmpty(t, al.Refresh)
	assert.Equal(t, "al", al.User["username"])
	assert.Equal(t, "a@x.com", al.User["email"])

	rec = s.do(t, http.MethodPost, "/todos/", al.Access, `{"title":"buy milk"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	todo := decode[todoBody](t, rec)
	assert.Equal(t, "buy milk", todo.Title)
	assert.False(t, todo.Completed)
	assert.Equal(t, "medium", todo.Priority)
	assert.Nil(t, todo.DueDate)

	rec = s.do(t, http.MethodPatch, "/todos/"+todo.ID+"/toggle/", al.Access, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[todoBody](t, rec).Completed)

	bo := s.register(t, "bo")
	rec = s.do(t, http.MethodGet, "/todos/"+todo.ID+"/", bo.Access, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodPatch, "/todos/"+todo.ID+"/toggle/", bo.Access, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/todos/"+todo.ID+"/", al.Access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[todoBody](t, rec).Completed, "bo's attempt must not flip it")
}

func TestRegister_NeverReturnsPassword(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/accounts/register", "", `{"username":"al","password":"Secur3Pass!"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Secur3Pass!")
	assert.NotContains(t, rec.Body.String(), "password")

	body := decode[authBody](t, rec)
	for _, k := range []string{"id", "username", "email", "first_name", "last_name", "date_joined"} {
		assert.Contains(t, body.User, k)
	}

	rec = s.do(t, http.MethodGet, "/accounts/profile", body.Access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "is_active")
}

func TestRegister_FieldErrors(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "al")

	rec := s.do(t, http.MethodPost, "/accounts/register", "", `{"username":"al","password":"Secur3Pass!"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[map[string][]string](t, rec)
	assert.NotEmpty(t, fields["username"])

	rec = s.do(t, http.MethodPost, "/accounts/register", "", `{"username":"cy","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields = decode[map[string][]string](t, rec)
	assert.NotEmpty(t, fields["password"])
}

func TestLogin_SameErrorForUnknownAndWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "al")

	wrong := s.do(t, http.MethodPost, "/accounts/login/", "", `{"username":"al","password":"not-it-at-all"}`)
	unknown := s.do(t, http.MethodPost, "/accounts/login/", "", `{"username":"nobody","password":"Secur3Pass!"}`)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, wrong.Body.String())
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())

	ok := s.do(t, http.MethodPost, "/accounts/login/", "", `{"username":"al","password":"Secur3Pass!"}`)
	require.Equal(t, http.StatusOK, ok.Code)
	body := decode[authBody](t, ok)
	assert.Equal(t, "Login successful", body.Message)
	assert.NotEmpty(t, body.Access)

	missing := s.do(t, http.MethodPost, "/accounts/login/", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestMalformedAndUnknownJSON(t *testing.T) {
	s := newTestServer(t)
	al := s.register(t, "al")

	rec := s.do(t, http.MethodPost, "/todos/", al.Access, `{"title":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid JSON"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/accounts/login/", "", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid JSON"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/todos/", al.Access, `{"title":"x","user_id":"someone-else"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec), "user_id")

	rec = s.do(t, http.MethodPut, "/accounts/profile", al.Access, `{"password":"NewPass123!"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec), "password")

	rec = s.do(t, http.MethodPost, "/todos/", al.Access, `{"title":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec), "title")
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	s := newTestServer(t)
	al := s.register(t, "al")

	routes := []struct{ method, path string }{
		{http.MethodGet, "/todos/"},
		{http.MethodPost, "/todos/"},
		{http.MethodGet, "/todos/search?q=x"},
		{http.MethodGet, "/todos/0b8e4f3c-1d4a-4c62-9a3b-8f2a1c9d7e10/"},
		{http.MethodPatch, "/todos/0b8e4f3c-1d4a-4c62-9a3b-8f2a1c9d7e10/toggle/"},
		{http.MethodGet, "/accounts/profile/"},
	}
	for _, r := range routes {
		rec := s.do(t, r.method, r.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)
		assert.Contains(t, decode[map[string]string](t, rec), "error")

		rec = s.do(t, r.method, r.path, "garbage.token.here", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)

		rec = s.do(t, r.method, r.path, al.Refresh, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "refresh token on %s %s", r.method, r.path)
	}
}

func TestTodos_ListOwnNewestFirst(t *testing.T) {
	s := newTestServer(t)
	al := s.register(t, "al")
	bo := s.register(t, "bo")

	for _, title := range []string{"first", "second", "third"} {
		rec := s.do(t, http.MethodPost, "/todos", al.Access, `{"title":"`+title+`","priority":"high"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := s.do(t, http.MethodPost, "/todos", bo.Access, `{"title":"bo only"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/todos/", al.Access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]todoBody](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
	assert.Equal(t, "first", list[2].Title)

	rec = s.do(t, http.MethodGet, "/todos/?page=2&page_size=2", al.Access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	paged := decode[[]todoBody](t, rec)
	require.Len(t, paged, 1)
	assert.Equal(t, "first", paged[0].Title)

	rec = s.do(t, http.MethodGet, "/todos/?page=zero", al.Access, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	empty := s.register(t, "cy")
	rec = s.do(t, http.MethodGet, "/todos/", empty.Access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestTodos_UpdateDeleteAndBadIDs(t *testing.T) {
	s := newTestServer(t)
	al := s.register(t, "al")

	rec := s.do(t, http.MethodPost, "/todos/", al.Access, `{"title":"draft","due_date":"2024-06-01T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	todo := decode[todoBody](t, rec)
	require.NotNil(t, todo.DueDate)

	rec = s.do(t, http.MethodPut, "/todos/"+todo.ID+"/", al.Access, `{"title":"final","completed":true,"due_date":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[todoBody](t, rec)
	assert.Equal(t, "final", updated.Title)
	assert.True(t, updated.Completed)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, todo.ID, updated.ID)

	rec = s.do(t, http.MethodPut, "/todos/"+todo.ID+"/", al.Access, `{"priority":"urgent"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/todos/"+todo.ID+"/", al.Access, `null`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid JSON"}`, rec.Body.String())
	rec = s.do(t, http.MethodGet, "/todos/"+todo.ID+"/", al.Access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, updated.UpdatedAt, decode[todoBody](t, rec).UpdatedAt, "rejected body leaves the row alone")

	rec = s.do(t, http.MethodPut, "/accounts/profile", al.Access, `null`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/todos/not-a-uuid/", al.Access, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found."}`, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/todos/"+todo.ID+"/", al.Access, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/todos/"+todo.ID+"/", al.Access, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/todos/"+todo.ID+"/", al.Access, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTodos_Search(t *testing.T) {
	s := newTestServer(t)
	al := s.register(t, "al")
	bo := s.register(t, "bo")

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/todos", al.Access, `{"title":"buy milk"}`).Code)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/todos", al.Access, `{"title":"walk","description":"dog"}`).Code)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/todos", bo.Access, `{"title":"milk"}`).Code)

	rec := s.do(t, http.MethodGet, "/todos/search?q=milk", al.Access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	hits := decode[[]todoBody](t, rec)
	require.Len(t, hits, 1)
	assert.Equal(t, "buy milk", hits[0].Title)

	rec = s.do(t, http.MethodGet, "/todos/search", al.Access, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshAndProfile(t *testing.T) {
	s := newTestServer(t)
	al := s.register(t, "al")

	rec := s.do(t, http.MethodPost, "/accounts/token/refresh/", "", `{"refresh":"`+al.Refresh+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	access := decode[map[string]string](t, rec)["access"]
	require.NotEmpty(t, access)

	rec = s.do(t, http.MethodPost, "/accounts/token/refresh/", "", `{"refresh":"`+al.Access+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPut, "/accounts/profile/", access, `{"first_name":"Al","last_name":"Smith"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decode[map[string]any](t, rec)
	assert.Equal(t, "Al", user["first_name"])
	assert.Equal(t, "Smith", user["last_name"])
	assert.Equal(t, "al", user["username"])

	rec = s.do(t, http.MethodGet, "/accounts/profile/", access, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Smith", decode[map[string]any](t, rec)["last_name"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "", "").Code)

	down := New(&Deps{
		Accounts: &AccountsHTTP{},
		Todos:    &TodosHTTP{},
		Gate:     &auth.Gate{},
		Ready:    func(context.Context) error { return errors.New("db down") },
		Logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	rec := httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPErrorHandler_HidesInternals(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	HTTPErrorHandler(errors.New("pq: relation \"todos\" does not exist"), c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec), "error")
}
