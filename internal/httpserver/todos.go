package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/todo_service/internal/logging"
	"github.com/Skotchmaster/todo_service/internal/middleware/auth"
	"github.com/Skotchmaster/todo_service/internal/models"
	"github.com/Skotchmaster/todo_service/internal/service"
	"github.com/Skotchmaster/todo_service/internal/transport"
	"github.com/Skotchmaster/todo_service/internal/util"
)

type TodosHTTP struct {
	Svc *service.TodoService
}

// owner returns the authenticated caller. RequireAuth has already run.
func owner(c echo.Context) (uuid.UUID, error) {
	user, ok := auth.UserFrom(c)
	if !ok {
		return uuid.Nil, echo.ErrUnauthorized
	}
	return user.ID, nil
}

// todoID parses the path id. Anything that is not a uuid cannot exist.
func todoID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	}
	return id, nil
}

func pageParams(c echo.Context) (page, size int, err error) {
	verr := &service.ValidationError{}
	page = intParam(c, "page", 1, verr)
	size = intParam(c, "page_size", util.DefaultPageSize, verr)
	return page, size, verr.Err()
}

func intParam(c echo.Context, name string, def int, verr *service.ValidationError) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		verr.Add(name, "A valid positive integer is required.")
		return def
	}
	return n
}

func (h *TodosHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "todos_list")

	userID, err := owner(c)
	if err != nil {
		return err
	}

	var todos []models.Todo
	if c.QueryParam("page") == "" && c.QueryParam("page_size") == "" {
		todos, err = h.Svc.List(ctx, userID)
	} else {
		page, size, perr := pageParams(c)
		if perr != nil {
			return fail(c, l, "list_todos_error", perr)
		}
		todos, err = h.Svc.ListPage(ctx, userID, page, size)
	}
	if err != nil {
		return fail(c, l, "list_todos_error", err)
	}
	return c.JSON(http.StatusOK, todos)
}

func (h *TodosHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "todos_create")

	userID, err := owner(c)
	if err != nil {
		return err
	}

	var req transport.CreateTodoRequest
	if err := transport.DecodeStrict(c.Request().Body, &req); err != nil {
		return fail(c, l, "create_todo_error", err)
	}
	in, err := req.Input()
	if err != nil {
		return fail(c, l, "create_todo_error", err)
	}

	todo, err := h.Svc.Create(ctx, userID, in)
	if err != nil {
		return fail(c, l, "create_todo_error", err)
	}
	l.Info("todo_created", "todo_id", todo.ID)
	return c.JSON(http.StatusCreated, todo)
}

func (h *TodosHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "todos_search")

	userID, err := owner(c)
	if err != nil {
		return err
	}
	todos, err := h.Svc.Search(ctx, userID, c.QueryParam("q"))
	if err != nil {
		return fail(c, l, "search_todos_error", err)
	}
	return c.JSON(http.StatusOK, todos)
}

func (h *TodosHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "todos_get")

	userID, err := owner(c)
	if err != nil {
		return err
	}
	id, err := todoID(c)
	if err != nil {
		return err
	}

	todo, err := h.Svc.Get(ctx, userID, id)
	if err != nil {
		return fail(c, l, "get_todo_error", err)
	}
	return c.JSON(http.StatusOK, todo)
}

func (h *TodosHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "todos_update")

	userID, err := owner(c)
	if err != nil {
		return err
	}
	id, err := todoID(c)
	if err != nil {
		return err
	}

	var body transport.TodoPatch
	if err := transport.DecodeStrict(c.Request().Body, &body); err != nil {
		return fail(c, l, "update_todo_error", err)
	}
	patch, err := body.Patch()
	if err != nil {
		return fail(c, l, "update_todo_error", err)
	}

	todo, err := h.Svc.Update(ctx, userID, id, patch)
	if err != nil {
		return fail(c, l, "update_todo_error", err)
	}
	return c.JSON(http.StatusOK, todo)
}

func (h *TodosHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "todos_delete")

	userID, err := owner(c)
	if err != nil {
		return err
	}
	id, err := todoID(c)
	if err != nil {
		return err
	}

	if err := h.Svc.Delete(ctx, userID, id); err != nil {
		return fail(c, l, "delete_todo_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TodosHTTP) Toggle(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "todos_toggle")

	userID, err := owner(c)
	if err != nil {
		return err
	}
	id, err := todoID(c)
	if err != nil {
		return err
	}

	todo, err := h.Svc.Toggle(ctx, userID, id)
	if err != nil {
		return fail(c, l, "toggle_todo_error", err)
	}
	return c.JSON(http.StatusOK, todo)
}
