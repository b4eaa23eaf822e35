package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Skotchmaster/todo_service/internal/events"
	"github.com/Skotchmaster/todo_service/internal/logging"
	"github.com/Skotchmaster/todo_service/internal/models"
	"github.com/Skotchmaster/todo_service/internal/repo"
	"github.com/Skotchmaster/todo_service/internal/util"
)

const maxTitleLen = 200

type TodoStore interface {
	ListTodos(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Todo, error)
	CreateTodo(ctx context.Context, todo *models.Todo) error
	GetTodo(ctx context.Context, userID, id uuid.UUID) (*models.Todo, error)
	UpdateTodo(ctx context.Context, userID, id uuid.UUID, fields map[string]any) (*models.Todo, error)
	ToggleTodo(ctx context.Context, userID, id uuid.UUID) (*models.Todo, error)
	DeleteTodo(ctx context.Context, userID, id uuid.UUID) error
	SearchTodos(ctx context.Context, userID uuid.UUID, q string) ([]models.Todo, error)
	TodosByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Todo, error)
}

// TodoIndex is an optional full-text index kept next to the store.
type TodoIndex interface {
	IndexTodo(ctx context.Context, t *models.Todo) error
	RemoveTodo(ctx context.Context, id uuid.UUID) error
	SearchIDs(ctx context.Context, userID uuid.UUID, q string) ([]uuid.UUID, error)
}

type TodoService struct {
	Store  TodoStore
	Index  TodoIndex
	Events events.Publisher
	Now    func() time.Time
}

type CreateTodoInput struct {
	Title       string
	Description string
	Completed   bool
	Priority    models.Priority
	DueDate     *time.Time
}

// TodoPatch lists the fields to change. Nil pointers are left untouched;
// DueDateSet with a nil DueDate clears the due date.
type TodoPatch struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *models.Priority
	DueDateSet  bool
	DueDate     *time.Time
}

func (s *TodoService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TodoService) List(ctx context.Context, owner uuid.UUID) ([]models.Todo, error) {
	todos, err := s.Store.ListTodos(ctx, owner, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// ListPage returns one page of List. page is 1-based.
func (s *TodoService) ListPage(ctx context.Context, owner uuid.UUID, page, size int) ([]models.Todo, error) {
	offset, limit := util.Calculate(page, size)
	todos, err := s.Store.ListTodos(ctx, owner, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (s *TodoService) Create(ctx context.Context, owner uuid.UUID, in CreateTodoInput) (*models.Todo, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	verr := &ValidationError{}
	validateTitle(verr, title)
	validatePriority(verr, priority)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	todo := &models.Todo{
		UserID:      owner,
		Title:       title,
		Description: description,
		Completed:   in.Completed,
		Priority:    priority,
		DueDate:     utcPtr(in.DueDate),
	}
	if err := s.Store.CreateTodo(ctx, todo); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	s.afterWrite(ctx, events.TodoCreated, todo)
	return todo, nil
}

func (s *TodoService) Get(ctx context.Context, owner, id uuid.UUID) (*models.Todo, error) {
	todo, err := s.Store.GetTodo(ctx, owner, id)
	if err != nil {
		return nil, storeError("get todo", err)
	}
	return todo, nil
}

func (s *TodoService) Update(ctx context.Context, owner, id uuid.UUID, patch TodoPatch) (*models.Todo, error) {
	verr := &ValidationError{}
	fields := make(map[string]any, 5)

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		validateTitle(verr, title)
		fields["title"] = title
	}
	if patch.Description != nil {
		fields["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Completed != nil {
		fields["completed"] = *patch.Completed
	}
	if patch.Priority != nil {
		validatePriority(verr, *patch.Priority)
		fields["priority"] = *patch.Priority
	}
	if patch.DueDateSet {
		fields["due_date"] = utcPtr(patch.DueDate)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	todo, err := s.Store.UpdateTodo(ctx, owner, id, fields)
	if err != nil {
		return nil, storeError("update todo", err)
	}

	s.afterWrite(ctx, events.TodoUpdated, todo)
	return todo, nil
}

func (s *TodoService) Toggle(ctx context.Context, owner, id uuid.UUID) (*models.Todo, error) {
	todo, err := s.Store.ToggleTodo(ctx, owner, id)
	if err != nil {
		return nil, storeError("toggle todo", err)
	}

	s.afterWrite(ctx, events.TodoToggled, todo)
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, owner, id uuid.UUID) error {
	if err := s.Store.DeleteTodo(ctx, owner, id); err != nil {
		return storeError("delete todo", err)
	}

	if s.Index != nil {
		if err := s.Index.RemoveTodo(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("unindex_todo_error", "todo_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, events.TopicTodos, events.Todo(events.TodoDeleted, owner, id, s.now()))
	return nil
}

// Search finds the owner's todos whose title or description matches q. The
// full-text index is preferred; the store is used when it is absent or fails.
func (s *TodoService) Search(ctx context.Context, owner uuid.UUID, q string) ([]models.Todo, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, FieldError("q", msgRequired)
	}

	if s.Index != nil {
		ids, err := s.Index.SearchIDs(ctx, owner, q)
		if err == nil {
			todos, err := s.Store.TodosByIDs(ctx, owner, ids)
			if err != nil {
				return nil, fmt.Errorf("load search hits: %w", err)
			}
			return todos, nil
		}
		logging.FromContext(ctx).Warn("search_index_error", "error", err)
	}

	todos, err := s.Store.SearchTodos(ctx, owner, q)
	if err != nil {
		return nil, fmt.Errorf("search todos: %w", err)
	}
	return todos, nil
}

func (s *TodoService) afterWrite(ctx context.Context, typ string, todo *models.Todo) {
	if s.Index != nil {
		if err := s.Index.IndexTodo(ctx, todo); err != nil {
			logging.FromContext(ctx).Warn("index_todo_error", "todo_id", todo.ID, "error", err)
		}
	}

	ev := events.Todo(typ, todo.UserID, todo.ID, s.now())
	if typ == events.TodoToggled {
		done := todo.Completed
		ev.Completed = &done
	}
	publish(ctx, s.Events, events.TopicTodos, ev)
}

func storeError(op string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func validateTitle(verr *ValidationError, title string) {
	switch {
	case title == "":
		verr.Add("title", "This field may not be blank.")
	case utf8.RuneCountInString(title) > maxTitleLen:
		verr.Add("title", fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLen))
	}
}

func validatePriority(verr *ValidationError, p models.Priority) {
	if !p.Valid() {
		verr.Add("priority", fmt.Sprintf("%q is not a valid choice.", string(p)))
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
