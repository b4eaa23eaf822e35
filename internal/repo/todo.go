package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/todo_service/internal/models"
)

func ownedBy(db *gorm.DB, userID uuid.UUID) *gorm.DB {
	return db.Where("user_id = ?", userID)
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id")
}

func paginate(offset, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Offset(offset).Limit(limit)
	}
}

// ListTodos returns the owner's todos newest first. A limit of zero returns
// all of them.
func (r *GormRepo) ListTodos(ctx context.Context, userID uuid.UUID, offset, limit int) ([]models.Todo, error) {
	todos := []models.Todo{}
	if err := ownedBy(r.DB.WithContext(ctx), userID).Scopes(newestFirst, paginate(offset, limit)).Find(&todos).Error; err != nil {
		return nil, err
	}
	return todos, nil
}

func (r *GormRepo) CreateTodo(ctx context.Context, todo *models.Todo) error {
	now := r.now()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	return translate(r.DB.WithContext(ctx).Create(todo).Error)
}

func (r *GormRepo) GetTodo(ctx context.Context, userID, id uuid.UUID) (*models.Todo, error) {
	var todo models.Todo
	if err := ownedBy(r.DB.WithContext(ctx), userID).Where("id = ?", id).First(&todo).Error; err != nil {
		return nil, translate(err)
	}
	return &todo, nil
}

// UpdateTodo writes fields in one statement guarded by both id and owner, so
// a foreign todo is indistinguishable from a missing one.
func (r *GormRepo) UpdateTodo(ctx context.Context, userID, id uuid.UUID, fields map[string]any) (*models.Todo, error) {
	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	values["updated_at"] = r.now()
	return r.mutateTodo(ctx, userID, id, values)
}

func (r *GormRepo) ToggleTodo(ctx context.Context, userID, id uuid.UUID) (*models.Todo, error) {
	return r.mutateTodo(ctx, userID, id, map[string]any{
		"completed":  gorm.Expr("NOT completed"),
		"updated_at": r.now(),
	})
}

func (r *GormRepo) mutateTodo(ctx context.Context, userID, id uuid.UUID, values map[string]any) (*models.Todo, error) {
	var todo models.Todo
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := ownedBy(tx.Model(&models.Todo{}), userID).Where("id = ?", id).Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return ownedBy(tx, userID).Where("id = ?", id).First(&todo).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &todo, nil
}

func (r *GormRepo) DeleteTodo(ctx context.Context, userID, id uuid.UUID) error {
	res := ownedBy(r.DB.WithContext(ctx), userID).Where("id = ?", id).Delete(&models.Todo{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchTodos matches q case-insensitively against title and description.
func (r *GormRepo) SearchTodos(ctx context.Context, userID uuid.UUID, q string) ([]models.Todo, error) {
	pattern := containsPattern(q)
	todos := []models.Todo{}
	err := ownedBy(r.DB.WithContext(ctx), userID).
		Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern).
		Scopes(newestFirst).
		Find(&todos).Error
	if err != nil {
		return nil, err
	}
	return todos, nil
}

// TodosByIDs loads the caller's todos among ids, in the order of ids. Ids
// owned by someone else are silently dropped.
func (r *GormRepo) TodosByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Todo, error) {
	todos := []models.Todo{}
	if len(ids) == 0 {
		return todos, nil
	}

	var found []models.Todo
	err := ownedBy(r.DB.WithContext(ctx), userID).
		Where("id IN ?", ids).
		Find(&found).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.Todo, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			todos = append(todos, t)
			delete(byID, id)
		}
	}
	return todos, nil
}
