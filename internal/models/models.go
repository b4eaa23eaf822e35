package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"            json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null"   json:"username"`
	Email        string    `gorm:"size:254;uniqueIndex:idx_users_email,where:email <> ''" json:"email"`
	PasswordHash string    `gorm:"not null"                        json:"-"`
	FirstName    string    `gorm:"size:150"                        json:"first_name"`
	LastName     string    `gorm:"size:150"                        json:"last_name"`
	IsActive     bool      `gorm:"not null"                        json:"-"`
	DateJoined   time.Time `gorm:"not null"                        json:"date_joined"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (User) TableName() string {
	return "users"
}

type Todo struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"                   json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;index:idx_todos_owner;not null" json:"-"`
	Title       string     `gorm:"size:200;not null"                      json:"title"`
	Description string     `gorm:"type:text;not null;default:''"          json:"description"`
	Completed   bool       `gorm:"not null;default:false"                 json:"completed"`
	Priority    Priority   `gorm:"size:10;not null;default:'medium'"      json:"priority"`
	CreatedAt   time.Time  `gorm:"index:idx_todos_owner;not null"         json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null"                               json:"updated_at"`
	DueDate     *time.Time `json:"due_date"`
}

func (t *Todo) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	return nil
}

func (Todo) TableName() string {
	return "todos"
}

func All() []any {
	return []any{&User{}, &Todo{}}
}
