package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TopicUsers = "user_events"
	TopicTodos = "todo_events"
)

const (
	UserRegistered = "user_registered"
	UserLoggedIn   = "user_logged_in"
	TodoCreated    = "todo_created"
	TodoUpdated    = "todo_updated"
	TodoToggled    = "todo_toggled"
	TodoDeleted    = "todo_deleted"
)

// PublishTimeout bounds a single publish call.
const PublishTimeout = 5 * time.Second

type Event struct {
	Type      string     `json:"type"`
	UserID    uuid.UUID  `json:"user_id"`
	TodoID    *uuid.UUID `json:"todo_id,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
	At        time.Time  `json:"at"`
}

// Key is the partition key. All events of one user land on one partition.
func (e Event) Key() string {
	return e.UserID.String()
}

type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
func (Nop) Close() error { return nil }

func User(typ string, userID uuid.UUID, at time.Time) Event {
	return Event{Type: typ, UserID: userID, At: at.UTC()}
}

func Todo(typ string, userID, todoID uuid.UUID, at time.Time) Event {
	id := todoID
	return Event{Type: typ, UserID: userID, TodoID: &id, At: at.UTC()}
}
