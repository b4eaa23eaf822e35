package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/todo_service/internal/events"
	"github.com/Skotchmaster/todo_service/internal/repo"
	"github.com/Skotchmaster/todo_service/internal/tokens"
	"github.com/Skotchmaster/todo_service/pkg/db"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

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

type fixture struct {
	repo     *repo.GormRepo
	tokens   *tokens.Service
	events   *recordingPublisher
	accounts *AccountService
	todos    *TodoService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, db.Migrate(ctx, gdb))

	r := repo.New(gdb)
	r.Now = stepClock()
	tok := tokens.NewService([]byte("test-jwt-secret"), []byte("test-refresh-secret"), 15*time.Minute, 7*24*time.Hour)
	pub := &recordingPublisher{}

	return &fixture{
		repo:     r,
		tokens:   tok,
		events:   pub,
		accounts: &AccountService{Users: r, Tokens: tok, Events: pub},
		todos:    &TodoService{Store: r, Events: pub},
	}
}
