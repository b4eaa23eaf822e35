package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"github.com/google/uuid"

	"github.com/Skotchmaster/todo_service/internal/models"
)

const maxHits = 100

type Config struct {
	URL      string
	User     string
	Password string
	Index    string
}

// TodoIndex keeps a per-owner searchable copy of todos.
type TodoIndex struct {
	client *elasticsearch.Client
	name   string
}

func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*TodoIndex, error) {
	log.Info("connecting to elasticsearch", "url", cfg.URL, "index", cfg.Index)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("es: new client: %w", err)
	}

	infoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := client.Info(client.Info.WithContext(infoCtx))
	if err != nil {
		return nil, fmt.Errorf("es: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("info", res)
	}

	return &TodoIndex{client: client, name: cfg.Index}, nil
}

type todoDoc struct {
	UserID      string          `json:"user_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Completed   bool            `json:"completed"`
	Priority    models.Priority `json:"priority"`
	CreatedAt   time.Time       `json:"created_at"`
}

var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"user_id":     map[string]any{"type": "keyword"},
			"title":       map[string]any{"type": "text"},
			"description": map[string]any{"type": "text"},
			"completed":   map[string]any{"type": "boolean"},
			"priority":    map[string]any{"type": "keyword"},
			"created_at":  map[string]any{"type": "date"},
		},
	},
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (x *TodoIndex) EnsureIndex(ctx context.Context) error {
	res, err := x.client.Indices.Exists([]string{x.name}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es: index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := encode(indexMapping)
	if err != nil {
		return err
	}
	res, err = x.client.Indices.Create(x.name,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(body),
	)
	if err != nil {
		return fmt.Errorf("es: create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

func (x *TodoIndex) IndexTodo(ctx context.Context, t *models.Todo) error {
	body, err := encode(todoDoc{
		UserID:      t.UserID.String(),
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
	})
	if err != nil {
		return err
	}

	res, err := x.client.Index(x.name, body,
		x.client.Index.WithContext(ctx),
		x.client.Index.WithDocumentID(t.ID.String()),
		x.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("es: index todo: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index todo", res)
	}
	return nil
}

func (x *TodoIndex) RemoveTodo(ctx context.Context, id uuid.UUID) error {
	res, err := x.client.Delete(x.name, id.String(),
		x.client.Delete.WithContext(ctx),
		x.client.Delete.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("es: delete todo: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete todo", res)
	}
	return nil
}

// SearchIDs returns ids of the owner's todos matching q, best match first.
func (x *TodoIndex) SearchIDs(ctx context.Context, userID uuid.UUID, q string) ([]uuid.UUID, error) {
	body, err := encode(map[string]any{
		"size":    maxHits,
		"_source": false,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"user_id": userID.String()}},
				},
				"must": []any{
					map[string]any{"multi_match": map[string]any{
						"query":     q,
						"fields":    []string{"title^2", "description"},
						"fuzziness": "AUTO",
					}},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.name),
		x.client.Search.WithBody(body),
	)
	if err != nil {
		return nil, fmt.Errorf("es: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var r struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("es: decode search: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func encode(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("es: encode body: %w", err)
	}
	return &buf, nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
	return fmt.Errorf("es: %s: %s: %s", op, res.Status(), bytes.TrimSpace(body))
}
