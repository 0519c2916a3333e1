package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"inkpress/internal/model"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrNoQueue  = errors.New("job queue is not configured")
)

type Store interface {
	CreateArticle(ctx context.Context, article *model.Article) error
	GetArticle(ctx context.Context, id uuid.UUID) (*model.Article, error)
	ListArticles(ctx context.Context) ([]model.Article, error)
	// UpdateArticle applies mutate to the stored article inside a single
	// transaction and returns the result.
	UpdateArticle(ctx context.Context, id uuid.UUID, mutate func(*model.Article) error) (*model.Article, error)
	DeleteArticle(ctx context.Context, id uuid.UUID) error

	SaveAuthor(ctx context.Context, author *model.Author) error
	GetAuthors(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Author, error)
	SaveCategory(ctx context.Context, category *model.Category) error
	GetCategories(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Category, error)
}

// Queue carries article ids that need their excerpt recomputed.
type Queue interface {
	Enqueue(ctx context.Context, id uuid.UUID) error
	PopQueue(ctx context.Context) (uuid.UUID, error)
}
