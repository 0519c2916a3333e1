package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"inkpress/internal/model"
	"inkpress/internal/store"
	"inkpress/internal/upload"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("article not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrUploadRejected is a client fault on the upload (4xx).
	ErrUploadRejected = errors.New("upload error")
	// ErrUploadFailed is a server side failure while storing the upload (5xx).
	ErrUploadFailed = errors.New("upload failed")
)

// Upload is the image file received with a create request.
type Upload struct {
	Filename string
	Body     io.Reader
}

type CreateInput struct {
	Title   string
	Content string
}

// UpdateInput holds the mutable fields. Nil means "leave unchanged".
// The author of an article cannot be changed.
type UpdateInput struct {
	Title      *string      `json:"title"`
	Content    *string      `json:"content"`
	Categories *[]uuid.UUID `json:"categories"`
	Image      *string      `json:"image"`
}

type ArticleService struct {
	store   store.Store
	queue   store.Queue
	uploads upload.Storage
	logger  *zap.Logger
}

// NewArticleService wires the service. queue may be nil, in which case no
// excerpt jobs are scheduled.
func NewArticleService(st store.Store, queue store.Queue, uploads upload.Storage, logger *zap.Logger) *ArticleService {
	return &ArticleService{
		store:   st,
		queue:   queue,
		uploads: uploads,
		logger:  logger,
	}
}

// List returns every article with its author record merged in.
func (s *ArticleService) List(ctx context.Context) ([]model.ArticleSummary, error) {
	articles, err := s.store.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	authorIDs := make([]uuid.UUID, 0, len(articles))
	for _, a := range articles {
		authorIDs = append(authorIDs, a.Author)
	}
	authors, err := s.store.GetAuthors(ctx, model.UniqueIDs(authorIDs))
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}

	out := make([]model.ArticleSummary, 0, len(articles))
	for _, a := range articles {
		author, ok := authors[a.Author]
		if !ok {
			author = model.Author{ID: a.Author}
		}
		out = append(out, model.ArticleSummary{
			ID:      a.ID,
			Title:   a.Title,
			Content: a.Content,
			Excerpt: a.Excerpt,
			Image:   a.Image,
			Author:  author,
		})
	}
	return out, nil
}

// Get returns one article with author and categories resolved.
func (s *ArticleService) Get(ctx context.Context, id uuid.UUID) (*model.ArticleDetail, error) {
	a, err := s.store.GetArticle(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}

	authors, err := s.store.GetAuthors(ctx, []uuid.UUID{a.Author})
	if err != nil {
		return nil, fmt.Errorf("load author: %w", err)
	}
	categories, err := s.store.GetCategories(ctx, a.Categories)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	detail := &model.ArticleDetail{
		ID:         a.ID,
		Title:      a.Title,
		Content:    a.Content,
		Excerpt:    a.Excerpt,
		Image:      a.Image,
		Author:     model.AuthorRef{ID: a.Author, Username: authors[a.Author].Username},
		Categories: make([]model.CategoryRef, 0, len(a.Categories)),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	// Dangling category references stay stored but are not shown.
	for _, cid := range a.Categories {
		if c, ok := categories[cid]; ok {
			detail.Categories = append(detail.Categories, model.CategoryRef{ID: c.ID, Name: c.Name})
		}
	}
	return detail, nil
}

// Create stores the image first, then writes the article owned by authorID.
// If the write fails the stored image is left behind.
func (s *ArticleService) Create(ctx context.Context, in CreateInput, image *Upload, authorID uuid.UUID) (*model.Article, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if authorID == uuid.Nil {
		return nil, fmt.Errorf("%w: author is required", ErrInvalidInput)
	}
	if image == nil || image.Body == nil {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidInput)
	}

	stored, err := s.uploads.Store(ctx, image.Body, image.Filename)
	if err != nil {
		if errors.Is(err, upload.ErrRejected) {
			return nil, fmt.Errorf("%w: %w", ErrUploadRejected, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	article := model.NewArticle(in.Title, in.Content, stored, authorID)
	if err := s.store.CreateArticle(ctx, &article); err != nil {
		s.logger.Warn("Article write failed, image left orphaned",
			zap.String("image", stored),
			zap.Error(err))
		return nil, fmt.Errorf("create article: %w", err)
	}

	s.logger.Info("Article created",
		zap.String("article_id", article.ID.String()),
		zap.String("author", authorID.String()),
		zap.String("image", stored))
	s.scheduleExcerpt(ctx, article.ID)
	return &article, nil
}

// Update applies the supplied fields. Categories replace the whole set and
// must all exist.
func (s *ArticleService) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*model.Article, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}
	if in.Image != nil && (*in.Image == "" || upload.SanitizeName(*in.Image) != *in.Image) {
		return nil, fmt.Errorf("%w: image must be a stored file name", ErrInvalidInput)
	}

	var categories []uuid.UUID
	if in.Categories != nil {
		categories = model.UniqueIDs(*in.Categories)
		found, err := s.store.GetCategories(ctx, categories)
		if err != nil {
			return nil, fmt.Errorf("load categories: %w", err)
		}
		for _, cid := range categories {
			if _, ok := found[cid]; !ok {
				return nil, fmt.Errorf("%w: unknown category %s", ErrInvalidInput, cid)
			}
		}
	}

	contentChanged := false
	updated, err := s.store.UpdateArticle(ctx, id, func(a *model.Article) error {
		if in.Title != nil {
			a.Title = *in.Title
		}
		if in.Content != nil {
			contentChanged = *in.Content != a.Content
			a.Content = *in.Content
		}
		if in.Categories != nil {
			a.Categories = categories
		}
		if in.Image != nil {
			a.Image = *in.Image
		}
		a.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("update article: %w", err)
	}

	if contentChanged {
		s.scheduleExcerpt(ctx, id)
	}
	return updated, nil
}

func (s *ArticleService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.DeleteArticle(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}

	s.logger.Info("Article deleted", zap.String("article_id", id.String()))
	return nil
}

func (s *ArticleService) scheduleExcerpt(ctx context.Context, id uuid.UUID) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, id); err != nil {
		s.logger.Warn("Failed to queue excerpt job",
			zap.String("article_id", id.String()),
			zap.Error(err))
	}
}
