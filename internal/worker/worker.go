package worker

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"inkpress/internal/model"
	"inkpress/internal/store"

	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxExcerptRunes = 280

// Excerpter turns article HTML into a short plain-text summary.
// This allows us to mock the readability step in tests.
type Excerpter interface {
	Excerpt(content string) (string, error)
}

// ReadabilityExcerpter is the real implementation backed by go-readability.
type ReadabilityExcerpter struct {
	base *url.URL
}

func NewReadabilityExcerpter() *ReadabilityExcerpter {
	base, _ := url.Parse("http://localhost/")
	return &ReadabilityExcerpter{base: base}
}

func (e *ReadabilityExcerpter) Excerpt(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}

	art, err := readability.FromReader(strings.NewReader(content), e.base)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(art.Excerpt)
	if text == "" {
		text = strings.TrimSpace(art.TextContent)
	}
	return truncate(strings.Join(strings.Fields(text), " "), maxExcerptRunes), nil
}

// truncate cuts s to at most n runes, backing off to the last space.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)[:n]
	cut := string(r)
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}

type Worker struct {
	store     store.Store
	queue     store.Queue
	logger    *zap.Logger
	excerpter Excerpter
}

// NewWorker initializes the worker with the ReadabilityExcerpter
func NewWorker(st store.Store, queue store.Queue, logger *zap.Logger) *Worker {
	return &Worker{
		store:     st,
		queue:     queue,
		logger:    logger,
		excerpter: NewReadabilityExcerpter(),
	}
}

// Start runs the worker loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started. Waiting for jobs...")

	for {
		// Wait for job (Blocking call to Redis)
		id, err := w.queue.PopQueue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Worker shutting down")
				return
			}
			if errors.Is(err, store.ErrNoQueue) {
				w.logger.Warn("No job queue configured, worker stopped")
				return
			}
			w.logger.Error("Queue error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.processJob(ctx, id)
	}
}

func (w *Worker) processJob(ctx context.Context, id uuid.UUID) {
	logger := w.logger.With(zap.String("job_id", id.String()))

	article, err := w.store.GetArticle(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		logger.Info("Job dropped: article no longer exists")
		return
	} else if err != nil {
		logger.Error("Job failed: could not load article", zap.Error(err))
		return
	}

	excerpt, err := w.excerpter.Excerpt(article.Content)
	if err != nil {
		logger.Error("Excerpt extraction failed", zap.Error(err))
		return
	}

	// Only the excerpt is written, and only if the content it was computed
	// from is still current. A newer edit has queued its own job.
	_, err = w.store.UpdateArticle(ctx, id, func(a *model.Article) error {
		if a.Content == article.Content {
			a.Excerpt = excerpt
		}
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error("Failed to save excerpt", zap.Error(err))
		return
	}

	logger.Info("Excerpt updated", zap.Int("runes", utf8.RuneCountInString(excerpt)))
}
