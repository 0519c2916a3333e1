package model

import (
	"time"

	"github.com/google/uuid"
)

// Article is the stored document. Author and Categories hold foreign ids only.
type Article struct {
	ID         uuid.UUID   `json:"id"`
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Excerpt    string      `json:"excerpt,omitempty"`
	Image      string      `json:"image"`
	Author     uuid.UUID   `json:"author"`
	Categories []uuid.UUID `json:"categories"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// NewArticle creates a new Article owned by author with an empty category set.
func NewArticle(title, content, image string, author uuid.UUID) Article {
	now := time.Now().UTC()
	return Article{
		ID:         uuid.New(),
		Title:      title,
		Content:    content,
		Image:      image,
		Author:     author,
		Categories: []uuid.UUID{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// UniqueIDs drops repeated ids, keeping the first occurrence of each.
func UniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ArticleSummary is a list item with the author record embedded in place of its id.
type ArticleSummary struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Excerpt string    `json:"excerpt,omitempty"`
	Image   string    `json:"image"`
	Author  Author    `json:"author"`
}

// AuthorRef is the reduced author shape used on single-article reads.
type AuthorRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// CategoryRef is the reduced category shape used on single-article reads.
type CategoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ArticleDetail is a single article with author and categories resolved.
type ArticleDetail struct {
	ID         uuid.UUID     `json:"id"`
	Title      string        `json:"title"`
	Content    string        `json:"content"`
	Excerpt    string        `json:"excerpt,omitempty"`
	Image      string        `json:"image"`
	Author     AuthorRef     `json:"author"`
	Categories []CategoryRef `json:"categories"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
