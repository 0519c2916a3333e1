package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewArticle(t *testing.T) {
	author := uuid.New()
	a := NewArticle("Title", "<p>body</p>", "1700000000000-cover.png", author)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, author, a.Author)
	assert.Equal(t, "1700000000000-cover.png", a.Image)
	assert.NotNil(t, a.Categories, "categories should start as an empty set, not null")
	assert.Empty(t, a.Categories)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)
}

func TestUniqueIDs(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	got := UniqueIDs([]uuid.UUID{b, a, b, c, a})
	assert.Equal(t, []uuid.UUID{b, a, c}, got)

	assert.Empty(t, UniqueIDs(nil))
}
