package model

import (
	"time"

	"github.com/google/uuid"
)

// Author is owned by the account system. Articles only reference it.
type Author struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func NewAuthor(username string) Author {
	return Author{
		ID:        uuid.New(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
}

type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func NewCategory(name string) Category {
	return Category{ID: uuid.New(), Name: name}
}
