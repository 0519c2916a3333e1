package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inkpress/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	articlePrefix  = "articles/"
	authorPrefix   = "authors/"
	categoryPrefix = "categories/"

	cacheKeyPrefix = "article:"
	cacheTTL       = 30 * time.Minute
	excerptQueue   = "queue:excerpt"
	popTimeout     = 2 * time.Second
)

// HybridStore keeps every document in Badger and uses Redis as a read cache
// for articles and as the excerpt job queue.
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

// NewHybridStore opens both backends.
// Pass redisAddr="" to run in "Badger-Only" mode (no cache, no queue; for CLI tools).
// Pass badgerPath="" to keep the documents in memory.
func NewHybridStore(redisAddr string, badgerPath string) (*HybridStore, error) {
	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:                  redisAddr,
			ContextTimeoutEnabled: true,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	opts := badger.DefaultOptions(badgerPath)
	if badgerPath == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Silence default logger
	db, err := badger.Open(opts)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &HybridStore{rdb: rdb, db: db}, nil
}

// Close cleans up connections
func (s *HybridStore) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// RunGC reclaims value log space until ctx is cancelled.
func (s *HybridStore) RunGC(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// One call rewrites at most one file; keep going until nothing is left.
			for s.db.RunValueLogGC(0.7) == nil {
			}
		}
	}
}

func articleKey(id uuid.UUID) []byte  { return []byte(articlePrefix + id.String()) }
func authorKey(id uuid.UUID) []byte   { return []byte(authorPrefix + id.String()) }
func categoryKey(id uuid.UUID) []byte { return []byte(categoryPrefix + id.String()) }
func cacheKey(id uuid.UUID) string    { return cacheKeyPrefix + id.String() }

func putDoc(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func getDoc(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func (s *HybridStore) CreateArticle(ctx context.Context, article *model.Article) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putDoc(txn, articleKey(article.ID), article)
	})
}

// GetArticle reads through the Redis cache when one is configured.
func (s *HybridStore) GetArticle(ctx context.Context, id uuid.UUID) (*model.Article, error) {
	if s.rdb != nil {
		val, err := s.rdb.Get(ctx, cacheKey(id)).Bytes()
		if err == nil {
			var cached model.Article
			if err := json.Unmarshal(val, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	var article model.Article
	err := s.db.View(func(txn *badger.Txn) error {
		return getDoc(txn, articleKey(id), &article)
	})
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(article); err == nil {
			s.rdb.Set(ctx, cacheKey(id), data, cacheTTL)
		}
	}

	return &article, nil
}

// ListArticles returns every article in key order.
func (s *HybridStore) ListArticles(ctx context.Context) ([]model.Article, error) {
	articles := []model.Article{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(articlePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var a model.Article
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			articles = append(articles, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *HybridStore) UpdateArticle(ctx context.Context, id uuid.UUID, mutate func(*model.Article) error) (*model.Article, error) {
	var article model.Article
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getDoc(txn, articleKey(id), &article); err != nil {
			return err
		}
		if err := mutate(&article); err != nil {
			return err
		}
		article.ID = id
		return putDoc(txn, articleKey(id), &article)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return &article, nil
}

func (s *HybridStore) DeleteArticle(ctx context.Context, id uuid.UUID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := articleKey(id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *HybridStore) invalidate(ctx context.Context, id uuid.UUID) {
	if s.rdb != nil {
		s.rdb.Del(ctx, cacheKey(id))
	}
}

func (s *HybridStore) SaveAuthor(ctx context.Context, author *model.Author) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putDoc(txn, authorKey(author.ID), author)
	})
}

// GetAuthors fetches the given authors in one read transaction. Ids with no
// stored author are left out of the result.
func (s *HybridStore) GetAuthors(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Author, error) {
	out := make(map[uuid.UUID]model.Author, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			var a model.Author
			err := getDoc(txn, authorKey(id), &a)
			if errors.Is(err, ErrNotFound) {
				continue
			} else if err != nil {
				return err
			}
			out[id] = a
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HybridStore) SaveCategory(ctx context.Context, category *model.Category) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putDoc(txn, categoryKey(category.ID), category)
	})
}

func (s *HybridStore) GetCategories(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Category, error) {
	out := make(map[uuid.UUID]model.Category, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			var c model.Category
			err := getDoc(txn, categoryKey(id), &c)
			if errors.Is(err, ErrNotFound) {
				continue
			} else if err != nil {
				return err
			}
			out[id] = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Enqueue schedules an excerpt job. Without Redis it does nothing.
func (s *HybridStore) Enqueue(ctx context.Context, id uuid.UUID) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.LPush(ctx, excerptQueue, id.String()).Err()
}

// PopQueue waits for a job in the Redis queue (Blocking) until one arrives
// or ctx is cancelled.
func (s *HybridStore) PopQueue(ctx context.Context) (uuid.UUID, error) {
	if s.rdb == nil {
		return uuid.Nil, ErrNoQueue
	}
	for {
		// Short blocking pops so a cancelled ctx is noticed between calls
		result, err := s.rdb.BRPop(ctx, popTimeout, excerptQueue).Result()
		if errors.Is(err, redis.Nil) {
			if err := ctx.Err(); err != nil {
				return uuid.Nil, err
			}
			continue
		}
		if err != nil {
			return uuid.Nil, err
		}

		idStr := result[1]
		return uuid.Parse(idStr)
	}
}
