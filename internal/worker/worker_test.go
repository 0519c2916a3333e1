package worker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"inkpress/internal/model"
	"inkpress/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockExcerpter struct {
	MockExcerpt string
	ShouldFail  bool
}

// Excerpt simulates the readability pass
func (m *MockExcerpter) Excerpt(content string) (string, error) {
	if m.ShouldFail {
		return "", fmt.Errorf("simulated parse error")
	}
	return m.MockExcerpt, nil
}

func newTestStore(t *testing.T) *store.HybridStore {
	t.Helper()

	// Spin up fake Redis
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	// Real store wired to fake Redis + temp Badger
	st, err := store.NewHybridStore(mr.Addr(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

// TestWorker_ProcessJob tests that a queued article gets its excerpt
// filled in without any other field changing.
func TestWorker_ProcessJob(t *testing.T) {
	st := newTestStore(t)

	// Worker with mocked excerpter (no parsing, no flakiness)
	w := NewWorker(st, st, zap.NewNop())
	w.excerpter = &MockExcerpter{MockExcerpt: "A short summary"}

	// Seed an article and its job
	article := model.NewArticle("Title", "<p>This is fake content</p>", "1-a.png", uuid.New())
	require.NoError(t, st.CreateArticle(context.Background(), &article))
	require.NoError(t, st.Enqueue(context.Background(), article.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	assert.Eventually(t, func() bool {
		got, err := st.GetArticle(context.Background(), article.ID)
		return err == nil && got.Excerpt == "A short summary"
	}, 2*time.Second, 20*time.Millisecond)

	got, err := st.GetArticle(context.Background(), article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Title, got.Title)
	assert.Equal(t, article.Content, got.Content)
	assert.Equal(t, article.Author, got.Author)
	assert.Equal(t, article.UpdatedAt.Unix(), got.UpdatedAt.Unix(), "excerpt refresh is not an edit")
}

// TestWorker_HandlesFailures checks that bad jobs are skipped and the loop
// keeps consuming.
func TestWorker_HandlesFailures(t *testing.T) {
	st := newTestStore(t)
	mock := &MockExcerpter{ShouldFail: true}
	w := NewWorker(st, st, zap.NewNop())
	w.excerpter = mock

	ctx := context.Background()
	article := model.NewArticle("Title", "<p>content</p>", "1-a.png", uuid.New())
	require.NoError(t, st.CreateArticle(ctx, &article))

	// Job for an article that was deleted before the worker got to it.
	w.processJob(ctx, uuid.New())

	w.processJob(ctx, article.ID)
	got, err := st.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Excerpt)

	mock.ShouldFail = false
	mock.MockExcerpt = "recovered"
	w.processJob(ctx, article.ID)
	got, err = st.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, "recovered", got.Excerpt)
}

func TestWorker_StopsWithoutQueue(t *testing.T) {
	st, err := store.NewHybridStore("", "")
	require.NoError(t, err)
	defer st.Close()

	w := NewWorker(st, st, zap.NewNop())
	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker should return when no queue is configured")
	}
}

func TestReadabilityExcerpter(t *testing.T) {
	e := NewReadabilityExcerpter()

	empty, err := e.Excerpt("   ")
	require.NoError(t, err)
	assert.Empty(t, empty)

	para := strings.Repeat("Gophers write small programs that compose well. ", 12)
	html := "<html><body><article><h1>Heading</h1><p>" + para + "</p><p>" + para + "</p></article></body></html>"
	got, err := e.Excerpt(html)
	require.NoError(t, err)
	assert.Contains(t, got, "Gophers write small programs")
	assert.NotContains(t, got, "<p>")
	assert.LessOrEqual(t, len([]rune(got)), maxExcerptRunes+1)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "hello…", truncate("hello world", 8))
	assert.Equal(t, "héllo…", truncate("héllo wörld", 8))
}
