package upload

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func TestDiskStorage_Store(t *testing.T) {
	dir := t.TempDir()
	st, err := NewDiskStorage(dir)
	require.NoError(t, err)

	name, err := st.Store(context.Background(), bytes.NewReader(pngBytes), "file.png")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(name, "-file.png"), "got %q", name)
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data, "sniffed header must be written back in front of the rest")
}

func TestDiskStorage_LargeFile(t *testing.T) {
	dir := t.TempDir()
	st, err := NewDiskStorage(dir)
	require.NoError(t, err)

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte("x"), 5*sniffLen)...)
	name, err := st.Store(context.Background(), bytes.NewReader(big), "big.png")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, len(big), len(data))
}

func TestDiskStorage_SameNameNeverCollides(t *testing.T) {
	dir := t.TempDir()
	st, err := NewDiskStorage(dir)
	require.NoError(t, err)
	// Freeze the clock so every upload gets the same timestamp prefix.
	frozen := time.UnixMilli(1700000000000)
	st.now = func() time.Time { return frozen }

	const n = 8
	names := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name, err := st.Store(context.Background(), bytes.NewReader(pngBytes), "file.png")
			assert.NoError(t, err)
			names[i] = name
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, name := range names {
		assert.Contains(t, name, "file.png")
		assert.True(t, strings.HasPrefix(name, "1700000000000-"))
		assert.False(t, seen[name], "duplicate stored name %q", name)
		seen[name] = true
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestDiskStorage_RejectsClientFaults(t *testing.T) {
	dir := t.TempDir()
	st, err := NewDiskStorage(dir)
	require.NoError(t, err)

	tests := []struct {
		name     string
		body     []byte
		filename string
	}{
		{name: "not an image", body: []byte("just some text, definitely not a picture"), filename: "notes.png"},
		{name: "empty file", body: nil, filename: "empty.png"},
		{name: "no file name", body: pngBytes, filename: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := st.Store(context.Background(), bytes.NewReader(tc.body), tc.filename)
			assert.ErrorIs(t, err, ErrRejected)
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads must not leave files behind")
}

type failingReader struct{ after []byte }

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.after) > 0 {
		n := copy(p, f.after)
		f.after = f.after[n:]
		return n, nil
	}
	return 0, errors.New("connection reset")
}

func TestDiskStorage_IOErrorCleansUp(t *testing.T) {
	dir := t.TempDir()
	st, err := NewDiskStorage(dir)
	require.NoError(t, err)

	// Enough bytes to pass sniffing, then the stream breaks.
	r := &failingReader{after: append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{1}, sniffLen)...)}
	_, err = st.Store(context.Background(), r, "broken.png")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected), "stream failures are not the client's fault")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "file.png", SanitizeName("file.png"))
	assert.Equal(t, "my_holiday_photo.jpg", SanitizeName("my holiday  photo.jpg"))
	assert.Equal(t, "passwd", SanitizeName("../../etc/passwd"))
	assert.Equal(t, "cover.png", SanitizeName(`C:\Users\me\cover.png`))
	assert.Equal(t, "", SanitizeName(""))
	assert.Equal(t, "", SanitizeName(".."))
}
