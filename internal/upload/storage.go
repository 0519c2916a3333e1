// Package upload persists uploaded cover images under collision-free names.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrRejected marks uploads refused because of what the client sent.
// Anything else returned by Store is an I/O failure.
var ErrRejected = errors.New("upload rejected")

// sniffLen matches the amount of data mimetype looks at by default.
const sniffLen = 3072

// Storage is the port the article service writes images through.
type Storage interface {
	// Store writes r and returns the name it was stored under.
	Store(ctx context.Context, r io.Reader, suggestedName string) (string, error)
}

// DiskStorage writes files into a single directory.
type DiskStorage struct {
	dir string
	now func() time.Time
}

func NewDiskStorage(dir string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStorage{dir: dir, now: time.Now}, nil
}

// Dir returns the directory files are written to.
func (d *DiskStorage) Dir() string { return d.dir }

func (d *DiskStorage) Store(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	name := SanitizeName(suggestedName)
	if name == "" {
		return "", fmt.Errorf("%w: missing file name", ErrRejected)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", fmt.Errorf("%w: empty file", ErrRejected)
	}
	if mt := mimetype.Detect(head); !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: %s is not an image", ErrRejected, mt.String())
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, stored, err := d.create(name)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r)); err != nil {
		f.Close()
		os.Remove(filepath.Join(d.dir, stored))
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(filepath.Join(d.dir, stored))
		return "", fmt.Errorf("close upload: %w", err)
	}
	return stored, nil
}

// create opens a new file named <millis>-<name>. If that name is taken a
// random segment is added until O_EXCL succeeds.
func (d *DiskStorage) create(name string) (*os.File, string, error) {
	stamp := d.now().UnixMilli()
	stored := fmt.Sprintf("%d-%s", stamp, name)

	for attempt := 0; attempt < 5; attempt++ {
		f, err := os.OpenFile(filepath.Join(d.dir, stored), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, stored, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create upload file: %w", err)
		}
		stored = fmt.Sprintf("%d-%s-%s", stamp, uuid.NewString()[:8], name)
	}
	return nil, "", fmt.Errorf("create upload file: no free name for %q", name)
}

// SanitizeName keeps only the base name of a client supplied file name and
// replaces whitespace with underscores.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Join(strings.Fields(name), "_")
}
