// Package storage holds attachment blobs. Metadata lives in Postgres.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrNotFound is returned when no blob exists under a key.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidKey guards against keys that escape the store.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Object is an opened blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store is a flat key/blob store.
type Store interface {
	Put(ctx context.Context, key, contentType string, size int64, body io.Reader) error
	Open(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewKey returns a unique, sortable key ending in a sanitized form of filename.
func NewKey(filename string) string {
	return ulid.Make().String() + "-" + SanitizeFilename(filename)
}

// SanitizeFilename strips directories and replaces anything outside [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}

func validKey(key string) bool {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, "/\\") {
		return false
	}
	return true
}
