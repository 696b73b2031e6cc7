package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/PaulBabatuyi/cvideo/internal/models"
)

var (
	ErrNotFound    = errors.New("video not found")
	ErrInvalidName = errors.New("invalid filename")
)

// VideoStore is the storage accessor behind every video operation.
// Names are flat: a store never creates or reads nested paths.
type VideoStore interface {
	// List returns every object in the store in backend order. A store
	// whose location does not exist yet is empty, not an error.
	List(ctx context.Context) ([]models.Video, error)
	// Save writes r under name, replacing any existing object, and
	// returns the number of bytes written.
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	Delete(ctx context.Context, name string) error
	Open(ctx context.Context, name string) (*Object, error)
}

// Object is an opened video. Body is also an io.ReadSeeker for local stores.
type Object struct {
	Body    io.ReadCloser
	Name    string
	ModTime time.Time
	Size    int64
}

// ValidName reports whether name is usable as a single flat storage key.
func ValidName(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return ErrInvalidName
	}
	return nil
}

// Clock abstracts time retrieval so modification times are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
