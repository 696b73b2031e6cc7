package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PaulBabatuyi/cvideo/internal/models"
)

// FilesystemStorage stores videos as files in one flat directory on local disk.
type FilesystemStorage struct {
	basePath string // e.g., "./public/videos"
}

// NewFilesystemStorage does not create basePath; Save creates it on first upload.
func NewFilesystemStorage(basePath string) *FilesystemStorage {
	return &FilesystemStorage{basePath: basePath}
}

// tempPrefix marks in-flight uploads. Listings never match it because it has
// no video extension.
const tempPrefix = ".upload-"

// RemoveStaleUploads deletes temp files left by uploads that died mid-write.
// A live upload keeps touching its temp file, so only files not modified for
// olderThan are removed.
func (s *FilesystemStorage) RemoveStaleUploads(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.basePath)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read video dir: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func (s *FilesystemStorage) List(ctx context.Context) ([]models.Video, error) {
	entries, err := os.ReadDir(s.basePath)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Video{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", s.basePath, err)
	}

	videos := make([]models.Video, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// removed between ReadDir and Info
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		videos = append(videos, models.Video{
			Name:    entry.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return videos, nil
}

// Save streams r into a temp file next to the target and renames it into place,
// so readers never observe a partially written video.
func (s *FilesystemStorage) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := ValidName(name); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return 0, fmt.Errorf("create video dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.basePath, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()
		return n, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		cleanup()
		return n, fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.basePath, name)); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("rename %s: %w", name, err)
	}
	return n, nil
}

func (s *FilesystemStorage) Delete(ctx context.Context, name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	path := filepath.Join(s.basePath, name)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return ErrNotFound
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (s *FilesystemStorage) Open(ctx context.Context, name string) (*Object, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}

	return &Object{Body: f, Name: name, ModTime: info.ModTime(), Size: info.Size()}, nil
}

// ctxReader stops a copy once the request that feeds it is gone.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ VideoStore = (*FilesystemStorage)(nil)
