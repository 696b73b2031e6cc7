package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/PaulBabatuyi/cvideo/internal/models"
)

// MemoryStorage is an in-memory VideoStore, useful for tests and throwaway servers.
// This implementation is safe for concurrent use.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	clock   Clock
}

type memoryObject struct {
	data    []byte
	modTime time.Time
}

func NewMemoryStorage(clock Clock) *MemoryStorage {
	if clock == nil {
		clock = RealClock{}
	}
	return &MemoryStorage{
		objects: make(map[string]memoryObject),
		clock:   clock,
	}
}

// List returns objects ordered by name, standing in for directory order.
func (m *MemoryStorage) List(ctx context.Context) ([]models.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	videos := make([]models.Video, 0, len(m.objects))
	for name, obj := range m.objects {
		videos = append(videos, models.Video{
			Name:    name,
			ModTime: obj.modTime,
			Size:    int64(len(obj.data)),
		})
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].Name < videos[j].Name })
	return videos, nil
}

func (m *MemoryStorage) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := ValidName(name); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(&ctxReader{ctx: ctx, r: r})
	if err != nil {
		return int64(len(data)), fmt.Errorf("read content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[name] = memoryObject{data: data, modTime: m.clock.Now()}
	return int64(len(data)), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, name string) error {
	if err := ValidName(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[name]; !ok {
		return ErrNotFound
	}
	delete(m.objects, name)
	return nil
}

func (m *MemoryStorage) Open(ctx context.Context, name string) (*Object, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		Body:    readSeekNopCloser{bytes.NewReader(obj.data)},
		Name:    name,
		ModTime: obj.modTime,
		Size:    int64(len(obj.data)),
	}, nil
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

var _ VideoStore = (*MemoryStorage)(nil)
