package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/PaulBabatuyi/cvideo/internal/models"
	"github.com/PaulBabatuyi/cvideo/internal/observability"
	"github.com/PaulBabatuyi/cvideo/internal/storage"
)

var (
	ErrMissingFile     = errors.New("no video file received")
	ErrMissingFilename = errors.New("filename is required")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrNotFound        = errors.New("file does not exist")
	ErrBusy            = errors.New("too many uploads in progress")
	ErrNoHistory       = errors.New("history is not enabled")
)

// DefaultExtensions are the video extensions listed when none are configured.
var DefaultExtensions = []string{".mp4"}

const (
	defaultMaxConcurrentUploads = 4
	defaultUploadQueueTimeout   = 30 * time.Second
	defaultHistoryLimit         = 20
	maxHistoryLimit             = 100
)

// Journal records video changes somewhere durable. Failures never fail the request.
type Journal interface {
	Record(ctx context.Context, event models.VideoEvent) error
}

// HistoryReader reads back what a Journal recorded.
type HistoryReader interface {
	History(ctx context.Context, filename string, limit int) ([]models.VideoEvent, error)
}

// Publisher notifies live subscribers about video changes.
type Publisher interface {
	Publish(event models.VideoEvent)
}

type NopJournal struct{}

func (NopJournal) Record(context.Context, models.VideoEvent) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(models.VideoEvent) {}

type Config struct {
	Store                storage.VideoStore
	Journal              Journal
	History              HistoryReader
	Events               Publisher
	Metrics              *observability.Metrics
	Logger               *zap.Logger
	Clock                storage.Clock
	Extensions           []string
	MaxConcurrentUploads int64
	// UploadQueueTimeout bounds how long an upload waits for a free slot.
	UploadQueueTimeout   time.Duration
}

type VideoService struct {
	store      storage.VideoStore
	journal    Journal
	history    HistoryReader
	events     Publisher
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      storage.Clock
	extensions []string
	uploadSem  *semaphore.Weighted
	queueWait  time.Duration
}

type ListRequest struct {
	WithMeta bool
}

type ListResponse struct {
	Videos   []models.Video
	WithMeta bool
}

type UploadRequest struct {
	Filename   string
	Body       io.Reader
	RemoteAddr string
}

type UploadResponse struct {
	Filename    string
	Size        int64
	ContentType string
}

type DeleteRequest struct {
	Filename   string
	RemoteAddr string
}

type HistoryRequest struct {
	Filename string
	// Limit defaults to 20 and is capped at 100.
	Limit int
}

func NewVideoService(cfg Config) *VideoService {
	if cfg.Journal == nil {
		cfg.Journal = NopJournal{}
	}
	if cfg.Events == nil {
		cfg.Events = nopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = storage.RealClock{}
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.MaxConcurrentUploads <= 0 {
		cfg.MaxConcurrentUploads = defaultMaxConcurrentUploads
	}
	if cfg.UploadQueueTimeout <= 0 {
		cfg.UploadQueueTimeout = defaultUploadQueueTimeout
	}

	return &VideoService{
		store:      cfg.Store,
		journal:    cfg.Journal,
		history:    cfg.History,
		events:     cfg.Events,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
		extensions: cfg.Extensions,
		uploadSem:  semaphore.NewWeighted(cfg.MaxConcurrentUploads),
		queueWait:  cfg.UploadQueueTimeout,
	}
}

// List returns the stored videos in store order. Sorting is left to the caller.
func (s *VideoService) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	videos := make([]models.Video, 0, len(all))
	for _, v := range all {
		if IsVideoFile(v.Name, s.extensions) {
			videos = append(videos, v)
		}
	}

	return &ListResponse{Videos: videos, WithMeta: req.WithMeta}, nil
}

// Upload stores the body under the client supplied name, replacing any
// existing video with that name. The extension is not checked.
func (s *VideoService) Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	if req.Body == nil {
		return nil, ErrMissingFile
	}
	if err := storage.ValidName(req.Filename); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, req.Filename)
	}

	if err := s.acquireUploadSlot(ctx); err != nil {
		return nil, err
	}
	defer s.uploadSem.Release(1)

	contentType, body, err := SniffContentType(req.Body)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", req.Filename, err)
	}

	size, err := s.store.Save(ctx, req.Filename, body)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", req.Filename, err)
	}
	s.metrics.AddUploadBytes(size)

	s.logger.Info("video uploaded",
		zap.String("filename", req.Filename),
		zap.Int64("size", size),
		zap.String("detected_type", contentType),
	)

	s.notify(ctx, models.VideoEvent{
		Type:        models.EventUploaded,
		Filename:    req.Filename,
		Size:        size,
		ContentType: contentType,
		RemoteAddr:  req.RemoteAddr,
		At:          s.clock.Now(),
	})

	return &UploadResponse{
		Filename:    req.Filename,
		Size:        size,
		ContentType: contentType,
	}, nil
}

// acquireUploadSlot waits for an upload slot until ctx ends or the queue
// timeout passes. An HTTP request context is not cancelled while its body is
// unread, so the timeout is what turns a long queue into ErrBusy.
func (s *VideoService) acquireUploadSlot(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.queueWait)
	defer cancel()
	if err := s.uploadSem.Acquire(waitCtx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return nil
}

func (s *VideoService) Delete(ctx context.Context, req DeleteRequest) error {
	if req.Filename == "" {
		return ErrMissingFilename
	}
	if err := storage.ValidName(req.Filename); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, req.Filename)
	}

	if err := s.store.Delete(ctx, req.Filename); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, req.Filename)
		}
		return fmt.Errorf("delete %s: %w", req.Filename, err)
	}

	s.logger.Info("video deleted", zap.String("filename", req.Filename))

	s.notify(ctx, models.VideoEvent{
		Type:       models.EventDeleted,
		Filename:   req.Filename,
		RemoteAddr: req.RemoteAddr,
		At:         s.clock.Now(),
	})
	return nil
}

// History returns the recorded uploads and deletes of one filename, newest
// first. The video does not need to exist anymore.
func (s *VideoService) History(ctx context.Context, req HistoryRequest) ([]models.VideoEvent, error) {
	if s.history == nil {
		return nil, ErrNoHistory
	}
	if req.Filename == "" {
		return nil, ErrMissingFilename
	}
	if err := storage.ValidName(req.Filename); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, req.Filename)
	}

	limit := req.Limit
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	events, err := s.history.History(ctx, req.Filename, limit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", req.Filename, err)
	}
	return events, nil
}

// Open returns the stored video for streaming. The caller closes Body.
func (s *VideoService) Open(ctx context.Context, name string) (*storage.Object, error) {
	if err := storage.ValidName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	obj, err := s.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return obj, nil
}

func (s *VideoService) notify(ctx context.Context, event models.VideoEvent) {
	// Journal failures are logged only.
	if err := s.journal.Record(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("failed to record video event",
			zap.String("type", string(event.Type)),
			zap.String("filename", event.Filename),
			zap.Error(err),
		)
	}
	s.events.Publish(event)
}
