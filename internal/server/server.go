package server

import (
	"context"
	"embed"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/cvideo/internal/models"
	"github.com/PaulBabatuyi/cvideo/internal/service"
	"github.com/PaulBabatuyi/cvideo/internal/storage"
)

//go:embed web/*.html
var webFS embed.FS

const defaultMaxUploadBytes = 2 << 30 // 2 GiB

// VideoService is what the handlers need from the service layer.
type VideoService interface {
	List(ctx context.Context, req service.ListRequest) (*service.ListResponse, error)
	Upload(ctx context.Context, req service.UploadRequest) (*service.UploadResponse, error)
	Delete(ctx context.Context, req service.DeleteRequest) error
	Open(ctx context.Context, name string) (*storage.Object, error)
	History(ctx context.Context, req service.HistoryRequest) ([]models.VideoEvent, error)
}

type Config struct {
	Videos VideoService
	// Events serves the websocket change feed. Optional.
	Events         http.Handler
	Logger         *zap.Logger
	MaxUploadBytes int64
}

type Server struct {
	videos         VideoService
	logger         *zap.Logger
	maxUploadBytes int64
	mux            *http.ServeMux
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		videos:         cfg.Videos,
		logger:         cfg.Logger,
		maxUploadBytes: cfg.MaxUploadBytes,
		mux:            http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/cvideo", s.handleVideos)
	s.mux.HandleFunc("GET /api/cvideo/history", s.handleHistory)
	if cfg.Events != nil {
		s.mux.Handle("GET /api/cvideo/events", cfg.Events)
	}
	s.mux.HandleFunc("GET /videos/{name}", s.handleServeVideo)
	s.mux.HandleFunc("GET /videos", s.page("web/videos.html"))
	s.mux.HandleFunc("GET /{$}", s.page("web/upload.html"))
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "OK")
	})

	return s
}

// Handler returns the routing mux; middleware is applied by the caller.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, webFS, name)
	}
}
