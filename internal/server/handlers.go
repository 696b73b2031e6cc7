package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/cvideo/internal/models"
	"github.com/PaulBabatuyi/cvideo/internal/service"
)

type videoMeta struct {
	Name  string    `json:"name"`
	MTime time.Time `json:"mtime"`
}

type listNamesResponse struct {
	Videos []string `json:"videos"`
}

type listMetaResponse struct {
	Videos []videoMeta `json:"videos"`
}

type listErrorResponse struct {
	Videos []string `json:"videos"`
	Error  string   `json:"error"`
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
}

type deleteResponse struct {
	Success bool `json:"success"`
}

type historyResponse struct {
	Filename string              `json:"filename"`
	Events   []models.VideoEvent `json:"events"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleList(w, r)
	case http.MethodPost:
		s.handleUpload(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

// handleList answers GET /api/cvideo[?meta=1].
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	withMeta := r.URL.Query().Get("meta") == "1"

	resp, err := s.videos.List(r.Context(), service.ListRequest{WithMeta: withMeta})
	if err != nil {
		s.logger.Error("list videos failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, listErrorResponse{Videos: []string{}, Error: err.Error()})
		return
	}

	if withMeta {
		videos := make([]videoMeta, 0, len(resp.Videos))
		for _, v := range resp.Videos {
			videos = append(videos, videoMeta{Name: v.Name, MTime: v.ModTime})
		}
		s.writeJSON(w, http.StatusOK, listMetaResponse{Videos: videos})
		return
	}

	names := make([]string, 0, len(resp.Videos))
	for _, v := range resp.Videos {
		names = append(names, v.Name)
	}
	s.writeJSON(w, http.StatusOK, listNamesResponse{Videos: names})
}

// handleUpload answers POST /api/cvideo with the file in multipart field "video".
// The part is streamed into the service, so nothing is read from the body
// until the upload has been admitted.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: service.ErrMissingFile.Error()})
		return
	}

	part, filename, err := nextVideoPart(mr)
	if err != nil {
		s.writeUploadFormError(w, err)
		return
	}
	defer part.Close()

	body := &errRecorder{r: part}
	resp, err := s.videos.Upload(r.Context(), service.UploadRequest{
		Filename:   filename,
		Body:       body,
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(body.err, &maxErr) || errors.As(err, &maxErr) {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: tooLargeMessage(maxErr.Limit)})
			return
		}
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, uploadResponse{Success: true, Filename: resp.Filename})
}

// nextVideoPart skips ahead to the first file part named "video" and returns
// it with the filename exactly as the client sent it.
func nextVideoPart(mr *multipart.Reader) (*multipart.Part, string, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", service.ErrMissingFile
		}
		if err != nil {
			return nil, "", err
		}
		if part.FormName() != "video" {
			part.Close()
			continue
		}

		// Part.FileName strips directories, which would hide traversal
		// attempts. The raw parameter is checked by the service instead.
		_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		if err != nil {
			part.Close()
			return nil, "", fmt.Errorf("%w: %v", errBadDisposition, err)
		}
		filename := params["filename"]
		if filename == "" {
			part.Close()
			return nil, "", service.ErrMissingFile
		}
		return part, filename, nil
	}
}

var errBadDisposition = errors.New("invalid content disposition")

func (s *Server) writeUploadFormError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: tooLargeMessage(maxErr.Limit)})
	case errors.Is(err, service.ErrMissingFile):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: service.ErrMissingFile.Error()})
	default:
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid upload form: " + err.Error()})
	}
}

func tooLargeMessage(limit int64) string {
	return "upload exceeds " + strconv.FormatInt(limit, 10) + " bytes"
}

// errRecorder keeps the first read error so it can be recognized even when
// a storage backend does not wrap it.
type errRecorder struct {
	r   io.Reader
	err error
}

func (e *errRecorder) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF && e.err == nil {
		e.err = err
	}
	return n, err
}

// handleDelete answers DELETE /api/cvideo?filename=<name>.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.videos.Delete(r.Context(), service.DeleteRequest{
		Filename:   r.URL.Query().Get("filename"),
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deleteResponse{Success: true})
}

// handleHistory answers GET /api/cvideo/history?filename=<name>[&limit=n].
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	filename := q.Get("filename")
	events, err := s.videos.History(r.Context(), service.HistoryRequest{Filename: filename, Limit: limit})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, historyResponse{Filename: filename, Events: events})
}

// handleServeVideo streams a stored video at /videos/<name>.
func (s *Server) handleServeVideo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	obj, err := s.videos.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrInvalidFilename) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("open video failed", zap.String("filename", name), zap.Error(err))
		http.Error(w, "failed to open video", http.StatusInternalServerError)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", contentTypeFor(name))

	if rs, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, obj.ModTime, rs)
		return
	}

	if !obj.ModTime.IsZero() {
		w.Header().Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		s.logger.Warn("video stream interrupted", zap.String("filename", name), zap.Error(err))
	}
}

// The builtin mime table has no video types, and the host's may be missing.
var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := videoContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingFile),
		errors.Is(err, service.ErrMissingFilename),
		errors.Is(err, service.ErrInvalidFilename):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: service.ErrNotFound.Error()})
	case errors.Is(err, service.ErrBusy):
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: service.ErrBusy.Error()})
	case errors.Is(err, service.ErrNoHistory):
		s.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: service.ErrNoHistory.Error()})
	default:
		s.logger.Error("video operation failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
