package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the server reports that a video does not exist.
var ErrNotFound = errors.New("video not found")

// Video is one entry of a metadata listing.
type Video struct {
	Name  string    `json:"name"`
	MTime time.Time `json:"mtime"`
}

// Event is one recorded upload or delete.
type Event struct {
	Type        string    `json:"type"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	At          time.Time `json:"at"`
}

type UploadResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
}

// VideoClient talks to the cvideo HTTP API.
type VideoClient struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func NewVideoClient(serverURL string, httpClient *http.Client) (*VideoClient, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url: %q", serverURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &VideoClient{baseURL: u, httpClient: httpClient}, nil
}

func (vc *VideoClient) endpoint(path string, query url.Values) string {
	u := *vc.baseURL
	u.Path += path
	u.RawQuery = query.Encode()
	return u.String()
}

// UploadFile streams the file at filePath to the server as multipart field "video".
func (vc *VideoClient) UploadFile(ctx context.Context, filePath string) (*UploadResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return vc.Upload(ctx, filepath.Base(filePath), file)
}

// Upload sends body under filename. The multipart body is produced while the
// request is in flight so large files are never buffered.
func (vc *VideoClient) Upload(ctx context.Context, filename string, body io.Reader) (*UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("video", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, body); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, vc.endpoint("/api/cvideo", nil), pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result UploadResult
	if err := vc.do(req, &result); err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	return &result, nil
}

// List returns the names of all stored videos.
func (vc *VideoClient) List(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vc.endpoint("/api/cvideo", nil), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp struct {
		Videos []string `json:"videos"`
	}
	if err := vc.do(req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return resp.Videos, nil
}

// ListWithMeta returns every stored video with its modification time.
func (vc *VideoClient) ListWithMeta(ctx context.Context) ([]Video, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		vc.endpoint("/api/cvideo", url.Values{"meta": {"1"}}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp struct {
		Videos []Video `json:"videos"`
	}
	if err := vc.do(req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return resp.Videos, nil
}

func (vc *VideoClient) Delete(ctx context.Context, filename string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		vc.endpoint("/api/cvideo", url.Values{"filename": {filename}}), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	var resp struct {
		Success bool `json:"success"`
	}
	if err := vc.do(req, &resp); err != nil {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	if !resp.Success {
		return fmt.Errorf("delete %s: server did not confirm", filename)
	}
	return nil
}

// History returns the recorded events for filename, newest first. A zero
// limit leaves the choice to the server.
func (vc *VideoClient) History(ctx context.Context, filename string, limit int) ([]Event, error) {
	query := url.Values{"filename": {filename}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vc.endpoint("/api/cvideo/history", query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp struct {
		Events []Event `json:"events"`
	}
	if err := vc.do(req, &resp); err != nil {
		return nil, fmt.Errorf("history %s: %w", filename, err)
	}
	return resp.Events, nil
}

// Download copies the stored video into w and returns the number of bytes written.
func (vc *VideoClient) Download(ctx context.Context, filename string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		vc.endpoint("/videos/"+filename, nil), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := vc.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("download %s: %w", filename, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: unexpected status %s", filename, resp.Status)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", filename, err)
	}
	return n, nil
}

// do sends req and decodes a JSON body into out. Non-2xx responses become
// errors carrying the server's error text.
func (vc *VideoClient) do(req *http.Request, out any) error {
	resp, err := vc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
		if body.Error == "" {
			body.Error = resp.Status
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, body.Error)
		}
		return &StatusError{Code: resp.StatusCode, Message: body.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}
