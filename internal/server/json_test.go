package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestWriteJSON_LogsEncodeFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(Config{Logger: zap.New(core)})

	w := brokenWriter{httptest.NewRecorder()}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	entries := logs.FilterMessage("failed to write json response").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, "connection reset by peer", entries[0].ContextMap()["error"])
	}
}

func TestWriteJSON_Success(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(Config{Logger: zap.New(core)})

	rec := httptest.NewRecorder()
	s.writeJSON(rec, http.StatusCreated, map[string]bool{"success": true})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Zero(t, logs.Len())
}
