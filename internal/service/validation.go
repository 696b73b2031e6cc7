package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

const sniffLen = 512

// SniffContentType reads the magic bytes of r and returns the detected type
// together with a reader that still yields the full content.
func SniffContentType(r io.Reader) (string, io.Reader, error) {
	buffer := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buffer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("read magic bytes: %w", err)
	}

	detected := http.DetectContentType(buffer[:n])
	return detected, io.MultiReader(bytes.NewReader(buffer[:n]), r), nil
}

// IsVideoFile reports whether name ends in one of the recognized extensions.
// The comparison ignores case.
func IsVideoFile(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
