package service

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffContentType(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "mp4 header", content: "\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00isommp42", want: "video/mp4"},
		{name: "plain text", content: "hello world", want: "text/plain; charset=utf-8"},
		{name: "empty", content: "", want: "text/plain; charset=utf-8"},
		{name: "longer than sniff window", content: strings.Repeat("a", 2*sniffLen), want: "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, body, err := SniffContentType(strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			rest, err := io.ReadAll(body)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(rest), "sniffing must not consume content")
		})
	}
}

func TestIsVideoFile(t *testing.T) {
	exts := []string{".mp4"}
	assert.True(t, IsVideoFile("a.mp4", exts))
	assert.True(t, IsVideoFile("A.MP4", exts))
	assert.False(t, IsVideoFile("a.mp4.txt", exts))
	assert.False(t, IsVideoFile("mp4", exts))
	assert.False(t, IsVideoFile(".upload-12345", exts))
	assert.True(t, IsVideoFile("clip.webm", []string{".mp4", ".webm"}))
}
