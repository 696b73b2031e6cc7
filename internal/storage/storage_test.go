package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain mp4", input: "a.mp4"},
		{name: "spaces and unicode", input: "my holiday 视频.mp4"},
		{name: "leading dot", input: ".hidden.mp4"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "dot", input: ".", wantErr: true},
		{name: "dot dot", input: "..", wantErr: true},
		{name: "traversal", input: "../etc/passwd", wantErr: true},
		{name: "nested", input: "dir/a.mp4", wantErr: true},
		{name: "backslash", input: `dir\a.mp4`, wantErr: true},
		{name: "nul byte", input: "a\x00.mp4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// runStoreContract exercises the behaviour every VideoStore must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) VideoStore) {
	ctx := context.Background()

	t.Run("empty store lists nothing", func(t *testing.T) {
		store := newStore(t)
		videos, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, videos)
		assert.Empty(t, videos)
	})

	t.Run("save then list and open", func(t *testing.T) {
		store := newStore(t)
		n, err := store.Save(ctx, "a.mp4", strings.NewReader("first"))
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		videos, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, videos, 1)
		assert.Equal(t, "a.mp4", videos[0].Name)
		assert.Equal(t, int64(5), videos[0].Size)
		assert.False(t, videos[0].ModTime.IsZero())

		obj, err := store.Open(ctx, "a.mp4")
		require.NoError(t, err)
		defer obj.Body.Close()
		data, err := io.ReadAll(obj.Body)
		require.NoError(t, err)
		assert.Equal(t, "first", string(data))
		assert.Equal(t, int64(5), obj.Size)
	})

	t.Run("save overwrites same name", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Save(ctx, "a.mp4", strings.NewReader("first"))
		require.NoError(t, err)
		_, err = store.Save(ctx, "a.mp4", bytes.NewReader([]byte("second version")))
		require.NoError(t, err)

		videos, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, videos, 1)
		assert.Equal(t, int64(len("second version")), videos[0].Size)
	})

	t.Run("delete removes object", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Save(ctx, "a.mp4", strings.NewReader("x"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "a.mp4"))

		videos, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, videos)

		_, err = store.Open(ctx, "a.mp4")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete missing returns ErrNotFound", func(t *testing.T) {
		store := newStore(t)
		assert.ErrorIs(t, store.Delete(ctx, "missing.mp4"), ErrNotFound)
	})

	t.Run("unsafe names are rejected", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Save(ctx, "../escape.mp4", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName)
		assert.ErrorIs(t, store.Delete(ctx, "../escape.mp4"), ErrInvalidName)
		_, err = store.Open(ctx, "..")
		assert.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("cancelled context stops save", func(t *testing.T) {
		store := newStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Save(cctx, "a.mp4", strings.NewReader("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
