package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/cvideo/internal/models"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_PublishReachesAllClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	first := dial(t, srv)
	second := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	hub.Publish(models.VideoEvent{Type: models.EventUploaded, Filename: "a.mp4", Size: 3, At: at})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		var got models.VideoEvent
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, models.EventUploaded, got.Type)
		assert.Equal(t, "a.mp4", got.Filename)
		assert.Equal(t, int64(3), got.Size)
		assert.True(t, at.Equal(got.At))
	}
}

func TestHub_ClientDisconnectIsRemoved(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() {
		hub.Publish(models.VideoEvent{Type: models.EventDeleted, Filename: "a.mp4"})
	})
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHub_RejectsPlainHTTP(t *testing.T) {
	hub := NewHub(nil)
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest("GET", "/api/cvideo/events", nil))
	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, 0, hub.Count())
}

func TestHub_PublishDoesNotWaitOnStalledClient(t *testing.T) {
	hub := NewHub(nil)

	// Registers clients without a write pump, so their queue never drains.
	registered := make(chan *client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &client{conn: conn, send: make(chan []byte, 1)}
		hub.add(c)
		registered <- c
	}))
	defer srv.Close()

	conn := dial(t, srv)
	<-registered
	require.Equal(t, 1, hub.Count())

	start := time.Now()
	hub.Publish(models.VideoEvent{Type: models.EventUploaded, Filename: "a.mp4"})
	hub.Publish(models.VideoEvent{Type: models.EventUploaded, Filename: "b.mp4"})
	assert.Less(t, time.Since(start), writeWait)

	assert.Equal(t, 0, hub.Count(), "a client with a full queue is dropped")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
