package database

import (
	"time"

	"github.com/PaulBabatuyi/cvideo/internal/models"
)

// EventRecord is one row of the video_events audit table.
type EventRecord struct {
	ID          string
	EventType   string
	Filename    string
	Size        int64
	ContentType string
	RemoteAddr  string
	CreatedAt   time.Time
}

func (r EventRecord) Event() models.VideoEvent {
	return models.VideoEvent{
		Type:        models.EventType(r.EventType),
		Filename:    r.Filename,
		Size:        r.Size,
		ContentType: r.ContentType,
		RemoteAddr:  r.RemoteAddr,
		At:          r.CreatedAt,
	}
}
