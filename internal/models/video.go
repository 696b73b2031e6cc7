package models

import "time"

// Video is one stored video file. The name is both its identity and its display label.
type Video struct {
	Name    string
	ModTime time.Time
	Size    int64
}

type EventType string

const (
	EventUploaded EventType = "uploaded"
	EventDeleted  EventType = "deleted"
)

// VideoEvent describes a change to the stored set of videos.
type VideoEvent struct {
	Type        EventType `json:"type"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	RemoteAddr  string    `json:"-"`
	At          time.Time `json:"at"`
}
