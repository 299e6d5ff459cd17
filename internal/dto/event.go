package dto

import "time"

// Event types published on the live feed.
const (
	EventConfirmed = "confirmed"
	EventReleased  = "released"
	EventFinalized = "finalized"
	EventUploaded  = "uploaded"
)

// Event is a pipeline notification sent to live viewers.
type Event struct {
	Type       string    `json:"type"`
	Identifier string    `json:"identifier"`
	FrameID    uint64    `json:"frame_id,omitempty"`
	Path       string    `json:"path,omitempty"`
	Time       time.Time `json:"time"`
}
