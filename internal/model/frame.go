package model

import "time"

// Geo is a decimal-degree position attached to a frame.
type Geo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Frame is one captured image. Frames are immutable once pushed and are shared by pointer.
type Frame struct {
	ID          uint64
	Payload     []byte // JPEG
	CaptureTime time.Time
	Geo         *Geo
}
