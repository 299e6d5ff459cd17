package model

import "time"

// ClipStatus tracks an archive unit through the upload pipeline.
type ClipStatus string

const (
	ClipWriting    ClipStatus = "writing"
	ClipStable     ClipStatus = "stable"
	ClipCompressed ClipStatus = "compressed"
	ClipUploaded   ClipStatus = "uploaded"
	ClipFailed     ClipStatus = "failed"
)

// Clip represents a finalized clip record in the ledger.
type Clip struct {
	ID           int64      `json:"id"`
	Identifier   string     `json:"identifier"`
	Folder       string     `json:"folder"`
	FrameCount   int        `json:"frame_count"`
	FPS          float64    `json:"fps"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      time.Time  `json:"ended_at"`
	Status       ClipStatus `json:"status"`
	UploadedPath string     `json:"uploaded_path,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Sighting is a single raw recognition folded into an identifier.
type Sighting struct {
	ID         int64     `json:"id"`
	Identifier string    `json:"identifier"`
	RawText    string    `json:"raw_text"`
	FrameID    uint64    `json:"frame_id"`
	SeenAt     time.Time `json:"seen_at"`
}
