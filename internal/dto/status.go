package dto

// Status is the payload of the status endpoint.
type Status struct {
	BufferedFrames int      `json:"buffered_frames"`
	BufferCapacity int      `json:"buffer_capacity"`
	LatestFrameID  uint64   `json:"latest_frame_id"`
	CaptureFPS     float64  `json:"capture_fps"`
	Active         []string `json:"active"`
	Viewers        int      `json:"viewers"`
}
