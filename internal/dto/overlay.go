package dto

// FrameOverlay holds the captions burned into one clip frame.
type FrameOverlay struct {
	Timestamp   string
	Coordinates string // empty when the frame has no position
}
