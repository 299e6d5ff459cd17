package dto

import "image"

// Recognition is one plate read from a frame.
type Recognition struct {
	Text       string
	Confidence float64
	Region     image.Rectangle
}
