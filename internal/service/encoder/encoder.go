package encoder

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"gocv.io/x/gocv"

	"platecam/internal/dto"
	"platecam/internal/logger"
	"platecam/internal/model"
	"platecam/internal/service/clip"
)

const (
	codec      = "mp4v"
	fontFace   = gocv.FontHersheySimplex
	fontScale  = 0.6
	thickness  = 1
	boxPadding = 6
)

// VideoEncoder burns captions into frames and writes them with an OpenCV VideoWriter.
type VideoEncoder struct {
	logger *logger.Logger
}

func NewVideoEncoder(logger *logger.Logger) *VideoEncoder {
	return &VideoEncoder{logger: logger}
}

// Encode writes frames to outputPath. The video is produced under a ".part"
// name and renamed on success; an existing output is never overwritten.
func (e *VideoEncoder) Encode(frames []*model.Frame, fps float64, overlays []dto.FrameOverlay, outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return clip.ErrOutputExists
	}
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %.2f", fps)
	}

	first, err := gocv.IMDecode(frames[0].Payload, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("failed to decode first frame: %w", err)
	}
	width, height := first.Cols(), first.Rows()
	first.Close()

	partial := partialPath(outputPath)
	writer, err := gocv.VideoWriterFile(partial, codec, fps, width, height, true)
	if err != nil {
		return fmt.Errorf("failed to open video writer: %w", err)
	}

	if err := e.writeFrames(writer, frames, overlays, width, height); err != nil {
		writer.Close()
		os.Remove(partial)
		return err
	}
	if err := writer.Close(); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to close video writer: %w", err)
	}
	if err := os.Rename(partial, outputPath); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to move clip into place: %w", err)
	}
	return nil
}

func (e *VideoEncoder) writeFrames(writer *gocv.VideoWriter, frames []*model.Frame, overlays []dto.FrameOverlay, width, height int) error {
	for i, frame := range frames {
		mat, err := gocv.IMDecode(frame.Payload, gocv.IMReadColor)
		if err != nil {
			e.logger.Warning("Skipping undecodable frame %d: %v", frame.ID, err)
			continue
		}
		if mat.Empty() {
			e.logger.Warning("Skipping empty frame %d", frame.ID)
			mat.Close()
			continue
		}
		if mat.Cols() != width || mat.Rows() != height {
			resized := gocv.NewMat()
			gocv.Resize(mat, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
			mat.Close()
			mat = resized
		}

		if i < len(overlays) {
			if err := drawOverlay(&mat, overlays[i]); err != nil {
				mat.Close()
				return err
			}
		}

		err = writer.Write(mat)
		mat.Close()
		if err != nil {
			return fmt.Errorf("failed to write frame %d: %w", frame.ID, err)
		}
	}
	return nil
}

// drawOverlay puts the timestamp bottom-right and the coordinates bottom-left.
func drawOverlay(mat *gocv.Mat, overlay dto.FrameOverlay) error {
	if overlay.Timestamp != "" {
		size := gocv.GetTextSize(overlay.Timestamp, fontFace, fontScale, thickness)
		origin := image.Pt(mat.Cols()-size.X-2*boxPadding, mat.Rows()-boxPadding)
		if err := drawCaption(mat, overlay.Timestamp, origin, size); err != nil {
			return err
		}
	}
	if overlay.Coordinates != "" {
		size := gocv.GetTextSize(overlay.Coordinates, fontFace, fontScale, thickness)
		origin := image.Pt(boxPadding, mat.Rows()-boxPadding)
		if err := drawCaption(mat, overlay.Coordinates, origin, size); err != nil {
			return err
		}
	}
	return nil
}

func drawCaption(mat *gocv.Mat, text string, origin, size image.Point) error {
	black := color.RGBA{A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	box := image.Rect(origin.X-boxPadding, origin.Y-size.Y-boxPadding, origin.X+size.X+boxPadding, origin.Y+boxPadding)
	if err := gocv.Rectangle(mat, box, black, -1); err != nil {
		return fmt.Errorf("failed to draw caption box: %w", err)
	}
	if err := gocv.PutText(mat, text, origin, fontFace, fontScale, white, thickness); err != nil {
		return fmt.Errorf("failed to draw caption: %w", err)
	}
	return nil
}

// partialPath turns clip.mp4 into clip.part.mp4.
func partialPath(outputPath string) string {
	if i := strings.LastIndex(outputPath, "."); i > strings.LastIndex(outputPath, string(os.PathSeparator)) {
		return outputPath[:i] + ".part" + outputPath[i:]
	}
	return outputPath + ".part"
}
