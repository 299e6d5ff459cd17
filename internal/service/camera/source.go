package camera

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"platecam/internal/config"
	"platecam/internal/logger"
)

// Source reads frames from a camera device, file or stream URL and hands them out as JPEG.
type Source struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	quality int
	logger  *logger.Logger
}

// Open opens the configured source. A numeric source selects a device index.
func Open(cfg *config.Config, logger *logger.Logger) (*Source, error) {
	var device interface{} = cfg.Source
	if index, err := strconv.Atoi(cfg.Source); err == nil {
		device = index
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture %s: %w", cfg.Source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %s is not opened", cfg.Source)
	}

	if cfg.FrameWidth > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.FrameWidth))
	}
	if cfg.FrameHeight > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.FrameHeight))
	}

	logger.Info("Opened video source %s", cfg.Source)
	return &Source{
		capture: capture,
		mat:     gocv.NewMat(),
		quality: cfg.JPEGQuality,
		logger:  logger,
	}, nil
}

// Read grabs the next frame; io.EOF means the source is exhausted.
func (s *Source) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, io.EOF
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.mat, []int{gocv.IMWriteJpegQuality, s.quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mat.Close()
	return s.capture.Close()
}
