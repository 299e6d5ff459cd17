package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"platecam/internal/logger"
	"platecam/internal/model"
	"platecam/internal/timeutil"
)

// Source yields encoded frames; io.EOF ends the stream.
type Source interface {
	Read() ([]byte, error)
}

// GeoSource reports the current position, nil when unknown.
type GeoSource interface {
	Position() *model.Geo
}

// Sink stores captured frames.
type Sink interface {
	Push(payload []byte, captureTime time.Time, geo *model.Geo) *model.Frame
}

// Capturer reads frames at a fixed rate and pushes them into the frame buffer.
type Capturer struct {
	source   Source
	geo      GeoSource
	sink     Sink
	interval time.Duration
	fps      float64
	clock    timeutil.Clock
	logger   *logger.Logger

	mu      sync.Mutex
	started time.Time
	frames  int
}

func New(source Source, geo GeoSource, sink Sink, fps float64, clock timeutil.Clock, logger *logger.Logger) *Capturer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Capturer{
		source:   source,
		geo:      geo,
		sink:     sink,
		interval: time.Duration(float64(time.Second) / fps),
		fps:      fps,
		clock:    clock,
		logger:   logger,
	}
}

// Run captures until ctx is cancelled (nil), the source ends (io.EOF) or a read fails.
func (c *Capturer) Run(ctx context.Context) error {
	c.mu.Lock()
	c.started = c.clock.Now()
	c.frames = 0
	c.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil
		}

		last := c.clock.Now()
		payload, err := c.source.Read()
		if errors.Is(err, io.EOF) {
			c.logger.Info("Video source ended after %d frames", c.Frames())
			return io.EOF
		}
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}

		var geo *model.Geo
		if c.geo != nil {
			geo = c.geo.Position()
		}
		c.sink.Push(payload, c.clock.Now(), geo)

		c.mu.Lock()
		c.frames++
		c.mu.Unlock()

		if wait := c.interval - c.clock.Since(last); wait > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-c.clock.After(wait):
			}
		}
	}
}

// Frames returns the number of frames captured by the current run.
func (c *Capturer) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// FPS returns the achieved capture rate, or the target rate before any frame was taken.
func (c *Capturer) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.clock.Since(c.started).Seconds()
	if c.frames == 0 || elapsed <= 0 {
		return c.fps
	}
	return float64(c.frames) / elapsed
}
