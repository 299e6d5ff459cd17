package consensus

import (
	"context"
	"time"

	"platecam/internal/dto"
	"platecam/internal/logger"
	"platecam/internal/model"
)

// Recognizer reads plates from an encoded frame.
type Recognizer interface {
	Recognize(ctx context.Context, payload []byte) ([]dto.Recognition, error)
}

// Annotator renders recognitions onto an encoded frame.
type Annotator interface {
	Annotate(payload []byte, recs []dto.Recognition) ([]byte, error)
}

// Result is the outcome of processing one frame.
type Result struct {
	Frame     *model.Frame
	Detected  Set
	Confirmed Set
	Sightings []model.Sighting
	Preview   []byte // annotated frame, nil when nothing was detected or no annotator is set
}

// Consensus turns noisy per-frame recognitions into confirmed identifiers.
// Process is called from a single goroutine.
type Consensus struct {
	recognizer Recognizer
	annotator  Annotator
	registry   *Registry
	window     *Window
	threshold  int
	logger     *logger.Logger
}

func New(recognizer Recognizer, annotator Annotator, registry *Registry, windowSize, threshold int, logger *logger.Logger) *Consensus {
	return &Consensus{
		recognizer: recognizer,
		annotator:  annotator,
		registry:   registry,
		window:     NewWindow(windowSize),
		threshold:  threshold,
		logger:     logger,
	}
}

// Process recognizes the frame, pushes its identifier set into the window and
// returns the detected and confirmed sets. Recognition failures count as an
// empty frame.
func (c *Consensus) Process(ctx context.Context, frame *model.Frame) Result {
	recs, err := c.recognizer.Recognize(ctx, frame.Payload)
	if err != nil {
		c.logger.Warning("Recognition failed on frame %d: %v", frame.ID, err)
		recs = nil
	}

	res := Result{Frame: frame, Detected: make(Set)}
	kept := recs[:0:0]
	for _, rec := range recs {
		raw := Normalize(rec.Text)
		if raw == "" {
			continue
		}
		id := c.registry.Canonicalize(raw)
		res.Detected[id] = struct{}{}
		res.Sightings = append(res.Sightings, model.Sighting{
			Identifier: id,
			RawText:    raw,
			FrameID:    frame.ID,
			SeenAt:     frameTime(frame),
		})
		rec.Text = id
		kept = append(kept, rec)
	}

	c.window.Push(res.Detected)
	res.Confirmed = c.window.Confirmed(c.threshold)

	if c.annotator != nil && len(kept) > 0 {
		preview, err := c.annotator.Annotate(frame.Payload, kept)
		if err != nil {
			c.logger.Warning("Annotating frame %d failed: %v", frame.ID, err)
		} else {
			res.Preview = preview
		}
	}
	return res
}

// Registry returns the identifier registry of the run.
func (c *Consensus) Registry() *Registry {
	return c.registry
}

func frameTime(f *model.Frame) time.Time {
	if f.CaptureTime.IsZero() {
		return time.Now()
	}
	return f.CaptureTime
}
