package clip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"platecam/internal/dto"
	"platecam/internal/logger"
	"platecam/internal/model"
	"platecam/internal/repository"
	"platecam/internal/timeutil"
)

// ErrOutputExists is returned by an Encoder when the clip file is already present.
var ErrOutputExists = errors.New("clip output already exists")

const (
	timestampLayout = "02.01.2006, 15:04:05,000"
	clipExtension   = ".mp4"
	previewExt      = ".jpg"
)

// Encoder renders frames and their captions into a video file.
type Encoder interface {
	Encode(frames []*model.Frame, fps float64, overlays []dto.FrameOverlay, outputPath string) error
}

// Publisher receives pipeline events.
type Publisher interface {
	Publish(event dto.Event)
}

// PoolConfig names the output layout of finalized clips.
type PoolConfig struct {
	ResultDirectory string
	ClipName        string
	PreviewName     string
	SavePreview     bool
	Workers         int
}

// Pool runs finalize tasks in the background, at most Workers at a time.
type Pool struct {
	cfg       PoolConfig
	encoder   Encoder
	clipRepo  repository.ClipRepository
	publisher Publisher
	clock     timeutil.Clock
	logger    *logger.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func NewPool(cfg PoolConfig, encoder Encoder, clipRepo repository.ClipRepository, publisher Publisher, clock timeutil.Clock, logger *logger.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Pool{
		cfg:       cfg,
		encoder:   encoder,
		clipRepo:  clipRepo,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		sem:       semaphore.NewWeighted(int64(cfg.Workers)),
	}
}

// Submit schedules acc for finalization without blocking the caller.
func (p *Pool) Submit(acc *Accumulation, fps float64) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			p.logger.Error("Finalize of %s not scheduled: %v", acc.Identifier, err)
			return
		}
		defer p.sem.Release(1)

		if err := p.Finalize(acc, fps); err != nil {
			p.logger.Error("Finalize of %s failed: %v", acc.Identifier, err)
		}
	}()
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Finalize encodes the clip, stores its preview and records it in the ledger.
func (p *Pool) Finalize(acc *Accumulation, fps float64) error {
	frames := acc.Frames()
	if len(frames) == 0 {
		return fmt.Errorf("no frames collected for %s", acc.Identifier)
	}

	folder := filepath.Join(p.cfg.ResultDirectory, acc.Identifier)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("failed to create clip directory: %w", err)
	}

	output := filepath.Join(folder, p.cfg.ClipName+clipExtension)
	err := p.encoder.Encode(frames, fps, Overlays(frames), output)
	switch {
	case errors.Is(err, ErrOutputExists):
		p.logger.Info("Clip %s already exists, skipping encode", output)
	case err != nil:
		return fmt.Errorf("failed to encode %s: %w", output, err)
	default:
		p.logger.Info("Saved clip %s (%d frames at %.2f fps)", output, len(frames), fps)
	}

	if p.cfg.SavePreview {
		if preview := acc.Preview(); preview != nil {
			if err := writePreview(filepath.Join(folder, p.cfg.PreviewName+previewExt), preview); err != nil {
				p.logger.Warning("Saving preview for %s failed: %v", acc.Identifier, err)
			}
		}
	}

	if p.clipRepo != nil {
		record := &model.Clip{
			Identifier: acc.Identifier,
			Folder:     acc.Identifier,
			FrameCount: len(frames),
			FPS:        fps,
			StartedAt:  frames[0].CaptureTime,
			EndedAt:    frames[len(frames)-1].CaptureTime,
			Status:     model.ClipWriting,
			CreatedAt:  p.clock.Now(),
		}
		if _, err := p.clipRepo.Insert(record); err != nil {
			p.logger.Error("Error saving clip %s to database: %v", acc.Identifier, err)
		}
	}

	if p.publisher != nil {
		p.publisher.Publish(dto.Event{
			Type:       dto.EventFinalized,
			Identifier: acc.Identifier,
			Path:       output,
			Time:       p.clock.Now(),
		})
	}
	return nil
}

// Overlays builds the captions for each frame of a clip.
func Overlays(frames []*model.Frame) []dto.FrameOverlay {
	out := make([]dto.FrameOverlay, len(frames))
	for i, f := range frames {
		out[i].Timestamp = fmt.Sprintf("%s | Frame: %04d", f.CaptureTime.Format(timestampLayout), i+1)
		if f.Geo != nil {
			out[i].Coordinates = fmt.Sprintf("Lat.: %.6f | Long.: %.6f", f.Geo.Latitude, f.Geo.Longitude)
		}
	}
	return out
}

// writePreview stores the preview unless one already exists.
func writePreview(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
