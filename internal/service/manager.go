package service

import (
	"context"
	"sync"

	"platecam/internal/dto"
	"platecam/internal/logger"
	"platecam/internal/model"
	"platecam/internal/repository"
	"platecam/internal/service/consensus"
	"platecam/internal/timeutil"
)

// FrameFeed is the consumer side of the live frame buffer.
type FrameFeed interface {
	Latest() *model.Frame
	Notify() <-chan struct{}
}

// Processor runs detection consensus on one frame.
type Processor interface {
	Process(ctx context.Context, frame *model.Frame) consensus.Result
}

// Tracker owns the per-identifier clip state.
type Tracker interface {
	Update(detected, confirmed consensus.Set, preview []byte) (started, finalized []string)
	Flush() []string
}

// Drainer waits for background finalize work.
type Drainer interface {
	Wait()
}

// Publisher receives pipeline events.
type Publisher interface {
	Publish(event dto.Event)
}

// Manager is the processing unit: it always works on the newest frame and
// leaves the frames in between to the assembler's catch-up.
type Manager struct {
	feed         FrameFeed
	processor    Processor
	tracker      Tracker
	drainer      Drainer
	sightingRepo repository.SightingRepository
	publisher    Publisher
	clock        timeutil.Clock
	logger       *logger.Logger

	mu        sync.Mutex
	processed bool
	lastID    uint64
}

func NewManager(feed FrameFeed, processor Processor, tracker Tracker, drainer Drainer, sightingRepo repository.SightingRepository, publisher Publisher, clock timeutil.Clock, logger *logger.Logger) *Manager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Manager{
		feed:         feed,
		processor:    processor,
		tracker:      tracker,
		drainer:      drainer,
		sightingRepo: sightingRepo,
		publisher:    publisher,
		clock:        clock,
		logger:       logger,
	}
}

// Run processes frames until ctx is cancelled, then finalizes every active
// clip and waits for the encodes to finish.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Info("🎬 Processing started")
	defer m.stop()

	for {
		notify := m.feed.Notify()
		if frame := m.feed.Latest(); frame != nil && m.isNew(frame.ID) {
			m.ProcessFrame(ctx, frame)
			if ctx.Err() != nil {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-notify:
		}
	}
}

// ProcessFrame feeds one frame through consensus and the clip assembler.
func (m *Manager) ProcessFrame(ctx context.Context, frame *model.Frame) {
	m.mu.Lock()
	m.processed = true
	m.lastID = frame.ID
	m.mu.Unlock()

	res := m.processor.Process(ctx, frame)
	started, finalized := m.tracker.Update(res.Detected, res.Confirmed, res.Preview)

	if m.sightingRepo != nil && len(res.Sightings) > 0 {
		if err := m.sightingRepo.InsertBatch(res.Sightings); err != nil {
			m.logger.Error("Error saving sightings for frame %d: %v", frame.ID, err)
		}
	}

	for _, id := range started {
		m.logger.Info("📹 %s confirmed at frame %d", id, frame.ID)
		m.publish(dto.EventConfirmed, id, frame.ID)
	}
	for _, id := range finalized {
		m.logger.Info("%s released at frame %d", id, frame.ID)
		m.publish(dto.EventReleased, id, frame.ID)
	}
}

// LastProcessed returns the id of the newest processed frame and false before the first one.
func (m *Manager) LastProcessed() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastID, m.processed
}

func (m *Manager) isNew(id uint64) bool {
	last, ok := m.LastProcessed()
	return !ok || id > last
}

func (m *Manager) publish(eventType, identifier string, frameID uint64) {
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(dto.Event{
		Type:       eventType,
		Identifier: identifier,
		FrameID:    frameID,
		Time:       m.clock.Now(),
	})
}

func (m *Manager) stop() {
	flushed := m.tracker.Flush()
	if len(flushed) > 0 {
		m.logger.Info("Finalizing %d active clip(s) on shutdown", len(flushed))
	}
	m.drainer.Wait()
	m.logger.Info("🛑 Processing stopped")
}
