package framebuffer

import (
	"sync"
	"time"

	"platecam/internal/model"
	"platecam/internal/timeutil"
)

// FrameBuffer keeps the most recent frames in a fixed ring. One writer pushes,
// any number of readers take snapshots; every operation holds the lock only
// for slice copies.
type FrameBuffer struct {
	mu        sync.Mutex
	slots     []*model.Frame
	next      int // slot the next push writes to
	count     int
	nextID    uint64
	retention time.Duration
	clock     timeutil.Clock
	notify    chan struct{}
}

// New creates a buffer holding up to capacity frames (minimum 1). Frames older
// than retention are still returned until evicted by capacity.
func New(capacity int, retention time.Duration, clock timeutil.Clock) *FrameBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &FrameBuffer{
		slots:     make([]*model.Frame, capacity),
		retention: retention,
		clock:     clock,
		notify:    make(chan struct{}),
	}
}

// Push stores a frame under the next id and evicts the oldest one at capacity.
func (b *FrameBuffer) Push(payload []byte, captureTime time.Time, geo *model.Geo) *model.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	frame := &model.Frame{
		ID:          b.nextID,
		Payload:     payload,
		CaptureTime: captureTime,
		Geo:         geo,
	}
	b.nextID++

	b.slots[b.next] = frame
	b.next = (b.next + 1) % len(b.slots)
	if b.count < len(b.slots) {
		b.count++
	}

	close(b.notify)
	b.notify = make(chan struct{})
	return frame
}

// Notify returns a channel closed by the next Push.
func (b *FrameBuffer) Notify() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notify
}

// Latest returns the newest frame, nil before the first push.
func (b *FrameBuffer) Latest() *model.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	return b.slots[b.index(b.count-1)]
}

// LatestID returns the id of the newest frame, 0 before the first push.
func (b *FrameBuffer) LatestID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return 0
	}
	return b.nextID - 1
}

// LastSeconds returns the frames captured at most d ago, oldest first.
// A window at least as long as the retention returns the whole buffer.
func (b *FrameBuffer) LastSeconds(d time.Duration) []*model.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.retention > 0 && d >= b.retention {
		return b.snapshot(0)
	}

	cutoff := b.clock.Now().Add(-d)
	start := b.count
	for start > 0 && !b.slots[b.index(start-1)].CaptureTime.Before(cutoff) {
		start--
	}
	return b.snapshot(start)
}

// Since returns the frames with an id greater than id, oldest first.
func (b *FrameBuffer) Since(id uint64) []*model.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	oldest := b.slots[b.index(0)].ID
	if id < oldest {
		return b.snapshot(0)
	}
	skip := id - oldest + 1
	if skip >= uint64(b.count) {
		return nil
	}
	return b.snapshot(int(skip))
}

// Len returns the number of buffered frames.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity returns the maximum number of buffered frames.
func (b *FrameBuffer) Capacity() int {
	return len(b.slots)
}

// index maps the i-th oldest frame to its slot.
func (b *FrameBuffer) index(i int) int {
	oldest := (b.next - b.count + len(b.slots)) % len(b.slots)
	return (oldest + i) % len(b.slots)
}

func (b *FrameBuffer) snapshot(from int) []*model.Frame {
	if from >= b.count {
		return nil
	}
	out := make([]*model.Frame, 0, b.count-from)
	for i := from; i < b.count; i++ {
		out = append(out, b.slots[b.index(i)])
	}
	return out
}
