package clip

import (
	"sync"
	"time"

	"platecam/internal/model"
)

// Accumulation collects the frames of one identifier's clip.
type Accumulation struct {
	Identifier string
	CreatedAt  time.Time

	mu         sync.Mutex
	frames     []*model.Frame
	preview    []byte
	lastSeenAt time.Time
}

func NewAccumulation(identifier string, now time.Time) *Accumulation {
	return &Accumulation{Identifier: identifier, CreatedAt: now, lastSeenAt: now}
}

// Append adds frames in order, skipping any id not newer than the last appended one.
func (a *Accumulation) Append(frames []*model.Frame) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := 0
	for _, f := range frames {
		if n := len(a.frames); n > 0 && f.ID <= a.frames[n-1].ID {
			continue
		}
		a.frames = append(a.frames, f)
		added++
	}
	return added
}

// LastID returns the id of the newest frame and false when the accumulation is empty.
func (a *Accumulation) LastID() (uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.frames) == 0 {
		return 0, false
	}
	return a.frames[len(a.frames)-1].ID, true
}

// Frames returns a copy of the collected frames.
func (a *Accumulation) Frames() []*model.Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*model.Frame, len(a.frames))
	copy(out, a.frames)
	return out
}

func (a *Accumulation) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.frames)
}

func (a *Accumulation) SetPreview(p []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.preview = p
}

func (a *Accumulation) Preview() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.preview
}

func (a *Accumulation) Seen(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastSeenAt = now
}

func (a *Accumulation) LastSeenAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSeenAt
}
