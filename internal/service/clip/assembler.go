package clip

import (
	"sort"
	"sync"
	"time"

	"platecam/internal/logger"
	"platecam/internal/model"
	"platecam/internal/service/consensus"
	"platecam/internal/timeutil"
)

// FrameSource is the read side of the live frame buffer.
type FrameSource interface {
	LastSeconds(d time.Duration) []*model.Frame
	Since(id uint64) []*model.Frame
}

// Finalizer takes over a finished accumulation.
type Finalizer interface {
	Submit(acc *Accumulation, fps float64)
}

// Assembler tracks one accumulation per confirmed identifier. Update is driven
// by the processing goroutine; Active may be called from anywhere.
type Assembler struct {
	frames    FrameSource
	finalizer Finalizer
	fps       func() float64
	preRoll   time.Duration
	postRoll  time.Duration
	clock     timeutil.Clock
	logger    *logger.Logger

	mu     sync.Mutex
	active map[string]*Accumulation
}

func NewAssembler(frames FrameSource, finalizer Finalizer, fps func() float64, preRoll, postRoll time.Duration, clock timeutil.Clock, logger *logger.Logger) *Assembler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Assembler{
		frames:    frames,
		finalizer: finalizer,
		fps:       fps,
		preRoll:   preRoll,
		postRoll:  postRoll,
		clock:     clock,
		logger:    logger,
		active:    make(map[string]*Accumulation),
	}
}

// Update advances every identifier's state for one processed frame and returns
// the identifiers that started and finished a clip.
func (a *Assembler) Update(detected, confirmed consensus.Set, preview []byte) (started, finalized []string) {
	now := a.clock.Now()

	a.mu.Lock()
	var done []*Accumulation
	for id, acc := range a.active {
		if !confirmed.Has(id) {
			done = append(done, acc)
		}
	}
	for _, acc := range done {
		delete(a.active, acc.Identifier)
	}

	for _, id := range sortedIDs(confirmed) {
		acc, ok := a.active[id]
		switch {
		case !ok:
			acc = NewAccumulation(id, now)
			acc.Append(a.frames.LastSeconds(a.preRoll))
			a.active[id] = acc
			started = append(started, id)
		case detected.Has(id):
			acc.Seen(now)
			a.catchUp(acc)
		case now.Sub(acc.LastSeenAt()) < a.postRoll:
			a.catchUp(acc)
		}
		if detected.Has(id) && preview != nil {
			acc.SetPreview(preview)
		}
	}
	a.mu.Unlock()

	sort.Slice(done, func(i, j int) bool { return done[i].Identifier < done[j].Identifier })
	for _, acc := range done {
		a.finalize(acc)
		finalized = append(finalized, acc.Identifier)
	}
	return started, finalized
}

// Flush finalizes every active accumulation.
func (a *Assembler) Flush() []string {
	a.mu.Lock()
	done := make([]*Accumulation, 0, len(a.active))
	for _, id := range sortedKeys(a.active) {
		done = append(done, a.active[id])
	}
	a.active = make(map[string]*Accumulation)
	a.mu.Unlock()

	ids := make([]string, 0, len(done))
	for _, acc := range done {
		a.finalize(acc)
		ids = append(ids, acc.Identifier)
	}
	return ids
}

// Active returns the identifiers currently accumulating, sorted.
func (a *Assembler) Active() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sortedKeys(a.active)
}

func (a *Assembler) catchUp(acc *Accumulation) {
	last, ok := acc.LastID()
	if !ok {
		acc.Append(a.frames.LastSeconds(a.preRoll))
		return
	}
	acc.Append(a.frames.Since(last))
}

func (a *Assembler) finalize(acc *Accumulation) {
	var fps float64
	if a.fps != nil {
		fps = a.fps()
	}
	a.logger.Info("Finalizing clip for %s with %d frames", acc.Identifier, acc.Len())
	a.finalizer.Submit(acc, fps)
}

func sortedIDs(s consensus.Set) []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]*Accumulation) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
