// Package tracking turns a stream of facial landmark sets into smoothed
// avatar control parameters.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/debug"
	"github.com/teslashibe/go-avatar/pkg/landmark"
)

var (
	// ErrStopped is returned by Run once the tracker has been stopped.
	ErrStopped = errors.New("tracking: tracker stopped")

	// ErrRunning is returned by Run when the loop is already running.
	ErrRunning = errors.New("tracking: tracker already running")
)

// lostAfter is the number of consecutive misses before a face is reported lost.
const lostAfter = 5

// Snapshot is an immutable view of the tracker output.
type Snapshot struct {
	Params Params `json:"params"`

	// Fresh is false when the most recent provider frame carried no update
	// and Params still reflect older frames.
	Fresh     bool      `json:"fresh"`
	Frame     uint64    `json:"frame"`      // landmark sets processed so far
	Misses    uint64    `json:"misses"`     // consecutive frames without update
	UpdatedAt time.Time `json:"updated_at"` // zero until the first update
}

// Stats counts what the loop did with provider frames.
type Stats struct {
	Frames  uint64 `json:"frames"`  // sets that updated the filters
	Dropped uint64 `json:"dropped"` // frames without a usable set
	Invalid uint64 `json:"invalid"` // sets rejected for degenerate geometry
}

type runState int32

const (
	stateIdle runState = iota
	stateRunning
	stateStopped
)

// Option configures a Tracker.
type Option func(*Tracker)

// WithObserver registers fn to be called with every published snapshot.
// fn runs on the tracking goroutine and must not block.
func WithObserver(fn func(Snapshot)) Option {
	return func(t *Tracker) { t.observers = append(t.observers, fn) }
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker runs the per-frame loop: pull landmarks, compute signals, smooth
// them and publish Params. Only the Run goroutine touches the filters;
// readers get an atomically replaced Snapshot.
type Tracker struct {
	cfg      Config
	provider landmark.Provider
	engine   *Engine
	mapper   *Mapper
	bank     *FilterBank

	snapshot atomic.Pointer[Snapshot]
	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once

	frames  atomic.Uint64
	dropped atomic.Uint64
	invalid atomic.Uint64
	misses  uint64 // owned by Run

	observers []func(Snapshot)
	now       func() time.Time
}

// New creates a tracker reading from provider.
func New(cfg Config, provider landmark.Provider, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:      cfg,
		provider: provider,
		engine:   NewEngine(cfg),
		mapper:   NewMapper(cfg),
		bank:     NewFilterBank(cfg),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.snapshot.Store(&Snapshot{Params: t.mapper.Map(t.bank)})
	return t
}

// Config returns the configuration the tracker was built with.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Params returns the latest published parameters. Safe to call from any
// goroutine; never blocks.
func (t *Tracker) Params() Params {
	return t.snapshot.Load().Params
}

// Snapshot returns the latest published snapshot.
func (t *Tracker) Snapshot() Snapshot {
	return *t.snapshot.Load()
}

// Stats returns frame counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Frames:  t.frames.Load(),
		Dropped: t.dropped.Load(),
		Invalid: t.invalid.Load(),
	}
}

// Stop asks Run to return. It does not wait; the frame in progress is
// finished first. Stopping is permanent.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.state.CompareAndSwap(int32(stateIdle), int32(stateStopped))
}

// Run processes frames until Stop is called, ctx is cancelled or the
// provider reaches end of stream; those cases return nil. A provider failure
// is returned as an error.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.state.CompareAndSwap(int32(stateIdle), int32(stateRunning)) {
		if runState(t.state.Load()) == stateStopped {
			return ErrStopped
		}
		return ErrRunning
	}
	defer t.state.Store(int32(stateStopped))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-t.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	source := t.provider.Name()
	log.Info("tracker started", "source", source,
		"taps", t.cfg.Taps(), "wink", t.cfg.WinkEnable)

	for {
		if ctx.Err() != nil {
			log.Info("tracker stopped", "source", source, "frames", t.frames.Load())
			return nil
		}

		set, err := t.provider.Next(ctx)
		switch {
		case err == nil:
			t.process(&set)

		case landmark.IsNoUpdate(err):
			t.miss(err)

		case errors.Is(err, io.EOF):
			log.Info("landmark stream ended", "source", source, "frames", t.frames.Load())
			return nil

		case ctx.Err() != nil:
			log.Info("tracker stopped", "source", source, "frames", t.frames.Load())
			return nil

		default:
			log.Error("landmark source failed", "source", source, "error", err)
			return fmt.Errorf("tracking: read from %s: %w", source, err)
		}
	}
}

// process runs one landmark set through the engine and the filters.
func (t *Tracker) process(set *landmark.Set) {
	sig := t.engine.Compute(set)
	if !sig.Valid() {
		t.invalid.Add(1)
		t.miss(fmt.Errorf("%w: degenerate landmark geometry", landmark.ErrNoUpdate))
		return
	}

	t.bank.PushSignals(sig)
	frame := t.frames.Add(1)
	if t.misses >= lostAfter {
		log.Info("face reacquired", "after_misses", t.misses)
	}
	t.misses = 0

	t.publish(&Snapshot{
		Params:    t.mapper.Map(t.bank),
		Fresh:     true,
		Frame:     frame,
		UpdatedAt: t.now(),
	})

	debug.FrameLog("frame %d: x=%.1f y=%.1f z=%.1f eyes=%.2f/%.2f mouth=%.2f form=%.2f\n",
		frame, sig.FaceX, sig.FaceY, sig.FaceZ, sig.LeftEye, sig.RightEye, sig.MouthOpen, sig.MouthForm)
}

// miss republishes the previous parameters marked stale.
func (t *Tracker) miss(reason error) {
	t.dropped.Add(1)
	t.misses++

	snap := *t.snapshot.Load()
	snap.Fresh = false
	snap.Misses = t.misses
	t.publish(&snap)

	if t.misses == lostAfter {
		log.Info("face lost", "misses", t.misses, "reason", reason)
	}
	debug.FrameLog("frame dropped: %v\n", reason)
}

func (t *Tracker) publish(snap *Snapshot) {
	t.snapshot.Store(snap)
	for _, fn := range t.observers {
		fn(*snap)
	}
}
