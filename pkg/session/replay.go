package session

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/landmark"
)

const replayBatch = 256

// ReplayOptions controls playback.
type ReplayOptions struct {
	Realtime bool    // reproduce the recorded frame timing
	Speed    float64 // realtime speed multiplier, zero means 1
	Loop     bool    // start over instead of returning io.EOF
}

// Replay is a landmark.Provider over a recorded session.
type Replay struct {
	store *Store
	sess  Session
	opts  ReplayOptions

	batch    []Frame
	lastSeq  int64
	lastAt   time.Time
	lastEmit time.Time
	played   int
}

// NewReplay opens session id for playback.
func NewReplay(ctx context.Context, store *Store, id uuid.UUID, opts ReplayOptions) (*Replay, error) {
	sess, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	log.Info("replaying session", "id", id, "source", sess.Source, "frames", sess.Frames,
		"realtime", opts.Realtime, "loop", opts.Loop)
	return &Replay{store: store, sess: sess, opts: opts}, nil
}

// Next returns the next recorded set.
func (r *Replay) Next(ctx context.Context) (landmark.Set, error) {
	if err := ctx.Err(); err != nil {
		return landmark.Set{}, err
	}

	if len(r.batch) == 0 {
		if err := r.fill(ctx); err != nil {
			return landmark.Set{}, err
		}
	}

	f := r.batch[0]
	r.batch = r.batch[1:]
	r.lastSeq = f.Seq

	if r.opts.Realtime {
		if err := r.pace(ctx, f.CapturedAt); err != nil {
			return landmark.Set{}, err
		}
	}
	r.played++
	return f.Set, nil
}

func (r *Replay) fill(ctx context.Context) error {
	frames, err := r.store.FramesAfter(ctx, r.sess.ID, r.lastSeq, replayBatch)
	if err != nil {
		return err
	}
	if len(frames) == 0 && r.opts.Loop && r.lastSeq > 0 {
		r.lastSeq = 0
		r.lastAt = time.Time{}
		frames, err = r.store.FramesAfter(ctx, r.sess.ID, 0, replayBatch)
		if err != nil {
			return err
		}
	}
	if len(frames) == 0 {
		return io.EOF
	}
	r.batch = frames
	return nil
}

func (r *Replay) pace(ctx context.Context, at time.Time) error {
	defer func() {
		r.lastAt = at
		r.lastEmit = time.Now()
	}()
	if r.lastAt.IsZero() {
		return nil
	}

	gap := time.Duration(float64(at.Sub(r.lastAt)) / r.opts.Speed)
	wait := gap - time.Since(r.lastEmit)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close implements landmark.Provider. The store stays open.
func (r *Replay) Close() error {
	log.Info("replay closed", "id", r.sess.ID, "played", r.played)
	return nil
}

// Name identifies the source in logs.
func (r *Replay) Name() string {
	return "replay:" + r.sess.ID.String()
}
