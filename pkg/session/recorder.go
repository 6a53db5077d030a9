package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/landmark"
)

// Recorder is a landmark.Provider that passes sets through from another
// provider and stores each one in a session.
type Recorder struct {
	store   *Store
	inner   landmark.Provider
	session Session
	now     func() time.Time

	seq    int64
	failed atomic.Uint64
}

// NewRecorder starts a session named after inner.
func NewRecorder(ctx context.Context, store *Store, inner landmark.Provider) (*Recorder, error) {
	sess, err := store.Create(ctx, inner.Name(), time.Now())
	if err != nil {
		return nil, err
	}
	log.Info("recording session", "id", sess.ID, "source", sess.Source)
	return &Recorder{store: store, inner: inner, session: sess, now: time.Now}, nil
}

// Session returns the session being recorded.
func (r *Recorder) Session() Session {
	return r.session
}

// ID returns the session id.
func (r *Recorder) ID() uuid.UUID {
	return r.session.ID
}

// Next reads from the wrapped provider. Storage failures are logged and do
// not interrupt tracking.
func (r *Recorder) Next(ctx context.Context) (landmark.Set, error) {
	set, err := r.inner.Next(ctx)
	if err != nil {
		return set, err
	}

	r.seq++
	frame := Frame{Seq: r.seq, CapturedAt: r.now(), Set: set}
	if err := r.store.Append(ctx, r.session.ID, frame); err != nil {
		if r.failed.Add(1) == 1 {
			log.Warn("failed to record frame", "session", r.session.ID, "error", err)
		}
	}
	return set, nil
}

// Close ends the session and closes the wrapped provider.
func (r *Recorder) Close() error {
	// The tracking context is usually cancelled by now.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.Finish(ctx, r.session.ID, r.now()); err != nil {
		log.Warn("failed to finish session", "session", r.session.ID, "error", err)
	}
	log.Info("recording finished", "id", r.session.ID, "frames", r.seq, "failed", r.failed.Load())
	return r.inner.Close()
}

// Name identifies the source in logs.
func (r *Recorder) Name() string {
	return r.inner.Name()
}
