package landmark

import (
	"context"
	"errors"
)

// ErrNoUpdate is returned (usually wrapped with a reason) by a Provider when
// the current frame carries no usable landmarks: no face found, a malformed
// packet, a packet for another face. It is transient; callers keep their
// previous state and ask again.
var ErrNoUpdate = errors.New("landmark: no update this frame")

// Provider is a source of landmark sets.
//
// Next blocks until a set is available, the context is cancelled, or the
// source fails. It returns io.EOF when the source is exhausted and an error
// wrapping ErrNoUpdate for a dropped frame. Any other error means the source
// is broken and will not recover on its own.
type Provider interface {
	Next(ctx context.Context) (Set, error)

	// Close releases the underlying device, socket or file.
	Close() error

	// Name identifies the source in logs.
	Name() string
}

// IsNoUpdate reports whether err marks a dropped frame.
func IsNoUpdate(err error) bool {
	return errors.Is(err, ErrNoUpdate)
}
