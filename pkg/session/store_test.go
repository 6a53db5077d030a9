package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-avatar/pkg/landmark/landmarktest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateAppendFinish(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	sess, err := s.Create(ctx, "osf-udp:127.0.0.1:11573", t0)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sess.ID)

	face := landmarktest.Frontal()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, s.Append(ctx, sess.ID, Frame{
			Seq:        i,
			CapturedAt: t0.Add(time.Duration(i) * 33 * time.Millisecond),
			Set:        landmarktest.Rotate(face, float64(i)),
		}))
	}
	require.NoError(t, s.Finish(ctx, sess.ID, t0.Add(time.Second)))

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "osf-udp:127.0.0.1:11573", got.Source)
	assert.Equal(t, int64(3), got.Frames)
	assert.True(t, got.StartedAt.Equal(t0))
	assert.True(t, got.EndedAt.Equal(t0.Add(time.Second)))

	frames, err := s.FramesAfter(ctx, sess.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, int64(2), frames[0].Seq)
	assert.Equal(t, landmarktest.Rotate(face, 2), frames[0].Set, "float64 points stored exactly")
	assert.True(t, frames[1].CapturedAt.Equal(t0.Add(99*time.Millisecond)))
}

func TestStore_DuplicateSeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sess, err := s.Create(ctx, "test", time.Now())
	require.NoError(t, err)

	f := Frame{Seq: 1, CapturedAt: time.Now(), Set: landmarktest.Frontal()}
	require.NoError(t, s.Append(ctx, sess.ID, f))
	assert.Error(t, s.Append(ctx, sess.ID, f))
}

func TestStore_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Finish(ctx, id, time.Now()), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)
}

func TestStore_ListAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	older, err := s.Create(ctx, "a", t0)
	require.NoError(t, err)
	newer, err := s.Create(ctx, "b", t0.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, older.ID, Frame{Seq: 1, CapturedAt: t0, Set: landmarktest.Frontal()}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.True(t, list[0].EndedAt.IsZero(), "still recording")

	require.NoError(t, s.Delete(ctx, older.ID))
	frames, err := s.FramesAfter(ctx, older.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, frames, "frames cascade with the session")
}

func TestDecodePoints_Corrupt(t *testing.T) {
	_, err := decodePoints(make([]byte, pointsSize-1))
	assert.ErrorIs(t, err, ErrCorruptFrame)

	face := landmarktest.Frontal()
	set, err := decodePoints(encodePoints(&face))
	require.NoError(t, err)
	assert.Equal(t, face, set)
}
