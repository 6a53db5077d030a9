// Package session records landmark streams to SQLite and replays them.
package session

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-avatar/pkg/landmark"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session: not found")

	// ErrCorruptFrame is returned when a stored frame cannot be decoded.
	ErrCorruptFrame = errors.New("session: corrupt frame")
)

// pointsSize is the encoded size of a landmark set: 68 (x, y) float64 pairs.
const pointsSize = landmark.Count * 2 * 8

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		source        TEXT NOT NULL,
		started_at    BIGINT NOT NULL,
		ended_at      BIGINT,
		frames        BIGINT NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS frames (
		session_id    TEXT NOT NULL,
		seq           BIGINT NOT NULL,
		captured_at   BIGINT NOT NULL,
		points        BLOB NOT NULL,
		PRIMARY KEY (session_id, seq),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
`

// Session describes one recording.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"` // zero while recording
	Frames    int64     `json:"frames"`
}

// Frame is one recorded landmark set.
type Frame struct {
	Seq        int64
	CapturedAt time.Time
	Set        landmark.Set
}

// Store is a SQLite database of recorded sessions.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("session store %s: %s: %w", path, pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store %s: create schema: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create starts a new session for source.
func (s *Store) Create(ctx context.Context, source string, at time.Time) (Session, error) {
	sess := Session{ID: uuid.New(), Source: source, StartedAt: at}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, source, started_at) VALUES (?, ?, ?)`,
		sess.ID.String(), source, at.UnixNano())
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Append stores one frame.
func (s *Store) Append(ctx context.Context, id uuid.UUID, f Frame) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO frames (session_id, seq, captured_at, points) VALUES (?, ?, ?, ?)`,
		id.String(), f.Seq, f.CapturedAt.UnixNano(), encodePoints(&f.Set))
	if err != nil {
		return fmt.Errorf("append frame %d to %s: %w", f.Seq, id, err)
	}
	return nil
}

// Finish marks a session as ended and records its frame count.
func (s *Store) Finish(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		    SET ended_at = ?,
		        frames = (SELECT COUNT(*) FROM frames WHERE session_id = ?)
		  WHERE id = ?`,
		at.UnixNano(), id.String(), id.String())
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish session %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get returns one session.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, started_at, ended_at, frames FROM sessions WHERE id = ?`, id.String())
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess, err
}

// List returns all sessions, newest first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, started_at, ended_at, frames FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Delete removes a session and its frames.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	return nil
}

// FramesAfter returns up to limit frames with seq > after, in order.
func (s *Store) FramesAfter(ctx context.Context, id uuid.UUID, after int64, limit int) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, captured_at, points FROM frames
		  WHERE session_id = ? AND seq > ?
		  ORDER BY seq LIMIT ?`,
		id.String(), after, limit)
	if err != nil {
		return nil, fmt.Errorf("read frames of %s: %w", id, err)
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		var (
			f      Frame
			at     int64
			points []byte
		)
		if err := rows.Scan(&f.Seq, &at, &points); err != nil {
			return nil, fmt.Errorf("read frames of %s: %w", id, err)
		}
		f.CapturedAt = time.Unix(0, at)
		if f.Set, err = decodePoints(points); err != nil {
			return nil, fmt.Errorf("frame %d of %s: %w", f.Seq, id, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess    Session
		id      string
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&id, &sess.Source, &started, &ended, &sess.Frames); err != nil {
		return Session{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Session{}, fmt.Errorf("session id %q: %w", id, err)
	}
	sess.ID = parsed
	sess.StartedAt = time.Unix(0, started)
	if ended.Valid {
		sess.EndedAt = time.Unix(0, ended.Int64)
	}
	return sess, nil
}

// encodePoints packs a set as little-endian float64 (x, y) pairs.
func encodePoints(set *landmark.Set) []byte {
	b := make([]byte, pointsSize)
	for i, p := range set {
		binary.LittleEndian.PutUint64(b[16*i:], math.Float64bits(p.X))
		binary.LittleEndian.PutUint64(b[16*i+8:], math.Float64bits(p.Y))
	}
	return b
}

func decodePoints(b []byte) (landmark.Set, error) {
	var set landmark.Set
	if len(b) != pointsSize {
		return set, fmt.Errorf("%w: %d bytes", ErrCorruptFrame, len(b))
	}
	for i := range set {
		set[i] = landmark.Point{
			X: math.Float64frombits(binary.LittleEndian.Uint64(b[16*i:])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(b[16*i+8:])),
		}
	}
	return set, nil
}
