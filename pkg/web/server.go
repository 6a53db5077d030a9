// Package web serves the tracker's avatar parameters over HTTP and streams
// them to rendering clients over websockets.
package web

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/hub"
	"github.com/teslashibe/go-avatar/pkg/session"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

// DefaultInterval is the minimum spacing of streamed snapshots.
const DefaultInterval = 33 * time.Millisecond

// Source is the tracker state the server exposes.
type Source interface {
	Snapshot() tracking.Snapshot
	Config() tracking.Config
	Stats() tracking.Stats
}

// Options configures a Server.
type Options struct {
	Addr     string        // listen address, e.g. ":8080"
	Interval time.Duration // minimum spacing of streamed snapshots, zero means DefaultInterval
	Static   string        // optional directory served at /
}

// Server exposes a Source over HTTP and websockets.
type Server struct {
	app    *fiber.App
	opts   Options
	source Source
	params *hub.Hub

	latest atomic.Pointer[tracking.Snapshot]
	notify chan struct{}

	mu       sync.RWMutex
	extra    map[string]func() any
	sessions *session.Store
}

// NewServer builds the routes; nothing listens until Start.
func NewServer(source Source, opts Options) *Server {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	s := &Server{
		opts:   opts,
		source: source,
		params: hub.New("params"),
		notify: make(chan struct{}, 1),
		extra:  make(map[string]func() any),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-avatar",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	if opts.Static != "" {
		app.Static("/", opts.Static)
	}

	api := app.Group("/api")
	api.Get("/params", s.handleParams)
	api.Get("/snapshot", s.handleSnapshot)
	api.Get("/config", s.handleConfig)
	api.Get("/stats", s.handleStats)
	api.Get("/sessions", s.handleListSessions)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Delete("/sessions/:id", s.handleDeleteSession)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/params", websocket.New(s.params.Serve))

	s.app = app
	return s
}

// AddStats publishes fn's result under name in GET /api/stats.
func (s *Server) AddStats(name string, fn func() any) {
	s.mu.Lock()
	s.extra[name] = fn
	s.mu.Unlock()
}

// SetSessions enables the /api/sessions routes.
func (s *Server) SetSessions(store *session.Store) {
	s.mu.Lock()
	s.sessions = store
	s.mu.Unlock()
}

// ParamsHub returns the hub that streams snapshots.
func (s *Server) ParamsHub() *hub.Hub {
	return s.params
}

// Start listens on opts.Addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log.Info("web server listening", "addr", ln.Addr().String(), "interval", s.opts.Interval)

	go s.params.Run(ctx)
	go s.stream(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Warn("web server shutdown", "error", err)
		}
	}()

	err := s.app.Listener(ln)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Observe queues snap for the websocket stream. It never blocks, so it can
// be registered with tracking.WithObserver.
func (s *Server) Observe(snap tracking.Snapshot) {
	s.latest.Store(&snap)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// stream broadcasts the latest observed snapshot. Snapshots observed within
// one Interval of a broadcast are coalesced into the next one.
func (s *Server) stream(ctx context.Context) {
	pause := time.NewTimer(0)
	defer pause.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		}
		if err := s.params.BroadcastJSON(*s.latest.Load()); err != nil {
			log.Error("encode snapshot", "error", err)
		}

		pause.Reset(s.opts.Interval)
		select {
		case <-ctx.Done():
			return
		case <-pause.C:
		}
	}
}
