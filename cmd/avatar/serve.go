package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/landmark"
	"github.com/teslashibe/go-avatar/pkg/session"
	"github.com/teslashibe/go-avatar/pkg/tracking"
	"github.com/teslashibe/go-avatar/pkg/web"
)

// serveFlags are shared by every command that runs the tracker.
type serveFlags struct {
	port   int
	static string
	record string
	noWeb  bool
}

func (s *serveFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&s.port, "web-port", "p", config.WebPort(), "HTTP/websocket port [$AVATAR_WEB_PORT]")
	f.StringVar(&s.static, "static", "", "directory served at / (renderer page)")
	f.StringVar(&s.record, "record", "", "record landmark sets to this SQLite database")
	f.BoolVar(&s.noWeb, "no-web", false, "run the tracker without the web server")
}

// providerFunc opens a landmark source once the config is known.
type providerFunc func(cfg tracking.Config) (landmark.Provider, error)

// serve runs the tracker over the opened provider until the source ends or
// the process is interrupted. stats, when set, is published in /api/stats.
func serve(g *globalFlags, s *serveFlags, open providerFunc, stats map[string]func() any) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := open(cfg)
	if err != nil {
		return err
	}

	var store *session.Store
	if s.record != "" {
		store, err = session.Open(s.record)
		if err != nil {
			provider.Close()
			return err
		}
		defer store.Close()

		rec, err := session.NewRecorder(ctx, store, provider)
		if err != nil {
			provider.Close()
			return err
		}
		provider = rec
	}
	defer provider.Close()

	var srv *web.Server
	tracker := tracking.New(cfg, provider, tracking.WithObserver(func(snap tracking.Snapshot) {
		if srv != nil {
			srv.Observe(snap)
		}
	}))
	log.Info("tracking", "source", provider.Name(), "preset", g.preset, "config", g.configPath)

	if !s.noWeb {
		srv = web.NewServer(tracker, web.Options{
			Addr:   fmt.Sprintf(":%d", s.port),
			Static: s.static,
		})
		for name, fn := range stats {
			srv.AddStats(name, fn)
		}
		if store != nil {
			srv.SetSessions(store)
		}
	}

	g2, ctx := errgroup.WithContext(ctx)
	g2.Go(func() error {
		// The source ending stops everything else.
		defer cancel()
		return tracker.Run(ctx)
	})
	if srv != nil {
		g2.Go(func() error {
			return srv.Start(ctx)
		})
	}

	err = g2.Wait()
	st := tracker.Stats()
	log.Info("tracking finished", "frames", st.Frames, "dropped", st.Dropped, "invalid", st.Invalid)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
