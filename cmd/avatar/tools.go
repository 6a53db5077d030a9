package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/internal/httpc"
	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective tracking config",
		Long: `Loads --config (or the defaults) and prints it in the key value format,
which makes a starting point for a config file. With --server the config of
a running server is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg tracking.Config
				err error
			)
			if server != "" {
				cfg, err = httpc.New(server).Config(cmd.Context())
			} else {
				cfg, err = g.loadConfig()
			}
			if err != nil {
				return err
			}
			return tracking.WriteConfig(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "", "fetch the config from this avatar server")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print avatar parameters streamed by a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := wsURL(server)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return watch(ctx, u, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", config.ServerURL(), "avatar server [$AVATAR_SERVER]")
	return cmd
}

// wsURL maps an http(s) server URL to its params websocket.
func wsURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("server url %q: %w", server, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server url %q: unsupported scheme", server)
	}
	u.Path = "/ws/params"
	return u.String(), nil
}

func watch(ctx context.Context, u string, out io.Writer) error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", u, err)
	}
	defer conn.Close()
	log.Info("watching", "url", u)

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var snap tracking.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read %s: %w", u, err)
		}
		fmt.Fprintln(out, formatSnapshot(snap))
	}
}

func formatSnapshot(s tracking.Snapshot) string {
	p := s.Params
	state := "live"
	if !s.Fresh {
		state = fmt.Sprintf("stale(%d)", s.Misses)
	}
	return fmt.Sprintf("#%-6d %-9s eye L%.2f R%.2f smile L%.0f R%.0f mouth open %.2f form %+.2f  face x%+6.1f y%+6.1f z%+6.1f",
		s.Frame, state,
		p.LeftEyeOpenness, p.RightEyeOpenness, p.LeftEyeSmile, p.RightEyeSmile,
		p.MouthOpenness, p.MouthForm,
		p.FaceXAngle, p.FaceYAngle, p.FaceZAngle)
}

func newParamsCmd() *cobra.Command {
	var (
		server     string
		paramsOnly bool
	)
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the current snapshot of a running server as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := httpc.New(server)
			var (
				v   any
				err error
			)
			if paramsOnly {
				v, err = client.Params(cmd.Context())
			} else {
				v, err = client.Snapshot(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", config.ServerURL(), "avatar server [$AVATAR_SERVER]")
	cmd.Flags().BoolVar(&paramsOnly, "params-only", false, "print only the avatar parameters")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the counters of a running server as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := httpc.New(server).Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", config.ServerURL(), "avatar server [$AVATAR_SERVER]")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSessionsCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions recorded by a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := httpc.New(server).Sessions(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSOURCE\tSTARTED\tDURATION\tFRAMES")
			for _, s := range list {
				dur := "recording"
				if !s.EndedAt.IsZero() {
					dur = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", s.ID, s.Source,
					s.StartedAt.Local().Format(time.DateTime), dur, s.Frames)
			}
			return tw.Flush()
		},
	}
	cmd.PersistentFlags().StringVarP(&server, "server", "s", config.ServerURL(), "avatar server [$AVATAR_SERVER]")

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <session-id>...",
		Short: "Delete recorded sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := httpc.New(server)
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("session id %q: %w", arg, err)
				}
				if err := client.DeleteSession(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted", id)
			}
			return nil
		},
	})
	return cmd
}
