package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-avatar/pkg/landmark"
	"github.com/teslashibe/go-avatar/pkg/osf"
	"github.com/teslashibe/go-avatar/pkg/session"
	"github.com/teslashibe/go-avatar/pkg/tracking"
	"github.com/teslashibe/go-avatar/pkg/tracking/detection"
)

func newOSFCmd(g *globalFlags) *cobra.Command {
	var (
		s       serveFlags
		address string
		port    int
		order   string
	)
	cmd := &cobra.Command{
		Use:   "osf",
		Short: "Track landmarks sent by OpenSeeFace over UDP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var recv *osf.Receiver
			stats := map[string]func() any{
				"osf": func() any { return recv.Stats() },
			}
			return serve(g, &s, func(cfg tracking.Config) (landmark.Provider, error) {
				// Flags override the config file.
				if cmd.Flags().Changed("address") {
					cfg.OSFIPAddress = address
				}
				if cmd.Flags().Changed("port") {
					cfg.OSFPort = port
				}
				points, err := osf.ParsePointOrder(order)
				if err != nil {
					return nil, err
				}
				recv, err = osf.NewReceiver(osf.ReceiverConfig{
					Address:    net.JoinHostPort(cfg.OSFIPAddress, strconv.Itoa(cfg.OSFPort)),
					PointOrder: points,
				})
				return recv, err
			}, stats)
		},
	}
	s.register(cmd)
	cmd.Flags().StringVar(&address, "address", "", "bind address (default osf_ip_address from config)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (default osf_port from config)")
	cmd.Flags().StringVar(&order, "point-order", "xy", "2D point layout of the sender: xy, or yx for stock OpenSeeFace")
	return cmd
}

func newCameraCmd(g *globalFlags) *cobra.Command {
	var (
		s        serveFlags
		device   string
		faceOpts = detection.DefaultConfig()
		lmOpts   = detection.DefaultLandmarkConfig()
		margin   float64
		width    int
		height   int
	)
	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Detect landmarks locally from a camera or video file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(g, &s, func(cfg tracking.Config) (landmark.Provider, error) {
				det, err := detection.NewYuNet(faceOpts)
				if err != nil {
					return nil, err
				}
				lm, err := detection.NewLandmarkNet(lmOpts)
				if err != nil {
					det.Close()
					return nil, err
				}
				p, err := detection.OpenCamera(detection.CameraConfig{
					Device: device,
					Mirror: cfg.LateralInversion,
					Margin: margin,
					Width:  width,
					Height: height,
				}, det, lm)
				if err != nil {
					det.Close()
					lm.Close()
					return nil, err
				}
				return p, nil
			}, nil)
		},
	}
	s.register(cmd)
	f := cmd.Flags()
	f.StringVarP(&device, "device", "d", "0", "camera index or video file")
	f.IntVar(&width, "width", 0, "requested capture width")
	f.IntVar(&height, "height", 0, "requested capture height")
	f.StringVar(&faceOpts.ModelPath, "face-model", "models/face_detection_yunet_2023mar.onnx", "YuNet face detection model")
	f.Float64Var(&faceOpts.ConfidenceThresh, "face-confidence", faceOpts.ConfidenceThresh, "minimum face confidence")
	f.StringVar(&lmOpts.ModelPath, "landmark-model", "models/face_landmarks_68.onnx", "68-point landmark regression model")
	f.IntVar(&lmOpts.InputWidth, "landmark-width", lmOpts.InputWidth, "landmark model input width")
	f.IntVar(&lmOpts.InputHeight, "landmark-height", lmOpts.InputHeight, "landmark model input height")
	f.Float64Var(&margin, "margin", detection.DefaultMargin, "face box margin before landmark estimation")
	f.BoolVar(&lmOpts.PixelOutput, "pixel-output", lmOpts.PixelOutput, "landmark model outputs input pixels instead of [0,1]")
	return cmd
}

func newPcapCmd(g *globalFlags) *cobra.Command {
	var (
		s     serveFlags
		opts  osf.PcapConfig
		order string
	)
	cmd := &cobra.Command{
		Use:   "pcap <file>",
		Short: "Replay OpenSeeFace packets from a pcap or pcapng capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Path = args[0]
			return serve(g, &s, func(cfg tracking.Config) (landmark.Provider, error) {
				if !cmd.Flags().Changed("port") {
					opts.Port = cfg.OSFPort
				}
				points, err := osf.ParsePointOrder(order)
				if err != nil {
					return nil, err
				}
				opts.PointOrder = points
				return osf.OpenPcap(opts)
			}, nil)
		},
	}
	s.register(cmd)
	f := cmd.Flags()
	f.IntVar(&opts.Port, "port", 0, "UDP destination port to keep, 0 for all (default osf_port from config)")
	f.BoolVar(&opts.Realtime, "realtime", true, "reproduce the capture timing")
	f.Float64Var(&opts.Speed, "speed", 1, "realtime speed multiplier")
	f.StringVar(&order, "point-order", "xy", "2D point layout of the sender: xy, or yx for stock OpenSeeFace")
	return cmd
}

func newReplayCmd(g *globalFlags) *cobra.Command {
	var (
		s    serveFlags
		db   string
		opts session.ReplayOptions
	)
	cmd := &cobra.Command{
		Use:   "replay <session-id>",
		Short: "Replay a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("session id %q: %w", args[0], err)
			}
			store, err := session.Open(db)
			if err != nil {
				return err
			}
			defer store.Close()

			return serve(g, &s, func(tracking.Config) (landmark.Provider, error) {
				return session.NewReplay(context.Background(), store, id, opts)
			}, nil)
		},
	}
	s.register(cmd)
	f := cmd.Flags()
	f.StringVar(&db, "db", "sessions.db", "session database")
	f.BoolVar(&opts.Realtime, "realtime", true, "reproduce the recorded timing")
	f.Float64Var(&opts.Speed, "speed", 1, "realtime speed multiplier")
	f.BoolVar(&opts.Loop, "loop", false, "start over at the end")
	return cmd
}
