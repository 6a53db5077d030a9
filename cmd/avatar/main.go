// Command avatar turns facial landmarks from a tracker or camera into avatar
// control parameters and serves them to renderers.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/debug"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

type globalFlags struct {
	configPath  string
	preset      string
	logLevel    string
	logFile     string
	debug       bool
	debugFrames bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// .env only fills variables the environment does not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("avatar: .env: " + err.Error() + "\n")
	}

	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "avatar",
		Short: "Drive an avatar from 68-point facial landmarks",
		Long: `avatar reads facial landmarks from OpenSeeFace, a local camera, a packet
capture or a recorded session, converts them to smoothed avatar parameters
(eye openness, eye smile, mouth, head angles) and serves them over HTTP and
websockets.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.debug && !cmd.Flags().Changed("log-level") {
				g.logLevel = "debug"
			}
			log.InitWithOptions(log.Options{
				Level:      g.logLevel,
				File:       g.logFile,
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 14,
			})
			debug.Enabled = g.debug
			debug.Frames = g.debugFrames
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", config.ConfigPath(), "tracking config file (key value, or .yaml) [$AVATAR_CONFIG]")
	pf.StringVar(&g.preset, "preset", tracking.PresetDefault,
		"base tuning, overridden by --config: "+strings.Join(tracking.PresetNames(), ", "))
	pf.StringVar(&g.logLevel, "log-level", config.LogLevel(), "debug, info, warn or error [$AVATAR_LOG_LEVEL]")
	pf.StringVar(&g.logFile, "log-file", config.LogFile(), "also write logs to this rotated file [$AVATAR_LOG_FILE]")
	pf.BoolVar(&g.debug, "debug", false, "verbose debug logging")
	pf.BoolVar(&g.debugFrames, "debug-frames", false, "log every landmark frame")

	root.AddCommand(
		newOSFCmd(g),
		newCameraCmd(g),
		newPcapCmd(g),
		newReplayCmd(g),
		newConfigCmd(g),
		newWatchCmd(),
		newParamsCmd(),
		newStatsCmd(),
		newSessionsCmd(),
	)
	return root
}

// loadConfig applies --config on top of --preset.
func (g *globalFlags) loadConfig() (tracking.Config, error) {
	base := tracking.GetPreset(g.preset)
	if base == nil {
		return tracking.Config{}, fmt.Errorf("unknown preset %q (have %s)", g.preset, strings.Join(tracking.PresetNames(), ", "))
	}
	return tracking.LoadConfigWith(*base, g.configPath)
}
