package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-avatar/pkg/tracking"
	"github.com/teslashibe/go-avatar/pkg/web"
)

func TestConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avatar.conf")
	require.NoError(t, os.WriteFile(path, []byte("# tuned\nwinkEnable true\nmouthOpenNumTaps 5\n"), 0o644))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--config", path})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "winkEnable true\n")
	assert.Contains(t, out.String(), "mouthOpenNumTaps 5\n")
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), len(tracking.ConfigKeys()))
}

func TestConfigCmd_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avatar.conf")
	require.NoError(t, os.WriteFile(path, []byte("noSuchKey 1\n"), 0o644))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--config", path})
	assert.ErrorIs(t, root.Execute(), tracking.ErrUnknownKey)
}

func TestConfigCmd_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avatar.conf")
	require.NoError(t, os.WriteFile(path, []byte("osfPort 70000\n"), 0o644))

	for _, args := range [][]string{
		{"config", "--config", path},
		{"osf", "--config", path, "--no-web"},
	} {
		out, err := runRoot(t, args...)
		assert.ErrorIs(t, err, tracking.ErrInvalidConfig, args[0])
		assert.Empty(t, out, args[0])
	}
}

func TestConfigCmd_Preset(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--config", "", "--preset", "direct"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "faceXAngleNumTaps 1\n")

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--preset", "cinematic"})
	assert.ErrorContains(t, root.Execute(), `unknown preset "cinematic"`)
}

func TestWsURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "http://localhost:8080", want: "ws://localhost:8080/ws/params"},
		{in: "https://avatar.example.com/", want: "wss://avatar.example.com/ws/params"},
		{in: "ws://10.0.0.2:9000", want: "ws://10.0.0.2:9000/ws/params"},
		{in: "ftp://host", wantErr: true},
	}
	for _, tt := range tests {
		got, err := wsURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatSnapshot(t *testing.T) {
	snap := tracking.Snapshot{
		Params: tracking.Params{LeftEyeOpenness: 1, RightEyeOpenness: 0.5, MouthForm: -0.25, FaceXAngle: 12.34},
		Fresh:  true,
		Frame:  12,
	}
	line := formatSnapshot(snap)
	assert.Contains(t, line, "#12")
	assert.Contains(t, line, "live")
	assert.Contains(t, line, "eye L1.00 R0.50")
	assert.Contains(t, line, "form -0.25")
	assert.Contains(t, line, "x +12.3")

	snap.Fresh = false
	snap.Misses = 3
	assert.Contains(t, formatSnapshot(snap), "stale(3)")
}

type staticSource struct{ snap tracking.Snapshot }

func (s staticSource) Snapshot() tracking.Snapshot { return s.snap }
func (s staticSource) Config() tracking.Config     { return tracking.DefaultConfig() }
func (s staticSource) Stats() tracking.Stats       { return tracking.Stats{Frames: 9, Dropped: 1} }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch(t *testing.T) {
	src := staticSource{snap: tracking.Snapshot{Fresh: true, Frame: 7, UpdatedAt: time.Now()}}
	srv := web.NewServer(src, web.Options{Interval: 5 * time.Millisecond})
	srv.Observe(src.snap)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	u, err := wsURL("http://" + ln.Addr().String())
	require.NoError(t, err)

	watchCtx, stop := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- watch(watchCtx, u, out) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "#7") }, 2*time.Second, 10*time.Millisecond)
	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

// startServer serves src on a loopback port and returns its base URL.
func startServer(t *testing.T, src web.Source) string {
	t.Helper()
	srv := web.NewServer(src, web.Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx, ln)
	return "http://" + ln.Addr().String()
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParamsCmd(t *testing.T) {
	src := staticSource{snap: tracking.Snapshot{
		Params: tracking.Params{LeftEyeOpenness: 0.75, FaceXAngle: 4},
		Fresh:  true,
		Frame:  5,
	}}
	server := startServer(t, src)

	out, err := runRoot(t, "params", "--server", server)
	require.NoError(t, err)
	var snap tracking.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, uint64(5), snap.Frame)
	assert.Equal(t, src.snap.Params, snap.Params)

	out, err = runRoot(t, "params", "--server", server, "--params-only")
	require.NoError(t, err)
	var params tracking.Params
	require.NoError(t, json.Unmarshal([]byte(out), &params))
	assert.Equal(t, src.snap.Params, params)
	assert.NotContains(t, out, `"frame"`)
}

func TestStatsCmd(t *testing.T) {
	server := startServer(t, staticSource{})

	out, err := runRoot(t, "stats", "--server", server)
	require.NoError(t, err)
	var stats map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Contains(t, stats, "tracker")

	var tr tracking.Stats
	require.NoError(t, json.Unmarshal(stats["tracker"], &tr))
	assert.Equal(t, uint64(9), tr.Frames)
	assert.Equal(t, uint64(1), tr.Dropped)
}

func TestConfigCmd_Server(t *testing.T) {
	server := startServer(t, staticSource{})

	out, err := runRoot(t, "config", "--config", "", "--server", server)
	require.NoError(t, err)

	var want bytes.Buffer
	require.NoError(t, tracking.WriteConfig(&want, tracking.DefaultConfig()))
	assert.Equal(t, want.String(), out)
}

func TestSourceCmds_BadPointOrder(t *testing.T) {
	for _, args := range [][]string{
		{"osf", "--config", "", "--no-web", "--point-order", "zx"},
		{"pcap", "missing.pcap", "--config", "", "--no-web", "--point-order", "zx"},
	} {
		_, err := runRoot(t, args...)
		assert.ErrorContains(t, err, "unknown point order", args[0])
	}
}

func TestCameraCmd_MarginFlag(t *testing.T) {
	cmd := newCameraCmd(&globalFlags{})
	f := cmd.Flags().Lookup("margin")
	require.NotNil(t, f)
	assert.Equal(t, "0.1", f.DefValue)
}
