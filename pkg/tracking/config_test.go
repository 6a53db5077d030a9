package tracking

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1", cfg.OSFIPAddress)
	assert.Equal(t, 11573, cfg.OSFPort)
	assert.Equal(t, 10.0, cfg.FaceYAngleCorrection)
	assert.True(t, cfg.LateralInversion)
	assert.False(t, cfg.WinkEnable)

	assert.Equal(t, [NumSignals]int{
		SignalFaceX: 11, SignalFaceY: 11, SignalFaceZ: 11,
		SignalMouthForm: 3, SignalMouthOpen: 3, SignalLeftEye: 3, SignalRightEye: 3,
	}, cfg.Taps())

	assert.Empty(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FaceZAngleNumTaps = 0
	cfg.OSFPort = 70000

	errs := cfg.Validate()
	assert.Equal(t, []string{
		"faceZAngleNumTaps must be at least 1",
		"osfPort must be between 0 and 65535",
	}, errs)
}

func TestParseConfig(t *testing.T) {
	src := `# avatar tuning
faceYAngleCorrection 0

osfPort 12000
  winkEnable true
mouthFormNumTaps 5
osfIpAddress 0.0.0.0
eyeOpenThreshold 0.3
`
	cfg, err := ParseConfig(strings.NewReader(src))
	require.NoError(t, err)

	want := DefaultConfig()
	want.FaceYAngleCorrection = 0
	want.OSFPort = 12000
	want.WinkEnable = true
	want.MouthFormNumTaps = 5
	want.OSFIPAddress = "0.0.0.0"
	want.EyeOpenThreshold = 0.3

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("ParseConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader("# nothing here\n\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		sentinel error
		param    string
		lineNum  int
		expected string
	}{
		{"unknown key", "winkEnable true\nfooBar 1\n", ErrUnknownKey, "fooBar", 2, ""},
		{"double as text", "faceYAngleCorrection abc\n", ErrBadValue, "faceYAngleCorrection", 1, "double"},
		{"int as float", "osfPort 1.5\n", ErrBadValue, "osfPort", 1, "int"},
		{"bool as word", "# c\nwinkEnable maybe\n", ErrBadValue, "winkEnable", 2, "bool"},
		{"zero taps", "faceXAngleNumTaps 0\n", ErrBadValue, "faceXAngleNumTaps", 1, "unsigned size (>= 1)"},
		{"negative taps", "mouthOpenNumTaps -2\n", ErrBadValue, "mouthOpenNumTaps", 1, "unsigned size (>= 1)"},
		{"missing value", "eyeOpenThreshold\n", ErrBadValue, "eyeOpenThreshold", 1, "double"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Equal(t, Config{}, cfg, "no config on failure")
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)

			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.param, ce.Param)
			assert.Equal(t, tt.lineNum, ce.LineNum)
			assert.Equal(t, tt.expected, ce.Expected)
			assert.Contains(t, err.Error(), tt.param)
		})
	}
}

func TestParseConfig_TrailingTokens(t *testing.T) {
	src := "faceYAngleCorrection 5 # camera below screen\neyeOpenThreshold 0.3 0.4\nwinkEnable true  ; on\n"

	cfg, err := ParseConfig(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.FaceYAngleCorrection)
	assert.Equal(t, 0.3, cfg.EyeOpenThreshold)
	assert.True(t, cfg.WinkEnable)

	_, err = ParseConfig(strings.NewReader("faceYAngleCorrection # no value\n"))
	assert.ErrorIs(t, err, ErrBadValue)
}

func TestConfigError_Message(t *testing.T) {
	_, err := ParseConfig(strings.NewReader("osfPort eleven\n"))
	require.Error(t, err)
	assert.Equal(t,
		"error parsing config for parameter osfPort at line 1: osfPort eleven: expecting value of type int",
		err.Error())

	_, err = ParseConfig(strings.NewReader("\nnope 1\n"))
	require.Error(t, err)
	assert.Equal(t, "unrecognized parameter name at line 2: nope", err.Error())
}

func TestParseYAMLConfig_MatchesFlat(t *testing.T) {
	flat := "osfPort 12000\nwinkEnable true\nfaceXAngleNumTaps 7\neyeSmileMouthFormThreshold 0.8\n"
	yml := "osfPort: 12000\nwinkEnable: true\nfaceXAngleNumTaps: 7\neyeSmileMouthFormThreshold: 0.8\n"

	a, err := ParseConfig(strings.NewReader(flat))
	require.NoError(t, err)
	b, err := ParseYAMLConfig([]byte(yml))
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("flat and yaml differ (-flat +yaml):\n%s", diff)
	}
}

func TestParseYAMLConfig_Errors(t *testing.T) {
	_, err := ParseYAMLConfig([]byte("osfPort: 1\nbogus: 2\n"))
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, "bogus", ce.Param)
	assert.Equal(t, 2, ce.LineNum)
	assert.Equal(t, "bogus: 2", ce.Line)

	_, err = ParseYAMLConfig([]byte("winkEnable: [true]\n"))
	assert.ErrorIs(t, err, ErrBadValue)

	_, err = ParseYAMLConfig([]byte("- a\n- b\n"))
	assert.Error(t, err)

	cfg, err := ParseYAMLConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	flat := filepath.Join(dir, "avatar.conf")
	require.NoError(t, os.WriteFile(flat, []byte("lateralInversion false\n"), 0o644))
	cfg, err = LoadConfig(flat)
	require.NoError(t, err)
	assert.False(t, cfg.LateralInversion)

	yml := filepath.Join(dir, "avatar.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("lateralInversion: false\n"), 0o644))
	cfg, err = LoadConfig(yml)
	require.NoError(t, err)
	assert.False(t, cfg.LateralInversion)

	_, err = LoadConfig(filepath.Join(dir, "missing.conf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigKeys(t *testing.T) {
	keys := ConfigKeys()
	assert.Len(t, keys, 30)
	assert.Equal(t, "osfIpAddress", keys[0])
	assert.Contains(t, keys, "randomMotion")
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OSFIPAddress = "0.0.0.0"
	cfg.FaceYAngleCorrection = 0.1 + 0.2
	cfg.MouthFormNumTaps = 7
	cfg.WinkEnable = true

	var sb strings.Builder
	require.NoError(t, WriteConfig(&sb, cfg))
	assert.Contains(t, sb.String(), "winkEnable true\n")
	assert.Contains(t, sb.String(), "mouthFormNumTaps 7\n")

	got, err := ParseConfig(strings.NewReader(sb.String()))
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteConfig_EmptyString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OSFIPAddress = ""

	var sb strings.Builder
	require.NoError(t, WriteConfig(&sb, cfg))
	assert.True(t, strings.HasPrefix(sb.String(), "# osfIpAddress\n"))

	got, err := ParseConfig(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().OSFIPAddress, got.OSFIPAddress, "commented line keeps the default")
}
