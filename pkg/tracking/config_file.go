package tracking

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for configuration loading. ConfigError unwraps to one of
// these.
var (
	// ErrUnknownKey is returned for a parameter name that is not recognized.
	ErrUnknownKey = errors.New("tracking: unrecognized config parameter")

	// ErrBadValue is returned when a value does not parse as the expected type.
	ErrBadValue = errors.New("tracking: invalid config value")

	// ErrInvalidConfig is returned when the resulting configuration fails Validate.
	ErrInvalidConfig = errors.New("tracking: invalid configuration")
)

// ConfigError describes a config line that could not be applied.
type ConfigError struct {
	Param    string // parameter name as written
	Line     string // raw source line
	LineNum  int    // 1-based
	Expected string // expected value type, empty for an unknown parameter
}

func (e *ConfigError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("unrecognized parameter name at line %d: %s", e.LineNum, e.Param)
	}
	return fmt.Sprintf("error parsing config for parameter %s at line %d: %s: expecting value of type %s",
		e.Param, e.LineNum, e.Line, e.Expected)
}

func (e *ConfigError) Unwrap() error {
	if e.Expected == "" {
		return ErrUnknownKey
	}
	return ErrBadValue
}

type valueKind int

const (
	kindInt valueKind = iota
	kindDouble
	kindBool
	kindString
	kindSize
)

func (k valueKind) String() string {
	switch k {
	case kindInt:
		return "int"
	case kindDouble:
		return "double"
	case kindBool:
		return "bool"
	case kindString:
		return "string"
	case kindSize:
		return "unsigned size (>= 1)"
	}
	return "unknown"
}

// configKey describes one recognized parameter.
type configKey struct {
	name string
	kind valueKind
	set  func(c *Config, raw string) error
	get  func(c *Config) string
}

func doubleKey(name string, field func(*Config) *float64) configKey {
	return configKey{name: name, kind: kindDouble, set: func(c *Config, raw string) error {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}, get: func(c *Config) string {
		return strconv.FormatFloat(*field(c), 'g', -1, 64)
	}}
}

func intKey(name string, field func(*Config) *int) configKey {
	return configKey{name: name, kind: kindInt, set: func(c *Config, raw string) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}, get: func(c *Config) string { return strconv.Itoa(*field(c)) }}
}

func sizeKey(name string, field func(*Config) *int) configKey {
	return configKey{name: name, kind: kindSize, set: func(c *Config, raw string) error {
		v, err := strconv.ParseUint(raw, 10, 31)
		if err != nil {
			return err
		}
		if v < 1 {
			return fmt.Errorf("%s must be at least 1", name)
		}
		*field(c) = int(v)
		return nil
	}, get: func(c *Config) string { return strconv.Itoa(*field(c)) }}
}

func boolKey(name string, field func(*Config) *bool) configKey {
	return configKey{name: name, kind: kindBool, set: func(c *Config, raw string) error {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}, get: func(c *Config) string { return strconv.FormatBool(*field(c)) }}
}

func stringKey(name string, field func(*Config) *string) configKey {
	return configKey{name: name, kind: kindString, set: func(c *Config, raw string) error {
		*field(c) = raw
		return nil
	}, get: func(c *Config) string { return *field(c) }}
}

// configKeys is the full set of recognized parameters.
var configKeys = []configKey{
	stringKey("osfIpAddress", func(c *Config) *string { return &c.OSFIPAddress }),
	intKey("osfPort", func(c *Config) *int { return &c.OSFPort }),

	doubleKey("faceYAngleCorrection", func(c *Config) *float64 { return &c.FaceYAngleCorrection }),
	doubleKey("eyeSmileEyeOpenThreshold", func(c *Config) *float64 { return &c.EyeSmileEyeOpenThreshold }),
	doubleKey("eyeSmileMouthFormThreshold", func(c *Config) *float64 { return &c.EyeSmileMouthFormThreshold }),
	doubleKey("eyeSmileMouthOpenThreshold", func(c *Config) *float64 { return &c.EyeSmileMouthOpenThreshold }),

	boolKey("lateralInversion", func(c *Config) *bool { return &c.LateralInversion }),

	sizeKey("faceXAngleNumTaps", func(c *Config) *int { return &c.FaceXAngleNumTaps }),
	sizeKey("faceYAngleNumTaps", func(c *Config) *int { return &c.FaceYAngleNumTaps }),
	sizeKey("faceZAngleNumTaps", func(c *Config) *int { return &c.FaceZAngleNumTaps }),
	sizeKey("mouthFormNumTaps", func(c *Config) *int { return &c.MouthFormNumTaps }),
	sizeKey("mouthOpenNumTaps", func(c *Config) *int { return &c.MouthOpenNumTaps }),
	sizeKey("leftEyeOpenNumTaps", func(c *Config) *int { return &c.LeftEyeOpenNumTaps }),
	sizeKey("rightEyeOpenNumTaps", func(c *Config) *int { return &c.RightEyeOpenNumTaps }),

	doubleKey("eyeClosedThreshold", func(c *Config) *float64 { return &c.EyeClosedThreshold }),
	doubleKey("eyeOpenThreshold", func(c *Config) *float64 { return &c.EyeOpenThreshold }),
	doubleKey("mouthNormalThreshold", func(c *Config) *float64 { return &c.MouthNormalThreshold }),
	doubleKey("mouthSmileThreshold", func(c *Config) *float64 { return &c.MouthSmileThreshold }),
	doubleKey("mouthClosedThreshold", func(c *Config) *float64 { return &c.MouthClosedThreshold }),
	doubleKey("mouthOpenThreshold", func(c *Config) *float64 { return &c.MouthOpenThreshold }),

	doubleKey("mouthOpenLaughCorrection", func(c *Config) *float64 { return &c.MouthOpenLaughCorrection }),
	doubleKey("faceYAngleXRotCorrection", func(c *Config) *float64 { return &c.FaceYAngleXRotCorrection }),
	doubleKey("faceYAngleSmileCorrection", func(c *Config) *float64 { return &c.FaceYAngleSmileCorrection }),
	doubleKey("faceYAngleZeroValue", func(c *Config) *float64 { return &c.FaceYAngleZeroValue }),
	doubleKey("faceYAngleUpThreshold", func(c *Config) *float64 { return &c.FaceYAngleUpThreshold }),
	doubleKey("faceYAngleDownThreshold", func(c *Config) *float64 { return &c.FaceYAngleDownThreshold }),

	boolKey("winkEnable", func(c *Config) *bool { return &c.WinkEnable }),
	boolKey("autoBlink", func(c *Config) *bool { return &c.AutoBlink }),
	boolKey("autoBreath", func(c *Config) *bool { return &c.AutoBreath }),
	boolKey("randomMotion", func(c *Config) *bool { return &c.RandomMotion }),
}

var configKeyIndex = func() map[string]configKey {
	m := make(map[string]configKey, len(configKeys))
	for _, k := range configKeys {
		m[k.name] = k
	}
	return m
}()

// ConfigKeys returns the recognized parameter names in declaration order.
func ConfigKeys() []string {
	names := make([]string, len(configKeys))
	for i, k := range configKeys {
		names[i] = k.name
	}
	return names
}

// WriteConfig writes cfg in the "key value" format read by ParseConfig.
// Empty strings cannot be expressed and are written commented out.
func WriteConfig(w io.Writer, cfg Config) error {
	bw := bufio.NewWriter(w)
	for _, k := range configKeys {
		v := k.get(&cfg)
		if v == "" {
			fmt.Fprintf(bw, "# %s\n", k.name)
			continue
		}
		fmt.Fprintf(bw, "%s %s\n", k.name, v)
	}
	return bw.Flush()
}

// apply sets one parameter on cfg.
func apply(cfg *Config, name, raw, line string, lineNum int) error {
	key, ok := configKeyIndex[name]
	if !ok {
		return &ConfigError{Param: name, Line: line, LineNum: lineNum}
	}
	if err := key.set(cfg, raw); err != nil {
		return &ConfigError{Param: name, Line: line, LineNum: lineNum, Expected: key.kind.String()}
	}
	return nil
}

// LoadConfig returns DefaultConfig overridden by the file at path. An empty
// path yields the defaults. Files ending in .yaml or .yml are read as a flat
// YAML mapping; anything else uses the "key value" line format.
//
// Nothing is returned unless the whole file applied cleanly.
func LoadConfig(path string) (Config, error) {
	return LoadConfigWith(DefaultConfig(), path)
}

// LoadConfigWith is LoadConfig on top of base instead of the defaults.
func LoadConfigWith(base Config, path string) (Config, error) {
	if path == "" {
		return finish(base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(base, data)
	default:
		return parseFlat(base, bytes.NewReader(data))
	}
}

// ParseConfig reads "key value" lines on top of DefaultConfig. Blank lines
// and lines starting with '#' are skipped.
func ParseConfig(r io.Reader) (Config, error) {
	return parseFlat(DefaultConfig(), r)
}

func parseFlat(cfg Config, r io.Reader) (Config, error) {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields := strings.Fields(trimmed)
		name := fields[0]
		// Tokens after the value, such as a trailing comment, are ignored.
		if _, ok := configKeyIndex[name]; ok && len(fields) < 2 {
			return Config{}, &ConfigError{Param: name, Line: line, LineNum: lineNum,
				Expected: configKeyIndex[name].kind.String()}
		}

		raw := ""
		if len(fields) > 1 {
			raw = fields[1]
		}
		if err := apply(&cfg, name, raw, line, lineNum); err != nil {
			return Config{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return finish(cfg)
}

// ParseYAMLConfig reads a flat YAML mapping of parameter names to scalars on
// top of DefaultConfig.
func ParseYAMLConfig(data []byte) (Config, error) {
	return parseYAML(DefaultConfig(), data)
}

func parseYAML(cfg Config, data []byte) (Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}
	if len(doc.Content) == 0 {
		return finish(cfg)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Config{}, fmt.Errorf("parse yaml config: top level must be a mapping")
	}

	lines := strings.Split(string(data), "\n")
	rawLine := func(n int) string {
		if n >= 1 && n <= len(lines) {
			return strings.TrimRight(lines[n-1], "\r")
		}
		return ""
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		line := rawLine(k.Line)

		key, ok := configKeyIndex[k.Value]
		if ok && v.Kind != yaml.ScalarNode {
			return Config{}, &ConfigError{Param: k.Value, Line: line, LineNum: k.Line, Expected: key.kind.String()}
		}
		if err := apply(&cfg, k.Value, v.Value, line, k.Line); err != nil {
			return Config{}, err
		}
	}

	return finish(cfg)
}

func finish(cfg Config) (Config, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return cfg, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
