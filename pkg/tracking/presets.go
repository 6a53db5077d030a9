package tracking

import "sort"

// Preset names for common setups.
const (
	PresetDefault    = "default"
	PresetResponsive = "responsive"
	PresetSmooth     = "smooth"
	PresetDirect     = "direct"
	PresetWink       = "wink"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:    DefaultConfig(),
		PresetResponsive: ResponsiveConfig(),
		PresetSmooth:     SmoothConfig(),
		PresetDirect:     DirectConfig(),
		PresetWink:       WinkConfig(),
	}
}

// PresetNames returns the preset names in alphabetical order.
func PresetNames() []string {
	presets := Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// ResponsiveConfig trades jitter for latency: one third of the default
// filter depth.
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.FaceXAngleNumTaps = 4
	cfg.FaceYAngleNumTaps = 4
	cfg.FaceZAngleNumTaps = 4
	cfg.MouthFormNumTaps = 1
	cfg.MouthOpenNumTaps = 1
	cfg.LeftEyeOpenNumTaps = 1
	cfg.RightEyeOpenNumTaps = 1
	return cfg
}

// SmoothConfig doubles the default filter depth, for noisy low-light input.
func SmoothConfig() Config {
	cfg := DefaultConfig()
	cfg.FaceXAngleNumTaps = 22
	cfg.FaceYAngleNumTaps = 22
	cfg.FaceZAngleNumTaps = 22
	cfg.MouthFormNumTaps = 6
	cfg.MouthOpenNumTaps = 6
	cfg.LeftEyeOpenNumTaps = 6
	cfg.RightEyeOpenNumTaps = 6
	return cfg
}

// DirectConfig disables smoothing entirely.
func DirectConfig() Config {
	cfg := DefaultConfig()
	cfg.FaceXAngleNumTaps = 1
	cfg.FaceYAngleNumTaps = 1
	cfg.FaceZAngleNumTaps = 1
	cfg.MouthFormNumTaps = 1
	cfg.MouthOpenNumTaps = 1
	cfg.LeftEyeOpenNumTaps = 1
	cfg.RightEyeOpenNumTaps = 1
	return cfg
}

// WinkConfig drives each eye independently.
func WinkConfig() Config {
	cfg := DefaultConfig()
	cfg.WinkEnable = true
	return cfg
}
