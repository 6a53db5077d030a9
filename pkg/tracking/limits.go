package tracking

// Output angle ranges in degrees. Yaw is clamped to ±MaxFaceXAngle; pitch is
// scaled so the configured up/down nose-angle thresholds land on
// ±MaxFaceYAngle but may extrapolate past them.
const (
	MaxFaceXAngle = 30.0
	MaxFaceYAngle = 30.0
)

// Default values reported before any frame has been seen. Eyes default to
// open so a missing face does not read as a blink.
const (
	DefaultEyeOpenness = 1.0
	DefaultShape       = 0.0
	DefaultAngle       = 0.0
)

// Wink detection thresholds on smoothed eye openness.
const (
	WinkClosedThreshold = 0.1
	WinkOpenThreshold   = 0.2
)
