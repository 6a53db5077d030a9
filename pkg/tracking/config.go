package tracking

import "fmt"

// Config holds every tunable of the landmark-to-avatar pipeline. It is filled
// with DefaultConfig, optionally overridden from a config file at startup, and
// never mutated afterwards.
type Config struct {
	// OpenSeeFace UDP source
	OSFIPAddress string `json:"osf_ip_address"`
	OSFPort      int    `json:"osf_port"`

	// Static pitch offset for a camera mounted above/below the display (degrees)
	FaceYAngleCorrection float64 `json:"face_y_angle_correction"`

	// Eye-smile detection
	EyeSmileEyeOpenThreshold   float64 `json:"eye_smile_eye_open_threshold"`
	EyeSmileMouthFormThreshold float64 `json:"eye_smile_mouth_form_threshold"`
	EyeSmileMouthOpenThreshold float64 `json:"eye_smile_mouth_open_threshold"`

	// Mirror camera frames before detection
	LateralInversion bool `json:"lateral_inversion"`

	// Moving-average depth per signal (>= 1)
	FaceXAngleNumTaps   int `json:"face_x_angle_num_taps"`
	FaceYAngleNumTaps   int `json:"face_y_angle_num_taps"`
	FaceZAngleNumTaps   int `json:"face_z_angle_num_taps"`
	MouthFormNumTaps    int `json:"mouth_form_num_taps"`
	MouthOpenNumTaps    int `json:"mouth_open_num_taps"`
	LeftEyeOpenNumTaps  int `json:"left_eye_open_num_taps"`
	RightEyeOpenNumTaps int `json:"right_eye_open_num_taps"`

	// Ratio thresholds
	EyeClosedThreshold   float64 `json:"eye_closed_threshold"`
	EyeOpenThreshold     float64 `json:"eye_open_threshold"`
	MouthNormalThreshold float64 `json:"mouth_normal_threshold"`
	MouthSmileThreshold  float64 `json:"mouth_smile_threshold"`
	MouthClosedThreshold float64 `json:"mouth_closed_threshold"`
	MouthOpenThreshold   float64 `json:"mouth_open_threshold"`

	// Cross corrections
	MouthOpenLaughCorrection  float64 `json:"mouth_open_laugh_correction"`
	FaceYAngleXRotCorrection  float64 `json:"face_y_angle_x_rot_correction"`
	FaceYAngleSmileCorrection float64 `json:"face_y_angle_smile_correction"`

	// Nose angle (radians) for level, fully-up and fully-down pitch
	FaceYAngleZeroValue     float64 `json:"face_y_angle_zero_value"`
	FaceYAngleUpThreshold   float64 `json:"face_y_angle_up_threshold"`
	FaceYAngleDownThreshold float64 `json:"face_y_angle_down_threshold"`

	// Feature toggles
	WinkEnable   bool `json:"wink_enable"`
	AutoBlink    bool `json:"auto_blink"`
	AutoBreath   bool `json:"auto_breath"`
	RandomMotion bool `json:"random_motion"`
}

// DefaultConfig returns values that work for a typical webcam setup.
func DefaultConfig() Config {
	return Config{
		OSFIPAddress: "127.0.0.1",
		OSFPort:      11573,

		FaceYAngleCorrection: 10, // webcam on top of the monitor

		EyeSmileEyeOpenThreshold:   0.6,
		EyeSmileMouthFormThreshold: 0.75,
		EyeSmileMouthOpenThreshold: 0.5,

		LateralInversion: true,

		// Angles are noisy, shapes need to react quickly
		FaceXAngleNumTaps:   11,
		FaceYAngleNumTaps:   11,
		FaceZAngleNumTaps:   11,
		MouthFormNumTaps:    3,
		MouthOpenNumTaps:    3,
		LeftEyeOpenNumTaps:  3,
		RightEyeOpenNumTaps: 3,

		EyeClosedThreshold:   0.2,
		EyeOpenThreshold:     0.25,
		MouthNormalThreshold: 0.75,
		MouthSmileThreshold:  1.0,
		MouthClosedThreshold: 0.1,
		MouthOpenThreshold:   0.4,

		MouthOpenLaughCorrection:  0.2,
		FaceYAngleXRotCorrection:  0.15,
		FaceYAngleSmileCorrection: 0.075,

		FaceYAngleZeroValue:     1.8,
		FaceYAngleUpThreshold:   1.3,
		FaceYAngleDownThreshold: 2.3,

		WinkEnable:   false,
		AutoBlink:    false,
		AutoBreath:   false,
		RandomMotion: false,
	}
}

// Validate checks the invariants the pipeline relies on.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	taps := map[string]int{
		"faceXAngleNumTaps":   c.FaceXAngleNumTaps,
		"faceYAngleNumTaps":   c.FaceYAngleNumTaps,
		"faceZAngleNumTaps":   c.FaceZAngleNumTaps,
		"mouthFormNumTaps":    c.MouthFormNumTaps,
		"mouthOpenNumTaps":    c.MouthOpenNumTaps,
		"leftEyeOpenNumTaps":  c.LeftEyeOpenNumTaps,
		"rightEyeOpenNumTaps": c.RightEyeOpenNumTaps,
	}
	for _, name := range sortedKeys(taps) {
		if taps[name] < 1 {
			errors = append(errors, fmt.Sprintf("%s must be at least 1", name))
		}
	}

	if c.OSFPort < 0 || c.OSFPort > 65535 {
		errors = append(errors, "osfPort must be between 0 and 65535")
	}

	return errors
}

// Taps returns the configured filter depth for each signal.
func (c *Config) Taps() [NumSignals]int {
	var taps [NumSignals]int
	taps[SignalFaceX] = c.FaceXAngleNumTaps
	taps[SignalFaceY] = c.FaceYAngleNumTaps
	taps[SignalFaceZ] = c.FaceZAngleNumTaps
	taps[SignalMouthForm] = c.MouthFormNumTaps
	taps[SignalMouthOpen] = c.MouthOpenNumTaps
	taps[SignalLeftEye] = c.LeftEyeOpenNumTaps
	taps[SignalRightEye] = c.RightEyeOpenNumTaps
	return taps
}
