package tracking

// Params is the avatar control vector handed to the rendering client.
type Params struct {
	LeftEyeOpenness  float64 `json:"left_eye_openness"`
	RightEyeOpenness float64 `json:"right_eye_openness"`
	LeftEyeSmile     float64 `json:"left_eye_smile"`  // 0 or 1
	RightEyeSmile    float64 `json:"right_eye_smile"` // 0 or 1
	MouthOpenness    float64 `json:"mouth_openness"`
	MouthForm        float64 `json:"mouth_form"`
	FaceXAngle       float64 `json:"face_x_angle"`
	FaceYAngle       float64 `json:"face_y_angle"`
	FaceZAngle       float64 `json:"face_z_angle"`

	// Passed through from Config; the renderer implements them.
	AutoBlink    bool `json:"auto_blink"`
	AutoBreath   bool `json:"auto_breath"`
	RandomMotion bool `json:"random_motion"`
}

// Mapper turns smoothed signals into Params.
type Mapper struct {
	cfg Config
}

// NewMapper creates a mapper with the given thresholds.
func NewMapper(cfg Config) *Mapper {
	return &Mapper{cfg: cfg}
}

// Map builds Params from the current filter averages.
func (m *Mapper) Map(bank *FilterBank) Params {
	var p Params

	p.FaceXAngle = bank.Average(SignalFaceX, DefaultAngle)
	p.FaceYAngle = bank.Average(SignalFaceY, DefaultAngle) + m.cfg.FaceYAngleCorrection
	p.FaceZAngle = bank.Average(SignalFaceZ, DefaultAngle)
	p.MouthOpenness = bank.Average(SignalMouthOpen, DefaultShape)
	p.MouthForm = bank.Average(SignalMouthForm, DefaultShape)

	left := bank.Average(SignalLeftEye, DefaultEyeOpenness)
	right := bank.Average(SignalRightEye, DefaultEyeOpenness)
	p.LeftEyeOpenness, p.RightEyeOpenness = ResolveEyes(left, right, m.cfg.WinkEnable)

	smile := m.EyeSmile(p.LeftEyeOpenness, p.RightEyeOpenness, p.MouthForm, p.MouthOpenness)
	p.LeftEyeSmile, p.RightEyeSmile = smile, smile

	p.AutoBlink = m.cfg.AutoBlink
	p.AutoBreath = m.cfg.AutoBreath
	p.RandomMotion = m.cfg.RandomMotion

	return p
}

// ResolveEyes decides between a wink and a synchronized blink. Without wink
// support both eyes always get their mean. With it, one eye nearly shut
// while the other is clearly open becomes a full wink.
func ResolveEyes(left, right float64, winkEnable bool) (float64, float64) {
	if winkEnable {
		if left < WinkClosedThreshold && right > WinkOpenThreshold {
			return 0, 1
		}
		if right < WinkClosedThreshold && left > WinkOpenThreshold {
			return 1, 0
		}
	}
	both := (left + right) / 2
	return both, both
}

// EyeSmile returns 1 when squinting eyes come with a wide, open mouth.
func (m *Mapper) EyeSmile(leftEye, rightEye, mouthForm, mouthOpen float64) float64 {
	if leftEye <= m.cfg.EyeSmileEyeOpenThreshold &&
		rightEye <= m.cfg.EyeSmileEyeOpenThreshold &&
		mouthForm > m.cfg.EyeSmileMouthFormThreshold &&
		mouthOpen > m.cfg.EyeSmileMouthOpenThreshold {
		return 1
	}
	return 0
}
