package tracking

import (
	"math"

	"github.com/teslashibe/go-avatar/pkg/geometry"
	"github.com/teslashibe/go-avatar/pkg/landmark"
)

// Eye selects which eye to measure.
type Eye int

const (
	LeftEye Eye = iota
	RightEye
)

// Signals are the raw (unsmoothed) values computed from one landmark set.
type Signals struct {
	FaceX     float64 `json:"face_x"`     // yaw, degrees in [-30, 30]
	MouthForm float64 `json:"mouth_form"` // 0 neutral, 1 full smile
	FaceY     float64 `json:"face_y"`     // pitch, degrees, up is positive
	FaceZ     float64 `json:"face_z"`     // roll, degrees
	MouthOpen float64 `json:"mouth_open"` // >= 0, may exceed 1
	LeftEye   float64 `json:"left_eye"`   // openness in [0, 1]
	RightEye  float64 `json:"right_eye"`  // openness in [0, 1]
}

// Valid reports whether every signal is a finite number.
func (s Signals) Valid() bool {
	for _, v := range [...]float64{s.FaceX, s.MouthForm, s.FaceY, s.FaceZ, s.MouthOpen, s.LeftEye, s.RightEye} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Engine derives avatar signals from landmark geometry. It is stateless apart
// from its configuration and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with the given thresholds.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Compute evaluates every signal for one frame. Later signals consume the
// raw values of earlier ones: face Y uses face X and mouth form, mouth
// openness uses mouth form, eye openness uses face Y.
func (e *Engine) Compute(lm *landmark.Set) Signals {
	var s Signals
	s.FaceX = e.FaceXAngle(lm)
	s.MouthForm = e.MouthForm(lm)
	s.FaceY = e.FaceYAngle(lm, s.FaceX, s.MouthForm)
	s.FaceZ = e.FaceZAngle(lm)
	s.MouthOpen = e.MouthOpenness(lm, s.MouthForm)
	s.LeftEye = e.EyeOpenness(LeftEye, lm, s.FaceY)
	s.RightEye = e.EyeOpenness(RightEye, lm, s.FaceY)
	return s
}

// EyeAspectRatio returns (|p2p6| + |p3p5|) / (2 |p1p4|) for the six points of
// one eye, p1 and p4 being the corners.
func EyeAspectRatio(p1, p2, p3, p4, p5, p6 landmark.Point) float64 {
	width := geometry.Dist(p1, p4)
	height1 := geometry.Dist(p2, p6)
	height2 := geometry.Dist(p3, p5)

	return (height1 + height2) / (2 * width)
}

func eyeAspectRatio(eye Eye, lm *landmark.Set) float64 {
	first := landmark.RightEyeStart
	if eye == LeftEye {
		first = landmark.LeftEyeStart
	}
	return EyeAspectRatio(lm[first], lm[first+1], lm[first+2], lm[first+3], lm[first+4], lm[first+5])
}

// EyeOpenness returns 0 (closed) to 1 (open). The aspect ratio is divided by
// cos(faceY) to undo foreshortening when the head is pitched.
func (e *Engine) EyeOpenness(eye Eye, lm *landmark.Set, faceYAngle float64) float64 {
	ratio := eyeAspectRatio(eye, lm) / math.Cos(geometry.Radians(faceYAngle))
	return geometry.LinearScale01(ratio, e.cfg.EyeClosedThreshold, e.cfg.EyeOpenThreshold)
}

// MouthForm compares the mouth width with the distance between the eyes:
// 0 for a neutral mouth, 1 for a full smile.
func (e *Engine) MouthForm(lm *landmark.Set) float64 {
	eyeRight := geometry.MustCentroid(lm.Range(landmark.RightEyeStart, landmark.RightEyeEnd)...)
	eyeLeft := geometry.MustCentroid(lm.Range(landmark.LeftEyeStart, landmark.LeftEyeEnd)...)
	distEyes := geometry.Dist(eyeRight, eyeLeft)
	distMouth := geometry.Dist(lm[landmark.MouthCornerRight], lm[landmark.MouthCornerLeft])

	return geometry.LinearScale01(distMouth/distEyes, e.cfg.MouthNormalThreshold, e.cfg.MouthSmileThreshold)
}

// MouthOpenness averages three lip gaps, normalizes by mouth width and
// scales against the closed/open thresholds. The result is not clipped above
// 1. Smiling widens the mouth, so the value is boosted by mouthForm.
func (e *Engine) MouthOpenness(lm *landmark.Set, mouthForm float64) float64 {
	heightLeft := geometry.Dist(lm[landmark.LipGapLeftTop], lm[landmark.LipGapLeftBot])
	heightMiddle := geometry.Dist(lm[landmark.LipGapMidTop], lm[landmark.LipGapMidBot])
	heightRight := geometry.Dist(lm[landmark.LipGapRightTop], lm[landmark.LipGapRightBot])
	avgHeight := (heightLeft + heightMiddle + heightRight) / 3

	width := geometry.Dist(lm[landmark.MouthCornerRight], lm[landmark.MouthCornerLeft])

	scaled := geometry.LinearScale01Clip(avgHeight/width,
		e.cfg.MouthClosedThreshold, e.cfg.MouthOpenThreshold, true, false)

	return scaled * (1 + e.cfg.MouthOpenLaughCorrection*mouthForm)
}

// FaceXAngle estimates yaw in degrees, clamped to ±MaxFaceXAngle.
//
// A vertical axis runs from the nose bridge to the upper lip. A perpendicular
// is dropped from each side of the jaw onto that axis, and the head is
// modelled as a sphere seen from above: sin(θ) = (r - l) / (r + l).
func (e *Engine) FaceXAngle(lm *landmark.Set) float64 {
	y0 := geometry.MustCentroid(lm.Range(landmark.NoseBridgeTop, landmark.NoseBridgeBottom)...)
	y1 := geometry.MustCentroid(lm.Range(landmark.UpperLipStart, landmark.UpperLipEnd)...)

	left := geometry.MustCentroid(lm.Range(landmark.JawEnd-2, landmark.JawEnd)...)
	right := geometry.MustCentroid(lm.Range(landmark.JawStart, landmark.JawStart+2)...)

	axis := geometry.Dist(y0, y1)
	perpRight := perpendicular(y0, y1, right, axis)
	perpLeft := perpendicular(y0, y1, left, axis)

	theta := geometry.Degrees(math.Asin((perpRight - perpLeft) / (perpRight + perpLeft)))
	return geometry.Clamp(theta, -MaxFaceXAngle, MaxFaceXAngle)
}

// perpendicular returns the distance from edge to the line through y0 and y1,
// via the angle at y1 of the triangle (y0, y1, edge).
func perpendicular(y0, y1, edge landmark.Point, axis float64) float64 {
	edgeToLip := geometry.Dist(y1, edge)
	angle := geometry.SolveCosineRuleAngle(geometry.Dist(edge, y0), axis, edgeToLip)
	return edgeToLip * math.Sin(angle)
}

// FaceYAngle estimates pitch in degrees from the angle at the nose tip
// between the nostrils. Looking up is positive, looking down negative.
func (e *Engine) FaceYAngle(lm *landmark.Set, faceXAngle, mouthForm float64) float64 {
	c := geometry.Dist(lm[landmark.NostrilRight], lm[landmark.NostrilLeft])
	a := geometry.Dist(lm[landmark.NoseTip], lm[landmark.NostrilRight])
	b := geometry.Dist(lm[landmark.NoseTip], lm[landmark.NostrilLeft])

	angle := geometry.SolveCosineRuleAngle(c, a, b)

	// Turning the head sideways narrows the nose; smiling widens it.
	corrAngle := angle * (1 + (math.Abs(faceXAngle) / MaxFaceXAngle * e.cfg.FaceYAngleXRotCorrection))
	corrAngle *= (1 - mouthForm*e.cfg.FaceYAngleSmileCorrection)

	if corrAngle >= e.cfg.FaceYAngleZeroValue {
		return -MaxFaceYAngle * geometry.LinearScale01Clip(corrAngle,
			e.cfg.FaceYAngleZeroValue, e.cfg.FaceYAngleDownThreshold, false, false)
	}
	return MaxFaceYAngle * (1 - geometry.LinearScale01Clip(corrAngle,
		e.cfg.FaceYAngleUpThreshold, e.cfg.FaceYAngleZeroValue, false, false))
}

// FaceZAngle estimates roll in degrees as the mean slope angle of the line
// between the eye centroids and the line between the nostrils.
func (e *Engine) FaceZAngle(lm *landmark.Set) float64 {
	eyeRight := geometry.MustCentroid(lm.Range(landmark.RightEyeStart, landmark.RightEyeEnd)...)
	eyeLeft := geometry.MustCentroid(lm.Range(landmark.LeftEyeStart, landmark.LeftEyeEnd)...)

	noseLeft := lm[landmark.NostrilLeft]
	noseRight := lm[landmark.NostrilRight]

	angle1 := math.Atan((eyeRight.Y - eyeLeft.Y) / (eyeRight.X - eyeLeft.X))
	angle2 := math.Atan((noseRight.Y - noseLeft.Y) / (noseRight.X - noseLeft.X))

	return geometry.Degrees((angle1 + angle2) / 2)
}
