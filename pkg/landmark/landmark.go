// Package landmark defines the 68-point facial landmark set shared by every
// landmark source and the tracking core.
package landmark

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a landmark position in image pixels.
type Point = r2.Vec

// Count is the number of landmarks in a Set.
const Count = 68

// Landmark indices. RightEye is the eye on the left of the image (the
// subject's right when the camera is not mirrored).
const (
	JawStart = 0
	JawEnd   = 16

	BrowStart = 17 // brows are not used
	BrowEnd   = 26

	NoseBridgeTop    = 27
	NoseBridgeBottom = 30 // also the nose tip
	NoseTip          = 30
	NostrilRight     = 31
	NostrilLeft      = 35

	RightEyeStart = 36
	RightEyeEnd   = 41
	LeftEyeStart  = 42
	LeftEyeEnd    = 47

	UpperLipStart = 48
	UpperLipEnd   = 52

	// Mouth shape points used by the core, in the layout OpenSeeFace emits.
	MouthCornerRight = 58
	MouthCornerLeft  = 62
	LipGapRightTop   = 59
	LipGapRightBot   = 65
	LipGapMidTop     = 60
	LipGapMidBot     = 64
	LipGapLeftTop    = 61
	LipGapLeftBot    = 63
	MouthEnd         = 67
)

// Set is one frame of landmarks. The index to anatomy mapping is fixed.
type Set [Count]Point

// Range returns the landmarks from first to last inclusive.
func (s *Set) Range(first, last int) []Point {
	pts := make([]Point, 0, last-first+1)
	for i := first; i <= last; i++ {
		pts = append(pts, s[i])
	}
	return pts
}

// Finite reports whether every coordinate is a finite number.
func (s *Set) Finite() bool {
	for _, p := range s {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}
