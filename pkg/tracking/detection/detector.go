// Package detection finds a face in camera frames and locates its 68
// landmarks with OpenCV DNN models.
package detection

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Detection is a face bounding box in normalized image coordinates.
type Detection struct {
	X, Y       float64 // Top-left corner (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1)
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Rect converts the box to pixels for a cols x rows frame, grown by margin
// (a fraction of the box size) on every side and clipped to the frame.
func (d Detection) Rect(cols, rows int, margin float64) image.Rectangle {
	w, h := float64(cols), float64(rows)
	dx, dy := d.W*margin, d.H*margin

	r := image.Rect(
		int(math.Round((d.X-dx)*w)),
		int(math.Round((d.Y-dy)*h)),
		int(math.Round((d.X+d.W+dx)*w)),
		int(math.Round((d.Y+d.H+dy)*h)),
	)
	return r.Intersect(image.Rect(0, 0, cols, rows))
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in a BGR frame
	Detect(frame gocv.Mat) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.6)
	NMSThresh        float64 // Overlap suppression threshold
	InputWidth       int     // Initial model input width
	InputHeight      int     // Initial model input height
}

// DefaultConfig returns production defaults for YuNet
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.6,
		NMSThresh:        0.3,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// Score weights for SelectBest.
const (
	confidenceWeight = 0.6
	areaWeight       = 0.4
)

// SelectBest picks the face to track when several are visible, favouring
// confident and large (closest) faces. It returns false for no detections.
func SelectBest(dets []Detection) (Detection, bool) {
	switch len(dets) {
	case 0:
		return Detection{}, false
	case 1:
		return dets[0], true
	}

	maxArea := 0.0
	for _, d := range dets {
		maxArea = max(maxArea, d.Area())
	}

	best, bestScore := 0, -1.0
	for i, d := range dets {
		score := d.Confidence * confidenceWeight
		if maxArea > 0 {
			score += d.Area() / maxArea * areaWeight
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return dets[best], true
}
