// Package geometry holds the small set of planar helpers used to turn facial
// landmarks into angles and ratios. Everything here is pure.
package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrNoPoints is returned by Centroid when called without points.
var ErrNoPoints = errors.New("geometry: centroid of zero points")

// Dist returns the Euclidean distance between p and q.
func Dist(p, q r2.Vec) float64 {
	return r2.Norm(r2.Sub(p, q))
}

// Centroid returns the arithmetic mean of points.
func Centroid(points ...r2.Vec) (r2.Vec, error) {
	if len(points) == 0 {
		return r2.Vec{}, ErrNoPoints
	}

	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return r2.Vec{X: sumX / n, Y: sumY / n}, nil
}

// MustCentroid is Centroid for callers that always pass a fixed, non-empty
// list of landmarks.
func MustCentroid(points ...r2.Vec) r2.Vec {
	c, err := Centroid(points...)
	if err != nil {
		panic(err)
	}
	return c
}

// SolveCosineRuleAngle returns the angle (radians) opposite the side of
// length opposite in a triangle whose other two sides are adjacent1 and
// adjacent2.
//
// Noisy landmarks can describe an impossible triangle; the cosine is clamped
// to [-1, 1] so the result is always in [0, π].
func SolveCosineRuleAngle(opposite, adjacent1, adjacent2 float64) float64 {
	// c^2 = a^2 + b^2 - 2ab cos(C)
	cosC := (sq(opposite) - sq(adjacent1) - sq(adjacent2)) /
		(-2 * adjacent1 * adjacent2)
	return math.Acos(Clamp(cosC, -1, 1))
}

// Pi is truncated to the precision avatar clients were calibrated with.
// Use it for every degree/radian conversion so angles stay reproducible.
const Pi = 3.14159265358979

// Degrees converts radians to degrees.
func Degrees(radians float64) float64 {
	return radians * 180 / Pi
}

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * Pi / 180
}

// LinearScale01 maps v from [min, max] onto [0, 1], clipping on both ends.
func LinearScale01(v, min, max float64) float64 {
	return LinearScale01Clip(v, min, max, true, true)
}

// LinearScale01Clip maps v from [min, max] onto [0, 1]. When a clip flag is
// off the result is extrapolated linearly past that end.
func LinearScale01Clip(v, min, max float64, clipMin, clipMax bool) float64 {
	if v < min && clipMin {
		return 0
	}
	if v > max && clipMax {
		return 1
	}
	return (v - min) / (max - min)
}

// Clamp restricts v to [min, max]. NaN passes through unchanged.
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func sq(x float64) float64 {
	return x * x
}
