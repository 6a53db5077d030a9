// Package landmarktest provides landmark fixtures and a scripted Provider for
// tests.
package landmarktest

import (
	"context"
	"io"
	"math"
	"sync"

	"github.com/teslashibe/go-avatar/pkg/landmark"
)

// Frontal returns a symmetric face looking straight at the camera, centred
// on x = 0 with y growing downwards. Both eyes have an aspect ratio of 0.4,
// the eye centroids are 60 px apart and the mouth is 30 px wide with a 4 px
// lip gap.
func Frontal() landmark.Set {
	var s landmark.Set

	// Image-left half of the jaw; the other half is mirrored.
	jaw := [...]landmark.Point{
		{X: -60, Y: -10}, {X: -58, Y: 10}, {X: -54, Y: 30}, {X: -48, Y: 45},
		{X: -40, Y: 55}, {X: -30, Y: 62}, {X: -20, Y: 66}, {X: -10, Y: 69},
	}
	for i, p := range jaw {
		s[i] = p
		s[landmark.JawEnd-i] = mirror(p)
	}
	s[8] = landmark.Point{X: 0, Y: 70}

	for i := 0; i < 5; i++ {
		p := landmark.Point{X: -50 + float64(i)*8, Y: -25 - float64(i%3)}
		s[landmark.BrowStart+i] = p
		s[landmark.BrowEnd-i] = mirror(p)
	}

	for i := landmark.NoseBridgeTop; i <= landmark.NoseBridgeBottom; i++ {
		s[i] = landmark.Point{X: 0, Y: -20 + float64(i-landmark.NoseBridgeTop)*10}
	}
	s[31] = landmark.Point{X: -8, Y: 20}
	s[32] = landmark.Point{X: -4, Y: 21}
	s[33] = landmark.Point{X: 0, Y: 22}
	s[34] = mirror(s[32])
	s[35] = mirror(s[31])

	right := [6]landmark.Point{
		{X: -40, Y: -10}, {X: -35, Y: -14}, {X: -25, Y: -14},
		{X: -20, Y: -10}, {X: -25, Y: -6}, {X: -35, Y: -6},
	}
	for i, p := range right {
		s[landmark.RightEyeStart+i] = p
	}
	// Mirrored so that p1 is still the outer corner.
	left := [6]landmark.Point{
		{X: 20, Y: -10}, {X: 25, Y: -14}, {X: 35, Y: -14},
		{X: 40, Y: -10}, {X: 35, Y: -6}, {X: 25, Y: -6},
	}
	for i, p := range left {
		s[landmark.LeftEyeStart+i] = p
	}

	s[48] = landmark.Point{X: -20, Y: 35}
	s[49] = landmark.Point{X: -10, Y: 33}
	s[50] = landmark.Point{X: 0, Y: 32}
	s[51] = mirror(s[49])
	s[52] = mirror(s[48])
	s[53] = landmark.Point{X: 10, Y: 46}
	s[54] = landmark.Point{X: 0, Y: 47}
	s[55] = landmark.Point{X: -10, Y: 46}
	s[56] = landmark.Point{X: -18, Y: 44}
	s[57] = landmark.Point{X: 18, Y: 44}

	s[landmark.MouthCornerRight] = landmark.Point{X: -15, Y: 40}
	s[landmark.MouthCornerLeft] = landmark.Point{X: 15, Y: 40}
	s[landmark.LipGapRightTop] = landmark.Point{X: -10, Y: 38}
	s[landmark.LipGapRightBot] = landmark.Point{X: -10, Y: 42}
	s[landmark.LipGapMidTop] = landmark.Point{X: 0, Y: 38}
	s[landmark.LipGapMidBot] = landmark.Point{X: 0, Y: 42}
	s[landmark.LipGapLeftTop] = landmark.Point{X: 10, Y: 38}
	s[landmark.LipGapLeftBot] = landmark.Point{X: 10, Y: 42}
	s[66] = landmark.Point{X: 5, Y: 40}
	s[landmark.MouthEnd] = landmark.Point{X: -5, Y: 40}

	return s
}

// ClosedEyes returns Frontal with both eyelids collapsed onto the corners.
func ClosedEyes() landmark.Set {
	s := Frontal()
	for _, first := range []int{landmark.RightEyeStart, landmark.LeftEyeStart} {
		for _, i := range []int{1, 2, 4, 5} {
			s[first+i].Y = s[first].Y
		}
	}
	return s
}

// Rotate returns s rotated about the origin by deg degrees (clockwise on
// screen, since y grows downwards).
func Rotate(s landmark.Set, deg float64) landmark.Set {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	for i, p := range s {
		s[i] = landmark.Point{X: p.X*cos - p.Y*sin, Y: p.X*sin + p.Y*cos}
	}
	return s
}

// Translate returns s shifted by (dx, dy).
func Translate(s landmark.Set, dx, dy float64) landmark.Set {
	for i := range s {
		s[i].X += dx
		s[i].Y += dy
	}
	return s
}

func mirror(p landmark.Point) landmark.Point {
	return landmark.Point{X: -p.X, Y: p.Y}
}

// Step is one scripted Provider result.
type Step struct {
	Set landmark.Set
	Err error
}

// Provider replays a fixed script and then returns io.EOF, or blocks until
// the context is cancelled when Block is set.
type Provider struct {
	Steps []Step
	Block bool

	mu     sync.Mutex
	pos    int
	closed bool
}

// NewProvider returns a Provider yielding each set in order.
func NewProvider(sets ...landmark.Set) *Provider {
	p := &Provider{}
	for _, s := range sets {
		p.Steps = append(p.Steps, Step{Set: s})
	}
	return p
}

// Next implements landmark.Provider.
func (p *Provider) Next(ctx context.Context) (landmark.Set, error) {
	p.mu.Lock()
	if p.pos < len(p.Steps) {
		step := p.Steps[p.pos]
		p.pos++
		p.mu.Unlock()
		return step.Set, step.Err
	}
	p.mu.Unlock()

	if !p.Block {
		return landmark.Set{}, io.EOF
	}
	<-ctx.Done()
	return landmark.Set{}, ctx.Err()
}

// Calls returns how many scripted steps have been consumed.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Close implements landmark.Provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Name implements landmark.Provider.
func (p *Provider) Name() string { return "scripted" }
