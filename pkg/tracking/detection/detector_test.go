package detection

import (
	"image"
	"testing"
)

func TestDetection_Center(t *testing.T) {
	tests := []struct {
		name    string
		det     Detection
		expectX float64
		expectY float64
	}{
		{
			name:    "center of image",
			det:     Detection{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			expectX: 0.5,
			expectY: 0.5,
		},
		{
			name:    "top left corner",
			det:     Detection{X: 0, Y: 0, W: 0.5, H: 0.25},
			expectX: 0.25,
			expectY: 0.125,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x, y := tc.det.Center()
			if x != tc.expectX || y != tc.expectY {
				t.Errorf("Center: got (%.3f, %.3f), want (%.3f, %.3f)", x, y, tc.expectX, tc.expectY)
			}
		})
	}
}

func TestDetection_Rect(t *testing.T) {
	tests := []struct {
		name   string
		det    Detection
		margin float64
		want   image.Rectangle
	}{
		{
			name: "no margin",
			det:  Detection{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			want: image.Rect(160, 120, 480, 360),
		},
		{
			name:   "margin grows box",
			det:    Detection{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			margin: 0.1,
			want:   image.Rect(128, 96, 512, 384),
		},
		{
			name:   "clipped to frame",
			det:    Detection{X: 0, Y: 0.5, W: 0.5, H: 0.5},
			margin: 0.2,
			want:   image.Rect(0, 192, 384, 480),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.det.Rect(640, 480, tc.margin)
			if got != tc.want {
				t.Errorf("Rect: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name       string
		detections []Detection
		expectOK   bool
		expectIdx  int
	}{
		{
			name:       "empty list",
			detections: nil,
		},
		{
			name: "single detection",
			detections: []Detection{
				{X: 0.4, Y: 0.4, W: 0.2, H: 0.2, Confidence: 0.9},
			},
			expectOK: true,
		},
		{
			name: "close face beats confident small face",
			detections: []Detection{
				{X: 0.7, Y: 0.1, W: 0.1, H: 0.1, Confidence: 0.95}, // 0.57 + 0.04
				{X: 0.2, Y: 0.2, W: 0.5, H: 0.5, Confidence: 0.7},  // 0.42 + 0.4
			},
			expectOK:  true,
			expectIdx: 1,
		},
		{
			name: "same size picks confident",
			detections: []Detection{
				{X: 0.0, Y: 0.0, W: 0.3, H: 0.3, Confidence: 0.6},
				{X: 0.5, Y: 0.5, W: 0.3, H: 0.3, Confidence: 0.9},
			},
			expectOK:  true,
			expectIdx: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			best, ok := SelectBest(tc.detections)
			if ok != tc.expectOK {
				t.Fatalf("SelectBest: ok=%v, want %v", ok, tc.expectOK)
			}
			if !ok {
				return
			}
			if best != tc.detections[tc.expectIdx] {
				t.Errorf("SelectBest: got %+v, want %+v", best, tc.detections[tc.expectIdx])
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ModelPath == "" {
		t.Error("DefaultConfig: ModelPath should not be empty")
	}
	if cfg.ConfidenceThresh <= 0 || cfg.ConfidenceThresh > 1 {
		t.Errorf("DefaultConfig: ConfidenceThresh should be 0-1, got %f", cfg.ConfidenceThresh)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		t.Errorf("DefaultConfig: input size should be positive, got %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
}
