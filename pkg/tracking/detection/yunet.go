package detection

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-avatar/pkg/debug"
)

// ErrEmptyFrame is returned for a frame with no pixels.
var ErrEmptyFrame = errors.New("detection: empty frame")

// YuNetDetector uses OpenCV's FaceDetectorYN for face detection
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	size     image.Point
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a YuNet face detector using GoCV's built-in FaceDetectorYN
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("face model: %w", err)
	}

	size := image.Pt(cfg.InputWidth, cfg.InputHeight)
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		size,
		float32(cfg.ConfidenceThresh),
		float32(cfg.NMSThresh),
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
		size:     size,
	}, nil
}

// Detect finds faces in a BGR frame
func (d *YuNetDetector) Detect(frame gocv.Mat) ([]Detection, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cols, rows := frame.Cols(), frame.Rows()
	if d.size.X != cols || d.size.Y != rows {
		d.size = image.Pt(cols, rows)
		d.detector.SetInputSize(d.size)
	}

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(frame, &faces)

	// YuNet rows: x, y, w, h in pixels, 5 (x, y) keypoints, score
	w, h := float64(cols), float64(rows)
	detections := make([]Detection, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		detections = append(detections, Detection{
			X:          float64(faces.GetFloatAt(r, 0)) / w,
			Y:          float64(faces.GetFloatAt(r, 1)) / h,
			W:          float64(faces.GetFloatAt(r, 2)) / w,
			H:          float64(faces.GetFloatAt(r, 3)) / h,
			Confidence: float64(faces.GetFloatAt(r, 14)),
		})
	}

	if len(detections) > 1 {
		debug.Log("YuNet found %d faces, tracking one\n", len(detections))
	}
	return detections, nil
}

// Close releases the detector resources
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
