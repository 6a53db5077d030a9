package detection

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-avatar/pkg/landmark"
)

// ErrLandmarkOutput is returned when the model output does not hold 68 points.
var ErrLandmarkOutput = errors.New("detection: unexpected landmark model output")

// LandmarkEstimator locates the 68 facial landmarks inside a face box.
type LandmarkEstimator interface {
	Landmarks(frame gocv.Mat, face image.Rectangle) (landmark.Set, error)
	Close() error
}

// LandmarkConfig holds landmark model configuration
type LandmarkConfig struct {
	ModelPath string // ONNX regression model with 136 outputs

	// Model input size; the face crop is resized to it
	InputWidth  int
	InputHeight int

	// PixelOutput is set when the model emits coordinates in input pixels
	// rather than 0-1 fractions of the crop
	PixelOutput bool
}

// DefaultLandmarkConfig returns defaults for a PFLD-style 112x112 model.
func DefaultLandmarkConfig() LandmarkConfig {
	return LandmarkConfig{
		ModelPath:   "models/face_landmarks_68.onnx",
		InputWidth:  112,
		InputHeight: 112,
	}
}

// LandmarkNet runs a 68-point landmark regression network with OpenCV DNN.
type LandmarkNet struct {
	net       gocv.Net
	config    LandmarkConfig
	inputSize image.Point
	mu        sync.Mutex
}

// NewLandmarkNet loads the ONNX model.
func NewLandmarkNet(cfg LandmarkConfig) (*LandmarkNet, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("landmark model: %w", err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load landmark model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &LandmarkNet{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Landmarks returns the landmarks of the face in box, in frame pixels.
func (n *LandmarkNet) Landmarks(frame gocv.Mat, box image.Rectangle) (landmark.Set, error) {
	crop := box.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if crop.Empty() {
		return landmark.Set{}, fmt.Errorf("%w: face box outside frame", landmark.ErrNoUpdate)
	}

	roi := frame.Region(crop)
	defer roi.Close()

	n.mu.Lock()
	defer n.mu.Unlock()

	blob := gocv.BlobFromImage(roi, 1.0/255.0, n.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.net.SetInput(blob, "")
	output := n.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return landmark.Set{}, fmt.Errorf("read landmark output: %w", err)
	}
	return decodeLandmarks(data, crop, n.inputSize, n.config.PixelOutput)
}

// decodeLandmarks maps 68 interleaved (x, y) model outputs back into frame
// coordinates.
func decodeLandmarks(out []float32, crop image.Rectangle, input image.Point, pixelOutput bool) (landmark.Set, error) {
	var s landmark.Set
	if len(out) < 2*landmark.Count {
		return s, fmt.Errorf("%w: %d values", ErrLandmarkOutput, len(out))
	}

	sx, sy := float64(crop.Dx()), float64(crop.Dy())
	if pixelOutput {
		sx /= float64(input.X)
		sy /= float64(input.Y)
	}
	for i := range s {
		s[i] = landmark.Point{
			X: float64(crop.Min.X) + float64(out[2*i])*sx,
			Y: float64(crop.Min.Y) + float64(out[2*i+1])*sy,
		}
	}
	return s, nil
}

// Close releases the network.
func (n *LandmarkNet) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}
