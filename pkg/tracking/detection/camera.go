package detection

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/debug"
	"github.com/teslashibe/go-avatar/pkg/landmark"
)

// FrameSource yields BGR frames. *gocv.VideoCapture implements it.
type FrameSource interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// DefaultMargin is the face box growth used by the camera command.
const DefaultMargin = 0.1

// CameraConfig configures a CameraProvider.
type CameraConfig struct {
	// Device is a camera index ("0") or a video file path.
	Device string

	// Mirror flips frames horizontally before detection so the avatar
	// moves like a reflection.
	Mirror bool

	// Margin grows the face box by this fraction before landmark
	// estimation. See DefaultMargin.
	Margin float64

	Width, Height int // Requested capture size, zero keeps the driver default
}

// CameraProvider is a landmark.Provider running face detection and landmark
// estimation on frames from a camera or video file.
type CameraProvider struct {
	cfg       CameraConfig
	source    FrameSource
	detector  Detector
	estimator LandmarkEstimator
	frame     gocv.Mat
	isFile    bool
	frames    int
}

// OpenCamera opens the capture device. Failing to open it is fatal for the
// caller. The provider owns detector and estimator and closes them.
func OpenCamera(cfg CameraConfig, detector Detector, estimator LandmarkEstimator) (*CameraProvider, error) {
	var device interface{} = cfg.Device
	if id, err := strconv.Atoi(cfg.Device); err == nil {
		device = id
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open capture device %s: %w", cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open capture device %s: not available", cfg.Device)
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	_, statErr := os.Stat(cfg.Device)
	p := NewCameraProvider(cfg, capture, detector, estimator)
	p.isFile = statErr == nil

	log.Info("camera opened", "device", cfg.Device, "mirror", cfg.Mirror, "file", p.isFile)
	return p, nil
}

// NewCameraProvider wraps an already opened frame source.
func NewCameraProvider(cfg CameraConfig, source FrameSource, detector Detector, estimator LandmarkEstimator) *CameraProvider {
	return &CameraProvider{
		cfg:       cfg,
		source:    source,
		detector:  detector,
		estimator: estimator,
		frame:     gocv.NewMat(),
	}
}

// Next grabs a frame and returns the landmarks of the best face in it.
// A frame without a face returns an error wrapping landmark.ErrNoUpdate. The
// end of a video file returns io.EOF; any other read failure is an error.
func (p *CameraProvider) Next(ctx context.Context) (landmark.Set, error) {
	if err := ctx.Err(); err != nil {
		return landmark.Set{}, err
	}

	if ok := p.source.Read(&p.frame); !ok || p.frame.Empty() {
		if p.isFile {
			return landmark.Set{}, io.EOF
		}
		return landmark.Set{}, fmt.Errorf("read frame %d from %s", p.frames, p.cfg.Device)
	}
	p.frames++

	return p.process(p.frame)
}

func (p *CameraProvider) process(frame gocv.Mat) (landmark.Set, error) {
	if p.cfg.Mirror {
		gocv.Flip(frame, &frame, 1)
	}

	faces, err := p.detector.Detect(frame)
	if err != nil {
		return landmark.Set{}, fmt.Errorf("detect faces: %w", err)
	}
	face, ok := SelectBest(faces)
	if !ok {
		debug.FrameLog("camera: no face in frame %d\n", p.frames)
		return landmark.Set{}, fmt.Errorf("%w: no face detected", landmark.ErrNoUpdate)
	}

	box := face.Rect(frame.Cols(), frame.Rows(), p.cfg.Margin)
	set, err := p.estimator.Landmarks(frame, box)
	if err != nil {
		return landmark.Set{}, fmt.Errorf("estimate landmarks: %w", err)
	}
	if !set.Finite() {
		return landmark.Set{}, fmt.Errorf("%w: non-finite landmarks", landmark.ErrNoUpdate)
	}
	return set, nil
}

// Close releases the capture device and the models.
func (p *CameraProvider) Close() error {
	p.frame.Close()
	err := p.source.Close()
	p.detector.Close()
	p.estimator.Close()
	log.Info("camera closed", "device", p.cfg.Device, "frames", p.frames)
	return err
}

// Name identifies the source in logs.
func (p *CameraProvider) Name() string {
	return "camera:" + p.cfg.Device
}
