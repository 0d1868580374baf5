package pose

import (
	"context"
	"errors"
)

// ErrAlreadyStarted is returned by Start on a detector that is already running.
var ErrAlreadyStarted = errors.New("detector already started")

// Detector is the boundary to the external pose-detection collaborator.
type Detector interface {
	// Start begins producing frames. A failure here is a session setup failure.
	Start(ctx context.Context) error

	// Results delivers frames in detection order. It is closed when the
	// stream ends or the detector stops.
	Results() <-chan Frame

	// Errors delivers non-fatal stream errors. Sends never block the detector;
	// errors are dropped when nobody is reading.
	Errors() <-chan error

	// Stop halts frame production and releases resources.
	Stop() error
}

// Config holds configuration options for the pose service detector.
type Config struct {
	// ScriptPath is the pose service script. Searched for when empty.
	ScriptPath string `toml:"script_path"`

	// PythonPath is the interpreter. A virtualenv python or python3 when empty.
	PythonPath string `toml:"python_path"`

	// CameraIndex selects the capture device used by the service.
	CameraIndex int `toml:"camera_index"`

	// ModelComplexity is the MediaPipe pose model complexity (0, 1 or 2).
	ModelComplexity int `toml:"model_complexity"`

	// MinDetectionConf is the minimum detection confidence threshold (0.0-1.0).
	MinDetectionConf float64 `toml:"min_detection_conf"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `toml:"min_tracking_conf"`

	// BufferSize is the capacity of the results channel.
	BufferSize int `toml:"buffer_size"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelComplexity:  1,
		MinDetectionConf: 0.5,
		MinTrackingConf:  0.5,
		BufferSize:       32,
	}
}
