package pose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/apperr"
)

const serviceScript = "pose_service.py"

// ServiceDetector implements Detector using a Python MediaPipe Pose subprocess
// that owns the camera and writes one JSON frame per line to stdout.
type ServiceDetector struct {
	config Config
	stream *StreamDetector

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	started bool
}

// NewServiceDetector creates a new pose service detector.
// The subprocess is started by Start.
func NewServiceDetector(config Config) *ServiceDetector {
	return &ServiceDetector{
		config: config,
		stream: NewStreamDetector(nil, config),
	}
}

// Start locates and launches the pose service.
func (d *ServiceDetector) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return ErrAlreadyStarted
	}

	scriptPath := d.config.ScriptPath
	if scriptPath == "" {
		scriptPath = findPoseScript()
	}
	if scriptPath == "" {
		return apperr.ErrDetectorStart.WithCause(fmt.Errorf("%s not found", serviceScript))
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return apperr.ErrDetectorStart.WithCause(fmt.Errorf("pose service script: %w", err))
	}

	pythonPath := d.config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, pythonPath, append([]string{scriptPath}, d.args()...)...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return apperr.ErrDetectorStart.WithCause(fmt.Errorf("create stdout pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return apperr.ErrDetectorStart.WithCause(fmt.Errorf("start pose service: %w", err))
	}

	d.stream.r = stdout
	if err := d.stream.Start(procCtx); err != nil {
		cancel()
		_ = cmd.Wait()
		return apperr.ErrDetectorStart.WithCause(err)
	}

	d.cmd = cmd
	d.cancel = cancel
	d.started = true

	log.WithFields(log.Fields{
		"python": pythonPath,
		"script": scriptPath,
		"pid":    cmd.Process.Pid,
	}).Info("pose service started")
	return nil
}

// Results implements Detector.
func (d *ServiceDetector) Results() <-chan Frame {
	return d.stream.Results()
}

// Errors implements Detector.
func (d *ServiceDetector) Errors() <-chan error {
	return d.stream.Errors()
}

// Stop terminates the pose service.
func (d *ServiceDetector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}

	streamErr := d.stream.Stop()
	d.cancel()
	err := d.cmd.Wait()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// killed by our own cancellation
		err = nil
	}

	d.started = false
	d.cmd = nil
	if err != nil {
		return err
	}
	if streamErr != nil && !errors.Is(streamErr, os.ErrClosed) {
		return streamErr
	}
	return nil
}

func (d *ServiceDetector) args() []string {
	return []string{
		"--camera", strconv.Itoa(d.config.CameraIndex),
		"--model-complexity", strconv.Itoa(d.config.ModelComplexity),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinDetectionConf, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	}
}

func findPoseScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".formcoach", "scripts", serviceScript),
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".formcoach/venv/bin/python"),
	}
	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
