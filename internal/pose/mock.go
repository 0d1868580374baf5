package pose

import (
	"context"
	"sync"
)

// MockDetector is a test implementation of the Detector interface.
// It replays preset frames in order and then closes its results channel.
type MockDetector struct {
	mu         sync.Mutex
	frames     []Frame
	streamErrs []error
	startErr   error
	started    bool

	results chan Frame
	errs    chan error
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector(frames ...Frame) *MockDetector {
	return &MockDetector{
		frames:  frames,
		results: make(chan Frame),
		errs:    make(chan error, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SetFrames sets the frames that will be replayed after Start.
func (m *MockDetector) SetFrames(frames []Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
}

// SetStartError sets the error that will be returned by Start.
func (m *MockDetector) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetStreamErrors sets errors emitted on Errors before any frame.
func (m *MockDetector) SetStreamErrors(errs []error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamErrs = errs
}

// Start replays the configured frames or returns the configured error.
func (m *MockDetector) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return m.startErr
	}
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	frames := append([]Frame(nil), m.frames...)
	streamErrs := append([]error(nil), m.streamErrs...)
	go m.replay(ctx, frames, streamErrs)
	return nil
}

func (m *MockDetector) replay(ctx context.Context, frames []Frame, streamErrs []error) {
	defer close(m.done)
	defer close(m.errs)
	defer close(m.results)

	for _, err := range streamErrs {
		select {
		case m.errs <- err:
		default:
		}
	}

	for _, f := range frames {
		select {
		case m.results <- f:
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Results implements Detector.
func (m *MockDetector) Results() <-chan Frame {
	return m.results
}

// Errors implements Detector.
func (m *MockDetector) Errors() <-chan error {
	return m.errs
}

// Stop halts the replay and waits for it to exit.
func (m *MockDetector) Stop() error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	m.once.Do(func() { close(m.stop) })
	if started {
		<-m.done
	}
	return nil
}
