package pose

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

const maxLineSize = 1 << 20

// StreamDetector decodes newline-delimited JSON frames from a reader.
type StreamDetector struct {
	r       io.Reader
	results chan Frame
	errs    chan error

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewStreamDetector creates a detector reading frames from r.
// Stop closes r if it implements io.Closer.
func NewStreamDetector(r io.Reader, config Config) *StreamDetector {
	size := config.BufferSize
	if size <= 0 {
		size = DefaultConfig().BufferSize
	}
	return &StreamDetector{
		r:       r,
		results: make(chan Frame, size),
		errs:    make(chan error, 16),
		done:    make(chan struct{}),
	}
}

// Start begins decoding frames in a background goroutine.
func (d *StreamDetector) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return ErrAlreadyStarted
	}
	if d.r == nil {
		return fmt.Errorf("stream detector: nil reader")
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.started = true
	go d.run(ctx)
	return nil
}

// Results implements Detector.
func (d *StreamDetector) Results() <-chan Frame {
	return d.results
}

// Errors implements Detector.
func (d *StreamDetector) Errors() <-chan error {
	return d.errs
}

// Stop cancels decoding and waits for the reader goroutine to exit.
func (d *StreamDetector) Stop() error {
	d.mu.Lock()
	started := d.started
	cancel := d.cancel
	d.mu.Unlock()

	if !started {
		return nil
	}

	cancel()
	var err error
	if c, ok := d.r.(io.Closer); ok {
		err = c.Close()
	}
	<-d.done
	return err
}

func (d *StreamDetector) run(ctx context.Context) {
	defer close(d.done)
	defer close(d.errs)
	defer close(d.results)

	scanner := bufio.NewScanner(d.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			d.report(fmt.Errorf("decode frame on line %d: %w", line, err))
			continue
		}

		select {
		case d.results <- f:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		d.report(fmt.Errorf("read frames: %w", err))
	}
}

func (d *StreamDetector) report(err error) {
	select {
	case d.errs <- err:
	default:
	}
}
