package classifier

// DefaultWindowSize is the number of raw samples averaged by a classifier.
const DefaultWindowSize = 5

// Window is a fixed-capacity FIFO ring of raw classification samples.
type Window struct {
	buf  []Probabilities
	next int
	n    int
}

// NewWindow creates a window holding at most size samples.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{buf: make([]Probabilities, size)}
}

// Push appends a sample, evicting the oldest when full.
func (w *Window) Push(p Probabilities) {
	w.buf[w.next] = p
	w.next = (w.next + 1) % len(w.buf)
	if w.n < len(w.buf) {
		w.n++
	}
}

// Mean returns the arithmetic mean of the held samples, or Neutral when empty.
func (w *Window) Mean() Probabilities {
	if w.n == 0 {
		return Neutral
	}
	sum := 0.0
	for i := 0; i < w.n; i++ {
		sum += w.buf[i].Up
	}
	return fromUp(sum / float64(w.n))
}

// Len returns the number of held samples.
func (w *Window) Len() int {
	return w.n
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}

// Reset drops all samples.
func (w *Window) Reset() {
	clear(w.buf)
	w.next = 0
	w.n = 0
}
