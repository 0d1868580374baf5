package session

import (
	"github.com/ayusman/formcoach/internal/counter"
)

// DefaultCacheSize is the number of repetitions kept for feedback.
const DefaultCacheSize = 15

// CachedRep is a repetition waiting to be covered by detailed feedback.
type CachedRep struct {
	Seq      uint64                 `json:"seq"`
	Exercise string                 `json:"exercise"`
	Rep      counter.RepetitionData `json:"rep"`
	// Sent is set once a count signal for the repetition was delivered.
	Sent bool `json:"sent"`
}

// RepCache is a bounded FIFO of recent repetitions. It is not safe for
// concurrent use; Session guards it with its own lock.
type RepCache struct {
	size    int
	items   []CachedRep
	nextSeq uint64
}

// NewRepCache creates a cache holding at most size repetitions.
func NewRepCache(size int) *RepCache {
	if size < 1 {
		size = DefaultCacheSize
	}
	return &RepCache{size: size, items: make([]CachedRep, 0, size)}
}

// Add appends a repetition, evicting the oldest when full.
func (c *RepCache) Add(exercise string, rep counter.RepetitionData) CachedRep {
	c.nextSeq++
	item := CachedRep{Seq: c.nextSeq, Exercise: exercise, Rep: rep}
	if len(c.items) == c.size {
		copy(c.items, c.items[1:])
		c.items = c.items[:len(c.items)-1]
	}
	c.items = append(c.items, item)
	return item
}

// Before returns up to n repetitions added before seq, oldest first.
func (c *RepCache) Before(seq uint64, n int) []counter.RepetitionData {
	var out []counter.RepetitionData
	for _, it := range c.items {
		if it.Seq < seq {
			out = append(out, it.Rep)
		}
	}
	if n >= 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// MarkSent flags the repetition with the given sequence number.
func (c *RepCache) MarkSent(seq uint64) {
	for i := range c.items {
		if c.items[i].Seq == seq {
			c.items[i].Sent = true
			return
		}
	}
}

// DiscardThrough removes every repetition up to and including seq.
func (c *RepCache) DiscardThrough(seq uint64) int {
	kept := c.items[:0]
	for _, it := range c.items {
		if it.Seq > seq {
			kept = append(kept, it)
		}
	}
	removed := len(c.items) - len(kept)
	c.items = kept
	return removed
}

// Items returns a copy of the cached repetitions, oldest first.
func (c *RepCache) Items() []CachedRep {
	return append([]CachedRep(nil), c.items...)
}

// Len returns the number of cached repetitions.
func (c *RepCache) Len() int {
	return len(c.items)
}

// Reset drops every cached repetition. Sequence numbers keep increasing.
func (c *RepCache) Reset() int {
	n := len(c.items)
	c.items = c.items[:0]
	return n
}
