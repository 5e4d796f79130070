package source

import (
	"math"
	"time"
)

// Tracker windows
const (
	fpsWindow        = time.Second
	lossWindow       = 5 * time.Second
	maxJitterSamples = 100
)

// fpsCounter counts packet arrivals within a trailing one-second window.
type fpsCounter struct {
	arrivals []time.Time
}

func (c *fpsCounter) record(now time.Time) {
	c.prune(now)
	c.arrivals = append(c.arrivals, now)
}

// fps reports the number of arrivals still inside the window.
func (c *fpsCounter) fps(now time.Time) float64 {
	c.prune(now)
	return float64(len(c.arrivals))
}

func (c *fpsCounter) prune(now time.Time) {
	cutoff := now.Add(-fpsWindow)
	kept := c.arrivals[:0]
	for _, t := range c.arrivals {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.arrivals = kept
}

// sequenceTracker measures packet loss from 8-bit sequence numbers over a
// rolling five-second window. A new window treats its first packet as the
// baseline, so loss starts at zero.
type sequenceTracker struct {
	hasSample   bool
	last        uint8
	windowStart time.Time
	expected    uint64
	received    uint64
}

func (t *sequenceTracker) record(now time.Time, seq uint8) {
	if !t.hasSample || now.Sub(t.windowStart) > lossWindow {
		t.hasSample = true
		t.windowStart = now
		t.last = seq
		t.expected = 0
		t.received = 1
		return
	}

	// Wraparound-safe gap: 255 -> 0 is a gap of 1
	gap := uint64(seq - t.last)
	t.expected += gap
	t.received++
	t.last = seq
}

// lossPercent reports the window's loss, clamped to 0-100.
func (t *sequenceTracker) lossPercent() float64 {
	if t.expected == 0 || t.received >= t.expected {
		return 0
	}
	loss := float64(t.expected-t.received) / float64(t.expected) * 100
	if loss > 100 {
		return 100
	}
	return loss
}

// latencyTracker keeps the most recent inter-arrival intervals and reports
// their variability as jitter.
type latencyTracker struct {
	lastArrival time.Time
	intervals   []float64 // seconds
}

func (t *latencyTracker) record(now time.Time) {
	if !t.lastArrival.IsZero() {
		t.intervals = append(t.intervals, now.Sub(t.lastArrival).Seconds())
		if len(t.intervals) > maxJitterSamples {
			t.intervals = t.intervals[len(t.intervals)-maxJitterSamples:]
		}
	}
	t.lastArrival = now
}

// jitterMS is the population standard deviation of the retained intervals,
// in milliseconds. Fewer than two samples report zero.
func (t *latencyTracker) jitterMS() float64 {
	n := len(t.intervals)
	if n < 2 {
		return 0
	}

	var sum float64
	for _, v := range t.intervals {
		sum += v
	}
	mean := sum / float64(n)

	var variance float64
	for _, v := range t.intervals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)

	return math.Sqrt(variance) * 1000
}
