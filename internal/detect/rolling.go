package detect

import "math"

// rollingStats is a fixed-length sliding-window accumulator over daily
// counts. It maintains a running sum and sum of squares so the per-day
// cost stays constant instead of rescanning the window.
//
// The standard deviation is the sample deviation (n-1 denominator),
// matching the convention of the volume-spike rule.
type rollingStats struct {
	window int
	values []float64
	next   int
	count  int
	sum    float64
	sumSq  float64
}

func newRollingStats(window int) *rollingStats {
	return &rollingStats{
		window: window,
		values: make([]float64, window),
	}
}

// push adds one day's count, evicting the oldest once the window is full.
func (r *rollingStats) push(v float64) {
	if r.count == r.window {
		old := r.values[r.next]
		r.sum -= old
		r.sumSq -= old * old
	} else {
		r.count++
	}
	r.values[r.next] = v
	r.sum += v
	r.sumSq += v * v
	r.next = (r.next + 1) % r.window
}

// full reports whether a complete window of prior days has been seen.
func (r *rollingStats) full() bool {
	return r.count == r.window
}

func (r *rollingStats) mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sum / float64(r.count)
}

// stddev returns the sample standard deviation of the window.
func (r *rollingStats) stddev() float64 {
	if r.count < 2 {
		return 0
	}
	n := float64(r.count)
	variance := (r.sumSq - r.sum*r.sum/n) / (n - 1)
	if variance < 0 {
		// Floating-point cancellation on flat windows.
		variance = 0
	}
	return math.Sqrt(variance)
}
