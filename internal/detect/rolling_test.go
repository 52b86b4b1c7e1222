package detect

import (
	"math"
	"testing"
)

func TestRollingStatsMeanAndStddev(t *testing.T) {
	r := newRollingStats(4)
	for _, v := range []float64{2, 4, 4, 6} {
		r.push(v)
	}

	if !r.full() {
		t.Fatal("window should be full after 4 pushes")
	}
	if got := r.mean(); got != 4 {
		t.Errorf("expected mean 4, got %v", got)
	}

	// Sample variance of {2,4,4,6} is (4+0+0+4)/3.
	want := math.Sqrt(8.0 / 3.0)
	if got := r.stddev(); math.Abs(got-want) > 1e-12 {
		t.Errorf("expected stddev %v, got %v", want, got)
	}
}

func TestRollingStatsEviction(t *testing.T) {
	r := newRollingStats(3)
	for _, v := range []float64{10, 10, 10, 1, 1, 1} {
		r.push(v)
	}

	// Only the last three values remain.
	if got := r.mean(); got != 1 {
		t.Errorf("expected mean 1 after eviction, got %v", got)
	}
	if got := r.stddev(); got != 0 {
		t.Errorf("expected stddev 0 for flat window, got %v", got)
	}
}

func TestRollingStatsNotFullBeforeWindow(t *testing.T) {
	r := newRollingStats(5)
	for i := 0; i < 4; i++ {
		r.push(float64(i))
	}
	if r.full() {
		t.Error("window should not be full after 4 of 5 pushes")
	}
}

func TestRollingStatsFlatWindowNonNegativeVariance(t *testing.T) {
	r := newRollingStats(14)
	for i := 0; i < 14; i++ {
		r.push(0.1)
	}
	if got := r.stddev(); got != 0 {
		t.Errorf("flat window stddev should be exactly 0, got %v", got)
	}
}
