package reading

import "sort"

// DefaultWindow is the default smoothing window size, matching the rolling
// buffers used on the original bench setups.
const DefaultWindow = 10

// minSmoothingFill is the buffer occupancy below which smoothing is a
// passthrough: a median over one or two cold-start values is meaningless.
const minSmoothingFill = 3

// SmoothingFilter maintains a bounded window of recent values and produces a
// median-filtered reading. It is not safe for concurrent use; the pipeline
// owns one per stream.
type SmoothingFilter struct {
	values   []float64
	capacity int
	head     int
	size     int
	last     float64
}

// NewSmoothingFilter creates a filter over a window of the given capacity.
// Capacities below 1 fall back to DefaultWindow.
func NewSmoothingFilter(capacity int) *SmoothingFilter {
	if capacity < 1 {
		capacity = DefaultWindow
	}
	return &SmoothingFilter{
		values:   make([]float64, capacity),
		capacity: capacity,
	}
}

// Push adds a value to the window, evicting the oldest when full.
func (f *SmoothingFilter) Push(v float64) {
	f.values[f.head] = v
	f.head = (f.head + 1) % f.capacity
	if f.size < f.capacity {
		f.size++
	}
	f.last = v
}

// Smoothed returns the median of the window once it holds at least three
// values; before that it returns the most recent value unchanged.
func (f *SmoothingFilter) Smoothed() float64 {
	if f.size < minSmoothingFill {
		return f.last
	}

	window := make([]float64, f.size)
	copy(window, f.values[:f.size])
	sort.Float64s(window)

	mid := f.size / 2
	if f.size%2 == 1 {
		return window[mid]
	}
	return (window[mid-1] + window[mid]) / 2
}

// Size returns the number of values currently in the window.
func (f *SmoothingFilter) Size() int { return f.size }

// Reset empties the window.
func (f *SmoothingFilter) Reset() {
	f.head = 0
	f.size = 0
	f.last = 0
}
