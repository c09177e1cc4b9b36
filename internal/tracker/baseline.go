// Package tracker derives behavioral signals from raw input events on the
// monitored surface: typing speed against a rolling baseline, deletion and
// scroll-back rates, and pause duration, emitted once per fixed tick.
package tracker

const (
	// baselineCapacity holds about five minutes of per-tick speed samples
	// at the 2s cadence.
	baselineCapacity = 150
	// baselineMinSamples is how many samples must exist before the
	// baseline is considered established.
	baselineMinSamples = 10
)

// RollingBaseline keeps the most recent per-tick typing speed samples and
// normalizes the current speed into a ratio against their mean. Until
// enough samples exist the ratio defaults to 1.0.
type RollingBaseline struct {
	samples []float64
	size    int
}

// NewRollingBaseline creates a baseline with the default capacity.
func NewRollingBaseline() *RollingBaseline {
	return &RollingBaseline{size: baselineCapacity}
}

// Established reports whether enough samples exist to trust the mean.
func (b *RollingBaseline) Established() bool {
	return len(b.samples) >= baselineMinSamples
}

// Push appends a speed sample, evicting the oldest when over capacity.
func (b *RollingBaseline) Push(speed float64) {
	b.samples = append(b.samples, speed)
	if len(b.samples) > b.size {
		b.samples = b.samples[len(b.samples)-b.size:]
	}
}

// Mean returns the arithmetic mean of the retained samples.
func (b *RollingBaseline) Mean() float64 {
	if len(b.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.samples {
		sum += s
	}
	return sum / float64(len(b.samples))
}

// Len returns the number of retained samples.
func (b *RollingBaseline) Len() int {
	return len(b.samples)
}

// Ratio folds the current speed into the baseline and returns the
// normalized ratio for this tick. Establishment is checked before the
// current sample is pushed, so the first baselineMinSamples ticks always
// report 1.0; afterwards the mean includes the current sample.
func (b *RollingBaseline) Ratio(currentSpeed float64) float64 {
	established := b.Established()
	b.Push(currentSpeed)
	if !established {
		return 1.0
	}
	mean := b.Mean()
	if mean < 1 {
		mean = 1
	}
	return currentSpeed / mean
}
