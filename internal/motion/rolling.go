package motion

import "gonum.org/v1/gonum/spatial/r3"

// rollingLimit bounds the sample count before a rolling average starts over.
const rollingLimit = 1_000_000

// RollingAverage keeps a running mean without storing the samples. The mean is
// updated incrementally so long runs do not accumulate a large sum.
// The zero value is ready to use.
type RollingAverage struct {
	n       int
	average float64
}

// Add folds value into the mean.
func (r *RollingAverage) Add(value float64) {
	if r.n >= rollingLimit {
		r.Reset()
	}
	r.n++
	r.average += (value - r.average) / float64(r.n)
}

// Average returns the current mean, zero before the first sample.
func (r *RollingAverage) Average() float64 { return r.average }

// Count returns the number of samples folded into the mean.
func (r *RollingAverage) Count() int { return r.n }

// Reset discards all samples.
func (r *RollingAverage) Reset() {
	*r = RollingAverage{}
}

// RollingAverageVec is RollingAverage for positions.
type RollingAverageVec struct {
	n       int
	average r3.Vec
}

// Add folds value into the mean.
func (r *RollingAverageVec) Add(value r3.Vec) {
	if r.n >= rollingLimit {
		r.Reset()
	}
	r.n++
	r.average = r3.Add(r.average, r3.Scale(1/float64(r.n), r3.Sub(value, r.average)))
}

// Average returns the current mean.
func (r *RollingAverageVec) Average() r3.Vec { return r.average }

// Reset discards all samples.
func (r *RollingAverageVec) Reset() {
	*r = RollingAverageVec{}
}
