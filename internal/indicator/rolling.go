package indicator

import "math"

// mean returns the arithmetic mean of xs. Returns 0 for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd returns the sample standard deviation (n-1 denominator) of xs.
// Returns 0 with fewer than 2 samples.
func sampleStd(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := mean(xs)
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// tail returns the last window elements of xs, or false when xs is shorter
// than the window. Rolling statistics require a full trailing window.
func tail(xs []float64, window int) ([]float64, bool) {
	if window <= 0 || len(xs) < window {
		return nil, false
	}
	return xs[len(xs)-window:], true
}

// rollingMean returns the mean of the trailing window ending at the last
// element, or false when the history is too short.
func rollingMean(xs []float64, window int) (float64, bool) {
	w, ok := tail(xs, window)
	if !ok {
		return 0, false
	}
	return mean(w), true
}

// rollingStd returns the sample standard deviation of the trailing window.
func rollingStd(xs []float64, window int) (float64, bool) {
	w, ok := tail(xs, window)
	if !ok {
		return 0, false
	}
	return sampleStd(w), true
}

// rollingMin returns the minimum over the trailing window.
func rollingMin(xs []float64, window int) (float64, bool) {
	w, ok := tail(xs, window)
	if !ok {
		return 0, false
	}
	min := w[0]
	for _, x := range w[1:] {
		if x < min {
			min = x
		}
	}
	return min, true
}

// rollingMax returns the maximum over the trailing window.
func rollingMax(xs []float64, window int) (float64, bool) {
	w, ok := tail(xs, window)
	if !ok {
		return 0, false
	}
	max := w[0]
	for _, x := range w[1:] {
		if x > max {
			max = x
		}
	}
	return max, true
}

// emaSeries computes the exponential moving average of xs for the given
// span, using span-based smoothing with weight correction for the short
// initial history (each point is the weighted average of all observations
// seen so far, weights decaying by (1-alpha), alpha = 2/(span+1)).
func emaSeries(xs []float64, span int) []float64 {
	if len(xs) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	decay := 1.0 - alpha

	out := make([]float64, len(xs))
	num := 0.0
	den := 0.0
	for i, x := range xs {
		num = x + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}
