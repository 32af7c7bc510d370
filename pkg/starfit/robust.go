package starfit

import (
	"math"
	"sort"
)

// Hampel redescending influence function breakpoints, in standardized
// units. Conventional values; treat as tunables, not physical constants.
const (
	hampelA = 1.7
	hampelB = 3.4
	hampelC = 8.5
)

// madToSigma makes the median absolute deviation a consistent estimator of
// the standard deviation under normality (1/0.6745).
const madToSigma = 1.0 / 0.6745

const robustMaxIter = 50

// RobustMeanStd estimates location and scale of a sample, resistant to a
// minority of outliers. The location starts at the sample median and is
// refined by Newton steps on a Hampel psi function; the scale is the
// MAD-derived sigma and is not iterated. Non-convergence is not an error:
// the last estimates are still returned, and callers treat the scale as an
// uncertainty estimate rather than a success signal.
func RobustMeanStd(sample []float64) (location, scale float64, err error) {
	n := len(sample)
	if n == 0 {
		return 0, 0, ErrNoSample
	}
	if n == 1 {
		return sample[0], 0, nil
	}

	sorted := make([]float64, n)
	copy(sorted, sample)
	location = medianFloat64InPlace(sorted)

	dev := make([]float64, n)
	for i, v := range sample {
		dev[i] = math.Abs(v - location)
	}
	scale = medianFloat64InPlace(dev) * madToSigma

	if scale < 1e-12 {
		// Degenerate spread: fall back to the plain mean and stdev.
		return plainMeanStd(sample)
	}

	for iter := 0; iter < robustMaxIter; iter++ {
		var sumPsi, sumDPsi, sumPsi2 float64
		for _, v := range sample {
			r := (v - location) / scale
			p, dp := hampelPsi(r)
			sumPsi += p
			sumDPsi += dp
			sumPsi2 += p * p
		}
		if math.Abs(sumDPsi) < 1e-12*float64(n) {
			break
		}
		delta := scale * sumPsi / sumDPsi
		location += delta
		// Stop when the correction is small relative to its own
		// estimated variance.
		varDelta := scale * scale * sumPsi2 / (sumDPsi * sumDPsi)
		if delta*delta < 1e-6*varDelta || math.Abs(delta) < 1e-9*scale {
			break
		}
	}
	return location, scale, nil
}

// hampelPsi evaluates the three-part redescending psi and its derivative.
func hampelPsi(r float64) (psi, dpsi float64) {
	ar := math.Abs(r)
	sign := 1.0
	if r < 0 {
		sign = -1.0
	}
	switch {
	case ar < hampelA:
		return r, 1
	case ar < hampelB:
		return hampelA * sign, 0
	case ar < hampelC:
		return hampelA * (hampelC - ar) / (hampelC - hampelB) * sign,
			-hampelA / (hampelC - hampelB)
	default:
		return 0, 0
	}
}

func plainMeanStd(sample []float64) (float64, float64, error) {
	n := float64(len(sample))
	var sum float64
	for _, v := range sample {
		sum += v
	}
	mean := sum / n
	var sse float64
	for _, v := range sample {
		d := v - mean
		sse += d * d
	}
	return mean, math.Sqrt(sse / n), nil
}

// medianFloat64InPlace sorts the slice and returns its median.
func medianFloat64InPlace(v []float64) float64 {
	sort.Float64s(v)
	n := len(v)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (v[n/2-1] + v[n/2]) / 2
	}
	return v[n/2]
}
