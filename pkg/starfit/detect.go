package starfit

import (
	"math"
	"sort"
)

const (
	// maxCandidates caps the detector output before fitting.
	maxCandidates = 10000

	// expectedSeeingArcsec is the assumed stellar FWHM used to auto-scale
	// the search radius from the optical sampling. Tunable.
	expectedSeeingArcsec = 2.5
	minSearchRadius      = 3
)

// SearchRadius returns the effective local-maximum search radius:
// the configured radius, optionally shrunk so it approximates half the
// expected stellar FWHM in pixels when the optical sampling is known and
// reasonable. It never grows past the configured value.
func SearchRadius(cfg *FindStarConfig, optics *Optics) int {
	r := cfg.Radius
	if !cfg.AdjustRadius {
		return r
	}
	s, ok := optics.Sampling()
	if !ok || s < 0.05 || s > 10 {
		// Unknown or implausible sampling: keep the configured radius.
		return r
	}
	adjusted := int(math.Round(expectedSeeingArcsec / s / 2))
	if adjusted == 0 {
		// Sub-pixel expected FWHM: the sampling gives no usable scale, so
		// fall back to the configured radius.
		return r
	}
	if adjusted < minSearchRadius {
		adjusted = minSearchRadius
	}
	if adjusted < r {
		r = adjusted
	}
	return r
}

// DetectCandidates scans a noise-filtered channel for local-maximum star
// candidates. The detection threshold is bgMedian + cfg.Sigma*noiseSigma,
// with both statistics taken over the filtered image. Saturated pixels are
// skipped. Accepted candidates are capped at maxCandidates and returned
// sorted descending by the 3x3 high-neighborhood mean, so downstream caps
// keep the brightest. The returned radius is the effective search radius.
func DetectCandidates(filtered *Channel, bgMedian, noiseSigma float64, cfg *FindStarConfig, optics *Optics) ([]Candidate, int) {
	r := SearchRadius(cfg, optics)
	threshold := bgMedian + cfg.Sigma*noiseSigma
	margin := cfg.Sigma * noiseSigma

	var out []Candidate
	for y := r; y < filtered.Height-r; y++ {
		for x := r; x < filtered.Width-r; x++ {
			v := filtered.At(x, y)
			if v <= threshold || v >= filtered.Saturation {
				continue
			}
			if !isLocalMax(filtered, x, y, r, v) {
				continue
			}
			bright, ok := passesContrast(filtered, x, y, r, threshold, margin)
			if ok {
				out = append(out, Candidate{X: x, Y: y, Brightness: bright})
				if len(out) >= maxCandidates {
					sortCandidates(out)
					return out, r
				}
			}
			// No second maximum can exist inside the exclusion radius.
			x += r
		}
	}
	sortCandidates(out)
	return out, r
}

// isLocalMax tests the (2r+1)^2 neighborhood. Plateau ties go to the pixel
// that comes first in scan order, so exactly one maximum survives per
// plateau.
func isLocalMax(c *Channel, x, y, r int, v float64) bool {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nv := c.At(x+dx, y+dy)
			if nv > v {
				return false
			}
			if nv == v && (dy < 0 || (dy == 0 && dx < 0)) {
				return false
			}
		}
	}
	return true
}

// passesContrast applies the two local-contrast acceptance tests: every
// pixel of the 3x3 high-neighborhood must exceed the global threshold, and
// its mean must exceed the mean of the rest of the search box by more than
// the detection margin. Diffuse nebulosity peaks fail the second test;
// they are bright but not compact. The acceptance boundary is coupled to
// the upstream smoothing filter, not an independent constant.
func passesContrast(c *Channel, x, y, r int, threshold, margin float64) (float64, bool) {
	var highSum float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			v := c.At(x+dx, y+dy)
			if v <= threshold {
				return 0, false
			}
			highSum += v
		}
	}
	highMean := highSum / 9

	n := (2*r + 1) * (2*r + 1)
	if n <= 9 {
		return highMean, true
	}
	var boxSum float64
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			boxSum += c.At(x+dx, y+dy)
		}
	}
	restMean := (boxSum - highSum) / float64(n-9)

	if highMean-restMean <= margin {
		return 0, false
	}
	return highMean, true
}

func sortCandidates(cand []Candidate) {
	sort.SliceStable(cand, func(i, j int) bool {
		return cand[i].Brightness > cand[j].Brightness
	})
}
