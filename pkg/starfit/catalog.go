package starfit

import (
	"context"
	"errors"
	"image"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
)

// spreadLimitFactor bounds the fitted spread relative to the search
// radius; anything larger is a diverged fit.
const spreadLimitFactor = 10.0

// FindStars runs the full pipeline over one channel: candidate detection
// on the noise-filtered copy, a speed-optimized plain PSF fit per
// candidate on the raw channel, validation, and a final ascending
// magnitude sort. bgMedian and noiseSigma are the global statistics of the
// filtered channel, supplied by the caller's statistics provider.
//
// Fitting is embarrassingly parallel: one task per candidate on a worker
// pool bounded by the CPU count, with a pre-sized result slot per
// candidate index so completion order never leaks into the output.
// Cancellation is cooperative: no further candidates are scheduled after
// ctx is done, and the stars fitted so far are returned.
func FindStars(ctx context.Context, src, filtered *Channel, bgMedian, noiseSigma float64, cfg *FindStarConfig, optics *Optics) (*Catalog, *FindStarMetrics) {
	metrics := &FindStarMetrics{}
	candidates, r := DetectCandidates(filtered, bgMedian, noiseSigma, cfg, optics)
	metrics.Candidates = len(candidates)

	results := make([]*FittedStar, len(candidates))
	failures := make([]error, len(candidates))

	var accepted atomic.Int64
	capped := func() bool {
		return cfg.MaxStars > 0 && accepted.Load() >= int64(cfg.MaxStars)
	}

	workers := runtime.NumCPU()
	if workers > len(candidates) {
		workers = len(candidates)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				star, err := fitCandidate(src, candidates[i], r, cfg, optics)
				if err != nil {
					failures[i] = err
					continue
				}
				results[i] = star
				accepted.Add(1)
			}
		}()
	}

dispatch:
	for i := range candidates {
		if capped() {
			metrics.CapReached = true
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	for _, err := range failures {
		switch {
		case err == nil:
		case errors.Is(err, errTooSpread):
			metrics.TooSpread++
		case errors.Is(err, errNotRound):
			metrics.NotRound++
		case errors.Is(err, ErrImplausible):
			metrics.Implausible++
		default:
			metrics.SolverFailed++
		}
	}

	// Candidates were pre-sorted by brightness, so taking accepted stars
	// in candidate order keeps the brightest when the cap bites.
	cat := NewCatalog()
	for _, star := range results {
		if star == nil {
			continue
		}
		if cfg.MaxStars > 0 && cat.Len() >= cfg.MaxStars {
			metrics.CapReached = true
			break
		}
		cat.Add(star)
	}
	metrics.Fitted = cat.Len()
	cat.SortByMag()
	return cat, metrics
}

// Validation-only failure classes, folded into ErrImplausible for callers.
var (
	errTooSpread = errors.New("starfit: fitted spread exceeds search radius bound")
	errNotRound  = errors.New("starfit: fitted star below roundness cutoff")
)

// fitCandidate extracts the 2r x 2r raw-pixel window around a candidate,
// runs the plain fit without photometry, and applies the plausibility
// gates.
func fitCandidate(src *Channel, cand Candidate, r int, cfg *FindStarConfig, optics *Optics) (*FittedStar, error) {
	w := src.Window(image.Rect(cand.X-r, cand.Y-r, cand.X+r, cand.Y+r))
	if w == nil {
		return nil, ErrInfeasible
	}
	star, err := FitWindow(w, FitOptions{Optics: optics, Layer: src.Layer})
	if err != nil {
		return nil, err
	}

	if math.IsNaN(star.XPos) || math.IsNaN(star.YPos) ||
		star.X0 <= 0 || star.Y0 <= 0 ||
		star.X0 > float64(w.Width) || star.Y0 > float64(w.Height) {
		return nil, ErrImplausible
	}
	limit := spreadLimitFactor * float64(r)
	if star.SX > limit || star.SY > limit {
		return nil, errTooSpread
	}
	if star.Roundness() < cfg.Roundness {
		return nil, errNotRound
	}
	return star, nil
}
